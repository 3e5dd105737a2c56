// Package wizard collects a benchmark run interactively.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spboyer/wpbench/internal/models"
	"golang.org/x/term"
)

// Selection holds everything collected by the wizard.
type Selection struct {
	Title  string
	Tests  []string
	Values map[string]int
}

// RunWizard asks which tests to run, a title, and a value for each chosen
// test. preselected tests start checked and current supplies the starting
// values; tests missing from it start at their defaults.
func RunWizard(in io.Reader, out io.Writer, tests []models.TestDescriptor, preselected []string, current map[string]int) (*Selection, error) {
	if len(tests) == 0 {
		return nil, fmt.Errorf("no tests available")
	}

	var (
		title    string
		selected []string
	)

	pick := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Tests").
				Description("Choose the tests to run").
				Options(testOptions(tests, preselected)...).
				Value(&selected).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one test")
					}
					return nil
				}),
			huh.NewInput().
				Title("Title").
				Description("Leave empty for a timestamped title").
				Value(&title),
		),
	)
	if err := run(pick, in, out); err != nil {
		return nil, err
	}

	byID := make(map[string]models.TestDescriptor, len(tests))
	for _, d := range tests {
		byID[d.ID] = d
	}

	raw := make(map[string]*string, len(selected))
	var fields []huh.Field
	for _, id := range selected {
		d := byID[id]
		v := d.DefaultValue
		if c, ok := current[id]; ok {
			v = d.Clamp(c)
		}
		s := strconv.Itoa(v)
		raw[id] = &s
		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("%s: %s", d.Name, d.ConfigLabel)).
			Description(fmt.Sprintf("%s, %d to %d", d.ConfigUnit, d.MinValue, d.MaxValue)).
			Value(raw[id]).
			Validate(func(s string) error {
				_, err := ParseValue(s, d)
				return err
			}))
	}
	if err := run(huh.NewForm(huh.NewGroup(fields...)), in, out); err != nil {
		return nil, err
	}

	sel := &Selection{
		Title:  strings.TrimSpace(title),
		Tests:  selected,
		Values: make(map[string]int, len(selected)),
	}
	for _, id := range selected {
		v, err := ParseValue(*raw[id], byID[id])
		if err != nil {
			return nil, err
		}
		sel.Values[id] = v
	}
	return sel, nil
}

func run(form *huh.Form, in io.Reader, out io.Writer) error {
	form = form.WithInput(in).WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}
	return nil
}

// testOptions lists tests in the given order, experimental ones marked, and
// the preselected ones checked.
func testOptions(tests []models.TestDescriptor, preselected []string) []huh.Option[string] {
	checked := make(map[string]bool, len(preselected))
	for _, id := range preselected {
		checked[id] = true
	}

	opts := make([]huh.Option[string], 0, len(tests))
	for _, d := range tests {
		label := d.Name
		if d.Experimental {
			label += " (experimental)"
		}
		opts = append(opts, huh.NewOption(label, d.ID).Selected(checked[d.ID]))
	}
	return opts
}

// ParseValue reads a configuration value for d. Digit grouping with commas
// or underscores is accepted; out-of-range values are rejected, not
// clamped, so the user sees what will run.
func ParseValue(s string, d models.TestDescriptor) (int, error) {
	clean := strings.NewReplacer(",", "", "_", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, fmt.Errorf("%s is required", strings.ToLower(d.ConfigLabel))
	}
	v, err := strconv.Atoi(clean)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if v < d.MinValue || v > d.MaxValue {
		return 0, fmt.Errorf("%d is outside %d to %d", v, d.MinValue, d.MaxValue)
	}
	return v, nil
}
