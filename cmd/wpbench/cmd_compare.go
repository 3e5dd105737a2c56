package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spboyer/wpbench/internal/metrics"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spf13/cobra"
)

func newCompareCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "compare <run> <run> [run ...]",
		Short: "Compare stored runs side by side",
		Long: `Compare two or more runs side by side.

Each argument is a stored run id or the path of a bundle written with
'wpbench run --output'. The report shows every test's time per run, the
mean and spread across runs, and the change from the first run to the last.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q: must be table or json", format)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			bundles, err := loadRuns(cmd, a, args)
			if err != nil {
				return err
			}

			report := metrics.CompareRuns(bundles)
			if format == "json" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal comparison report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printComparisonTable(cmd.OutOrStdout(), report, a.names())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

// loadRuns resolves each argument to a bundle file or a stored run. Stored
// runs are read concurrently.
func loadRuns(cmd *cobra.Command, a *app, args []string) ([]*models.RunBundle, error) {
	bundles := make([]*models.RunBundle, len(args))
	var (
		ids     []string
		indexes []int
	)
	for i, arg := range args {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			b, err := models.LoadBundleFile(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", arg, err)
			}
			bundles[i] = b
			continue
		}
		ids = append(ids, arg)
		indexes = append(indexes, i)
	}
	if len(ids) == 0 {
		return bundles, nil
	}

	results, err := a.openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	loaded, err := results.LoadBundles(cmd.Context(), ids)
	if err != nil {
		return nil, err
	}
	for j, b := range loaded {
		bundles[indexes[j]] = b
	}
	return bundles, nil
}

func printComparisonTable(w io.Writer, r *metrics.Comparison, names map[string]string) {
	const nameWidth = 22

	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w, " COMPARISON REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w)

	for i, run := range r.Runs {
		score := "n/a"
		if run.Score != nil {
			score = fmt.Sprintf("%d", *run.Score)
		}
		fmt.Fprintf(w, "  [%d] %s  %s  (score: %s)\n", i+1, run.ID, run.Title, score)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s", padRight("Score", nameWidth))
	for _, run := range r.Runs {
		if run.Score == nil {
			fmt.Fprintf(w, "  %-9s", "n/a")
		} else {
			fmt.Fprintf(w, "  %-9d", *run.Score)
		}
	}
	fmt.Fprintf(w, "  %s\n\n", formatChange(r.ScoreChange, true))

	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintln(w, " PER-TEST TIMES (seconds)")
	fmt.Fprintln(w, strings.Repeat("-", 70))

	fmt.Fprintf(w, "  %s", padRight("Test", nameWidth))
	for i := range r.Runs {
		fmt.Fprintf(w, "  %-9s", fmt.Sprintf("[%d]", i+1))
	}
	fmt.Fprintf(w, "  %-9s  %-9s  Change\n", "Mean", "StdDev")

	for _, tc := range r.Tests {
		name := names[tc.ID]
		if name == "" {
			name = tc.ID
		}
		fmt.Fprintf(w, "  %s", padRight(truncateName(name, nameWidth), nameWidth))
		for _, t := range tc.Times {
			if t == nil {
				fmt.Fprintf(w, "  %-9s", "n/a")
			} else {
				fmt.Fprintf(w, "  %-9.3f", *t)
			}
		}
		fmt.Fprintf(w, "  %-9.3f  %-9.3f  %s\n", tc.Mean, tc.StdDev, formatChange(tc.Change, false))
	}
	fmt.Fprintln(w)
}

// formatChange renders a percent change with an arrow. For scores higher
// is better; for times lower is.
func formatChange(change *float64, higherIsBetter bool) string {
	if change == nil {
		return "n/a"
	}
	icon := " "
	switch {
	case *change > 0:
		icon = "↑"
	case *change < 0:
		icon = "↓"
	}
	verdict := ""
	if *change != 0 {
		if (*change > 0) == higherIsBetter {
			verdict = " better"
		} else {
			verdict = " worse"
		}
	}
	return fmt.Sprintf("%s%+.1f%%%s", icon, *change, verdict)
}
