package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spboyer/wpbench/internal/hooks"
	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/orchestration"
	"github.com/spboyer/wpbench/internal/projectconfig"
	"github.com/spboyer/wpbench/internal/registry"
	"github.com/spboyer/wpbench/internal/reporting"
	"github.com/spboyer/wpbench/internal/spinner"
	"github.com/spboyer/wpbench/internal/wizard"
	"github.com/spf13/cobra"
)

type runOptions struct {
	tests       []string
	sets        []string
	title       string
	interactive bool
	metricsFile string
	outputPath  string
	junitPath   string
	verbose     bool
	interpret   bool
	noSave      bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark",
		Long: `Run the selected benchmark tests one after another, score the run and
store it.

Without --test, the selection from .wpbench.yaml is used, or every
non-experimental test. Interrupting the run stops it between tests; the
partial run is still scored and stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommandE(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.tests, "test", "t", nil, "Test id or glob pattern to run (can be repeated)")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Override a test's value as id=value (can be repeated)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Run title (default: timestamped)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Choose tests and values interactively")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the run bundle as JSON to this file")
	cmd.Flags().StringVar(&opts.junitPath, "junit", "", "Write JUnit XML results to this file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().BoolVar(&opts.interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not store the run in the result store")

	return cmd
}

func runCommandE(cmd *cobra.Command, opts *runOptions) error {
	out := cmd.OutOrStdout()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("Closing resources", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	db, err := a.openDatabase(ctx)
	if err != nil {
		if a.cfg.Store.Backend == projectconfig.StoreSQL && !opts.noSave {
			return err
		}
		slog.Warn("Database unavailable; database tests will report errors", "error", err)
		db = nil
	}
	reg := a.openRegistry(db)

	req, err := buildRequest(reg, a.cfg, opts)
	if err != nil {
		return err
	}

	if opts.interactive {
		preselected := req.Selected
		if len(preselected) == 0 {
			preselected = reg.DefaultSelection()
		}
		sel, err := wizard.RunWizard(cmd.InOrStdin(), out, reg.Available(), preselected, reg.ClampConfig(req.Config))
		if err != nil {
			return err
		}
		req.Selected = sel.Tests
		req.Config = sel.Values
		if sel.Title != "" {
			req.Title = sel.Title
		}
	}

	var runnerOpts []orchestration.RunnerOption
	if !opts.noSave {
		results, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, orchestration.WithStore(results))
	}
	var metrics *orchestration.Metrics
	if opts.metricsFile != "" {
		metrics = orchestration.NewMetrics()
		runnerOpts = append(runnerOpts, orchestration.WithMetrics(metrics))
	}

	if !a.cfg.Hooks.Empty() {
		runnerOpts = append(runnerOpts, orchestration.WithHooks(a.cfg.Hooks, &hooks.Runner{
			Output:  out,
			Verbose: opts.verbose,
		}))
	}

	runner := orchestration.NewBenchmarkRunner(reg, runnerOpts...)
	if opts.verbose {
		runner.OnProgress(verboseProgressListener(out))
	} else {
		if spinner.Enabled(out) {
			runner.OnProgress(spinnerProgressListener(out, a.names()))
		}
		runner.OnProgress(simpleProgressListener(out))
	}

	bundle, runErr := runner.Run(ctx, req)
	if bundle == nil {
		return fmt.Errorf("benchmark failed: %w", runErr)
	}

	printSummary(out, bundle, a.names())
	if opts.interpret {
		_, entries := runner.Rescore(bundle)
		fmt.Fprintln(out)
		fmt.Fprint(out, reporting.FormatSummaryReport(bundle, entries))
	}

	if opts.outputPath != "" {
		if err := models.SaveBundleFile(bundle, opts.outputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(out, "\nResults saved to: %s\n", opts.outputPath)
	}
	if opts.junitPath != "" {
		if err := reporting.WriteJUnitXML(bundle, a.names(), opts.junitPath); err != nil {
			return fmt.Errorf("failed to write JUnit XML: %w", err)
		}
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if n := bundle.ErrorCount(); n > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("benchmark completed with %d test error(s)", n),
		}
	}
	return nil
}

// buildRequest resolves the selection and values from the configuration
// and the command line. Command-line values win.
func buildRequest(reg *registry.Registry, cfg *projectconfig.ProjectConfig, opts *runOptions) (orchestration.Request, error) {
	req := orchestration.Request{Title: opts.title, Config: cfg.Values()}

	patterns := opts.tests
	if len(patterns) == 0 {
		patterns = cfg.Selection
	}
	if len(patterns) > 0 {
		selected, err := orchestration.FilterTestIDs(reg.IDs(), patterns)
		if err != nil {
			return req, err
		}
		req.Selected = selected
	}

	sets, err := parseSets(opts.sets)
	if err != nil {
		return req, err
	}
	for id, v := range sets {
		if _, ok := reg.Descriptor(id); !ok {
			return req, fmt.Errorf("--set %s: %w", id, registry.ErrUnknownTest)
		}
		req.Config[id] = v
	}
	return req, nil
}

// parseSets parses id=value pairs.
func parseSets(pairs []string) (map[string]int, error) {
	values := make(map[string]int, len(pairs))
	for _, p := range pairs {
		id, raw, ok := strings.Cut(p, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --set %q: expected id=value", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: value must be a whole number", p)
		}
		values[id] = v
	}
	return values, nil
}

func verboseProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventBenchmarkStart:
			fmt.Fprintf(w, "Starting benchmark %q with %d test(s)...\n\n", event.Details["title"], event.TotalTests)
		case orchestration.EventTestStart:
			fmt.Fprintf(w, "[%d/%d] Running test: %s (value %v)\n", event.TestNum, event.TotalTests, event.TestName, event.Details["value"])
		case orchestration.EventTestComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "  Test %s: %s (%v)\n", event.TestName, event.Status, duration)
			if e, ok := event.Details["error"].(string); ok && e != "" {
				fmt.Fprintf(w, "  [ERROR] %s\n", e)
			}
			if warn, ok := event.Details["warning"].(string); ok && warn != "" {
				fmt.Fprintf(w, "  [WARNING] %s\n", warn)
			}
			fmt.Fprintln(w)
		case orchestration.EventBenchmarkStopped:
			fmt.Fprintf(w, "Benchmark interrupted: %v\n", event.Details["reason"])
		case orchestration.EventTestSkipped:
			fmt.Fprintf(w, "[%d/%d] Skipped test: %s\n", event.TestNum, event.TotalTests, event.TestName)
		case orchestration.EventBenchmarkComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "Benchmark completed in %v\n\n", duration)
		}
	}
}

// spinnerProgressListener animates the running test. It must be registered
// before listeners that print test completion so the line is cleared first.
func spinnerProgressListener(w io.Writer, names map[string]string) orchestration.ProgressListener {
	stop := func() {}
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventTestStart:
			name := names[event.TestName]
			if name == "" {
				name = event.TestName
			}
			stop = spinner.Start(w, fmt.Sprintf("[%d/%d] %s", event.TestNum, event.TotalTests, name))
		case orchestration.EventTestComplete, orchestration.EventBenchmarkStopped:
			stop()
			stop = func() {}
		}
	}
}

func simpleProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventTestComplete:
			status := "✓"
			if event.Status != models.StatusPassed {
				status = "✗"
			}
			fmt.Fprintf(w, "%s [%d/%d] %s\n", status, event.TestNum, event.TotalTests, event.TestName)
		case orchestration.EventTestSkipped:
			fmt.Fprintf(w, "- [%d/%d] %s (not run)\n", event.TestNum, event.TotalTests, event.TestName)
		}
	}
}

// printSummary renders a run's results table.
func printSummary(w io.Writer, b *models.RunBundle, names map[string]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, " BENCHMARK RESULTS")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Title:      %s\n", b.Title)
	if b.ID != "" {
		fmt.Fprintf(w, "Run ID:     %s\n", b.ID)
	}
	fmt.Fprintf(w, "Score:      %s / 100\n", b.ScoreString())
	fmt.Fprintf(w, "Total time: %.3fs\n\n", b.TotalTime)

	fmt.Fprintf(w, "%s  %s  %s  %s\n", padRight("Test", 24), padRight("Value", 10), padRight("Time (s)", 10), "Status")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, id := range b.SelectedTests {
		name := names[id]
		if name == "" {
			name = id
		}
		res, ok := b.Results[id]
		timeCol, status := "-", "✗ no result"
		switch {
		case ok && res.Failed():
			status = "✗ " + res.Error
		case ok:
			timeCol = fmt.Sprintf("%.3f", res.Time)
			status = "✓"
			if res.Warning != "" {
				status += " (" + res.Warning + ")"
			}
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			padRight(truncateName(name, 24), 24),
			padRight(strconv.Itoa(b.Config[id]), 10),
			padRight(timeCol, 10),
			status)
	}
}
