package main

import (
	"fmt"
	"os"

	"github.com/spboyer/wpbench/internal/orchestration"
	"github.com/spboyer/wpbench/internal/reporting"
	"github.com/spf13/cobra"
)

func newReportCommand() *cobra.Command {
	var (
		html       bool
		outputPath string
		junitPath  string
	)
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a stored run as Markdown or HTML",
		Long: `Render a stored run as a Markdown report, or as a standalone HTML page
with --html. The report is written to stdout unless -o is given.

--junit additionally writes the run as JUnit XML for CI systems.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			b, err := loadRun(cmd, a, args[0])
			if err != nil {
				return err
			}

			_, entries := orchestration.NewBenchmarkRunner(a.openRegistry(nil)).Rescore(b)
			names := a.names()
			report := &reporting.Report{Bundle: b, Entries: entries, Names: names}

			var data []byte
			if html {
				if data, err = reporting.HTML(report); err != nil {
					return err
				}
			} else {
				data = []byte(reporting.Markdown(report))
			}

			if outputPath == "" {
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			} else {
				if err := os.WriteFile(outputPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report saved to: %s\n", outputPath)
			}

			if junitPath != "" {
				if err := reporting.WriteJUnitXML(b, names, junitPath); err != nil {
					return fmt.Errorf("failed to write JUnit XML: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Render HTML instead of Markdown")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to this file")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Also write JUnit XML to this file")
	return cmd
}
