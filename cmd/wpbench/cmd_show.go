package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/reporting"
	"github.com/spboyer/wpbench/internal/store"
	"github.com/spf13/cobra"
)

func newShowCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q: must be table or json", format)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			b, err := loadRun(cmd, a, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				data, err := json.MarshalIndent(b, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal run: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			names := a.names()
			printSummary(out, b, names)
			for _, id := range b.SelectedTests {
				details := reporting.Details(b.Results[id])
				if len(details) == 0 {
					continue
				}
				name := names[id]
				if name == "" {
					name = id
				}
				fmt.Fprintf(out, "\n%s\n", name)
				for _, d := range details {
					fmt.Fprintf(out, "  %s %s\n", padRight(d.Label+":", 16), d.Value)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			results, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := results.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored yet. Start one with: wpbench run")
				return nil
			}

			fmt.Fprintf(out, "%s  %s  %s  %s  %s  %s\n",
				padRight("ID", 36), padRight("Date", 19), padRight("Score", 5),
				padRight("Tests", 5), padRight("Errors", 6), "Title")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			for _, r := range runs {
				score := "n/a"
				if r.Score != nil {
					score = strconv.Itoa(*r.Score)
				}
				fmt.Fprintf(out, "%s  %s  %s  %s  %s  %s\n",
					padRight(r.ID, 36),
					r.CreatedAt.Local().Format(time.DateTime),
					padRight(score, 5),
					padRight(strconv.Itoa(r.Tests), 5),
					padRight(strconv.Itoa(r.Errors), 6),
					truncateName(r.Title, 40))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many runs")
	return cmd
}

// loadRun reads one run from the result store.
func loadRun(cmd *cobra.Command, a *app, id string) (*models.RunBundle, error) {
	results, err := a.openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	b, err := results.LoadBundle(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return b, nil
}
