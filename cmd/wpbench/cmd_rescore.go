package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spboyer/wpbench/internal/orchestration"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spf13/cobra"
)

func newRescoreCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "rescore <run-id>",
		Short: "Recompute a stored run's score with the current targets",
		Long: `Recompute the score of a stored run using the targets and weights in the
current configuration. The stored run is not modified; use this to see how a
change of targets would rate past runs.`,
		Args: cobra.ExactArgs(1),
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

			score, entries := orchestration.NewBenchmarkRunner(a.openRegistry(nil)).Rescore(b)
			out := cmd.OutOrStdout()

			if format == "json" {
				data, err := json.MarshalIndent(struct {
					ID          string          `json:"id"`
					StoredScore *int            `json:"stored_score"`
					Score       *int            `json:"score"`
					Entries     []scoring.Entry `json:"entries"`
				}{b.ID, b.Score, score, entries}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal rescore: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Run:          %s (%s)\n", b.ID, b.Title)
			fmt.Fprintf(out, "Stored score: %s\n", b.ScoreString())
			fmt.Fprintf(out, "New score:    %s\n\n", scoreString(score))

			fmt.Fprintf(out, "%s  %s  %s  %s  %s\n",
				padRight("Test", 14), padRight("Time (s)", 10), padRight("Target", 8), padRight("Weight", 7), "Sub-score")
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, e := range entries {
				res := b.Results[e.ID]
				if e.Excluded != "" {
					fmt.Fprintf(out, "%s  excluded: %s\n", padRight(e.ID, 14), e.Excluded)
					continue
				}
				fmt.Fprintf(out, "%s  %s  %s  %s  %.1f\n",
					padRight(e.ID, 14),
					padRight(fmt.Sprintf("%.3f", res.Time), 10),
					padRight(fmt.Sprintf("%g", e.SubScore.Target), 8),
					padRight(fmt.Sprintf("%g", e.SubScore.Weight), 7),
					e.SubScore.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

func scoreString(score *int) string {
	if score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *score)
}
