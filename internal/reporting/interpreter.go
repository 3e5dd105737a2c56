package reporting

import (
	"strings"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats numbers with digit grouping.
var printer = message.NewPrinter(language.English)

// InterpretScore returns a plain-language label for a run score (0-100).
func InterpretScore(score *int) string {
	if score == nil {
		return "Not scored (no test produced a usable result)"
	}
	switch s := *score; {
	case s > 90:
		return "Excellent (>90)"
	case s >= 70:
		return "Good (70-90)"
	case s >= 50:
		return "Fair (50-70)"
	default:
		return "Slow (<50)"
	}
}

// InterpretErrors explains how many selected tests failed.
func InterpretErrors(errors, total int) string {
	switch {
	case total == 0:
		return "No tests selected"
	case errors == 0:
		return printer.Sprintf("All %d tests completed", total)
	case errors == total:
		return printer.Sprintf("Every test failed (%d)", total)
	default:
		return printer.Sprintf("%d of %d tests failed and were left out of the score", errors, total)
	}
}

// FormatSummaryReport produces a plain-language summary of a run. Entries
// come from scoring.Explain and may be nil.
func FormatSummaryReport(b *models.RunBundle, entries []scoring.Entry) string {
	var sb strings.Builder

	sb.WriteString("=== Interpretation ===\n\n")
	sb.WriteString(printer.Sprintf("Score:      %s, %s\n", b.ScoreString(), InterpretScore(b.Score)))
	sb.WriteString(printer.Sprintf("Tests:      %s\n", InterpretErrors(b.ErrorCount(), len(b.SelectedTests))))
	sb.WriteString(printer.Sprintf("Total time: %.3fs\n", b.TotalTime))

	byID := make(map[string]scoring.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	if len(b.SelectedTests) > 0 {
		sb.WriteString("\nPer-Test Interpretation:\n")
	}
	for _, id := range b.SelectedTests {
		r, ok := b.Results[id]
		icon := "✓"
		if !ok || r.Failed() {
			icon = "✗"
		}
		switch {
		case !ok:
			sb.WriteString(printer.Sprintf("  %s %s: no result\n", icon, id))
		case r.Failed():
			sb.WriteString(printer.Sprintf("  %s %s: %s\n", icon, id, r.Error))
		default:
			sb.WriteString(printer.Sprintf("  %s %s: %.3fs\n", icon, id, r.Time))
		}
		if e, ok := byID[id]; ok && e.Excluded == "" {
			sb.WriteString(printer.Sprintf("    Sub-score: %.1f (target %gs, weight %g)\n",
				e.SubScore.Score, e.SubScore.Target, e.SubScore.Weight))
		}
		if r.Warning != "" {
			sb.WriteString("    Warning: " + r.Warning + "\n")
		}
	}

	return sb.String()
}
