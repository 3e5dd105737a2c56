package reporting

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spboyer/wpbench/internal/store"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Report is the input to the Markdown and HTML renderers.
type Report struct {
	Bundle *models.RunBundle
	// Entries explain each selected test's contribution. Optional.
	Entries []scoring.Entry
	// Names maps test ids to display names. Ids without a name are shown
	// as is.
	Names map[string]string
}

func (r *Report) name(id string) string {
	if n, ok := r.Names[id]; ok && n != "" {
		return n
	}
	return id
}

// Markdown renders the report as GitHub-flavored Markdown.
func Markdown(r *Report) string {
	b := r.Bundle
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(b.Title))
	if b.ID != "" {
		fmt.Fprintf(&sb, "- **Run:** `%s`\n", b.ID)
	}
	if !b.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Date:** %s\n", b.CreatedAt.UTC().Format(time.RFC1123))
	}
	fmt.Fprintf(&sb, "- **Score:** %s (%s)\n", b.ScoreString(), InterpretScore(b.Score))
	sb.WriteString(printer.Sprintf("- **Total time:** %.3fs\n", b.TotalTime))
	fmt.Fprintf(&sb, "- **Tests:** %s\n\n", InterpretErrors(b.ErrorCount(), len(b.SelectedTests)))

	entries := make(map[string]scoring.Entry, len(r.Entries))
	for _, e := range r.Entries {
		entries[e.ID] = e
	}

	sb.WriteString("## Results\n\n")
	sb.WriteString("| Test | Value | Time (s) | Sub-score | Status |\n")
	sb.WriteString("|---|---:|---:|---:|---|\n")
	for _, id := range b.SelectedTests {
		res, ok := b.Results[id]
		value := printer.Sprintf("%d", b.Config[id])
		timeCol, status := "", "no result"
		switch {
		case ok && res.Failed():
			status = "error: " + res.Error
		case ok:
			timeCol = printer.Sprintf("%.3f", res.Time)
			status = "ok"
		}
		subScore := "n/a"
		if e, ok := entries[id]; ok && e.Excluded == "" {
			subScore = printer.Sprintf("%.1f", e.SubScore.Score)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			escapeMarkdown(r.name(id)), value, timeCol, subScore, escapeMarkdown(status))
	}

	for _, id := range b.SelectedTests {
		res, ok := b.Results[id]
		if !ok {
			continue
		}
		details := Details(res)
		if len(details) == 0 && res.Warning == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n### %s\n\n", escapeMarkdown(r.name(id)))
		if res.Warning != "" {
			fmt.Fprintf(&sb, "> %s\n\n", escapeMarkdown(res.Warning))
		}
		for _, d := range details {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Label, d.Value)
		}
	}

	var excluded []scoring.Entry
	for _, e := range r.Entries {
		if e.Excluded != "" {
			excluded = append(excluded, e)
		}
	}
	if len(excluded) > 0 {
		sb.WriteString("\n## Excluded from score\n\n")
		for _, e := range excluded {
			fmt.Fprintf(&sb, "- %s: %s\n", escapeMarkdown(r.name(e.ID)), escapeMarkdown(e.Excluded))
		}
	}

	return sb.String()
}

// HTML renders the report's Markdown into a standalone HTML page.
func HTML(r *Report) ([]byte, error) {
	return renderPage(r.Bundle.Title, Markdown(r))
}

// HistoryMarkdown lists stored runs, newest first. linkPrefix, when set,
// turns each run id into a link to linkPrefix+id.
func HistoryMarkdown(runs []store.RunSummary, linkPrefix string) string {
	var sb strings.Builder
	sb.WriteString("# Benchmark history\n\n")
	if len(runs) == 0 {
		sb.WriteString("No runs stored yet.\n")
		return sb.String()
	}

	sb.WriteString("| Run | Title | Date | Score | Time (s) | Errors |\n")
	sb.WriteString("|---|---|---|---:|---:|---:|\n")
	for _, run := range runs {
		id := "`" + run.ID + "`"
		if linkPrefix != "" {
			id = fmt.Sprintf("[%s](%s%s)", run.ID, linkPrefix, run.ID)
		}
		score := "n/a"
		if run.Score != nil {
			score = strconv.Itoa(*run.Score)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %d/%d |\n",
			id, escapeMarkdown(run.Title), run.CreatedAt.UTC().Format("2006-01-02 15:04"),
			score, printer.Sprintf("%.3f", run.TotalTime), run.Errors, run.Tests)
	}
	return sb.String()
}

// HistoryHTML renders HistoryMarkdown as a standalone HTML page.
func HistoryHTML(runs []store.RunSummary, linkPrefix string) ([]byte, error) {
	return renderPage("Benchmark history", HistoryMarkdown(runs, linkPrefix))
}

func renderPage(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("<style>body{font-family:sans-serif;max-width:60em;margin:2em auto}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3em .6em}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer(
	`|`, `\|`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`<`, `&lt;`,
	`>`, `&gt;`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
