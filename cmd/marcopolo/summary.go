package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(14)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// reportWrap is the word-wrap width of rendered Markdown reports.
const reportWrap = 100

// renderMarkdown renders a Markdown report for the terminal.
func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(reportWrap),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}

// bandStyle colors a confidence label.
func bandStyle(label string) lipgloss.Style {
	switch label {
	case "high":
		return okStyle
	case "medium":
		return warnStyle
	default:
		return failStyle
	}
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteByte('\n')
}

// renderSummary formats the outcome of a verify or draft run.
func renderSummary(res *pipeline.Result, outDir string) string {
	report := res.Report()
	a := res.Analysis

	var b strings.Builder
	title := "marcopolo verify"
	if res.Draft != "" {
		title = "marcopolo draft"
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")

	covered := len(res.Spans) - len(report.UnreferencedSpans)
	row(&b, "Spans", fmt.Sprintf("%d", len(res.Spans)))
	row(&b, "Units", fmt.Sprintf("%d (%d typed)", len(res.Units), a.TypedCount))
	row(&b, "Edges", fmt.Sprintf("%d", len(res.Edges)))
	row(&b, "Coverage", fmt.Sprintf("%.3f (%d/%d)", report.Coverage, covered, len(res.Spans)))
	row(&b, "Unsupported", fmt.Sprintf("%d", len(report.UnsupportedUnits)))
	row(&b, "Unreferenced", fmt.Sprintf("%d", len(report.UnreferencedSpans)))
	row(&b, "Ambiguous", fmt.Sprintf("%d", len(report.AmbiguousUnits)))
	if len(res.NearMisses) > 0 {
		row(&b, "Near misses", fmt.Sprintf("%d", len(res.NearMisses)))
	}
	row(&b, "Confidence", fmt.Sprintf("%.3f %s", report.Confidence, bandStyle(report.Label).Render(report.Label)))
	row(&b, "Artifacts", outDir)
	return b.String()
}

// renderAirlock formats a multi-file admission result.
func renderAirlock(res *pipeline.AirlockResult, reportPath string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("marcopolo airlock"))
	b.WriteString("\n\n")

	names := make([]string, 0, len(res.Files))
	for name := range res.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rep := res.Files[name]
		status := okStyle.Render("ok")
		switch {
		case !rep.ASCIIOK:
			status = failStyle.Render(fmt.Sprintf("rejected (%d non-ASCII)", len(rep.NonASCII)))
		case rep.Repaired:
			status = warnStyle.Render(fmt.Sprintf("repaired (%d)", len(rep.Repairs)))
		}
		row(&b, "File", name+"  "+status)
	}
	row(&b, "Report", reportPath)
	return b.String()
}

// renderRejection formats an admission failure of verify or draft.
func renderRejection(err *pipeline.AdmissionError, reportPath string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("marcopolo admission failed"))
	b.WriteString("\n\n")
	for _, name := range err.Rejected() {
		rep := err.Reports[name]
		detail := fmt.Sprintf("%d non-ASCII", len(rep.NonASCII))
		if len(rep.NonASCII) > 0 {
			first := rep.NonASCII[0]
			detail += fmt.Sprintf(", first %s at %d", first.Codepoint, first.Pos)
		}
		row(&b, "Rejected", name+"  "+failStyle.Render(detail))
	}
	row(&b, "Report", reportPath)
	return b.String()
}
