package summary

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sentinel/internal/schema"
)

// maxRows bounds the findings listed in a summary.
const maxRows = 20

// Render formats result for target as a terminal summary: score cards,
// then findings by severity, then patterns and adapter statuses.
func Render(target string, result schema.AnalysisResult) string {
	var b strings.Builder

	b.WriteString(Title.Render(target))
	b.WriteString("\n")
	if s := result.Structure; s != nil && (s.ProxyKind != "unknown" || s.BridgeKind != "unknown") {
		b.WriteString(Subtitle.Render(fmt.Sprintf("proxy: %s  bridge: %s", s.ProxyKind, s.BridgeKind)))
		b.WriteString("\n")
	}

	cards := []string{
		renderMetricCard("Score", fmt.Sprintf("%.1f", result.Score)),
		renderMetricCard("Level", SeverityStyle(string(result.Level)).Render(strings.ToUpper(string(result.Level)))),
		renderMetricCard("Findings", fmt.Sprintf("%d", result.TotalFindings)),
		renderMetricCard("Patterns", fmt.Sprintf("%d", len(result.Patterns))),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n")

	if len(result.Findings) > 0 {
		b.WriteString(renderFindings(result.Findings, result.LikelyFalsePositives))
	}
	if len(result.Patterns) > 0 {
		b.WriteString(renderPatterns(result.Patterns))
	}
	for _, a := range result.Adapters {
		line := fmt.Sprintf("  %s: %s", a.Name, a.Status)
		if a.Error != "" {
			line += " (" + a.Error + ")"
		}
		b.WriteString(Muted.Render(line))
		b.WriteString("\n")
	}

	return b.String()
}

func renderMetricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s",
		MetricValue.Render(value),
		MetricLabel.Render(label),
	)
	return metricCard.Render(content)
}

func renderFindings(findings []schema.Finding, fp int) string {
	sorted := slices.Clone(findings)
	slices.SortStableFunc(sorted, func(a, b schema.Finding) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})

	var b strings.Builder
	b.WriteString(Subtitle.Render("  Findings"))
	b.WriteString("\n")
	for i, f := range sorted {
		if i == maxRows {
			b.WriteString(Muted.Render(fmt.Sprintf("  ... %d more", len(sorted)-maxRows)))
			b.WriteString("\n")
			break
		}
		badge := SeverityStyle(string(f.Severity)).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(f.Severity))))
		loc := "-"
		if f.Line > 0 {
			loc = fmt.Sprintf("L%d", f.Line)
		}
		row := fmt.Sprintf("  %s %-14s %-6s %s", badge, f.RuleID, loc, f.Title)
		if f.LikelyFalsePositive {
			row += Muted.Render(" (likely false positive)")
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	if fp > 0 {
		b.WriteString(Muted.Render(fmt.Sprintf("  %d likely false positive(s) weighted down", fp)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderPatterns(patterns []schema.SequencePattern) string {
	var b strings.Builder
	b.WriteString(Subtitle.Render("  Patterns"))
	b.WriteString("\n")
	for _, p := range patterns {
		b.WriteString(fmt.Sprintf("  %-14s block %-10d conf %.2f  attacker %s\n",
			p.Kind, p.BlockNumber, p.Confidence, p.Attacker))
	}
	return b.String()
}
