// Package summary renders scan results as a compact terminal summary.
package summary

import (
	"github.com/charmbracelet/lipgloss"

	"sentinel/internal/schema"
)

var (
	// Colors
	Primary    = lipgloss.Color("#7C3AED")
	Secondary  = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Critical   = lipgloss.Color("#B91C1C")
	Info       = lipgloss.Color("#3B82F6")
	MutedColor = lipgloss.Color("#6B7280")

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	MetricValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	MetricLabel = lipgloss.NewStyle().
			Foreground(MutedColor)

	metricCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)
)

// severityColors maps severities and levels to their display color.
var severityColors = map[string]lipgloss.Color{
	string(schema.SeverityCritical): Critical,
	string(schema.SeverityHigh):     Error,
	string(schema.SeverityMedium):   Warning,
	string(schema.SeverityLow):      Info,
	string(schema.SeverityInfo):     MutedColor,
	string(schema.LevelSafe):        Secondary,
}

// SeverityStyle returns the badge style for a severity or level token.
func SeverityStyle(token string) lipgloss.Style {
	c, ok := severityColors[token]
	if !ok {
		c = MutedColor
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
