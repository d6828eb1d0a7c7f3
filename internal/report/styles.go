package report

import "github.com/charmbracelet/lipgloss"

// Color definitions.
var (
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow

	TextPrimary = lipgloss.Color("252")
	TextMuted   = lipgloss.Color("240")
)

// TitleStyle is used for the report heading.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SectionStyle is used for section headings.
var SectionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// CardStyle frames the totals.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 1).
	MarginRight(1)

var labelStyle = lipgloss.NewStyle().Foreground(TextMuted)

var valueStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)

// MutedStyle is used for empty states and footers.
var MutedStyle = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
