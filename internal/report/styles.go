package report

import "github.com/charmbracelet/lipgloss"

// Colors used by the report.
var (
	ColorRed     = lipgloss.Color("#EF4444")
	ColorEmerald = lipgloss.Color("#10B981")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorYellow  = lipgloss.Color("#FFFF00")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			MarginTop(1)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ScenarioStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	GoodStyle = lipgloss.NewStyle().
			Foreground(ColorEmerald).
			Underline(true)

	BadStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Underline(true)

	GoodNoteStyle = lipgloss.NewStyle().
			Foreground(ColorEmerald)

	BadNoteStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	RewriteStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorEmerald)

	StepLabelStyle = lipgloss.NewStyle().
			Foreground(ColorEmerald).
			Bold(true)

	ScoreStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)
)
