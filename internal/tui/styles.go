package tui

import "github.com/charmbracelet/lipgloss"

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Styles is the palette for one theme.
type Styles struct {
	Title        lipgloss.Style
	Subtle       lipgloss.Style
	Pane         lipgloss.Style
	Help         lipgloss.Style
	Error        lipgloss.Style
	Success      lipgloss.Style
	TabActive    lipgloss.Style
	TabInactive  lipgloss.Style
	Sentiment    map[string]lipgloss.Style
	Accent       lipgloss.Color
	ProgressFrom string
	ProgressTo   string
}

// NewStyles returns the palette for theme, falling back to dark.
func NewStyles(theme string) Styles {
	accent := lipgloss.Color("#7D56F4")
	text := lipgloss.Color("#FAFAFA")
	subtle := lipgloss.Color("#626262")
	if theme == ThemeLight {
		accent = lipgloss.Color("#0D9488")
		text = lipgloss.Color("#1F2937")
		subtle = lipgloss.Color("#9CA3AF")
	}

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Subtle: lipgloss.NewStyle().
			Foreground(subtle),
		Pane: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		Help: lipgloss.NewStyle().
			Foreground(subtle),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#EF4444")).
			Padding(0, 1),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")),
		TabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(accent).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1),
		Sentiment: map[string]lipgloss.Style{
			"positive": lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
			"negative": lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
			"neutral":  lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		},
		Accent:       accent,
		ProgressFrom: "#5A56E0",
		ProgressTo:   string(accent),
	}
}
