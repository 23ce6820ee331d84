package terminal

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7d56f4")
	muted  = lipgloss.Color("#888888")
	danger = lipgloss.Color("#e05252")
)

// Styles used by the terminal view
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Value   lipgloss.Style
	Panel   lipgloss.Style
	Swatch  lipgloss.Style
	Loading lipgloss.Style
}

// DefaultStyles returns the standard palette
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Error: lipgloss.NewStyle().
			Foreground(danger).
			Bold(true),

		Value: lipgloss.NewStyle().
			Bold(true),

		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2),

		Swatch: lipgloss.NewStyle().
			Width(8),

		Loading: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
	}
}

// swatchBlock renders a solid block in the given #rrggbb colour
func (s Styles) swatchBlock(hex string) string {
	return s.Swatch.Background(lipgloss.Color(hex)).Render(" ")
}
