// Package termview renders the diagram engine's draw calls and the
// session feed into a terminal.
package termview

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the terminal view.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Dim     lipgloss.Color
	Alert   lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Accent:  lipgloss.Color("#58a6ff"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#f85149"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Marker  lipgloss.Style
	Callout lipgloss.Style
	Border  lipgloss.Style
	Help    lipgloss.Style
	Error   lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Marker:  lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Callout: lipgloss.NewStyle().Foreground(t.Primary),
		Border:  lipgloss.NewStyle().Foreground(t.Dim),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}
