package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/ufosim/internal/phase"
)

type styles struct {
	panel   lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	hint    lipgloss.Style
	graph   lipgloss.Style
	flagOn  lipgloss.Style
	flagOff lipgloss.Style
	theme   Theme
}

func newStyles(t Theme) styles {
	return styles{
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(10),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		hint:    lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		graph:   lipgloss.NewStyle().Foreground(t.Primary),
		flagOn:  lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		flagOff: lipgloss.NewStyle().Foreground(t.Muted),
		theme:   t,
	}
}

// badge renders the phase as a colored block.
func (s styles) badge(p phase.Phase) string {
	bg := s.theme.Primary
	switch p {
	case phase.Crashed:
		bg = s.theme.Error
	case phase.Landing, phase.Takeoff:
		bg = s.theme.Warning
	case phase.Landed:
		bg = s.theme.Success
	case phase.Idle:
		bg = s.theme.Muted
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Background(bg).
		Padding(0, 1).
		Render(strings.ToUpper(p.String()))
}

func (s styles) flag(name string, on bool) string {
	if on {
		return s.flagOn.Render("● " + name)
	}
	return s.flagOff.Render("○ " + name)
}

func (s styles) row(label, value string) string {
	return s.label.Render(label) + s.value.Render(value) + "\n"
}

// bar renders a fill level in [0, 1].
func bar(frac float64, width int) string {
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
