package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the chat view.
type Styles struct {
	Title    lipgloss.Style
	Mode     lipgloss.Style
	Session  lipgloss.Style
	Thinking lipgloss.Style
	Muted    lipgloss.Style
	Notice   lipgloss.Style
	Body     lipgloss.Style
	Input    lipgloss.Style
	Failure  lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	border := lipgloss.NormalBorder()
	return Styles{
		Title:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Mode:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Session:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Thinking: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Body:     lipgloss.NewStyle().Border(border).Padding(0, 1),
		Input:    lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("11")).Padding(0, 1),
		Failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}
