package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the view.
type Styles struct {
	Output lipgloss.Style
	Echo   lipgloss.Style
	Prompt lipgloss.Style
	Input  lipgloss.Style
	Cursor lipgloss.Style
	Ghost  lipgloss.Style
	Status lipgloss.Style
}

// DefaultStyles mirrors a dark terminal: white text, green prompt, grey
// suggestion.
func DefaultStyles() Styles {
	return Styles{
		Output: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Echo:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Input:  lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Cursor: lipgloss.NewStyle().Reverse(true),
		Ghost:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Status: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
