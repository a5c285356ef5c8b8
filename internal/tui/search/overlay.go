package search

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// RenderOverlay renders the prompt lines shown above the status bar.
func (e *Engine) RenderOverlay(width int, dividerColor string) []string {
	if !e.active || width <= 0 {
		return nil
	}

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color(dividerColor)).
		Render(strings.Repeat("─", width))
	status := lipgloss.NewStyle().Faint(true).
		Render("enter: search   esc: cancel   empty query clears the search")

	return []string{
		divider,
		pad(e.InputView(), width),
		pad(status, width),
	}
}

func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		return ansi.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", width-w)
}
