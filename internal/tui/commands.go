package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickOnce schedules a single tick after 1 second.
func tickOnce() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func drainNow() tea.Cmd {
	return func() tea.Msg { return drainMsg{} }
}

func open(name string) tea.Cmd {
	return func() tea.Msg { return openMsg{name: name} }
}
