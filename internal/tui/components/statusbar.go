package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/interpretive-systems/erpview/internal/notify"
)

// notificationTTL is how long a notification stays in the status bar.
const notificationTTL = 8 * time.Second

// StatusBar manages the bottom status bar.
type StatusBar struct {
	refreshed string
	loading   bool
	keyBuffer string
	note      notify.Notification
	hasNote   bool
	style     func(notify.Level, string) string
}

// NewStatusBar creates a status bar. style colors notifications by level.
func NewStatusBar(style func(notify.Level, string) string) *StatusBar {
	if style == nil {
		style = func(_ notify.Level, s string) string { return s }
	}
	return &StatusBar{style: style}
}

// SetRefreshed sets the time of the last live update, as displayed.
func (s *StatusBar) SetRefreshed(at string) {
	s.refreshed = at
}

func (s *StatusBar) SetLoading(loading bool) {
	s.loading = loading
}

// SetKeyBuffer updates the key buffer display.
func (s *StatusBar) SetKeyBuffer(buf string) {
	s.keyBuffer = buf
}

// SetNotification shows n until it expires.
func (s *StatusBar) SetNotification(n notify.Notification) {
	s.note, s.hasNote = n, true
}

// Render renders the status bar as of now.
func (s *StatusBar) Render(width int, now time.Time) string {
	leftText := "h: help"
	if s.keyBuffer != "" {
		leftText = s.keyBuffer
	}
	leftStyled := lipgloss.NewStyle().Faint(true).Render(leftText)
	if s.hasNote && now.Sub(s.note.At) < notificationTTL {
		leftStyled += "  " + s.style(s.note.Level, s.note.Message)
	}

	rightText := "refreshed: -"
	switch {
	case s.loading:
		rightText = "loading…"
	case s.refreshed != "":
		rightText = "refreshed: " + s.refreshed
	}
	right := lipgloss.NewStyle().Faint(true).Render(rightText)

	// Keep the right part visible.
	rightW := lipgloss.Width(right)
	if rightW >= width {
		return ansi.Truncate(right, width, "…")
	}
	avail := width - rightW - 1
	left := leftStyled
	if w := lipgloss.Width(left); w > avail {
		left = ansi.Truncate(left, avail, "…")
	} else if w < avail {
		left += strings.Repeat(" ", avail-w)
	}
	return left + " " + right
}
