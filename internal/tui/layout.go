package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const minPane = 20

// Layout manages screen layout calculations.
type Layout struct {
	width     int
	height    int
	leftWidth int
}

// NewLayout creates a new layout manager.
func NewLayout() *Layout {
	return &Layout{}
}

// SetSize updates the layout dimensions. The left pane starts at a quarter
// of the width.
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height
	if l.leftWidth == 0 {
		l.leftWidth = max(width/4, 24)
	}
}

func (l *Layout) Width() int { return l.width }

func (l *Layout) Height() int { return l.height }

// LeftWidth returns the screen list width.
func (l *Layout) LeftWidth() int {
	return max(l.leftWidth, minPane)
}

// RightWidth returns the screen body width.
func (l *Layout) RightWidth() int {
	return max(l.width-l.LeftWidth()-1, 1)
}

// ContentHeight returns the height available for the panes.
func (l *Layout) ContentHeight(overlayHeight int) int {
	// top bar + top rule + bottom rule + bottom bar + overlays
	return max(l.height-4-overlayHeight, 1)
}

// AdjustLeftWidth moves the divider by delta, keeping both panes usable.
func (l *Layout) AdjustLeftWidth(delta int) {
	maxLeft := max(l.width-minPane, minPane)
	l.leftWidth = min(max(l.leftWidth+delta, minPane), maxLeft)
}

// RenderFrame renders the top bar, both panes, any overlay and the bottom
// bar.
func (l *Layout) RenderFrame(
	topLeft, topRight string,
	leftLines, rightLines []string,
	overlayLines []string,
	bottomBar string,
	theme Theme,
) string {
	var b strings.Builder

	b.WriteString(l.renderTopBar(topLeft, topRight))
	b.WriteByte('\n')
	b.WriteString(theme.DividerText(strings.Repeat("─", l.width)))
	b.WriteByte('\n')

	leftW := l.LeftWidth()
	rightW := l.RightWidth()
	sep := theme.DividerText("│")
	contentHeight := l.ContentHeight(len(overlayLines))

	for i := range contentHeight {
		left := strings.Repeat(" ", leftW)
		if i < len(leftLines) {
			left = padToWidth(leftLines[i], leftW)
		}
		var right string
		if i < len(rightLines) {
			right = rightLines[i]
		}
		b.WriteString(left)
		b.WriteString(sep)
		b.WriteString(padToWidth(right, rightW))
		if i < contentHeight-1 {
			b.WriteByte('\n')
		}
	}

	if len(overlayLines) > 0 {
		b.WriteByte('\n')
		for i, line := range overlayLines {
			b.WriteString(padToWidth(line, l.width))
			if i < len(overlayLines)-1 {
				b.WriteByte('\n')
			}
		}
	}

	b.WriteByte('\n')
	b.WriteString(theme.DividerText(strings.Repeat("─", l.width)))
	b.WriteByte('\n')
	b.WriteString(bottomBar)

	return b.String()
}

func (l *Layout) renderTopBar(left, right string) string {
	rightW := lipgloss.Width(right)
	if rightW >= l.width {
		return ansi.Truncate(right, l.width, "…")
	}
	return padToWidth(left, l.width-rightW-1) + " " + right
}

func padToWidth(s string, w int) string {
	width := lipgloss.Width(s)
	if width == w {
		return s
	}
	if width < w {
		return s + strings.Repeat(" ", w-width)
	}
	return ansi.Truncate(s, w, "…")
}
