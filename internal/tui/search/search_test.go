package search

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func TestHighlightLines(t *testing.T) {
	h := NewHighlighter()
	lines := []string{"\x1b[1mAda Lovelace\x1b[0m", "Grace Hopper", "adAda"}

	out := h.HighlightLines(lines, "ada")

	assert.Equal(t, matchStartSeq+"Ada"+matchEndSeq+" Lovelace", out[0])
	assert.Equal(t, "Grace Hopper", out[1], "lines without a match are untouched")
	assert.Equal(t, matchStartSeq+"adAda"+matchEndSeq, out[2], "overlapping matches merge")
	assert.Equal(t, lines, h.HighlightLines(lines, ""))
}

func TestEngine_SubmitAndCancel(t *testing.T) {
	e := New()
	e.Activate("")
	assert.True(t, e.IsActive())

	e.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("boiler")})
	res, _ := e.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, Result{Done: true, Submitted: true, Query: "boiler"}, res)
	assert.False(t, e.IsActive())

	e.Activate("boiler")
	assert.Equal(t, "boiler", e.Query())
	res, _ = e.HandleKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, Result{Done: true}, res)
}

func TestRenderOverlay(t *testing.T) {
	e := New()
	assert.Nil(t, e.RenderOverlay(40, "240"))

	e.Activate("press")
	lines := e.RenderOverlay(40, "240")
	assert.Len(t, lines, 3)
	assert.Contains(t, ansi.Strip(lines[1]), "/ press")
}
