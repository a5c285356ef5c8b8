// Package search is the search prompt of the terminal host: a text input
// overlay whose submitted query goes to the active table, and highlighting
// of that query in the rendered rows.
package search

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Result reports what a key did to an active prompt.
type Result struct {
	// Done is set when the prompt closed.
	Done bool
	// Submitted is set when the prompt closed with enter.
	Submitted bool
	Query     string
}

// Engine manages the prompt state.
type Engine struct {
	input       textinput.Model
	active      bool
	highlighter *Highlighter
}

// New creates a new search engine.
func New() *Engine {
	ti := textinput.New()
	ti.Placeholder = "Search records"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	return &Engine{
		highlighter: NewHighlighter(),
		input:       ti,
	}
}

// Activate opens the prompt with the current query.
func (e *Engine) Activate(query string) tea.Cmd {
	e.active = true
	e.input.SetValue(query)
	e.input.CursorEnd()
	return e.input.Focus()
}

// Deactivate closes the prompt.
func (e *Engine) Deactivate() {
	e.active = false
	e.input.Blur()
}

// IsActive returns whether the prompt is open.
func (e *Engine) IsActive() bool {
	return e.active
}

// HandleKey processes key input for the prompt.
func (e *Engine) HandleKey(msg tea.KeyMsg) (Result, tea.Cmd) {
	switch msg.String() {
	case "esc":
		e.Deactivate()
		return Result{Done: true}, nil
	case "enter":
		e.Deactivate()
		return Result{Done: true, Submitted: true, Query: e.input.Value()}, nil
	}

	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return Result{Query: e.input.Value()}, cmd
}

// Query returns the text typed so far.
func (e *Engine) Query() string {
	return e.input.Value()
}

// InputView returns the text input view.
func (e *Engine) InputView() string {
	return e.input.View()
}

// Highlight marks every occurrence of query in lines.
func (e *Engine) Highlight(lines []string, query string) []string {
	return e.highlighter.HighlightLines(lines, query)
}
