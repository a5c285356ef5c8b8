package tui

import (
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/tui/components"
	"github.com/interpretive-systems/erpview/internal/tui/search"
)

// State holds all host state. It is only touched inside Update and View.
type State struct {
	// UI State
	Width    int
	Height   int
	ShowHelp bool

	// Active screen and what its last Build rendered
	Active  registry.Screen
	Lines   []string
	Targets targets
	Cursor  int

	// Pending confirmation, answered from the overlay
	Confirm *confirmMsg

	// Components
	ScreenList   *components.ScreenList
	StatusBar    *components.StatusBar
	SearchEngine *search.Engine

	Theme Theme
}

// NewState creates initial host state.
func NewState(theme Theme) *State {
	return &State{
		Theme:        theme,
		ScreenList:   components.NewScreenList(),
		StatusBar:    components.NewStatusBar(theme.LevelText),
		SearchEngine: search.New(),
	}
}

// Row returns the row under the cursor.
func (s *State) Row() (row, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Targets.rows) {
		return row{}, false
	}
	return s.Targets.rows[s.Cursor], true
}

// CursorLine returns the body line of the cursor row, or -1.
func (s *State) CursorLine() int {
	r, ok := s.Row()
	if !ok {
		return -1
	}
	return r.line
}
