// Package components holds the panes of the terminal host that do not
// depend on screen content.
package components

import (
	"fmt"
)

// ScreenItem is one entry of the screen list.
type ScreenItem struct {
	Name  string
	Title string
	Views int
}

// ScreenList manages the left pane list of registered screens. Selected is
// where the cursor is; Open is the screen currently mounted.
type ScreenList struct {
	items    []ScreenItem
	selected int
	open     string
	offset   int
}

// NewScreenList creates an empty screen list.
func NewScreenList() *ScreenList {
	return &ScreenList{}
}

// SetItems replaces the list, keeping the cursor in range.
func (s *ScreenList) SetItems(items []ScreenItem) {
	s.items = items
	s.selected = min(max(s.selected, 0), max(len(items)-1, 0))
}

func (s *ScreenList) Items() []ScreenItem {
	return s.items
}

// Selected returns the cursor index.
func (s *ScreenList) Selected() int {
	return s.selected
}

// SelectedItem returns the item under the cursor.
func (s *ScreenList) SelectedItem() (ScreenItem, bool) {
	if s.selected < 0 || s.selected >= len(s.items) {
		return ScreenItem{}, false
	}
	return s.items[s.selected], true
}

// Select moves the cursor to the named screen.
func (s *ScreenList) Select(name string) bool {
	for i, it := range s.items {
		if it.Name == name {
			s.selected = i
			return true
		}
	}
	return false
}

// MoveSelection moves the cursor by delta, wrapping around, and reports
// whether it moved.
func (s *ScreenList) MoveSelection(delta int) bool {
	n := len(s.items)
	if n < 2 {
		return false
	}
	next := ((s.selected+delta)%n + n) % n
	changed := next != s.selected
	s.selected = next
	return changed
}

// SetOpen marks the mounted screen.
func (s *ScreenList) SetOpen(name string) {
	s.open = name
}

func (s *ScreenList) Open() string {
	return s.open
}

// EnsureVisible scrolls so the cursor is within visibleCount rows.
func (s *ScreenList) EnsureVisible(visibleCount int) {
	if len(s.items) == 0 || visibleCount <= 0 {
		return
	}
	maxStart := max(len(s.items)-visibleCount, 0)
	switch {
	case s.selected < s.offset:
		s.offset = s.selected
	case s.selected >= s.offset+visibleCount:
		s.offset = s.selected - visibleCount + 1
	}
	s.offset = min(max(s.offset, 0), maxStart)
}

// Render renders the list to at most height lines.
func (s *ScreenList) Render(height int) []string {
	if len(s.items) == 0 {
		return []string{"No screens registered"}
	}
	s.EnsureVisible(height)
	end := min(s.offset+height, len(s.items))
	lines := make([]string, 0, end-s.offset)
	for i := s.offset; i < end; i++ {
		it := s.items[i]
		marker := "  "
		if i == s.selected {
			marker = "> "
		}
		open := " "
		if it.Name == s.open {
			open = "●"
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", marker, open, it.Title))
	}
	return lines
}
