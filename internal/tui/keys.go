package tui

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
)

// KeyAction represents an action triggered by a key press.
type KeyAction int

const (
	ActionNone KeyAction = iota
	ActionQuit
	ActionToggleHelp
	ActionMoveUp
	ActionMoveDown
	ActionGoToTop
	ActionGoToBottom
	ActionToggleRow
	ActionSelectAll
	ActionActivate
	ActionSort
	ActionPrevPage
	ActionNextPage
	ActionCycleLimit
	ActionOpenSearch
	ActionBulk
	ActionExport
	ActionNextView
	ActionPrevView
	ActionCycleFilter
	ActionReload
	ActionNextScreen
	ActionPrevScreen
	ActionAdjustLeftNarrower
	ActionAdjustLeftWider
)

// KeyHandler maps key presses to actions. Digits typed before a key form
// its count, as in "3j" or "2b".
type KeyHandler struct {
	keyBuffer string
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler() *KeyHandler {
	return &KeyHandler{}
}

// Handle processes a key message and returns the action and its count.
// The count is 1 when no digits were typed.
func (k *KeyHandler) Handle(msg tea.KeyMsg) (KeyAction, int) {
	key := msg.String()

	if isNumericKey(key) && (k.keyBuffer != "" || key != "0") {
		k.keyBuffer += key
		return ActionNone, 0
	}

	count := 1
	if k.keyBuffer != "" {
		if n, err := strconv.Atoi(k.keyBuffer); err == nil && n > 0 {
			count = n
		}
	}
	k.keyBuffer = ""
	return keyToAction(key), count
}

// KeyBuffer returns the digits typed so far.
func (k *KeyHandler) KeyBuffer() string {
	return k.keyBuffer
}

func (k *KeyHandler) ClearBuffer() {
	k.keyBuffer = ""
}

func keyToAction(key string) KeyAction {
	switch key {
	case "ctrl+c", "q":
		return ActionQuit
	case "h", "?":
		return ActionToggleHelp
	case "j", "down":
		return ActionMoveDown
	case "k", "up":
		return ActionMoveUp
	case "g", "home":
		return ActionGoToTop
	case "G", "end":
		return ActionGoToBottom
	case " ":
		return ActionToggleRow
	case "a":
		return ActionSelectAll
	case "enter":
		return ActionActivate
	case "o":
		return ActionSort
	case "[", "pgup":
		return ActionPrevPage
	case "]", "pgdown":
		return ActionNextPage
	case "L":
		return ActionCycleLimit
	case "/":
		return ActionOpenSearch
	case "b":
		return ActionBulk
	case "e":
		return ActionExport
	case "tab":
		return ActionNextView
	case "shift+tab":
		return ActionPrevView
	case "f":
		return ActionCycleFilter
	case "r":
		return ActionReload
	case "J":
		return ActionNextScreen
	case "K":
		return ActionPrevScreen
	case ">":
		return ActionAdjustLeftWider
	case "<":
		return ActionAdjustLeftNarrower
	default:
		return ActionNone
	}
}

func isNumericKey(key string) bool {
	return len(key) == 1 && key >= "0" && key <= "9"
}

// helpLines lists the bindings for the help overlay.
func helpLines() []string {
	return []string{
		"j/k: move   g/G: top/bottom   space: select row   a: select all   enter: row action (N enter: Nth)",
		"N o: sort by Nth column   [ ]: page   L: page size   /: search   N b: bulk action   e: export",
		"tab/shift+tab: view   f: filter   r: reload   J/K: screen   < >: pane width   h: help   q: quit",
	}
}
