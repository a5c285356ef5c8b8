package tui

import (
	"github.com/interpretive-systems/erpview/internal/notify"
)

// tickMsg refreshes clock-driven parts of the view.
type tickMsg struct{}

// drainMsg asks the model to run work posted to the bridge.
type drainMsg struct{}

// openMsg opens a screen by name.
type openMsg struct {
	name string
}

// confirmMsg shows a confirmation overlay. The answer goes to reply.
type confirmMsg struct {
	prompt notify.Prompt
	reply  chan<- bool
}
