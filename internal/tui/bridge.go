package tui

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/notify"
)

// ErrNotRunning is returned by the confirmer before the program starts.
var ErrNotRunning = errors.New("terminal program is not running")

// Bridge runs posted work on the bubbletea event loop. Post queues fn and
// wakes the program with a drainMsg; the model drains the queue inside
// Update, so screens only ever run on the program's goroutine.
type Bridge struct {
	q         loop.Queue
	scheduled atomic.Bool
	dirty     atomic.Bool

	mu   sync.Mutex
	send func(tea.Msg)
}

var _ loop.Loop = (*Bridge)(nil)

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a running program.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.send = p.Send
	b.mu.Unlock()
}

func (b *Bridge) sender() func(tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send
}

// Post implements loop.Loop.
func (b *Bridge) Post(fn func()) {
	b.q.Post(fn)
	if !b.scheduled.CompareAndSwap(false, true) {
		return
	}
	// Before Attach the flag stays set; the model's first drain clears it.
	if send := b.sender(); send != nil {
		go send(drainMsg{})
	}
}

// drain runs queued work. Work posted while draining schedules another
// drain.
func (b *Bridge) drain() int {
	b.scheduled.Store(false)
	return b.q.Drain()
}

// RequestRender implements state.Renderer. Updates always redraw, so it
// only records that a frame is owed to the active screen.
func (b *Bridge) RequestRender() {
	b.dirty.Store(true)
}

func (b *Bridge) takeDirty() bool {
	return b.dirty.Swap(false)
}

// Confirmer asks through an overlay in the running program.
func (b *Bridge) Confirmer() notify.Confirmer {
	return notify.ConfirmFunc(func(ctx context.Context, p notify.Prompt) (bool, error) {
		send := b.sender()
		if send == nil {
			return false, ErrNotRunning
		}
		reply := make(chan bool, 1)
		send(confirmMsg{prompt: p, reply: reply})
		select {
		case ok := <-reply:
			return ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	})
}
