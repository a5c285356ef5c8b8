// Package notify carries user-facing notifications and confirmation prompts.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/interpretive-systems/erpview/internal/logging"
)

// Level is a notification severity.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Sink accepts notifications. Notify is fire-and-forget.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Send delivers a message to s. A nil sink drops it.
func Send(s Sink, level Level, msg string) {
	if s == nil {
		return
	}
	s.Notify(Notification{Level: level, Message: msg, At: time.Now()})
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Log writes notifications to a slog logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a slog-backed sink.
func NewLog(l *slog.Logger) *Log {
	return &Log{logger: logging.OrNop(l)}
}

func (l *Log) Notify(n Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case Warning:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, n.Message, slog.String("kind", string(n.Level)))
}

// History keeps the most recent notifications for display in the status bar.
type History struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewHistory keeps at most limit notifications (minimum 1).
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

func (h *History) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, n)
	if over := len(h.items) - h.limit; over > 0 {
		h.items = append([]Notification(nil), h.items[over:]...)
	}
}

// Latest returns the newest notification.
func (h *History) Latest() (Notification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return Notification{}, false
	}
	return h.items[len(h.items)-1], true
}

// Items returns a copy, oldest first.
func (h *History) Items() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.items...)
}

// Multi fans a notification out to several sinks.
type Multi []Sink

func (m Multi) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}
