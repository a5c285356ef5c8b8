// Package screentest runs screens against an httptest backend with a
// deterministic loop.
package screentest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/polling"
	"github.com/interpretive-systems/erpview/internal/prefs"
	"github.com/interpretive-systems/erpview/internal/registry"
)

// Harness holds the collaborators of a screen under test. Asynchronous work
// is held by Exec until Settle runs it.
type Harness struct {
	Server *httptest.Server
	Exec   *loop.Deferred
	Queue  *loop.Queue
	Feeds  *polling.Scheduler
	Notes  *notify.History
	Prefs  *prefs.Store
	Env    registry.Env
}

// New starts handler as the backend and builds an Env talking to it.
func New(t *testing.T, handler http.Handler) *Harness {
	t.Helper()
	h := &Harness{
		Server: httptest.NewServer(handler),
		Exec:   &loop.Deferred{},
		Queue:  &loop.Queue{},
		Notes:  notify.NewHistory(20),
	}
	t.Cleanup(h.Server.Close)

	feeds, err := polling.New(h.Queue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = feeds.Shutdown() })
	h.Feeds = feeds

	store, err := prefs.Open("")
	require.NoError(t, err)
	h.Prefs = store

	h.Env = registry.Env{
		Deps: lifecycle.Deps{
			Loop:     h.Queue,
			Executor: h.Exec,
			Feeds:    feeds,
			Notify:   h.Notes,
		},
		API:   api.New(h.Server.URL),
		Prefs: store,
	}
	return h
}

// Settle runs every held task and drains the loop until both are empty.
func (h *Harness) Settle() {
	for h.Exec.Pending() > 0 || h.Queue.Len() > 0 {
		h.Exec.RunAll()
		h.Queue.Drain()
	}
}

// Latest returns the most recent notification.
func (h *Harness) Latest(t *testing.T) notify.Notification {
	t.Helper()
	n, ok := h.Notes.Latest()
	require.True(t, ok, "no notification sent")
	return n
}

// JSON replies with a JSON body.
func JSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
