package hr

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/screens/screentest"
	"github.com/interpretive-systems/erpview/internal/table"
)

type backend struct {
	mu        sync.Mutex
	queries   []string
	decisions map[string]string
	calls     []string
	remote    bool
}

func (b *backend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *backend) snapshot() (queries, calls []string, decisions map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := map[string]string{}
	for k, v := range b.decisions {
		d[k] = v
	}
	return append([]string(nil), b.queries...), append([]string(nil), b.calls...), d
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hr/departments", func(w http.ResponseWriter, _ *http.Request) {
		screentest.JSON(w, 200, `[{"id":"ops","name":"Operations"},{"id":"fin","name":"Finance"}]`)
	})
	mux.HandleFunc("GET /hr/employees", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.RawQuery)
		b.mu.Unlock()
		screentest.JSON(w, 200, `{"items":[
			{"id":"41","name":"Ada","department_id":"ops","active":true},
			{"id":"42","name":"Grace","department_id":"fin","active":true}],"total":2,"pages":1}`)
	})
	mux.HandleFunc("POST /hr/employees/{id}/deactivate", func(w http.ResponseWriter, r *http.Request) {
		b.record("deactivate " + r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /hr/employees/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.record("delete " + r.PathValue("id"))
		screentest.JSON(w, 403, `{"error":"forbidden","message":"not allowed"}`)
	})
	mux.HandleFunc("GET /hr/leave", func(w http.ResponseWriter, _ *http.Request) {
		screentest.JSON(w, 200, `[
			{"id":"l1","employee_name":"Ada","kind":"vacation","status":"pending"},
			{"id":"l2","employee_name":"Grace","kind":"sick","status":"approved"}]`)
	})
	mux.HandleFunc("PUT /hr/leave/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["status"] == LeaveRejected {
			screentest.JSON(w, 422, `{"error":"invalid","message":"reason required"}`)
			return
		}
		b.mu.Lock()
		b.decisions[r.PathValue("id")] = body["status"]
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /hr/attendance/summary", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		remote := b.remote
		b.mu.Unlock()
		if remote {
			screentest.JSON(w, 200, `{"present":40,"absent":2,"late":3,"on_leave":5,"remote":7}`)
			return
		}
		screentest.JSON(w, 200, `{"present":40,"absent":2,"late":3,"on_leave":5}`)
	})
	return mux
}

func newScreen(t *testing.T, view string, confirm notify.Confirmer) (*Screen, *screentest.Harness, *backend) {
	t.Helper()
	b := &backend{decisions: map[string]string{}}
	h := screentest.New(t, b.handler())
	h.Env.Confirm = confirm
	s := New(h.Env, lifecycle.Props{"view": view})
	require.NoError(t, s.Mount(context.Background()))
	t.Cleanup(s.Unmount)
	h.Settle()
	return s, h, b
}

func TestEmployees_DepartmentFilter(t *testing.T) {
	s, h, b := newScreen(t, ViewEmployees, nil)

	out := s.Build()
	assert.Contains(t, out.TextContent(), "Operations")
	assert.Contains(t, out.TextContent(), "Page 1 of 1 (2 records)")

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindDepartment, ID: "ops"}))
	h.Settle()
	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindDepartment, ID: "ops"}))
	h.Settle()

	queries, _, _ := b.snapshot()
	assert.Equal(t, []string{"limit=25&page=1", "department=ops&limit=25&page=1"}, queries)

	opts := node.Find(node.Find(s.Build(), "filter")[0], "option")
	require.Len(t, opts, 3)
	assert.Equal(t, "true", opts[1].Attr("selected"))
}

func TestEmployees_SearchResetsPage(t *testing.T) {
	s, h, b := newScreen(t, ViewEmployees, nil)

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindSearch, Arg: "ada"}))
	h.Settle()
	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindSort, ID: "name"}))
	h.Settle()

	queries, _, _ := b.snapshot()
	assert.Equal(t, []string{
		"limit=25&page=1",
		"limit=25&page=1&search=ada",
		"limit=25&order=asc&page=1&search=ada&sort=name",
	}, queries)
}

func TestEmployees_BulkDeleteAllFail(t *testing.T) {
	s, h, b := newScreen(t, ViewEmployees, notify.Always(true))
	require.NoError(t, s.Employees().SelectAllVisible())

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindBulk, ID: actionDelete}))
	h.Settle()

	n := h.Latest(t)
	assert.Equal(t, notify.Error, n.Level)
	assert.Equal(t, "delete: 0 succeeded, 2 failed (41, 42)", n.Message)
	_, calls, _ := b.snapshot()
	assert.Equal(t, []string{"delete 41", "delete 42"}, calls)
	assert.Equal(t, []string{"41", "42"}, s.Employees().Selected())
}

func TestEmployees_BulkDeclined(t *testing.T) {
	s, h, b := newScreen(t, ViewEmployees, notify.Always(false))
	require.NoError(t, s.Employees().Select("41"))

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindBulk, ID: actionDeactivate}))
	h.Settle()

	n := h.Latest(t)
	assert.Equal(t, notify.Info, n.Level)
	assert.Equal(t, "Deactivate cancelled", n.Message)
	_, calls, _ := b.snapshot()
	assert.Empty(t, calls)
}

func TestEmployees_BulkWithoutSelection(t *testing.T) {
	s, _, _ := newScreen(t, ViewEmployees, nil)
	err := s.HandleIntent(context.Background(), node.Intent{Kind: table.KindBulk, ID: actionNotify})
	assert.ErrorIs(t, err, table.ErrEmptySelection)
}

func TestLeave_ApproveAndReject(t *testing.T) {
	s, h, b := newScreen(t, ViewLeave, nil)

	clicks := node.Intents(s.Build(), "click")
	assert.Contains(t, clicks, node.Intent{Kind: KindApprove, ID: "l1"})
	assert.NotContains(t, clicks, node.Intent{Kind: KindApprove, ID: "l2"}, "decided requests have no buttons")

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindApprove, ID: "l1"}))
	h.Settle()
	n := h.Latest(t)
	assert.Equal(t, notify.Success, n.Level)
	assert.Equal(t, "Approve leave request done", n.Message)
	_, _, decisions := b.snapshot()
	assert.Equal(t, map[string]string{"l1": LeaveApproved}, decisions)

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindReject, ID: "l1"}))
	h.Settle()
	n = h.Latest(t)
	assert.Equal(t, notify.Error, n.Level)
	assert.Equal(t, "Failed to reject leave request: reason required", n.Message)
}

func TestLeave_SaveAfterUnmountIsDropped(t *testing.T) {
	s, h, _ := newScreen(t, ViewLeave, nil)
	before := len(h.Notes.Items())

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindApprove, ID: "l1"}))
	s.Unmount()
	h.Settle()

	assert.Len(t, h.Notes.Items(), before)
}

func TestAttendance_OptionalRemoteAndPresenceFeed(t *testing.T) {
	s, h, b := newScreen(t, ViewAttendance, nil)

	labels := func() []string {
		var out []string
		for _, n := range node.Find(s.Build(), "stat") {
			out = append(out, n.Attr("label"))
		}
		return out
	}
	assert.Equal(t, []string{"Present", "Absent", "Late", "On leave"}, labels())
	assert.Equal(t, []string{s.FeedKey(ViewAttendance, keyPresence)}, h.Feeds.Active())

	b.mu.Lock()
	b.remote = true
	b.mu.Unlock()
	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: registry.KindReload}))
	h.Settle()
	assert.Equal(t, []string{"Present", "Absent", "Late", "On leave", "Remote"}, labels())
	assert.NotEmpty(t, s.Build().Attr("refreshed_at"))
}

func TestRegister(t *testing.T) {
	r := registry.New(registry.Env{})
	require.NoError(t, Register(r))
	assert.Equal(t, []string{Name}, r.Names())
}
