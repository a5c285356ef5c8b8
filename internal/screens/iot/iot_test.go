package iot

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
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
	dashboard string
	queries   []string
	restarted []string
	failing   map[string]bool
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /iot/sites", func(w http.ResponseWriter, _ *http.Request) {
		screentest.JSON(w, 200, `[{"id":"s1","name":"Plant North"}]`)
	})
	mux.HandleFunc("GET /iot/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		screentest.JSON(w, 200, b.dashboard)
	})
	mux.HandleFunc("GET /iot/devices", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.RawQuery)
		b.mu.Unlock()
		screentest.JSON(w, 200, `{"items":[
			{"id":"a","name":"Boiler","kind":"sensor","site_id":"s1","status":"online","firmware":"1.2"},
			{"id":"b","name":"Press","kind":"gateway","site_id":"s1","status":"offline"},
			{"id":"c","name":"Line 3","kind":"sensor","site_id":"s2","status":"online"}],
			"total":60}`)
	})
	mux.HandleFunc("POST /iot/devices/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failing[id] {
			screentest.JSON(w, 503, `{"error":"unavailable","message":"device busy"}`)
			return
		}
		b.restarted = append(b.restarted, id)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /iot/alerts", func(w http.ResponseWriter, _ *http.Request) {
		screentest.JSON(w, 200, `[
			{"id":"al1","device_id":"b","severity":"critical","message":"offline"},
			{"id":"al2","device_id":"a","severity":"low","message":"drift","acknowledged":true}]`)
	})
	mux.HandleFunc("POST /iot/alerts/{id}/ack", func(w http.ResponseWriter, _ *http.Request) {
		screentest.JSON(w, 409, `{"error":"conflict","message":"already acknowledged"}`)
	})
	return mux
}

func (b *backend) fail(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[id] = true
}

func (b *backend) seen() (queries, restarted []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...), append([]string(nil), b.restarted...)
}

const dashboardJSON = `{"summary":{"devices":12,"online":10,"offline":2,"active_alerts":1},
	"readings":[{"sensor_id":"t1","metric":"temp","value":21.5,"unit":"C"}],"uptime":99.5}`

func newScreen(t *testing.T, view string) (*Screen, *screentest.Harness, *backend) {
	t.Helper()
	b := &backend{dashboard: dashboardJSON, failing: map[string]bool{}}
	h := screentest.New(t, b.handler())
	s := New(h.Env, lifecycle.Props{"view": view, "export_dir": t.TempDir()})
	require.NoError(t, s.Mount(context.Background()))
	t.Cleanup(s.Unmount)
	h.Settle()
	return s, h, b
}

func TestDashboard_LoadsAndStartsFeeds(t *testing.T) {
	s, h, _ := newScreen(t, ViewDashboard)

	out := s.Build().TextContent()
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "99.50%")
	assert.Contains(t, out, "t1 temp: 21.50 C")
	assert.Equal(t, []string{
		s.FeedKey(ViewDashboard, keyActive),
		s.FeedKey(ViewDashboard, keyReadings),
	}, h.Feeds.Active())
}

func TestDashboard_MissingSummaryIsALoadError(t *testing.T) {
	b := &backend{dashboard: `{"readings":[]}`}
	h := screentest.New(t, b.handler())
	s := New(h.Env, nil)
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()
	h.Settle()

	n := h.Latest(t)
	assert.Equal(t, notify.Error, n.Level)
	assert.Contains(t, n.Message, "no summary")
	assert.Contains(t, s.Build().TextContent(), "Loading dashboard")
}

func TestDevices_PagingFollowsServerTotals(t *testing.T) {
	s, h, b := newScreen(t, ViewDevices)

	out := s.Build().TextContent()
	assert.Contains(t, out, "Page 1 of 3 (60 records)")
	assert.Contains(t, out, "Boiler")
	queries, _ := b.seen()
	assert.Equal(t, []string{"limit=25&page=1"}, queries)

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindPage, Arg: "next"}))
	h.Settle()
	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindLimit, Arg: "50"}))
	h.Settle()

	queries, _ = b.seen()
	assert.Equal(t, []string{"limit=25&page=1", "limit=25&page=2", "limit=50&page=1"}, queries)
	size, ok := h.Prefs.Prefs().PageSize(Name)
	assert.True(t, ok)
	assert.Equal(t, 50, size)
	assert.Contains(t, s.Build().TextContent(), "Page 1 of 2 (60 records)")
}

func TestDevices_BulkRestartPartialFailure(t *testing.T) {
	s, h, b := newScreen(t, ViewDevices)
	b.fail("b")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Devices().Select(id))
	}

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindBulk, ID: actionRestart}))
	h.Settle()

	n := h.Latest(t)
	assert.Equal(t, notify.Warning, n.Level)
	assert.Equal(t, "restart: 2 succeeded, 1 failed (b)", n.Message)
	_, restarted := b.seen()
	assert.Equal(t, []string{"a", "c"}, restarted)
	assert.Equal(t, []string{"b"}, s.Devices().Selected(), "failed rows stay selected")
}

func TestDevices_InspectShowsOptionalFirmware(t *testing.T) {
	s, _, _ := newScreen(t, ViewDevices)

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: KindInspect, ID: "b"}))
	detail := node.Find(s.Build(), "detail")
	require.Len(t, detail, 1)
	assert.Contains(t, detail[0].TextContent(), "Press (gateway) at Plant North")
	assert.Contains(t, detail[0].TextContent(), "firmware unknown")
}

func TestDevices_ExportWritesCSV(t *testing.T) {
	s, h, _ := newScreen(t, ViewDevices)
	require.NoError(t, s.Devices().Select("a"))

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: table.KindExport}))

	n := h.Latest(t)
	require.Equal(t, notify.Success, n.Level, n.Message)
	files, err := filepath.Glob(filepath.Join(s.Prop("export_dir"), "devices-*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "Name,Kind,Site,Status,Last seen,Firmware", lines[0])
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "Boiler,sensor,s1,online"))
}

func TestAlerts_AckFailureShowsServerMessage(t *testing.T) {
	s, h, _ := newScreen(t, ViewAlerts)

	acks := node.Intents(s.Build(), "activate")
	require.Len(t, acks, 1, "acknowledged alerts are not actionable")
	require.NoError(t, s.HandleIntent(context.Background(), acks[0]))
	h.Settle()

	n := h.Latest(t)
	assert.Equal(t, notify.Error, n.Level)
	assert.Equal(t, "Failed to acknowledge alert: already acknowledged", n.Message)
}

func TestViewChange_SwapsFeeds(t *testing.T) {
	s, h, _ := newScreen(t, ViewDashboard)

	require.NoError(t, s.HandleIntent(context.Background(), node.Intent{Kind: registry.KindView, ID: ViewAlerts}))
	h.Settle()

	assert.Equal(t, []string{s.FeedKey(ViewAlerts, keyAlerts)}, h.Feeds.Active())
	view, ok := h.Prefs.Prefs().View(Name)
	assert.True(t, ok)
	assert.Equal(t, ViewAlerts, view)
	assert.Error(t, s.HandleIntent(context.Background(), node.Intent{Kind: registry.KindView, ID: "reports"}))
}

func TestHandleIntent_Unknown(t *testing.T) {
	s, _, _ := newScreen(t, ViewDashboard)
	err := s.HandleIntent(context.Background(), node.Intent{Kind: "hr.approve"})
	assert.ErrorIs(t, err, registry.ErrUnknownIntent)
}

func TestBulkItem_UnknownAction(t *testing.T) {
	s, _, _ := newScreen(t, ViewDashboard)
	_, err := s.BulkItem("reboot-all")
	assert.ErrorIs(t, err, registry.ErrUnknownAction)
}

func TestRegister(t *testing.T) {
	r := registry.New(registry.Env{})
	require.NoError(t, Register(r))
	info, err := r.Info(Name)
	require.NoError(t, err)
	assert.Equal(t, []string{ViewDashboard, ViewDevices, ViewAlerts}, info.Views)
	assert.Equal(t, "IoT Monitoring", info.Title)
}
