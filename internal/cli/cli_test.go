package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/registry"
)

// execute runs the root command with a config dir of its own.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScreens_Table(t *testing.T) {
	out, err := execute(t, "screens")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Human Resources")
	assert.Contains(t, out, "employees, leave, attendance")
	assert.Contains(t, out, "IoT Monitoring")
	assert.Contains(t, out, "restart, decommission")
}

func TestScreens_JSON(t *testing.T) {
	out, err := execute(t, "screens", "--json")
	require.NoError(t, err)

	var infos []screenInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "hr", infos[0].Name)
	assert.Equal(t, "iot", infos[1].Name)
	assert.Equal(t, []string{"dashboard", "devices", "alerts"}, infos[1].Views)
}

func TestBulk_RunsEveryItem(t *testing.T) {
	var mu sync.Mutex
	var restarted []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /iot/devices/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "b" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable","message":"device busy"}`))
			return
		}
		mu.Lock()
		restarted = append(restarted, id)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := execute(t, "bulk", "--api-url", srv.URL, "--yes", "iot", "restart", "a", "b", "c")
	require.Error(t, err)

	assert.Contains(t, out, "restart: 2 succeeded, 1 failed (b)")
	assert.Contains(t, out, "b: ")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "c"}, restarted)
}

func TestBulk_AllSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := execute(t, "bulk", "--api-url", srv.URL, "-y", "hr", "deactivate", "41")
	require.NoError(t, err)
	assert.Contains(t, out, "deactivate: 1 succeeded")
}

func TestBulk_UnknownAction(t *testing.T) {
	_, err := execute(t, "bulk", "--api-url", "http://127.0.0.1:1", "--yes", "iot", "explode", "a")
	require.ErrorIs(t, err, registry.ErrUnknownAction)
	assert.Contains(t, err.Error(), "available: restart, decommission")
}

func TestBulk_UnknownScreen(t *testing.T) {
	_, err := execute(t, "bulk", "--api-url", "http://127.0.0.1:1", "--yes", "payroll", "run", "1")
	assert.ErrorIs(t, err, registry.ErrUnknownScreen)
}

func TestBulk_NeedsIDs(t *testing.T) {
	_, err := execute(t, "bulk", "iot", "restart")
	assert.Error(t, err)
}
