package screens

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/config"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/prefs"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/table"
)

var testViews = []string{"list", "chart"}

func newEnv(t *testing.T) (registry.Env, *notify.History) {
	t.Helper()
	store, err := prefs.Open("")
	require.NoError(t, err)
	notes := notify.NewHistory(10)
	return registry.Env{
		Deps: lifecycle.Deps{
			Loop:     &loop.Queue{},
			Executor: &loop.Deferred{},
			Notify:   notes,
		},
		Prefs: store,
	}, notes
}

func TestNewBase_InitialView(t *testing.T) {
	env, _ := newEnv(t)

	b := NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, nil)
	assert.Equal(t, "list", b.View())

	require.NoError(t, env.Prefs.SaveView("stock", "chart"))
	b = NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, nil)
	assert.Equal(t, "chart", b.View())

	b = NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, lifecycle.Props{"view": "list"})
	assert.Equal(t, "list", b.View(), "the prop wins over the saved view")

	b = NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, lifecycle.Props{"view": "gantt"})
	assert.Equal(t, "chart", b.View(), "an unknown prop is ignored")
}

func TestPageSize_Precedence(t *testing.T) {
	env, _ := newEnv(t)
	b := NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, nil)
	assert.Equal(t, 25, b.PageSize(25))

	cfg := config.Default()
	cfg.Screens["stock"] = config.ScreenConfig{PageSize: 40}
	env.Config = cfg
	b = NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, nil)
	assert.Equal(t, 40, b.PageSize(25))

	b.RememberPageSize(100)
	assert.Equal(t, 100, b.PageSize(25))
}

func TestTableQuery(t *testing.T) {
	var zero TableQuery
	assert.Equal(t, table.Query{}, zero.Load())

	q := NewTableQuery(table.Query{Page: 1, Limit: 25})
	q.Store(table.Query{Page: 2, Limit: 25, Search: "bolt"})
	assert.Equal(t, table.Query{Page: 2, Limit: 25, Search: "bolt"}, q.Load())
}

func TestExport_WritesFileAndNotifies(t *testing.T) {
	env, notes := newEnv(t)
	dir := t.TempDir()
	b := NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, lifecycle.Props{"export_dir": dir})

	b.Export("items", func(w io.Writer) error {
		_, err := io.WriteString(w, "Name\nBolt\n")
		return err
	})

	n, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, notify.Success, n.Level)
	path := strings.TrimPrefix(n.Message, "Exported items to ")
	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name\nBolt\n", string(data))

	b.Export("items", func(io.Writer) error { return errors.New("disk full") })
	n, _ = notes.Latest()
	assert.Equal(t, notify.Error, n.Level)
	assert.Equal(t, "Export failed: disk full", n.Message)
}

func TestBulk_EmptySelectionWarns(t *testing.T) {
	env, notes := newEnv(t)
	b := NewBase("stock", "Stock", testViews, lifecycle.NopHooks{}, env, nil)

	b.Bulk(context.Background(), "archive", nil, func(context.Context, string) error { return nil }, nil)

	n, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, n.Level)
	assert.Equal(t, "Select at least one row first", n.Message)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Restart device", capitalize("restart device"))
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "42", capitalize("42"))
}
