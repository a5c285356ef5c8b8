// Package screens holds the plumbing shared by every ERP screen: view
// navigation, save and bulk flows, refresh stamps and preferences.
// Individual screens live in subpackages and embed Base.
package screens

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/polling"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/state"
	"github.com/interpretive-systems/erpview/internal/table"
)

// KeyRefreshed holds the time of the last applied feed result.
const KeyRefreshed = "refreshed_at"

// Base implements the parts of registry.Screen that do not depend on the
// screen's data.
type Base struct {
	*lifecycle.Controller
	env     registry.Env
	title   string
	views   []string
	confirm notify.Confirmer
	ctx     context.Context
}

// NewBase creates the lifecycle controller for a screen. The initial view is
// the "view" prop, else the last saved view, else the first view.
func NewBase(name, title string, views []string, hooks lifecycle.Hooks, env registry.Env, props lifecycle.Props, opts ...lifecycle.Option) *Base {
	b := &Base{env: env, title: title, views: slices.Clone(views), confirm: env.Confirm, ctx: context.Background()}
	if b.confirm == nil {
		b.confirm = notify.Always(true)
	}
	view := b.initialView(name, props)
	opts = append([]lifecycle.Option{lifecycle.WithView(view)}, opts...)
	b.Controller = lifecycle.New(name, props, hooks, env.Deps, opts...)
	return b
}

func (b *Base) initialView(name string, props lifecycle.Props) string {
	if v := props["view"]; slices.Contains(b.views, v) {
		return v
	}
	if b.env.Prefs != nil {
		if v, ok := b.env.Prefs.Prefs().View(name); ok && slices.Contains(b.views, v) {
			return v
		}
	}
	if len(b.views) > 0 {
		return b.views[0]
	}
	return ""
}

// Mount remembers ctx for callbacks that fire outside an intent, such as
// table query changes, and mounts the controller.
func (b *Base) Mount(ctx context.Context) error {
	b.ctx = ctx
	return b.Controller.Mount(ctx)
}

// Context is the context the screen was mounted with.
func (b *Base) Context() context.Context { return b.ctx }

func (b *Base) Title() string { return b.title }

func (b *Base) Views() []string { return slices.Clone(b.views) }

// Env returns the screen's environment.
func (b *Base) Env() registry.Env { return b.env }

// API returns the data API.
func (b *Base) API() api.Requester { return b.env.API }

// Flushed tells the state container a frame was drawn.
func (b *Base) Flushed() { b.State().Flushed() }

// HandleViewChange validates view, switches to it and remembers it.
func (b *Base) HandleViewChange(ctx context.Context, view string) error {
	if !slices.Contains(b.views, view) {
		return fmt.Errorf("%s: unknown view %q", b.Name(), view)
	}
	if err := b.Controller.HandleViewChange(ctx, view); err != nil {
		return err
	}
	if b.env.Prefs != nil {
		if err := b.env.Prefs.SaveView(b.Name(), view); err != nil {
			b.Logger().Warn("failed to save view preference", slog.Any("error", err))
		}
	}
	return nil
}

// HandleCommon applies intents every screen understands. handled is false
// for anything else.
func (b *Base) HandleCommon(ctx context.Context, in node.Intent) (handled bool, err error) {
	switch in.Kind {
	case registry.KindView:
		return true, b.HandleViewChange(ctx, in.ID)
	case registry.KindReload:
		return true, b.Reload(ctx)
	}
	return false, nil
}

// Nav renders the view tabs.
func (b *Base) Nav() node.Node {
	tabs := make([]node.Node, 0, len(b.views))
	for _, v := range b.views {
		tab := node.El("tab", node.Attrs{"view": v}, node.Text(v)).
			On("click", node.Intent{Kind: registry.KindView, ID: v})
		if v == b.View() {
			tab = tab.With("active", "true")
		}
		tabs = append(tabs, tab)
	}
	return node.El("nav", nil, tabs...)
}

// Frame wraps a view body with the screen header, tabs and footer.
func (b *Base) Frame(body ...node.Node) node.Node {
	attrs := node.Attrs{
		"name":    b.Name(),
		"title":   b.title,
		"view":    b.View(),
		"loading": strconv.FormatBool(b.Loading()),
	}
	children := append([]node.Node{b.Nav()}, body...)
	if at, ok := state.Value[time.Time](b.State(), KeyRefreshed); ok {
		attrs[KeyRefreshed] = at.Format(time.TimeOnly)
	}
	return node.El("screen", attrs, children...)
}

// StampRefresh records that live data just arrived.
func (b *Base) StampRefresh(p state.Patch) state.Patch {
	if p == nil {
		p = state.Patch{}
	}
	p[KeyRefreshed] = time.Now()
	return p
}

// PollInterval returns the configured feed interval for this screen.
func (b *Base) PollInterval(def time.Duration) time.Duration {
	if b.env.Config == nil {
		return def
	}
	return b.env.Config.PollInterval(b.Name(), def)
}

// PageSize returns the saved page size, else the configured one, else def.
func (b *Base) PageSize(def int) int {
	if b.env.Prefs != nil {
		if n, ok := b.env.Prefs.Prefs().PageSize(b.Name()); ok {
			return n
		}
	}
	if b.env.Config != nil {
		if n := b.env.Config.Screen(b.Name()).PageSize; n > 0 {
			return n
		}
	}
	return def
}

// RememberPageSize persists a page size chosen in a table.
func (b *Base) RememberPageSize(n int) {
	if b.env.Prefs == nil {
		return
	}
	if err := b.env.Prefs.SavePageSize(b.Name(), n); err != nil {
		b.Logger().Warn("failed to save page size", slog.Any("error", err))
	}
}

// Save runs a create/update/delete call off the loop. On failure the user
// sees the server's message and nothing else changes, so an open form keeps
// its input. On success onSuccess runs and the view reloads.
func (b *Base) Save(ctx context.Context, what string, call func(ctx context.Context) error, onSuccess func()) {
	b.Async(func() func() {
		err := call(ctx)
		return func() {
			if err != nil {
				b.Logger().Warn("save failed", slog.String("what", what), slog.Any("error", err))
				notify.Send(b.Notify(), notify.Error, fmt.Sprintf("Failed to %s: %s", what, api.Message(err)))
				return
			}
			notify.Send(b.Notify(), notify.Success, capitalize(what)+" done")
			if onSuccess != nil {
				onSuccess()
			}
			if err := b.Reload(ctx); err != nil {
				b.Logger().Debug("reload after save skipped", slog.Any("error", err))
			}
		}
	})
}

// Bulk asks for confirmation and then runs fn for every id off the loop.
// The aggregate outcome is notified, done runs with it on the loop and the
// view reloads.
func (b *Base) Bulk(ctx context.Context, action string, ids []string, fn table.ItemFunc, done func(table.BulkResult)) {
	if len(ids) == 0 {
		notify.Send(b.Notify(), notify.Warning, "Select at least one row first")
		return
	}
	b.Async(func() func() {
		ok, err := b.confirm.Confirm(ctx, notify.Prompt{
			Title:   fmt.Sprintf("%s %d item(s)?", capitalize(action), len(ids)),
			Message: "This applies to every selected row.",
			Kind:    notify.Warning,
		})
		if err != nil || !ok {
			return func() {
				if err != nil {
					notify.Send(b.Notify(), notify.Error, fmt.Sprintf("Confirmation failed: %v", err))
					return
				}
				notify.Send(b.Notify(), notify.Info, capitalize(action)+" cancelled")
			}
		}
		res := table.Runner{Logger: b.Logger(), Metrics: b.env.Deps.Metrics}.Run(ctx, action, ids, fn)
		return func() {
			notify.Send(b.Notify(), res.Level(), res.Summary())
			if done != nil {
				done(res)
			}
			if err := b.Reload(ctx); err != nil {
				b.Logger().Debug("reload after bulk skipped", slog.Any("error", err))
			}
		}
	})
}

// Export writes a CSV file named after what into the export directory (the
// "export_dir" prop, else the system temp dir) and notifies the result.
func (b *Base) Export(what string, write func(io.Writer) error) {
	dir := b.Prop("export_dir")
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.csv", what, time.Now().Format("20060102-150405")))
	err := writeFile(path, write)
	if err != nil {
		b.Logger().Warn("export failed", slog.String("path", path), slog.Any("error", err))
		notify.Send(b.Notify(), notify.Error, fmt.Sprintf("Export failed: %v", err))
		return
	}
	notify.Send(b.Notify(), notify.Success, "Exported "+what+" to "+path)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

// TableQuery carries a table's query from the loop to loads running off it.
type TableQuery struct {
	v atomic.Pointer[table.Query]
}

// NewTableQuery returns a holder seeded with q.
func NewTableQuery(q table.Query) *TableQuery {
	t := &TableQuery{}
	t.Store(q)
	return t
}

func (t *TableQuery) Load() table.Query {
	if q := t.v.Load(); q != nil {
		return *q
	}
	return table.Query{}
}

func (t *TableQuery) Store(q table.Query) { t.v.Store(&q) }

// Paged returns an OnDataChanged callback for a paginated table: the query
// is stored for the next load, a new page size is remembered and the view
// reloads.
func (b *Base) Paged(q *TableQuery) func(table.Query) {
	return func(next table.Query) {
		prev := q.Load()
		q.Store(next)
		if next.Limit > 0 && next.Limit != prev.Limit {
			b.RememberPageSize(next.Limit)
		}
		if err := b.Reload(b.Context()); err != nil {
			b.Logger().Debug("table reload skipped", slog.Any("error", err))
		}
	}
}

// Feed declares a live feed whose fetch runs off the loop and whose result
// is applied on the loop.
func Feed[T any](name string, interval time.Duration, fetch func(ctx context.Context) (T, error), apply func(T)) lifecycle.FeedSpec {
	return lifecycle.FeedSpec{
		Name:     name,
		Interval: interval,
		Task:     polling.NewTask(fetch, apply),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
