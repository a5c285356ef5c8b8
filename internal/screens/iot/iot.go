// Package iot is the IoT monitoring screen: a live dashboard, the device
// inventory and the alert list.
package iot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/screens"
	"github.com/interpretive-systems/erpview/internal/state"
	"github.com/interpretive-systems/erpview/internal/table"
)

const Name = "iot"

const (
	ViewDashboard = "dashboard"
	ViewDevices   = "devices"
	ViewAlerts    = "alerts"
)

// Intent kinds handled by the screen.
const (
	KindAck     = "iot.ack"
	KindRestart = "iot.restart"
	KindInspect = "iot.inspect"
)

const (
	keySites     = "sites"
	keyDashboard = "dashboard"
	keyReadings  = "readings"
	keyActive    = "active_alerts"
	keyDevices   = "devices"
	keyAlerts    = "alerts"
	keyInspect   = "inspect"
)

const (
	actionRestart      = "restart"
	actionDecommission = "decommission"
)

var views = []string{ViewDashboard, ViewDevices, ViewAlerts}

// Register adds the screen to r.
func Register(r *registry.Registry) error {
	return r.Register(registry.Info{Name: Name, Title: "IoT Monitoring", Views: views},
		func(env registry.Env, props lifecycle.Props) (registry.Screen, error) {
			return New(env, props), nil
		})
}

// Screen is the IoT monitoring screen.
type Screen struct {
	*screens.Base
	devices *table.Controller[Device]
	columns []table.Column[Device]
	query   *screens.TableQuery
}

var (
	_ registry.Screen     = (*Screen)(nil)
	_ registry.BulkScreen = (*Screen)(nil)
)

// New creates an unmounted IoT screen.
func New(env registry.Env, props lifecycle.Props) *Screen {
	s := &Screen{}
	s.Base = screens.NewBase(Name, "IoT Monitoring", views, s, env, props)
	s.devices = table.New[Device](table.Config{
		Selectable:  true,
		Sortable:    true,
		Search:      true,
		Exportable:  true,
		Pagination:  true,
		Limit:       s.PageSize(table.DefaultLimit),
		BulkActions: s.BulkActions(),
	}, table.WithName("devices"), table.WithLogger(s.Logger()), table.WithMetrics(env.Deps.Metrics))
	s.columns = deviceColumns()
	s.query = screens.NewTableQuery(s.devices.Query())
	s.devices.Bind(table.Binding[Device]{
		DataSource: func() []Device {
			return state.ValueOr[api.Page[Device]](s.State(), keyDevices, api.Page[Device]{}).Items
		},
		ID: func(d Device) string { return d.ID },
		OnBulkAction: func(action string, ids []string) {
			s.bulk(s.Context(), action, ids)
		},
		OnDataChanged: s.Paged(s.query),
		RowIntent: func(d Device) node.Intent {
			return node.Intent{Kind: KindInspect, ID: d.ID}
		},
	})
	return s
}

// Devices exposes the inventory table.
func (s *Screen) Devices() *table.Controller[Device] { return s.devices }

func deviceColumns() []table.Column[Device] {
	return []table.Column[Device]{
		{Key: "name", Title: "Name", Width: 24, Sortable: true, Value: func(d Device) string { return d.Name }},
		{Key: "kind", Title: "Kind", Width: 12, Sortable: true, Value: func(d Device) string { return d.Kind }},
		{Key: "site_id", Title: "Site", Width: 10, Value: func(d Device) string { return d.SiteID }},
		{Key: "status", Title: "Status", Width: 10, Sortable: true, Value: func(d Device) string { return d.Status }},
		{Key: "last_seen", Title: "Last seen", Width: 20, Sortable: true, Value: func(d Device) string {
			if d.LastSeen.IsZero() {
				return "never"
			}
			return d.LastSeen.Format(time.DateTime)
		}},
		{Key: "firmware", Title: "Firmware", Width: 10, Value: func(d Device) string {
			if d.Firmware == nil {
				return "-"
			}
			return *d.Firmware
		}},
	}
}

func (s *Screen) LoadInitial(ctx context.Context) (state.Patch, error) {
	var sites []Site
	if err := s.API().Get(ctx, "/iot/sites", &sites); err != nil {
		return nil, err
	}
	return state.Patch{keySites: sites}, nil
}

func (s *Screen) LoadView(ctx context.Context, view string) (state.Patch, error) {
	switch view {
	case ViewDashboard:
		var d Dashboard
		if err := s.API().Get(ctx, "/iot/dashboard", &d); err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return s.StampRefresh(state.Patch{keyDashboard: d, keyReadings: d.Readings}), nil
	case ViewDevices:
		page, err := s.fetchDevices(ctx, s.query.Load())
		if err != nil {
			return nil, err
		}
		return state.Patch{keyDevices: page}, nil
	case ViewAlerts:
		var alerts []Alert
		if err := s.API().Get(ctx, "/iot/alerts", &alerts); err != nil {
			return nil, err
		}
		return state.Patch{keyAlerts: alerts}, nil
	}
	return nil, nil
}

func (s *Screen) fetchDevices(ctx context.Context, q table.Query) (api.Page[Device], error) {
	var page api.Page[Device]
	err := s.API().Get(ctx, api.WithQuery("/iot/devices", q.Values()), &page)
	return page, err
}

func (s *Screen) Feeds(view string) []lifecycle.FeedSpec {
	switch view {
	case ViewDashboard:
		return []lifecycle.FeedSpec{
			screens.Feed(keyReadings, s.PollInterval(5*time.Second),
				func(ctx context.Context) ([]Reading, error) {
					var rs []Reading
					err := s.API().Get(ctx, "/iot/readings/latest", &rs)
					return rs, err
				},
				func(rs []Reading) { s.merge(s.StampRefresh(state.Patch{keyReadings: rs})) }),
			s.activeAlertsFeed(keyActive),
		}
	case ViewDevices:
		return []lifecycle.FeedSpec{s.devicesFeed()}
	case ViewAlerts:
		return []lifecycle.FeedSpec{
			screens.Feed(keyAlerts, s.PollInterval(15*time.Second), s.fetchAlerts, func(as []Alert) {
				s.merge(s.StampRefresh(state.Patch{keyAlerts: as}))
			}),
		}
	}
	return nil
}

func (s *Screen) fetchAlerts(ctx context.Context) ([]Alert, error) {
	var as []Alert
	err := s.API().Get(ctx, "/iot/alerts", &as)
	return as, err
}

func (s *Screen) activeAlertsFeed(name string) lifecycle.FeedSpec {
	return screens.Feed(name, 15*time.Second,
		func(ctx context.Context) ([]Alert, error) {
			var as []Alert
			err := s.API().Get(ctx, api.WithQuery("/iot/alerts", map[string]string{"status": "active"}), &as)
			return as, err
		},
		func(as []Alert) { s.merge(state.Patch{keyActive: as}) })
}

// devicesFeed refreshes the visible page. A result fetched for a query the
// table has since moved away from is dropped; the reload for the new query
// is already on its way.
func (s *Screen) devicesFeed() lifecycle.FeedSpec {
	type result struct {
		q    table.Query
		page api.Page[Device]
	}
	return screens.Feed("status", s.PollInterval(10*time.Second),
		func(ctx context.Context) (result, error) {
			q := s.query.Load()
			page, err := s.fetchDevices(ctx, q)
			return result{q: q, page: page}, err
		},
		func(r result) {
			if r.q != s.devices.Query() {
				s.Logger().Debug("dropping device status for an old query")
				return
			}
			s.merge(s.StampRefresh(state.Patch{keyDevices: r.page}))
		})
}

func (s *Screen) merge(p state.Patch) {
	if err := s.Merge(p, nil); err != nil {
		s.Logger().Debug("feed result not applied", slog.Any("error", err))
	}
}

func (s *Screen) Release() {
	s.devices.Reset()
}

func (s *Screen) BulkActions() []string {
	return []string{actionRestart, actionDecommission}
}

// BulkItem returns the per-device call of a bulk action.
func (s *Screen) BulkItem(action string) (table.ItemFunc, error) {
	switch action {
	case actionRestart:
		return func(ctx context.Context, id string) error {
			return s.API().Post(ctx, "/iot/devices/"+url.PathEscape(id)+"/restart", nil, nil)
		}, nil
	case actionDecommission:
		return func(ctx context.Context, id string) error {
			return s.API().Delete(ctx, "/iot/devices/"+url.PathEscape(id), nil)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrUnknownAction, action)
}

func (s *Screen) bulk(ctx context.Context, action string, ids []string) {
	fn, err := s.BulkItem(action)
	if err != nil {
		s.Logger().Warn("bulk action rejected", slog.Any("error", err))
		return
	}
	s.Bulk(ctx, action, ids, fn, func(res table.BulkResult) {
		for _, id := range res.Succeeded {
			_ = s.devices.Deselect(id)
		}
	})
}

func (s *Screen) HandleIntent(ctx context.Context, in node.Intent) error {
	if ok, err := s.HandleCommon(ctx, in); ok {
		return err
	}
	switch in.Kind {
	case table.KindExport:
		s.Export(s.devices.Name(), func(w io.Writer) error {
			return s.devices.ExportCSV(w, s.columns)
		})
		return nil
	case KindAck:
		s.Save(ctx, "acknowledge alert", func(ctx context.Context) error {
			return s.API().Post(ctx, "/iot/alerts/"+url.PathEscape(in.ID)+"/ack", nil, nil)
		}, nil)
		return nil
	case KindRestart:
		s.Save(ctx, "restart device", func(ctx context.Context) error {
			return s.API().Post(ctx, "/iot/devices/"+url.PathEscape(in.ID)+"/restart", nil, nil)
		}, nil)
		return nil
	case KindInspect:
		return s.Merge(state.Patch{keyInspect: in.ID}, nil)
	}
	if table.Handles(in) {
		return s.devices.HandleIntent(in)
	}
	return fmt.Errorf("%w: %s", registry.ErrUnknownIntent, in)
}

func (s *Screen) Build() node.Node {
	switch s.View() {
	case ViewDevices:
		return s.Frame(s.devicesView())
	case ViewAlerts:
		return s.Frame(s.alertsView())
	}
	return s.Frame(s.dashboardView())
}

func (s *Screen) dashboardView() node.Node {
	d, ok := state.Value[Dashboard](s.State(), keyDashboard)
	if !ok {
		return node.El("empty", nil, node.Text("Loading dashboard…"))
	}
	sum := d.Summary
	active := state.ValueOr[[]Alert](s.State(), keyActive, nil)
	stats := []node.Node{
		stat("Devices", strconv.Itoa(sum.Devices)),
		stat("Online", strconv.Itoa(sum.Online)),
		stat("Offline", strconv.Itoa(sum.Offline)),
		stat("Active alerts", strconv.Itoa(max(sum.ActiveAlerts, len(active)))),
	}
	if d.Uptime != nil {
		stats = append(stats, stat("Uptime", fmt.Sprintf("%.2f%%", *d.Uptime)))
	}

	readings := state.ValueOr[[]Reading](s.State(), keyReadings, d.Readings)
	items := make([]node.Node, 0, len(readings))
	for _, r := range readings {
		items = append(items, node.El("item", node.Attrs{"id": r.SensorID},
			node.Textf("%s %s: %.2f %s", r.SensorID, r.Metric, r.Value, r.Unit)))
	}
	if len(items) == 0 {
		items = append(items, node.El("item", nil, node.Text("No readings yet")))
	}
	return node.El("section", node.Attrs{"view": ViewDashboard},
		node.El("stats", nil, stats...),
		node.El("list", node.Attrs{"title": "Latest readings"}, items...))
}

func stat(label, value string) node.Node {
	return node.El("stat", node.Attrs{"label": label}, node.Text(value))
}

func (s *Screen) devicesView() node.Node {
	if page, ok := state.Value[api.Page[Device]](s.State(), keyDevices); ok {
		s.devices.SetServerTotals(page.Total, page.Pages)
	}
	parts := []node.Node{s.devices.Build(s.columns)}
	if id := state.ValueOr(s.State(), keyInspect, ""); id != "" {
		for _, d := range s.devices.Rows() {
			if d.ID == id {
				parts = append(parts, s.detail(d))
				break
			}
		}
	}
	return node.El("section", node.Attrs{"view": ViewDevices}, parts...)
}

func (s *Screen) detail(d Device) node.Node {
	firmware := "unknown"
	if d.Firmware != nil {
		firmware = *d.Firmware
	}
	return node.El("detail", node.Attrs{"id": d.ID},
		node.Textf("%s (%s) at %s", d.Name, d.Kind, s.siteName(d.SiteID)),
		node.Textf("Status: %s, firmware %s", d.Status, firmware),
		node.El("button", node.Attrs{"action": actionRestart}, node.Text("restart")).
			On("click", node.Intent{Kind: KindRestart, ID: d.ID}))
}

func (s *Screen) siteName(id string) string {
	for _, site := range state.ValueOr[[]Site](s.State(), keySites, nil) {
		if site.ID == id {
			return site.Name
		}
	}
	return id
}

func (s *Screen) alertsView() node.Node {
	alerts := state.ValueOr[[]Alert](s.State(), keyAlerts, nil)
	if len(alerts) == 0 {
		return node.El("empty", nil, node.Text("No alerts"))
	}
	items := make([]node.Node, 0, len(alerts))
	for _, a := range alerts {
		item := node.El("item", node.Attrs{"id": a.ID, "severity": a.Severity},
			node.Textf("[%s] %s: %s", a.Severity, a.DeviceID, a.Message))
		if a.Acknowledged {
			item = item.With("acknowledged", "true")
		} else {
			item = item.On("activate", node.Intent{Kind: KindAck, ID: a.ID})
		}
		items = append(items, item)
	}
	return node.El("list", node.Attrs{"title": "Alerts"}, items...)
}
