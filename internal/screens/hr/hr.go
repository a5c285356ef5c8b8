// Package hr is the human resources screen: the employee directory, leave
// approvals and live attendance.
package hr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/screens"
	"github.com/interpretive-systems/erpview/internal/state"
	"github.com/interpretive-systems/erpview/internal/table"
)

const Name = "hr"

const (
	ViewEmployees  = "employees"
	ViewLeave      = "leave"
	ViewAttendance = "attendance"
)

const (
	KindApprove    = "hr.approve"
	KindReject     = "hr.reject"
	KindDepartment = "hr.department"
)

const (
	keyDepartments = "departments"
	keyEmployees   = "employees"
	keyLeave       = "leave"
	keyAttendance  = "attendance"
	keyPresence    = "presence"
	keyDepartment  = "department"
)

const (
	actionDeactivate = "deactivate"
	actionNotify     = "notify"
	actionDelete     = "delete"
)

var views = []string{ViewEmployees, ViewLeave, ViewAttendance}

func Register(r *registry.Registry) error {
	return r.Register(registry.Info{Name: Name, Title: "Human Resources", Views: views},
		func(env registry.Env, props lifecycle.Props) (registry.Screen, error) {
			return New(env, props), nil
		})
}

type Screen struct {
	*screens.Base
	employees *table.Controller[Employee]
	columns   []table.Column[Employee]
	query     *screens.TableQuery
	dept      atomic.Pointer[string]
}

var (
	_ registry.Screen     = (*Screen)(nil)
	_ registry.BulkScreen = (*Screen)(nil)
)

func New(env registry.Env, props lifecycle.Props) *Screen {
	s := &Screen{}
	s.Base = screens.NewBase(Name, "Human Resources", views, s, env, props)
	s.employees = table.New[Employee](table.Config{
		Selectable:  true,
		Sortable:    true,
		Search:      true,
		Exportable:  true,
		Pagination:  true,
		Limit:       s.PageSize(table.DefaultLimit),
		BulkActions: s.BulkActions(),
	}, table.WithName("employees"), table.WithLogger(s.Logger()), table.WithMetrics(env.Deps.Metrics))
	s.query = screens.NewTableQuery(s.employees.Query())
	s.setDepartment(props["department"])
	s.columns = s.employeeColumns()
	s.employees.Bind(table.Binding[Employee]{
		DataSource: func() []Employee {
			return state.ValueOr(s.State(), keyEmployees, api.Page[Employee]{}).Items
		},
		ID: func(e Employee) string { return e.ID },
		OnBulkAction: func(action string, ids []string) {
			s.bulk(s.Context(), action, ids)
		},
		OnDataChanged: s.Paged(s.query),
	})
	return s
}

func (s *Screen) Employees() *table.Controller[Employee] { return s.employees }

func (s *Screen) employeeColumns() []table.Column[Employee] {
	return []table.Column[Employee]{
		{Key: "name", Title: "Name", Width: 22, Sortable: true, Value: func(e Employee) string { return e.Name }},
		{Key: "email", Title: "Email", Width: 28, Value: func(e Employee) string { return e.Email }},
		{Key: "department", Title: "Department", Width: 14, Sortable: true, Value: func(e Employee) string {
			return s.departmentName(e.Department)
		}},
		{Key: "title", Title: "Title", Width: 18, Value: func(e Employee) string { return e.Title }},
		{Key: "active", Title: "Active", Width: 6, Value: func(e Employee) string {
			if e.Active {
				return "yes"
			}
			return "no"
		}},
		{Key: "hired_at", Title: "Hired", Width: 10, Sortable: true, Value: func(e Employee) string {
			return e.HiredAt.Format(time.DateOnly)
		}},
	}
}

func (s *Screen) department() string {
	if d := s.dept.Load(); d != nil {
		return *d
	}
	return ""
}

func (s *Screen) setDepartment(id string) { s.dept.Store(&id) }

func (s *Screen) departmentName(id string) string {
	for _, d := range state.ValueOr[[]Department](s.State(), keyDepartments, nil) {
		if d.ID == id {
			return d.Name
		}
	}
	return id
}

func (s *Screen) LoadInitial(ctx context.Context) (state.Patch, error) {
	var depts []Department
	if err := s.API().Get(ctx, "/hr/departments", &depts); err != nil {
		return nil, err
	}
	return state.Patch{keyDepartments: depts}, nil
}

func (s *Screen) LoadView(ctx context.Context, view string) (state.Patch, error) {
	switch view {
	case ViewEmployees:
		params := s.query.Load().Values()
		if d := s.department(); d != "" {
			params["department"] = d
		}
		var page api.Page[Employee]
		if err := s.API().Get(ctx, api.WithQuery("/hr/employees", params), &page); err != nil {
			return nil, err
		}
		return state.Patch{keyEmployees: page}, nil
	case ViewLeave:
		var reqs []LeaveRequest
		if err := s.API().Get(ctx, "/hr/leave", &reqs); err != nil {
			return nil, err
		}
		return state.Patch{keyLeave: reqs}, nil
	case ViewAttendance:
		var a Attendance
		if err := s.API().Get(ctx, "/hr/attendance/summary", &a); err != nil {
			return nil, err
		}
		return s.StampRefresh(state.Patch{keyAttendance: a}), nil
	}
	return nil, nil
}

func (s *Screen) Feeds(view string) []lifecycle.FeedSpec {
	if view != ViewAttendance {
		return nil
	}
	return []lifecycle.FeedSpec{
		screens.Feed(keyPresence, s.PollInterval(30*time.Second),
			func(ctx context.Context) ([]Presence, error) {
				var ps []Presence
				err := s.API().Get(ctx, "/hr/attendance/presence", &ps)
				return ps, err
			},
			func(ps []Presence) {
				if err := s.Merge(s.StampRefresh(state.Patch{keyPresence: ps}), nil); err != nil {
					s.Logger().Debug("presence not applied", slog.Any("error", err))
				}
			}),
	}
}

func (s *Screen) Release() {
	s.employees.Reset()
}

func (s *Screen) BulkActions() []string {
	return []string{actionDeactivate, actionNotify, actionDelete}
}

func (s *Screen) BulkItem(action string) (table.ItemFunc, error) {
	switch action {
	case actionDeactivate:
		return func(ctx context.Context, id string) error {
			return s.API().Post(ctx, employeePath(id)+"/deactivate", nil, nil)
		}, nil
	case actionNotify:
		return func(ctx context.Context, id string) error {
			return s.API().Post(ctx, employeePath(id)+"/notify", map[string]string{"template": "reminder"}, nil)
		}, nil
	case actionDelete:
		return func(ctx context.Context, id string) error {
			return s.API().Delete(ctx, employeePath(id), nil)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", registry.ErrUnknownAction, action)
}

func employeePath(id string) string {
	return "/hr/employees/" + url.PathEscape(id)
}

func (s *Screen) bulk(ctx context.Context, action string, ids []string) {
	fn, err := s.BulkItem(action)
	if err != nil {
		s.Logger().Warn("bulk action rejected", slog.Any("error", err))
		return
	}
	s.Bulk(ctx, action, ids, fn, func(res table.BulkResult) {
		for _, id := range res.Succeeded {
			_ = s.employees.Deselect(id)
		}
	})
}

func (s *Screen) HandleIntent(ctx context.Context, in node.Intent) error {
	if ok, err := s.HandleCommon(ctx, in); ok {
		return err
	}
	switch in.Kind {
	case table.KindExport:
		s.Export(s.employees.Name(), func(w io.Writer) error {
			return s.employees.ExportCSV(w, s.columns)
		})
		return nil
	case KindApprove:
		s.decide(ctx, in.ID, LeaveApproved)
		return nil
	case KindReject:
		s.decide(ctx, in.ID, LeaveRejected)
		return nil
	case KindDepartment:
		if in.ID == s.department() {
			return nil
		}
		s.setDepartment(in.ID)
		if err := s.Merge(state.Patch{keyDepartment: in.ID}, nil); err != nil {
			return err
		}
		// A new filter starts from the first page.
		if s.employees.Cursor().Page != 1 {
			return s.employees.SetPage(1)
		}
		return s.Reload(ctx)
	}
	if table.Handles(in) {
		return s.employees.HandleIntent(in)
	}
	return fmt.Errorf("%w: %s", registry.ErrUnknownIntent, in)
}

func (s *Screen) decide(ctx context.Context, id, status string) {
	verb := "approve"
	if status == LeaveRejected {
		verb = "reject"
	}
	s.Save(ctx, verb+" leave request", func(ctx context.Context) error {
		return s.API().Put(ctx, "/hr/leave/"+url.PathEscape(id), map[string]string{"status": status}, nil)
	}, nil)
}

func (s *Screen) Build() node.Node {
	switch s.View() {
	case ViewLeave:
		return s.Frame(s.leaveView())
	case ViewAttendance:
		return s.Frame(s.attendanceView())
	}
	return s.Frame(s.employeesView())
}

func (s *Screen) employeesView() node.Node {
	if page, ok := state.Value[api.Page[Employee]](s.State(), keyEmployees); ok {
		s.employees.SetServerTotals(page.Total, page.Pages)
	}
	current := s.department()
	opts := []node.Node{deptOption("", "All", current)}
	for _, d := range state.ValueOr[[]Department](s.State(), keyDepartments, nil) {
		opts = append(opts, deptOption(d.ID, d.Name, current))
	}
	return node.El("section", node.Attrs{"view": ViewEmployees},
		node.El("filter", node.Attrs{"name": "department"}, opts...),
		s.employees.Build(s.columns))
}

func deptOption(id, label, current string) node.Node {
	opt := node.El("option", node.Attrs{"value": id}, node.Text(label)).
		On("click", node.Intent{Kind: KindDepartment, ID: id})
	if id == current {
		opt = opt.With("selected", "true")
	}
	return opt
}

func (s *Screen) leaveView() node.Node {
	reqs := state.ValueOr[[]LeaveRequest](s.State(), keyLeave, nil)
	if len(reqs) == 0 {
		return node.El("empty", nil, node.Text("No leave requests"))
	}
	items := make([]node.Node, 0, len(reqs))
	for _, r := range reqs {
		children := []node.Node{node.Textf("%s: %s %s to %s (%s)",
			r.Employee, r.Kind, r.From.Format(time.DateOnly), r.To.Format(time.DateOnly), r.Status)}
		if r.Status == LeavePending {
			children = append(children,
				node.El("button", node.Attrs{"action": "approve"}, node.Text("approve")).
					On("click", node.Intent{Kind: KindApprove, ID: r.ID}),
				node.El("button", node.Attrs{"action": "reject"}, node.Text("reject")).
					On("click", node.Intent{Kind: KindReject, ID: r.ID}))
		}
		items = append(items, node.El("item", node.Attrs{"id": r.ID, "status": r.Status}, children...))
	}
	return node.El("list", node.Attrs{"title": "Leave requests"}, items...)
}

func (s *Screen) attendanceView() node.Node {
	a, ok := state.Value[Attendance](s.State(), keyAttendance)
	if !ok {
		return node.El("empty", nil, node.Text("Loading attendance…"))
	}
	stats := []node.Node{
		stat("Present", a.Present),
		stat("Absent", a.Absent),
		stat("Late", a.Late),
		stat("On leave", a.OnLeave),
	}
	if a.Remote != nil {
		stats = append(stats, stat("Remote", *a.Remote))
	}
	presence := state.ValueOr[[]Presence](s.State(), keyPresence, nil)
	items := make([]node.Node, 0, len(presence))
	for _, p := range presence {
		items = append(items, node.El("item", node.Attrs{"id": p.EmployeeID, "status": p.Status},
			node.Textf("%s: %s since %s", p.Name, p.Status, p.Since.Format(time.TimeOnly))))
	}
	return node.El("section", node.Attrs{"view": ViewAttendance},
		node.El("stats", nil, stats...),
		node.El("list", node.Attrs{"title": "Presence"}, items...))
}

func stat(label string, n int) node.Node {
	return node.El("stat", node.Attrs{"label": label}, node.Text(strconv.Itoa(n)))
}
