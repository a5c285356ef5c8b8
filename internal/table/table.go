// Package table coordinates a data table: selection, sort and search intent,
// pagination and bulk actions.
//
// The controller never holds the rows. It reads them from the bound
// DataSource every time it needs them and forwards sort, search and paging
// changes as a Query through OnDataChanged; the owning screen performs the
// reload and stays the single source of truth for its collection.
package table

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/metrics"
	"github.com/interpretive-systems/erpview/internal/node"
)

var (
	ErrEmptySelection = errors.New("no rows selected")
	ErrDisabled       = errors.New("table feature disabled")
	ErrInvalidLimit   = errors.New("page size must be positive")
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// DefaultLimit is the page size used when Config.Limit is unset.
const DefaultLimit = 25

// Config toggles the table's features. It is fixed at construction.
type Config struct {
	Selectable bool
	Sortable   bool
	Search     bool
	Exportable bool
	Pagination bool
	Limit      int
	// PageSizes are the page sizes offered by the pager.
	PageSizes []int
	// BulkActions are offered while rows are selected.
	BulkActions []string
}

// Query is the server-side request a table change asks for.
type Query struct {
	Page       int
	Limit      int
	SortColumn string
	SortDir    Direction
	Search     string
}

// Values renders q as URL query parameters for the data API. Empty fields
// are omitted.
func (q Query) Values() map[string]string {
	v := map[string]string{}
	if q.Page > 0 {
		v["page"] = strconv.Itoa(q.Page)
	}
	if q.Limit > 0 {
		v["limit"] = strconv.Itoa(q.Limit)
	}
	if q.SortColumn != "" {
		v["sort"] = q.SortColumn
		v["order"] = string(q.SortDir)
	}
	if q.Search != "" {
		v["search"] = q.Search
	}
	return v
}

// Cursor is the pagination position. Total and Pages come only from the
// server.
type Cursor struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// Binding connects the controller to its owning screen.
type Binding[T any] struct {
	// DataSource returns the currently loaded rows. It is called on every
	// read and its result is never retained.
	DataSource func() []T
	// ID returns a row's stable identifier.
	ID                func(T) string
	OnSelectionChange func(ids []string)
	OnBulkAction      func(action string, ids []string)
	OnDataChanged     func(q Query)
	// RowIntent, when set, is emitted when a row is activated.
	RowIntent func(T) node.Intent
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	name    string
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records bulk item outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithName names the table in logs and in the intents it renders.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Controller is a table coordinator over rows of type T. It is not safe for
// concurrent use; call it from the loop.
type Controller[T any] struct {
	cfg     Config
	name    string
	log     *slog.Logger
	metrics *metrics.Metrics
	binding Binding[T]

	selected   map[string]struct{}
	sortColumn string
	sortDir    Direction
	search     string
	cursor     Cursor
}

// New creates a controller with an empty binding.
func New[T any](cfg Config, opts ...Option) *Controller[T] {
	o := options{name: "table"}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if len(cfg.PageSizes) == 0 {
		cfg.PageSizes = []int{10, 25, 50, 100}
	}
	return &Controller[T]{
		cfg:      cfg,
		name:     o.name,
		log:      logging.OrNop(o.logger).With(slog.String("table", o.name)),
		metrics:  o.metrics,
		selected: map[string]struct{}{},
		sortDir:  Asc,
		cursor:   Cursor{Page: 1, Limit: cfg.Limit},
	}
}

// Bind replaces the whole binding.
func (c *Controller[T]) Bind(b Binding[T]) {
	c.binding = b
}

func (c *Controller[T]) Config() Config { return c.cfg }

func (c *Controller[T]) Name() string { return c.name }

// Rows returns the bound rows, read fresh from the data source.
func (c *Controller[T]) Rows() []T {
	if c.binding.DataSource == nil {
		return nil
	}
	return c.binding.DataSource()
}

func (c *Controller[T]) idOf(row T) string {
	if c.binding.ID == nil {
		return ""
	}
	return c.binding.ID(row)
}

func (c *Controller[T]) visibleIDs() []string {
	rows := c.Rows()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id := c.idOf(r); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Toggle flips the selection of id.
func (c *Controller[T]) Toggle(id string) error {
	if !c.cfg.Selectable {
		return fmt.Errorf("selection: %w", ErrDisabled)
	}
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
	} else {
		c.selected[id] = struct{}{}
	}
	c.selectionChanged()
	return nil
}

// Select adds id. Selecting an already selected id changes nothing.
func (c *Controller[T]) Select(id string) error {
	if !c.cfg.Selectable {
		return fmt.Errorf("selection: %w", ErrDisabled)
	}
	if _, ok := c.selected[id]; ok {
		return nil
	}
	c.selected[id] = struct{}{}
	c.selectionChanged()
	return nil
}

// Deselect removes id. Removing an unselected id changes nothing.
func (c *Controller[T]) Deselect(id string) error {
	if !c.cfg.Selectable {
		return fmt.Errorf("selection: %w", ErrDisabled)
	}
	if _, ok := c.selected[id]; !ok {
		return nil
	}
	delete(c.selected, id)
	c.selectionChanged()
	return nil
}

// SelectAllVisible selects every loaded row. Rows on other pages are not
// touched.
func (c *Controller[T]) SelectAllVisible() error {
	if !c.cfg.Selectable {
		return fmt.Errorf("selection: %w", ErrDisabled)
	}
	changed := false
	for _, id := range c.visibleIDs() {
		if _, ok := c.selected[id]; !ok {
			c.selected[id] = struct{}{}
			changed = true
		}
	}
	if changed {
		c.selectionChanged()
	}
	return nil
}

// ClearVisible deselects every loaded row and keeps selections made on
// other pages.
func (c *Controller[T]) ClearVisible() error {
	if !c.cfg.Selectable {
		return fmt.Errorf("selection: %w", ErrDisabled)
	}
	changed := false
	for _, id := range c.visibleIDs() {
		if _, ok := c.selected[id]; ok {
			delete(c.selected, id)
			changed = true
		}
	}
	if changed {
		c.selectionChanged()
	}
	return nil
}

// AllVisibleSelected reports whether there are loaded rows and all of them
// are selected.
func (c *Controller[T]) AllVisibleSelected() bool {
	ids := c.visibleIDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := c.selected[id]; !ok {
			return false
		}
	}
	return true
}

// Reset empties the selection, typically after a bulk action completed.
func (c *Controller[T]) Reset() {
	if len(c.selected) == 0 {
		return
	}
	clear(c.selected)
	c.selectionChanged()
}

// Selected returns the selected ids in sorted order.
func (c *Controller[T]) Selected() []string {
	ids := make([]string, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Controller[T]) IsSelected(id string) bool {
	_, ok := c.selected[id]
	return ok
}

func (c *Controller[T]) SelectionCount() int { return len(c.selected) }

func (c *Controller[T]) selectionChanged() {
	if c.binding.OnSelectionChange != nil {
		c.binding.OnSelectionChange(c.Selected())
	}
}

// Dispatch fires OnBulkAction with the current selection. It refuses to
// fire for an empty selection.
func (c *Controller[T]) Dispatch(action string) error {
	if !c.cfg.Selectable {
		return fmt.Errorf("bulk %s: %w", action, ErrDisabled)
	}
	if len(c.selected) == 0 {
		return fmt.Errorf("bulk %s: %w", action, ErrEmptySelection)
	}
	ids := c.Selected()
	c.log.Debug("bulk action", slog.String("action", action), slog.Int("count", len(ids)))
	if c.binding.OnBulkAction != nil {
		c.binding.OnBulkAction(action, ids)
	}
	return nil
}

// Sort returns the active sort column and direction.
func (c *Controller[T]) Sort() (string, Direction) {
	return c.sortColumn, c.sortDir
}

// SetSort sorts by column. Choosing the active column again flips the
// direction; a new column starts ascending.
func (c *Controller[T]) SetSort(column string) error {
	if !c.cfg.Sortable {
		return fmt.Errorf("sort: %w", ErrDisabled)
	}
	if column == c.sortColumn {
		c.sortDir = c.sortDir.Flip()
	} else {
		c.sortColumn, c.sortDir = column, Asc
	}
	c.dataChanged("sort")
	return nil
}

// SearchQuery returns the active search string.
func (c *Controller[T]) SearchQuery() string { return c.search }

// SetSearch changes the search string and returns to the first page.
func (c *Controller[T]) SetSearch(q string) error {
	if !c.cfg.Search {
		return fmt.Errorf("search: %w", ErrDisabled)
	}
	if q == c.search {
		return nil
	}
	c.search = q
	c.cursor.Page = 1
	c.dataChanged("search")
	return nil
}

// Cursor returns the pagination position.
func (c *Controller[T]) Cursor() Cursor { return c.cursor }

// SetPage moves to page p. Pages outside the known range are clamped.
func (c *Controller[T]) SetPage(p int) error {
	if !c.cfg.Pagination {
		return fmt.Errorf("pagination: %w", ErrDisabled)
	}
	if c.cursor.Pages > 0 && p > c.cursor.Pages {
		p = c.cursor.Pages
	}
	if p < 1 {
		p = 1
	}
	if p == c.cursor.Page {
		return nil
	}
	c.cursor.Page = p
	c.dataChanged("page")
	return nil
}

// NextPage and PrevPage step the cursor by one page.
func (c *Controller[T]) NextPage() error { return c.SetPage(c.cursor.Page + 1) }

func (c *Controller[T]) PrevPage() error { return c.SetPage(c.cursor.Page - 1) }

// SetLimit changes the page size. The page is reset to 1 before the reload
// is requested so the new request can never point past the last page.
func (c *Controller[T]) SetLimit(limit int) error {
	if !c.cfg.Pagination {
		return fmt.Errorf("pagination: %w", ErrDisabled)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit == c.cursor.Limit {
		return nil
	}
	c.cursor.Limit = limit
	c.cursor.Page = 1
	if c.cursor.Total > 0 {
		c.cursor.Pages = pagesFor(c.cursor.Total, limit)
	}
	c.dataChanged("limit")
	return nil
}

// SetServerTotals records the totals reported with the last load. It does
// not request a reload. pages may be 0 when the server only reports total.
func (c *Controller[T]) SetServerTotals(total, pages int) {
	if total < 0 {
		total = 0
	}
	if pages <= 0 {
		pages = pagesFor(total, c.cursor.Limit)
	}
	c.cursor.Total, c.cursor.Pages = total, pages
}

func pagesFor(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Query returns the request describing the table's current position.
func (c *Controller[T]) Query() Query {
	q := Query{Search: c.search}
	if c.cfg.Pagination {
		q.Page, q.Limit = c.cursor.Page, c.cursor.Limit
	}
	if c.sortColumn != "" {
		q.SortColumn, q.SortDir = c.sortColumn, c.sortDir
	}
	return q
}

func (c *Controller[T]) dataChanged(reason string) {
	q := c.Query()
	c.log.Debug("table query changed",
		slog.String("reason", reason),
		slog.Int("page", q.Page),
		slog.Int("limit", q.Limit),
		slog.String("sort", q.SortColumn),
		slog.String("search", q.Search))
	if c.binding.OnDataChanged != nil {
		c.binding.OnDataChanged(q)
	}
}
