package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/interpretive-systems/erpview/internal/node"
)

// Intent kinds produced by Build and consumed by HandleIntent.
const (
	KindToggle    = "table.toggle"
	KindSelectAll = "table.select_all"
	KindSort      = "table.sort"
	KindSearch    = "table.search"
	KindPage      = "table.page"
	KindLimit     = "table.limit"
	KindBulk      = "table.bulk"
	// KindExport is left to the owning screen, which chooses the file.
	KindExport = "table.export"
)

var ErrUnhandledIntent = errors.New("intent not handled by table")

// Handles reports whether in is a table intent.
func Handles(in node.Intent) bool {
	return strings.HasPrefix(in.Kind, "table.")
}

// HandleIntent applies a table intent emitted by a tree from Build.
func (c *Controller[T]) HandleIntent(in node.Intent) error {
	switch in.Kind {
	case KindToggle:
		return c.Toggle(in.ID)
	case KindSelectAll:
		if c.AllVisibleSelected() {
			return c.ClearVisible()
		}
		return c.SelectAllVisible()
	case KindSort:
		return c.SetSort(in.ID)
	case KindSearch:
		return c.SetSearch(in.Arg)
	case KindPage:
		switch in.Arg {
		case "next":
			return c.NextPage()
		case "prev":
			return c.PrevPage()
		}
		p, err := strconv.Atoi(in.Arg)
		if err != nil {
			return fmt.Errorf("page %q: %w", in.Arg, err)
		}
		return c.SetPage(p)
	case KindLimit:
		l, err := strconv.Atoi(in.Arg)
		if err != nil {
			return fmt.Errorf("limit %q: %w", in.Arg, err)
		}
		return c.SetLimit(l)
	case KindBulk:
		return c.Dispatch(in.ID)
	}
	return fmt.Errorf("%w: %s", ErrUnhandledIntent, in)
}

// Build renders the table as a node tree: an optional toolbar (search and
// bulk actions), the header, one row per loaded record and an optional
// pager.
func (c *Controller[T]) Build(columns []Column[T]) node.Node {
	var parts []node.Node
	if tb, ok := c.toolbar(); ok {
		parts = append(parts, tb)
	}
	parts = append(parts, c.header(columns), c.body(columns))
	if c.cfg.Pagination {
		parts = append(parts, c.pager())
	}
	return node.El("table", node.Attrs{"name": c.name}, parts...)
}

func (c *Controller[T]) toolbar() (node.Node, bool) {
	var items []node.Node
	if c.cfg.Search {
		items = append(items, node.El("search", node.Attrs{"value": c.search}).
			On("submit", node.Intent{Kind: KindSearch}))
	}
	if c.cfg.Selectable && len(c.cfg.BulkActions) > 0 {
		n := len(c.selected)
		actions := make([]node.Node, 0, len(c.cfg.BulkActions))
		for _, a := range c.cfg.BulkActions {
			btn := node.El("button", node.Attrs{"action": a}, node.Text(a))
			if n == 0 {
				btn = btn.With("disabled", "true")
			} else {
				btn = btn.On("click", node.Intent{Kind: KindBulk, ID: a})
			}
			actions = append(actions, btn)
		}
		items = append(items, node.El("bulk", node.Attrs{"count": strconv.Itoa(n)},
			append([]node.Node{node.Textf("%d selected", n)}, actions...)...))
	}
	if c.cfg.Exportable {
		items = append(items, node.El("button", node.Attrs{"action": "export"}, node.Text("export")).
			On("click", node.Intent{Kind: KindExport}))
	}
	if len(items) == 0 {
		return node.Node{}, false
	}
	return node.El("toolbar", nil, items...), true
}

func (c *Controller[T]) header(columns []Column[T]) node.Node {
	cells := make([]node.Node, 0, len(columns)+1)
	if c.cfg.Selectable {
		cb := node.El("checkbox", node.Attrs{"checked": strconv.FormatBool(c.AllVisibleSelected())}).
			On("click", node.Intent{Kind: KindSelectAll})
		cells = append(cells, node.El("th", node.Attrs{"key": "_select"}, cb))
	}
	for _, col := range columns {
		attrs := node.Attrs{"key": col.Key}
		if col.Width > 0 {
			attrs["width"] = strconv.Itoa(col.Width)
		}
		th := node.El("th", attrs, node.Text(col.title()))
		if c.cfg.Sortable && col.Sortable {
			if col.Key == c.sortColumn {
				th = th.With("sort", string(c.sortDir))
			}
			th = th.On("click", node.Intent{Kind: KindSort, ID: col.Key})
		}
		cells = append(cells, th)
	}
	return node.El("thead", nil, node.El("tr", nil, cells...))
}

func (c *Controller[T]) body(columns []Column[T]) node.Node {
	rows := c.Rows()
	if len(rows) == 0 {
		span := len(columns)
		if c.cfg.Selectable {
			span++
		}
		empty := node.El("td", node.Attrs{"colspan": strconv.Itoa(span)}, node.Text("No records found"))
		return node.El("tbody", nil, node.El("tr", node.Attrs{"empty": "true"}, empty))
	}

	trs := make([]node.Node, 0, len(rows))
	for _, row := range rows {
		id := c.idOf(row)
		selected := c.IsSelected(id)
		cells := make([]node.Node, 0, len(columns)+1)
		if c.cfg.Selectable {
			cb := node.El("checkbox", node.Attrs{"checked": strconv.FormatBool(selected)}).
				On("click", node.Intent{Kind: KindToggle, ID: id})
			cells = append(cells, node.El("td", node.Attrs{"key": "_select"}, cb))
		}
		for _, col := range columns {
			v := ""
			if col.Value != nil {
				v = col.Value(row)
			}
			cells = append(cells, node.El("td", node.Attrs{"key": col.Key}, node.Text(v)))
		}
		tr := node.El("tr", node.Attrs{"id": id}, cells...)
		if c.binding.RowIntent != nil {
			tr = tr.On("activate", c.binding.RowIntent(row))
		}
		if selected {
			tr = tr.With("selected", "true")
		}
		trs = append(trs, tr)
	}
	return node.El("tbody", nil, trs...)
}

func (c *Controller[T]) pager() node.Node {
	cur := c.cursor
	prev := node.El("button", node.Attrs{"action": "prev"}, node.Text("‹"))
	if cur.Page <= 1 {
		prev = prev.With("disabled", "true")
	} else {
		prev = prev.On("click", node.Intent{Kind: KindPage, Arg: "prev"})
	}
	next := node.El("button", node.Attrs{"action": "next"}, node.Text("›"))
	if cur.Pages > 0 && cur.Page >= cur.Pages {
		next = next.With("disabled", "true")
	} else {
		next = next.On("click", node.Intent{Kind: KindPage, Arg: "next"})
	}

	label := fmt.Sprintf("Page %d", cur.Page)
	if cur.Pages > 0 {
		label = fmt.Sprintf("Page %d of %d (%d records)", cur.Page, cur.Pages, cur.Total)
	}

	sizes := make([]node.Node, 0, len(c.cfg.PageSizes))
	for _, s := range c.cfg.PageSizes {
		opt := node.El("option", node.Attrs{"value": strconv.Itoa(s)}, node.Text(strconv.Itoa(s))).
			On("click", node.Intent{Kind: KindLimit, Arg: strconv.Itoa(s)})
		if s == cur.Limit {
			opt = opt.With("selected", "true")
		}
		sizes = append(sizes, opt)
	}

	return node.El("pager", node.Attrs{
		"page":  strconv.Itoa(cur.Page),
		"pages": strconv.Itoa(cur.Pages),
		"limit": strconv.Itoa(cur.Limit),
		"total": strconv.Itoa(cur.Total),
	}, prev, node.Text(label), next, node.El("limit", nil, sizes...))
}
