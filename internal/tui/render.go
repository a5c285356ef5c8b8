package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/notify"
)

const defaultCellWidth = 12

// row is a line the cursor can rest on.
type row struct {
	line    int
	toggle  node.Intent
	actions []node.Intent
}

// targets are the intents reachable from the keyboard, collected while a
// screen tree is rendered.
type targets struct {
	rows       []row
	views      []node.Intent
	activeView int
	sorts      []node.Intent
	bulk       []node.Intent
	selectAll  node.Intent
	export     node.Intent
	search     node.Intent
	searchText string
	prev, next node.Intent
	limits     []node.Intent
	limitAt    int
	filters    []node.Intent
	filterAt   int
}

// renderer turns a screen tree into terminal lines.
type renderer struct {
	theme  Theme
	cursor int
	lines  []string
	t      targets
}

// renderTree renders root and returns its lines and keyboard targets. The
// row at index cursor is highlighted.
func renderTree(root node.Node, theme Theme, cursor int) ([]string, targets) {
	r := &renderer{theme: theme, cursor: cursor}
	r.t.activeView, r.t.limitAt, r.t.filterAt = -1, -1, -1
	r.node(root)
	return r.lines, r.t
}

func (r *renderer) add(s string) {
	r.lines = append(r.lines, s)
}

func (r *renderer) addRow(text string, toggle node.Intent, actions []node.Intent, selected bool) {
	marker := "  "
	if len(r.t.rows) == r.cursor {
		marker = r.theme.AccentText("> ")
	}
	if selected {
		text = r.theme.SelectedLine(text)
	}
	r.t.rows = append(r.t.rows, row{line: len(r.lines), toggle: toggle, actions: actions})
	r.add(marker + text)
}

func (r *renderer) node(n node.Node) {
	if n.IsText() {
		r.add(n.Text)
		return
	}
	switch n.Tag {
	case "nav":
		r.nav(n)
	case "toolbar":
		r.toolbar(n)
	case "table":
		r.table(n)
	case "pager":
		r.pager(n)
	case "stats":
		r.stats(n)
	case "list":
		r.list(n)
	case "detail":
		r.detail(n)
	case "filter":
		r.filter(n)
	case "empty":
		r.add(r.theme.MutedText(n.TextContent()))
	default:
		for _, c := range n.Children {
			r.node(c)
		}
	}
}

func (r *renderer) nav(n node.Node) {
	parts := make([]string, 0, len(n.Children))
	for i, tab := range n.Children {
		in, _ := tab.Intent("click")
		r.t.views = append(r.t.views, in)
		label := tab.TextContent()
		if tab.Attr("active") == "true" {
			r.t.activeView = i
			parts = append(parts, r.theme.AccentText("["+label+"]"))
		} else {
			parts = append(parts, " "+label+" ")
		}
	}
	r.add(strings.Join(parts, " "))
	r.add("")
}

func (r *renderer) toolbar(n node.Node) {
	var parts []string
	for _, c := range n.Children {
		switch {
		case c.Tag == "search":
			r.t.search, _ = c.Intent("submit")
			r.t.searchText = c.Attr("value")
			v := c.Attr("value")
			if v == "" {
				v = r.theme.MutedText("none")
			}
			parts = append(parts, "/ search: "+v)
		case c.Tag == "bulk":
			parts = append(parts, r.bulk(c))
		case c.Tag == "button" && c.Attr("action") == "export":
			r.t.export, _ = c.Intent("click")
			parts = append(parts, "e export")
		}
	}
	r.add(strings.Join(parts, r.theme.DividerText("  │  ")))
}

func (r *renderer) bulk(n node.Node) string {
	var b strings.Builder
	b.WriteString(n.Attr("count") + " selected:")
	idx := 0
	for _, c := range n.Children {
		if c.Tag != "button" {
			continue
		}
		idx++
		in, _ := c.Intent("click")
		r.t.bulk = append(r.t.bulk, in)
		label := fmt.Sprintf(" %d %s", idx, c.TextContent())
		if c.Attr("disabled") == "true" {
			label = r.theme.MutedText(label)
		}
		b.WriteString(label)
	}
	return b.String()
}

func checkbox(n node.Node) string {
	if n.Attr("checked") == "true" {
		return "[x]"
	}
	return "[ ]"
}

func cellWidth(th node.Node) int {
	if th.Attr("key") == "_select" {
		return 3
	}
	if w, err := strconv.Atoi(th.Attr("width")); err == nil && w > 0 {
		return w
	}
	return defaultCellWidth
}

func (r *renderer) table(n node.Node) {
	var widths []int
	for _, c := range n.Children {
		switch c.Tag {
		case "toolbar":
			r.toolbar(c)
		case "thead":
			widths = r.thead(c)
		case "tbody":
			r.tbody(c, widths)
		case "pager":
			r.pager(c)
		}
	}
}

func (r *renderer) thead(n node.Node) []int {
	var widths []int
	var cells []string
	for _, th := range node.Find(n, "th") {
		w := cellWidth(th)
		widths = append(widths, w)
		if th.Attr("key") == "_select" {
			if cbs := node.Find(th, "checkbox"); len(cbs) > 0 {
				r.t.selectAll, _ = cbs[0].Intent("click")
				cells = append(cells, checkbox(cbs[0]))
			}
			continue
		}
		label := th.TextContent()
		if in, ok := th.Intent("click"); ok {
			r.t.sorts = append(r.t.sorts, in)
			label = fmt.Sprintf("%d:%s", len(r.t.sorts), label)
		}
		switch th.Attr("sort") {
		case "asc":
			label += " ▲"
		case "desc":
			label += " ▼"
		}
		cells = append(cells, padToWidth(label, w))
	}
	r.add("  " + r.theme.AccentText(strings.Join(cells, " ")))
	return widths
}

func (r *renderer) tbody(n node.Node, widths []int) {
	for _, tr := range n.Children {
		if tr.Attr("empty") == "true" {
			r.add("  " + r.theme.MutedText(tr.TextContent()))
			continue
		}
		var toggle node.Intent
		cells := make([]string, 0, len(tr.Children))
		for i, td := range tr.Children {
			w := defaultCellWidth
			if i < len(widths) {
				w = widths[i]
			}
			if td.Attr("key") == "_select" {
				if cbs := node.Find(td, "checkbox"); len(cbs) > 0 {
					toggle, _ = cbs[0].Intent("click")
					cells = append(cells, checkbox(cbs[0]))
				}
				continue
			}
			cells = append(cells, padToWidth(td.TextContent(), w))
		}
		var actions []node.Intent
		if in, ok := tr.Intent("activate"); ok {
			actions = append(actions, in)
		}
		r.addRow(strings.Join(cells, " "), toggle, actions, tr.Attr("selected") == "true")
	}
}

func (r *renderer) pager(n node.Node) {
	var label string
	var sizes []string
	for _, c := range n.Children {
		switch {
		case c.IsText():
			label = c.Text
		case c.Tag == "button" && c.Attr("action") == "prev":
			r.t.prev, _ = c.Intent("click")
		case c.Tag == "button" && c.Attr("action") == "next":
			r.t.next, _ = c.Intent("click")
		case c.Tag == "limit":
			for i, opt := range c.Children {
				in, _ := opt.Intent("click")
				r.t.limits = append(r.t.limits, in)
				v := opt.TextContent()
				if opt.Attr("selected") == "true" {
					r.t.limitAt = i
					v = "[" + v + "]"
				}
				sizes = append(sizes, v)
			}
		}
	}
	r.add("")
	r.add(r.theme.MutedText(label + "   [ prev  ] next   size: " + strings.Join(sizes, " ")))
}

func (r *renderer) stats(n node.Node) {
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		parts = append(parts, r.theme.MutedText(c.Attr("label")+": ")+c.TextContent())
	}
	r.add(strings.Join(parts, "   "))
	r.add("")
}

// itemRow splits an item into its text and its button intents.
func itemRow(n node.Node) (string, []node.Intent) {
	var text []string
	var actions []node.Intent
	if in, ok := n.Intent("activate"); ok {
		actions = append(actions, in)
	}
	for _, c := range n.Children {
		if c.Tag == "button" {
			if in, ok := c.Intent("click"); ok {
				actions = append(actions, in)
				text = append(text, fmt.Sprintf("[%d %s]", len(actions), c.TextContent()))
			}
			continue
		}
		text = append(text, c.TextContent())
	}
	return strings.Join(text, " "), actions
}

func (r *renderer) list(n node.Node) {
	if title := n.Attr("title"); title != "" {
		r.add(r.theme.AccentText(title))
	}
	for _, item := range n.Children {
		text, actions := itemRow(item)
		if sev := item.Attr("severity"); sev != "" && item.Attr("acknowledged") != "true" {
			text = r.theme.LevelText(severityLevel(sev), text)
		}
		r.addRow(text, node.Intent{}, actions, false)
	}
}

func (r *renderer) detail(n node.Node) {
	r.add("")
	r.add(r.theme.AccentText("Details"))
	text, actions := itemRow(n)
	r.addRow(text, node.Intent{}, actions, false)
}

func (r *renderer) filter(n node.Node) {
	parts := make([]string, 0, len(n.Children))
	for i, opt := range n.Children {
		in, _ := opt.Intent("click")
		r.t.filters = append(r.t.filters, in)
		label := opt.TextContent()
		if opt.Attr("selected") == "true" {
			r.t.filterAt = i
			label = r.theme.AccentText("[" + label + "]")
		}
		parts = append(parts, label)
	}
	r.add("f " + n.Attr("name") + ": " + strings.Join(parts, " "))
}

func severityLevel(s string) notify.Level {
	switch s {
	case "critical", "high":
		return notify.Error
	case "medium":
		return notify.Warning
	}
	return notify.Info
}
