package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/erpview/internal/node"
)

func plainLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = ansi.Strip(l)
	}
	return out
}

func TestRenderTree_NavAndList(t *testing.T) {
	ack := node.Intent{Kind: "alert.ack", ID: "al1"}
	tree := node.El("screen", nil,
		node.El("nav", nil,
			node.El("tab", node.Attrs{"active": "true"}, node.Text("devices")).
				On("click", node.Intent{Kind: "view", ID: "devices"}),
			node.El("tab", nil, node.Text("alerts")).
				On("click", node.Intent{Kind: "view", ID: "alerts"}),
		),
		node.El("list", node.Attrs{"title": "Alerts"},
			node.El("item", node.Attrs{"severity": "critical"},
				node.Text("pump offline"),
				node.El("button", nil, node.Text("Ack")).On("click", ack),
			),
			node.El("item", nil, node.Text("drift")),
		),
	)

	lines, tg := renderTree(tree, GetTheme("dark"), 1)
	plain := plainLines(lines)

	assert.Equal(t, "[devices]  alerts ", plain[0])
	require.Len(t, tg.views, 2)
	assert.Equal(t, 0, tg.activeView)
	assert.Equal(t, "alerts", tg.views[1].ID)

	require.Len(t, tg.rows, 2)
	assert.Equal(t, []node.Intent{ack}, tg.rows[0].actions)
	assert.Equal(t, "  pump offline [1 Ack]", plain[tg.rows[0].line])
	assert.Equal(t, "> drift", plain[tg.rows[1].line])
}

func TestRenderTree_TableTargets(t *testing.T) {
	sortName := node.Intent{Kind: "table.sort", ID: "name"}
	tree := node.El("table", nil,
		node.El("toolbar", nil,
			node.El("search", node.Attrs{"value": "boi"}).On("submit", node.Intent{Kind: "table.search"}),
			node.El("bulk", node.Attrs{"count": "0"},
				node.El("button", node.Attrs{"disabled": "true"}, node.Text("restart")),
			),
		),
		node.El("thead", nil,
			node.El("th", node.Attrs{"key": "name", "width": "8", "sort": "asc"}, node.Text("Name")).On("click", sortName),
			node.El("th", node.Attrs{"key": "status", "width": "8"}, node.Text("Status")),
		),
		node.El("tbody", nil,
			node.El("tr", node.Attrs{"selected": "true"},
				node.El("td", node.Attrs{"key": "name"}, node.Text("Boiler")),
				node.El("td", node.Attrs{"key": "status"}, node.Text("online")),
			),
		),
		node.El("pager", nil,
			node.Text("Page 1 of 3"),
			node.El("button", node.Attrs{"action": "next"}, node.Text("›")).On("click", node.Intent{Kind: "table.page", Arg: "next"}),
			node.El("limit", nil,
				node.El("option", nil, node.Text("10")).On("click", node.Intent{Kind: "table.limit", Arg: "10"}),
				node.El("option", node.Attrs{"selected": "true"}, node.Text("25")).On("click", node.Intent{Kind: "table.limit", Arg: "25"}),
			),
		),
	)

	lines, tg := renderTree(tree, GetTheme("light"), 0)
	out := strings.Join(plainLines(lines), "\n")

	assert.Contains(t, out, "/ search: boi")
	assert.Contains(t, out, "0 selected: 1 restart")
	assert.Contains(t, out, "1:Name ▲")
	assert.Contains(t, out, "> Boiler")
	assert.Contains(t, out, "Page 1 of 3")
	assert.Contains(t, out, "[25]")

	assert.Equal(t, "boi", tg.searchText)
	assert.Equal(t, []node.Intent{sortName}, tg.sorts)
	require.Len(t, tg.bulk, 1)
	assert.True(t, tg.bulk[0].IsZero(), "disabled buttons carry no intent")
	assert.True(t, tg.prev.IsZero())
	assert.Equal(t, "next", tg.next.Arg)
	assert.Equal(t, 1, tg.limitAt)
	assert.Equal(t, -1, tg.filterAt)
}
