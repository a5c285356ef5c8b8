// Package node builds abstract UI element trees.
//
// A Node is plain data: a tag, attributes, children and the intents its
// events produce. Building a tree has no side effects and never touches a
// live render surface; materialization belongs to the host (see internal/tui).
// The same inputs always produce structurally equal trees, so screens and the
// table controller can be tested by inspecting the tree.
package node

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TextTag is the tag of text leaf nodes.
const TextTag = "#text"

// Attrs are element attributes.
type Attrs map[string]string

// Intent is an event payload. Events carry values, not callbacks, so the
// dispatch logic can be tested without a render surface.
type Intent struct {
	Kind string
	ID   string
	Arg  string
}

// IsZero reports whether the intent is empty.
func (i Intent) IsZero() bool {
	return i == Intent{}
}

func (i Intent) String() string {
	var b strings.Builder
	b.WriteString(i.Kind)
	if i.ID != "" {
		b.WriteString("#" + i.ID)
	}
	if i.Arg != "" {
		b.WriteString("(" + i.Arg + ")")
	}
	return b.String()
}

// Node is an immutable element description.
type Node struct {
	Tag      string
	Text     string
	Attrs    Attrs
	Events   map[string]Intent
	Children []Node
}

// El builds an element. attrs and children are copied.
func El(tag string, attrs Attrs, children ...Node) Node {
	n := Node{Tag: tag}
	if len(attrs) > 0 {
		n.Attrs = maps.Clone(attrs)
	}
	if len(children) > 0 {
		n.Children = slices.Clone(children)
	}
	return n
}

// Text builds a text leaf.
func Text(s string) Node {
	return Node{Tag: TextTag, Text: s}
}

// Textf builds a formatted text leaf.
func Textf(format string, args ...any) Node {
	return Text(fmt.Sprintf(format, args...))
}

// Fragment groups children under an anonymous element.
func Fragment(children ...Node) Node {
	return El("fragment", nil, children...)
}

// IsText reports whether n is a text leaf.
func (n Node) IsText() bool {
	return n.Tag == TextTag
}

// Attr returns the attribute value or "".
func (n Node) Attr(key string) string {
	return n.Attrs[key]
}

// With returns a copy of n with one attribute set.
func (n Node) With(key, value string) Node {
	out := n
	out.Attrs = maps.Clone(n.Attrs)
	if out.Attrs == nil {
		out.Attrs = Attrs{}
	}
	out.Attrs[key] = value
	return out
}

// On returns a copy of n that emits intent for event.
func (n Node) On(event string, intent Intent) Node {
	out := n
	out.Events = maps.Clone(n.Events)
	if out.Events == nil {
		out.Events = map[string]Intent{}
	}
	out.Events[event] = intent
	return out
}

// Intent returns the intent bound to event.
func (n Node) Intent(event string) (Intent, bool) {
	in, ok := n.Events[event]
	return in, ok
}

// TextContent concatenates all text leaves under n.
func (n Node) TextContent() string {
	var b strings.Builder
	Walk(n, func(c Node, _ int) bool {
		if c.IsText() {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Find returns all nodes under n (inclusive) with the given tag.
func Find(n Node, tag string) []Node {
	var out []Node
	Walk(n, func(c Node, _ int) bool {
		if c.Tag == tag {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Intents lists every intent bound anywhere in the tree, keyed by event name
// then in tree order.
func Intents(n Node, event string) []Intent {
	var out []Intent
	Walk(n, func(c Node, _ int) bool {
		if in, ok := c.Events[event]; ok {
			out = append(out, in)
		}
		return true
	})
	return out
}

// Equal reports structural equality. Nil and empty collections are equal.
func Equal(a, b Node) bool {
	if a.Tag != b.Tag || a.Text != b.Text {
		return false
	}
	if !maps.Equal(a.Attrs, b.Attrs) || !maps.Equal(a.Events, b.Events) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
