package uitree

import (
	"fmt"
	"strconv"
	"strings"
)

// Traversal identifies the node ordering of a serialized document.
type Traversal string

// Supported traversal modes. Every captured step persists one document of
// each mode over the same window forest.
const (
	TraversalDFS Traversal = "dfs"
	TraversalBFS Traversal = "bfs"
)

// EmptyTreeMarker is emitted in place of node records for a window whose
// root hierarchy is unavailable. The window itself is never omitted.
const EmptyTreeMarker = "empty-tree"

// SerializeDFS renders the window forest as a depth-first document. Windows
// are received in platform stacking order (back to front) and emitted in
// reverse so the topmost window appears first. Each node record is emitted
// immediately before its children are visited.
//
// The generator must be the same instance passed to SerializeBFS for the
// same capture so both documents assign identical ids.
func SerializeDFS(windows []Window, gen *IDGenerator) string {
	var b strings.Builder
	writeHeader(&b, TraversalDFS)
	seen := make(map[*Node]bool)
	forEachWindowFrontFirst(windows, func(idx int, w Window) {
		writeWindow(&b, idx, w)
		if w.Root == nil {
			b.WriteString(EmptyTreeMarker + "\n")
			return
		}
		dfsWalk(&b, w.Root, 0, gen, seen)
	})
	return b.String()
}

// SerializeBFS renders the window forest as a breadth-first document. Node
// records are emitted level by level per window, with the level recorded as
// the node's depth.
func SerializeBFS(windows []Window, gen *IDGenerator) string {
	var b strings.Builder
	writeHeader(&b, TraversalBFS)
	seen := make(map[*Node]bool)
	forEachWindowFrontFirst(windows, func(idx int, w Window) {
		writeWindow(&b, idx, w)
		if w.Root == nil {
			b.WriteString(EmptyTreeMarker + "\n")
			return
		}
		bfsWalk(&b, w.Root, gen, seen)
	})
	return b.String()
}

// forEachWindowFrontFirst visits windows topmost first. The index passed to
// the callback is the output position, so index 0 is always the front
// window regardless of the input ordering.
func forEachWindowFrontFirst(windows []Window, fn func(idx int, w Window)) {
	for i := len(windows) - 1; i >= 0; i-- {
		fn(len(windows)-1-i, windows[i])
	}
}

// dfsWalk emits the node then recurses into children in platform-reported
// order. A node reachable through more than one parent (aliased platform
// handles) is emitted only on its first encounter.
func dfsWalk(b *strings.Builder, n *Node, depth int, gen *IDGenerator, seen map[*Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	writeNode(b, n, gen.ID(n), depth, childIDs(n, gen))
	for _, c := range n.Children {
		dfsWalk(b, c, depth+1, gen, seen)
	}
}

type bfsItem struct {
	node  *Node
	depth int
}

// bfsWalk emits nodes level by level starting at the root. Each node is
// enqueued at most once even when reachable through multiple parents.
func bfsWalk(b *strings.Builder, root *Node, gen *IDGenerator, seen map[*Node]bool) {
	if seen[root] {
		return
	}
	seen[root] = true
	queue := []bfsItem{{node: root, depth: 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		writeNode(b, it.node, gen.ID(it.node), it.depth, childIDs(it.node, gen))
		for _, c := range it.node.Children {
			if c == nil || seen[c] {
				continue
			}
			seen[c] = true
			queue = append(queue, bfsItem{node: c, depth: it.depth + 1})
		}
	}
}

// childIDs resolves the ids of a node's children, allocating ids for
// children not yet seen so the parent record can reference them.
func childIDs(n *Node, gen *IDGenerator) []int {
	ids := make([]int, 0, len(n.Children))
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		ids = append(ids, gen.ID(c))
	}
	return ids
}

func writeHeader(b *strings.Builder, mode Traversal) {
	fmt.Fprintf(b, "traversal=%s\n", mode)
}

func writeWindow(b *strings.Builder, idx int, w Window) {
	fmt.Fprintf(b, "window index=%d bounds=%s type=%s active=%t focused=%t\n",
		idx, w.Bounds, w.Type, w.Active, w.Focused)
}

// writeNode emits one node record. The field set is fixed: every field
// appears on every record, with unavailable string attributes rendered as
// empty strings so downstream parsers see a stable shape.
func writeNode(b *strings.Builder, n *Node, id, depth int, children []int) {
	fmt.Fprintf(b,
		"node id=%d depth=%d bounds=%s class=%s package=%s text=%s desc=%s actions=%s "+
			"clickable=%t editable=%t scrollable=%t checked=%t enabled=%t focusable=%t password=%t visible=%t children=%s\n",
		id, depth, n.Bounds,
		strconv.Quote(n.ClassName), strconv.Quote(n.PackageName),
		strconv.Quote(n.Text), strconv.Quote(n.ContentDesc),
		stringList(n.Actions),
		n.Clickable, n.Editable, n.Scrollable, n.Checked,
		n.Enabled, n.Focusable, n.Password, n.Visible,
		intList(children))
}

func stringList(vs []string) string {
	return "[" + strings.Join(vs, ",") + "]"
}

func intList(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
