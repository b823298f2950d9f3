package uitree

// IDGenerator assigns stable small-integer identities to node handles for
// the lifetime of one snapshot. The first node presented receives id 0 and
// ids grow in first-seen order. Presenting the same handle again returns
// the id assigned on first sight.
//
// One generator instance is shared by the depth-first and breadth-first
// serialization passes of a single snapshot so that both documents agree on
// every node's id. A generator must never be reused across snapshots: node
// handles from a previous capture are invalid once the UI redraws.
type IDGenerator struct {
	ids  map[*Node]int
	next int
}

// NewIDGenerator returns an empty generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{ids: make(map[*Node]int)}
}

// ID returns the id for the given node handle, allocating the next id in
// sequence on first sight. Allocation cannot fail.
func (g *IDGenerator) ID(n *Node) int {
	if id, ok := g.ids[n]; ok {
		return id
	}
	id := g.next
	g.ids[n] = id
	g.next++
	return id
}

// Seen reports whether the node handle has already been assigned an id.
func (g *IDGenerator) Seen(n *Node) bool {
	_, ok := g.ids[n]
	return ok
}

// Count returns the number of ids allocated so far.
func (g *IDGenerator) Count() int {
	return g.next
}
