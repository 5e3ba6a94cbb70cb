package cluster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Node is the identity of a cluster member.
type Node struct {
	ID         uint64
	Host       string
	MetaPort   int
	DataPort   int
	ClientPort int
}

func (n Node) String() string {
	return fmt.Sprintf("%d@%s:%d:%d:%d", n.ID, n.Host, n.MetaPort, n.DataPort, n.ClientPort)
}

// ParseNode parses the form produced by Node.String. Ports may be omitted.
func ParseNode(s string) (Node, error) {
	var n Node
	id, rest, ok := strings.Cut(s, "@")
	if !ok {
		return n, fmt.Errorf("invalid node %q: expected id@host[:meta[:data[:client]]]", s)
	}
	var err error
	if n.ID, err = strconv.ParseUint(id, 10, 64); err != nil {
		return n, fmt.Errorf("invalid node id %q: %v", id, err)
	}

	parts := strings.Split(rest, ":")
	if parts[0] == "" || len(parts) > 4 {
		return n, fmt.Errorf("invalid node address %q", rest)
	}
	n.Host = parts[0]
	for i, p := range []*int{&n.MetaPort, &n.DataPort, &n.ClientPort} {
		if i+1 >= len(parts) {
			break
		}
		if *p, err = strconv.Atoi(parts[i+1]); err != nil {
			return n, fmt.Errorf("invalid port %q: %v", parts[i+1], err)
		}
	}
	return n, nil
}

// Nodes is a list of nodes that can be sorted by ID.
type Nodes []Node

func (a Nodes) Len() int           { return len(a) }
func (a Nodes) Less(i, j int) bool { return a[i].ID < a[j].ID }
func (a Nodes) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }

// SortedByID returns a sorted copy of a.
func (a Nodes) SortedByID() Nodes {
	other := make(Nodes, len(a))
	copy(other, a)
	sort.Sort(other)
	return other
}

// PartitionGroup is the ordered replica set owning a slot. The first node is
// the header and identifies the group. A group is never modified once it has
// been handed out.
type PartitionGroup []Node

// Header returns the first node of the group.
func (g PartitionGroup) Header() Node {
	if len(g) == 0 {
		return Node{}
	}
	return g[0]
}

// Equal reports whether both groups have the same header and the same members
// in the same order.
func (g PartitionGroup) Equal(other PartitionGroup) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if g[i] != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether n is a member of the group.
func (g PartitionGroup) Contains(n Node) bool {
	for _, m := range g {
		if m == n {
			return true
		}
	}
	return false
}

func (g PartitionGroup) String() string {
	ids := make([]string, len(g))
	for i, n := range g {
		ids[i] = strconv.FormatUint(n.ID, 10)
	}
	return "[" + strings.Join(ids, ",") + "]"
}
