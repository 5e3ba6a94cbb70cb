package partition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/influxdata/influxdb-cluster/cluster"
	"go.uber.org/zap"
)

// Table owns the slot to partition group assignment of a cluster.
type Table interface {
	// Route returns the group owning timestamp of storageGroup.
	Route(storageGroup string, timestamp int64) cluster.PartitionGroup

	// RouteSlot returns the group owning slot.
	RouteSlot(slot int) cluster.PartitionGroup

	// Slot returns the slot owning timestamp of storageGroup.
	Slot(storageGroup string, timestamp int64) int

	// AddNode admits node, moves a share of the slots to it and returns the
	// group headed by node.
	AddNode(node cluster.Node) cluster.PartitionGroup

	// PreviousNodeMap returns, for every slot that moved to node when it
	// joined, the header that owned the slot before.
	PreviousNodeMap(node cluster.Node) map[int]cluster.Node

	// LocalGroups returns every group the local node is a member of.
	LocalGroups() []cluster.PartitionGroup

	// HeaderGroup returns the group headed by header.
	HeaderGroup(header cluster.Node) (cluster.PartitionGroup, bool)

	NodeSlots(header cluster.Node) []int
	AllNodeSlots() map[cluster.Node][]int
	AllNodes() []cluster.Node
	TotalSlots() int
	PartitionInterval() int64

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

var _ Table = (*SlotTable)(nil)

// ErrNoNodes is returned when bootstrapping a table without any node.
var ErrNoNodes = errors.New("partition table requires at least one node")

// SlotTable is a Table backed by a fixed array of slots.
//
// A SlotTable is safe for concurrent use. AddNode and UnmarshalBinary hold the
// write lock only while the in-memory state is replaced; readers never see a
// partially applied join.
type SlotTable struct {
	mu sync.RWMutex

	interval int64
	thisNode cluster.Node

	totalSlots        int
	replicationFactor int

	// version counts the joins applied since bootstrap.
	version uint64

	// nodes is kept in join order. ring is the same set sorted by ID.
	nodes cluster.Nodes
	ring  cluster.Nodes
	byID  map[uint64]cluster.Node

	// owners holds the header of every slot. It is nil until the table is
	// bootstrapped or decoded.
	owners []cluster.Node

	nodeSlots   map[uint64][]int
	groups      map[uint64]cluster.PartitionGroup
	previous    map[uint64]map[int]cluster.Node
	localGroups []cluster.PartitionGroup

	Logger *zap.Logger
	stats  *tableMetrics
}

// NewEmptySlotTable returns an uninitialised table for thisNode. It must be
// filled with UnmarshalBinary before it can route.
func NewEmptySlotTable(c cluster.Config, thisNode cluster.Node) (*SlotTable, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	interval, err := c.PartitionTicks()
	if err != nil {
		return nil, err
	}
	return &SlotTable{
		interval:          interval,
		thisNode:          thisNode,
		totalSlots:        c.TotalSlots,
		replicationFactor: c.ReplicationFactor,
		byID:              make(map[uint64]cluster.Node),
		nodeSlots:         make(map[uint64][]int),
		groups:            make(map[uint64]cluster.PartitionGroup),
		previous:          make(map[uint64]map[int]cluster.Node),
		Logger:            zap.NewNop(),
		stats:             newTableMetrics(thisNode),
	}, nil
}

// NewSlotTable bootstraps a table for a cluster made of nodes. Slots are dealt
// to nodes round-robin in the given order.
func NewSlotTable(c cluster.Config, thisNode cluster.Node, nodes ...cluster.Node) (*SlotTable, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	t, err := NewEmptySlotTable(c, thisNode)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	owners := make([]cluster.Node, t.totalSlots)
	for i := range owners {
		owners[i] = nodes[i%len(nodes)]
	}
	t.nodes = append(cluster.Nodes(nil), nodes...)
	t.owners = owners
	t.rebuild()
	return t, nil
}

// WithLogger sets the logger on the table.
func (t *SlotTable) WithLogger(log *zap.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Logger = log.With(zap.String("service", "partition-table"))
}

// Slot returns the slot owning timestamp of storageGroup.
func (t *SlotTable) Slot(storageGroup string, timestamp int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return SlotOf(storageGroup, timestamp, t.interval, t.totalSlots)
}

// Route returns the group owning timestamp of storageGroup.
func (t *SlotTable) Route(storageGroup string, timestamp int64) cluster.PartitionGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.routeSlot(SlotOf(storageGroup, timestamp, t.interval, t.totalSlots))
}

// RouteSlot returns the group owning slot. It panics if slot is out of range
// or if the table has not been initialised.
func (t *SlotTable) RouteSlot(slot int) cluster.PartitionGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.routeSlot(slot)
}

func (t *SlotTable) routeSlot(slot int) cluster.PartitionGroup {
	t.mustBeInitialized()
	if slot < 0 || slot >= len(t.owners) {
		panic(fmt.Sprintf("slot %d out of range [0, %d)", slot, len(t.owners)))
	}
	g, ok := t.groups[t.owners[slot].ID]
	if !ok {
		panic(fmt.Sprintf("no group headed by %s", t.owners[slot]))
	}
	return g
}

func (t *SlotTable) mustBeInitialized() {
	if t.owners == nil {
		panic("partition table is not initialized")
	}
}

// AddNode admits node to the table. Calling AddNode for a node that is already
// part of the table returns its group and leaves the table unchanged, so
// replaying a join is harmless.
func (t *SlotTable) AddNode(node cluster.Node) cluster.PartitionGroup {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mustBeInitialized()

	if existing, ok := t.byID[node.ID]; ok {
		if existing != node {
			t.Logger.Warn("Node id already registered with a different address",
				zap.Uint64("node_id", node.ID),
				zap.Stringer("registered", existing),
				zap.Stringer("joining", node))
		}
		return t.groups[node.ID]
	}

	moved := allocateSlots(t.owners, t.nodes, node)
	t.nodes = append(t.nodes, node)
	t.previous[node.ID] = moved
	t.version++
	t.rebuild()

	t.stats.joins.Inc()
	t.stats.migrated.Add(float64(len(moved)))
	t.Logger.Info("Node joined partition table",
		zap.Stringer("node", node),
		zap.Int("migrated_slots", len(moved)),
		zap.Uint64("version", t.version),
		zap.Stringer("group", t.groups[node.ID]))
	return t.groups[node.ID]
}

// rebuild recomputes everything derived from nodes and owners. The caller
// must hold the write lock.
func (t *SlotTable) rebuild() {
	t.byID = make(map[uint64]cluster.Node, len(t.nodes))
	for _, n := range t.nodes {
		t.byID[n.ID] = n
	}
	t.ring = t.nodes.SortedByID()
	t.groups = buildGroups(t.ring, t.replicationFactor)

	t.nodeSlots = make(map[uint64][]int, len(t.nodes))
	for _, n := range t.nodes {
		t.nodeSlots[n.ID] = nil
	}
	for slot, owner := range t.owners {
		t.nodeSlots[owner.ID] = append(t.nodeSlots[owner.ID], slot)
	}

	t.localGroups = localGroups(t.ring, t.groups, t.thisNode)

	t.stats.nodes.Set(float64(len(t.nodes)))
	t.stats.version.Set(float64(t.version))
}

// localGroups returns the group headed by thisNode followed by the groups of
// its ring predecessors that include it, nearest first.
func localGroups(ring cluster.Nodes, groups map[uint64]cluster.PartitionGroup, thisNode cluster.Node) []cluster.PartitionGroup {
	idx := -1
	for i, n := range ring {
		if n.ID == thisNode.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	own := groups[thisNode.ID]
	local := []cluster.PartitionGroup{own}
	for j := 1; j < len(own); j++ {
		header := ring[(idx-j+len(ring))%len(ring)]
		local = append(local, groups[header.ID])
	}
	return local
}

// PreviousNodeMap returns the previous header of every slot moved to node by
// its join. The map is empty for bootstrap nodes and unknown nodes.
func (t *SlotTable) PreviousNodeMap(node cluster.Node) map[int]cluster.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prev := t.previous[node.ID]
	other := make(map[int]cluster.Node, len(prev))
	for slot, n := range prev {
		other[slot] = n
	}
	return other
}

// LocalGroups returns every group the local node hosts a replica for. The
// group headed by the local node comes first.
func (t *SlotTable) LocalGroups() []cluster.PartitionGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]cluster.PartitionGroup(nil), t.localGroups...)
}

// HeaderGroup returns the group headed by header.
func (t *SlotTable) HeaderGroup(header cluster.Node) (cluster.PartitionGroup, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[header.ID]
	return g, ok
}

// NodeSlots returns the slots headed by header in ascending order.
func (t *SlotTable) NodeSlots(header cluster.Node) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]int(nil), t.nodeSlots[header.ID]...)
}

// AllNodeSlots returns the slots of every header.
func (t *SlotTable) AllNodeSlots() map[cluster.Node][]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := make(map[cluster.Node][]int, len(t.nodes))
	for _, n := range t.nodes {
		m[n] = append([]int(nil), t.nodeSlots[n.ID]...)
	}
	return m
}

// AllNodes returns the nodes of the table in join order.
func (t *SlotTable) AllNodes() []cluster.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]cluster.Node(nil), t.nodes...)
}

// TotalSlots returns the size of the slot keyspace.
func (t *SlotTable) TotalSlots() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSlots
}

// PartitionInterval returns the width of a time partition in timestamp units.
func (t *SlotTable) PartitionInterval() int64 {
	return t.interval
}

// Version returns the number of joins applied since bootstrap.
func (t *SlotTable) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// ThisNode returns the local node.
func (t *SlotTable) ThisNode() cluster.Node {
	return t.thisNode
}

// SlotCounts returns the number of slots per header, ordered by node ID.
func (t *SlotTable) SlotCounts() []SlotCount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make([]SlotCount, 0, len(t.ring))
	for _, n := range t.ring {
		counts = append(counts, SlotCount{Node: n, Slots: len(t.nodeSlots[n.ID])})
	}
	return counts
}

// SlotCount is the number of slots headed by a node.
type SlotCount struct {
	Node  cluster.Node
	Slots int
}
