package partition

import (
	"github.com/influxdata/influxdb-cluster/cluster"
)

// allocateSlots hands slots of the existing headers to node until node owns
// len(owners)/(len(nodes)+1) of them, updating owners in place. Each step takes
// the smallest slot of the header owning the most slots, breaking ties by the
// smallest node ID, so every node replaying the same joins ends up with the
// same table. It returns the previous header of every moved slot.
func allocateSlots(owners []cluster.Node, nodes cluster.Nodes, node cluster.Node) map[int]cluster.Node {
	moved := make(map[int]cluster.Node)
	target := len(owners) / (len(nodes) + 1)
	if target == 0 {
		return moved
	}

	// Slots per header in ascending order; next[i] is the first slot of
	// donors[i] that has not been given away yet.
	donors := nodes.SortedByID()
	index := make(map[uint64]int, len(donors))
	for i, n := range donors {
		index[n.ID] = i
	}
	slots := make([][]int, len(donors))
	for slot, owner := range owners {
		i := index[owner.ID]
		slots[i] = append(slots[i], slot)
	}
	next := make([]int, len(donors))

	for len(moved) < target {
		donor := -1
		for i := range donors {
			remaining := len(slots[i]) - next[i]
			if donor < 0 || remaining > len(slots[donor])-next[donor] {
				donor = i
			}
		}

		slot := slots[donor][next[donor]]
		next[donor]++
		moved[slot] = donors[donor]
		owners[slot] = node
	}
	return moved
}

// buildGroups returns the group of every node in ring: the node followed by
// its successors in ring order, wrapping around, up to replicationFactor
// members.
func buildGroups(ring cluster.Nodes, replicationFactor int) map[uint64]cluster.PartitionGroup {
	size := replicationFactor
	if size > len(ring) {
		size = len(ring)
	}

	groups := make(map[uint64]cluster.PartitionGroup, len(ring))
	for i, header := range ring {
		g := make(cluster.PartitionGroup, size)
		for j := range g {
			g[j] = ring[(i+j)%len(ring)]
		}
		groups[header.ID] = g
	}
	return groups
}
