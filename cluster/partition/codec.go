package partition

import (
	"sort"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the encoded table. The encoding is a protobuf message so
// that other implementations can read it with a generated decoder:
//
//	message Table {
//	  uint64 total_slots = 1;
//	  uint64 replication_factor = 2;
//	  uint64 version = 3;
//	  repeated Node nodes = 4;             // join order
//	  repeated uint64 slot_owners = 5;     // packed, index into nodes
//	  repeated PreviousOwners previous = 6;
//	}
//	message Node {
//	  uint64 id = 1; string host = 2;
//	  uint64 meta_port = 3; uint64 data_port = 4; uint64 client_port = 5;
//	}
//	message PreviousOwners {
//	  uint64 node = 1;                     // index into nodes
//	  repeated uint64 slots = 2;           // packed
//	  repeated uint64 owners = 3;          // packed, index into nodes
//	}
const (
	tableTotalSlotsField        protowire.Number = 1
	tableReplicationFactorField protowire.Number = 2
	tableVersionField           protowire.Number = 3
	tableNodesField             protowire.Number = 4
	tableSlotOwnersField        protowire.Number = 5
	tablePreviousField          protowire.Number = 6

	nodeIDField         protowire.Number = 1
	nodeHostField       protowire.Number = 2
	nodeMetaPortField   protowire.Number = 3
	nodeDataPortField   protowire.Number = 4
	nodeClientPortField protowire.Number = 5

	previousNodeField   protowire.Number = 1
	previousSlotsField  protowire.Number = 2
	previousOwnersField protowire.Number = 3
)

// MarshalBinary encodes the table. The output is deterministic for a given
// table state.
func (t *SlotTable) MarshalBinary() ([]byte, error) {
	b, _, err := t.marshal()
	return b, err
}

// marshal encodes the table and returns the version of the encoded state.
func (t *SlotTable) marshal() ([]byte, uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.mustBeInitialized()

	index := make(map[uint64]uint64, len(t.nodes))
	for i, n := range t.nodes {
		index[n.ID] = uint64(i)
	}

	var b []byte
	b = protowire.AppendTag(b, tableTotalSlotsField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.totalSlots))
	b = protowire.AppendTag(b, tableReplicationFactorField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.replicationFactor))
	b = protowire.AppendTag(b, tableVersionField, protowire.VarintType)
	b = protowire.AppendVarint(b, t.version)

	for _, n := range t.nodes {
		b = protowire.AppendTag(b, tableNodesField, protowire.BytesType)
		b = protowire.AppendBytes(b, appendNode(nil, n))
	}

	var owners []byte
	for _, n := range t.owners {
		owners = protowire.AppendVarint(owners, index[n.ID])
	}
	b = protowire.AppendTag(b, tableSlotOwnersField, protowire.BytesType)
	b = protowire.AppendBytes(b, owners)

	for _, n := range t.nodes {
		prev := t.previous[n.ID]
		if len(prev) == 0 {
			continue
		}
		slots := make([]int, 0, len(prev))
		for slot := range prev {
			slots = append(slots, slot)
		}
		sort.Ints(slots)

		var packedSlots, packedOwners []byte
		for _, slot := range slots {
			packedSlots = protowire.AppendVarint(packedSlots, uint64(slot))
			packedOwners = protowire.AppendVarint(packedOwners, index[prev[slot].ID])
		}

		var m []byte
		m = protowire.AppendTag(m, previousNodeField, protowire.VarintType)
		m = protowire.AppendVarint(m, index[n.ID])
		m = protowire.AppendTag(m, previousSlotsField, protowire.BytesType)
		m = protowire.AppendBytes(m, packedSlots)
		m = protowire.AppendTag(m, previousOwnersField, protowire.BytesType)
		m = protowire.AppendBytes(m, packedOwners)

		b = protowire.AppendTag(b, tablePreviousField, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b, t.version, nil
}

func appendNode(b []byte, n cluster.Node) []byte {
	b = protowire.AppendTag(b, nodeIDField, protowire.VarintType)
	b = protowire.AppendVarint(b, n.ID)
	b = protowire.AppendTag(b, nodeHostField, protowire.BytesType)
	b = protowire.AppendString(b, n.Host)
	b = protowire.AppendTag(b, nodeMetaPortField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(n.MetaPort))
	b = protowire.AppendTag(b, nodeDataPortField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(n.DataPort))
	b = protowire.AppendTag(b, nodeClientPortField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(n.ClientPort))
	return b
}

// UnmarshalBinary replaces the state of the table with the decoded table. The
// slot count and replication factor of the encoded table take precedence over
// the local configuration. The table is left unchanged on error.
func (t *SlotTable) UnmarshalBinary(data []byte) error {
	d, err := decodeTable(data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalSlots != d.totalSlots || t.replicationFactor != d.replicationFactor {
		t.Logger.Warn("Decoded partition table differs from local configuration",
			zap.Int("local_slots", t.totalSlots),
			zap.Int("decoded_slots", d.totalSlots),
			zap.Int("local_replication_factor", t.replicationFactor),
			zap.Int("decoded_replication_factor", d.replicationFactor))
	}
	t.totalSlots = d.totalSlots
	t.replicationFactor = d.replicationFactor
	t.version = d.version
	t.nodes = d.nodes
	t.owners = d.owners
	t.previous = d.previous
	t.rebuild()
	return nil
}

type tableData struct {
	totalSlots        int
	replicationFactor int
	version           uint64
	nodes             cluster.Nodes
	owners            []cluster.Node
	previous          map[uint64]map[int]cluster.Node
}

type previousOwners struct {
	node   uint64
	slots  []uint64
	owners []uint64
}

func decodeTable(b []byte) (*tableData, error) {
	d := &tableData{previous: make(map[uint64]map[int]cluster.Node)}
	var ownerIdx []uint64
	var prevs []previousOwners

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "decode table tag")
		}
		b = b[n:]

		switch {
		case num == tableTotalSlotsField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode total slots")
			}
			d.totalSlots = int(v)
			b = b[n:]
		case num == tableReplicationFactorField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode replication factor")
			}
			d.replicationFactor = int(v)
			b = b[n:]
		case num == tableVersionField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode version")
			}
			d.version = v
			b = b[n:]
		case num == tableNodesField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode node")
			}
			node, err := decodeNode(v)
			if err != nil {
				return nil, err
			}
			d.nodes = append(d.nodes, node)
			b = b[n:]
		case num == tableSlotOwnersField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode slot owners")
			}
			packed, err := decodePacked(v)
			if err != nil {
				return nil, errors.Wrap(err, "decode slot owners")
			}
			ownerIdx = append(ownerIdx, packed...)
			b = b[n:]
		case num == tablePreviousField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "decode previous owners")
			}
			p, err := decodePreviousOwners(v)
			if err != nil {
				return nil, err
			}
			prevs = append(prevs, p)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "skip field %d", num)
			}
			b = b[n:]
		}
	}

	if d.totalSlots <= 0 {
		return nil, errors.Errorf("invalid total slots %d", d.totalSlots)
	}
	if d.replicationFactor <= 0 {
		return nil, errors.Errorf("invalid replication factor %d", d.replicationFactor)
	}
	if len(d.nodes) == 0 {
		return nil, ErrNoNodes
	}
	seen := make(map[uint64]struct{}, len(d.nodes))
	for _, n := range d.nodes {
		if _, ok := seen[n.ID]; ok {
			return nil, errors.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	nodeAt := func(i uint64) (cluster.Node, error) {
		if i >= uint64(len(d.nodes)) {
			return cluster.Node{}, errors.Errorf("node index %d out of range [0, %d)", i, len(d.nodes))
		}
		return d.nodes[i], nil
	}

	if len(ownerIdx) != d.totalSlots {
		return nil, errors.Errorf("table has %d slot owners, expected %d", len(ownerIdx), d.totalSlots)
	}
	d.owners = make([]cluster.Node, d.totalSlots)
	for slot, i := range ownerIdx {
		owner, err := nodeAt(i)
		if err != nil {
			return nil, errors.Wrapf(err, "slot %d", slot)
		}
		d.owners[slot] = owner
	}

	for _, p := range prevs {
		node, err := nodeAt(p.node)
		if err != nil {
			return nil, errors.Wrap(err, "previous owners")
		}
		if len(p.slots) != len(p.owners) {
			return nil, errors.Errorf("previous owners of node %d: %d slots but %d owners", node.ID, len(p.slots), len(p.owners))
		}
		m := make(map[int]cluster.Node, len(p.slots))
		for i, slot := range p.slots {
			if slot >= uint64(d.totalSlots) {
				return nil, errors.Errorf("previous owners of node %d: slot %d out of range", node.ID, slot)
			}
			owner, err := nodeAt(p.owners[i])
			if err != nil {
				return nil, errors.Wrapf(err, "previous owner of slot %d", slot)
			}
			m[int(slot)] = owner
		}
		d.previous[node.ID] = m
	}
	return d, nil
}

func decodeNode(b []byte) (cluster.Node, error) {
	var node cluster.Node
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return node, errors.Wrap(protowire.ParseError(n), "decode node tag")
		}
		b = b[n:]

		if num == nodeHostField && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return node, errors.Wrap(protowire.ParseError(n), "decode node host")
			}
			node.Host = v
			b = b[n:]
			continue
		}
		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return node, errors.Wrapf(protowire.ParseError(n), "skip node field %d", num)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return node, errors.Wrapf(protowire.ParseError(n), "decode node field %d", num)
		}
		b = b[n:]
		switch num {
		case nodeIDField:
			node.ID = v
		case nodeMetaPortField:
			node.MetaPort = int(v)
		case nodeDataPortField:
			node.DataPort = int(v)
		case nodeClientPortField:
			node.ClientPort = int(v)
		}
	}
	return node, nil
}

func decodePreviousOwners(b []byte) (previousOwners, error) {
	var p previousOwners
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, errors.Wrap(protowire.ParseError(n), "decode previous owners tag")
		}
		b = b[n:]

		switch {
		case num == previousNodeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, errors.Wrap(protowire.ParseError(n), "decode previous owners node")
			}
			p.node = v
			b = b[n:]
		case (num == previousSlotsField || num == previousOwnersField) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return p, errors.Wrap(protowire.ParseError(n), "decode previous owners list")
			}
			packed, err := decodePacked(v)
			if err != nil {
				return p, errors.Wrap(err, "decode previous owners list")
			}
			if num == previousSlotsField {
				p.slots = append(p.slots, packed...)
			} else {
				p.owners = append(p.owners, packed...)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, errors.Wrapf(protowire.ParseError(n), "skip previous owners field %d", num)
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodePacked(b []byte) ([]uint64, error) {
	var vs []uint64
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vs = append(vs, v)
		b = b[n:]
	}
	return vs, nil
}
