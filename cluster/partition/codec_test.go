package partition_test

import (
	"testing"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSlotTable_MarshalRoundTrip(t *testing.T) {
	src := MustNewSlotTable(t, testConfig(97, 3), node(1), node(3), node(1), node(2))
	src.AddNode(node(8))
	src.AddNode(node(4))

	buf, err := src.MarshalBinary()
	require.NoError(t, err)

	// A joining node starts from an empty table and may have been configured
	// differently; the encoded table wins.
	dst, err := partition.NewEmptySlotTable(testConfig(12, 2), node(4))
	require.NoError(t, err)
	require.NoError(t, dst.UnmarshalBinary(buf))

	require.Equal(t, 97, dst.TotalSlots())
	require.Equal(t, src.AllNodes(), dst.AllNodes())
	require.Equal(t, src.Version(), dst.Version())
	for s := 0; s < 97; s++ {
		require.True(t, src.RouteSlot(s).Equal(dst.RouteSlot(s)), "slot %d", s)
	}
	for _, n := range src.AllNodes() {
		require.Equal(t, src.PreviousNodeMap(n), dst.PreviousNodeMap(n))
	}
	require.Equal(t, cluster.PartitionGroup{node(4), node(8), node(1)}, dst.LocalGroups()[0])

	again, err := dst.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, buf, again)
}

func TestSlotTable_UnmarshalThenJoin(t *testing.T) {
	a := MustNewSlotTable(t, testConfig(50, 2), node(1), node(1), node(2))
	buf, err := a.MarshalBinary()
	require.NoError(t, err)

	b, err := partition.NewEmptySlotTable(testConfig(50, 2), node(2))
	require.NoError(t, err)
	require.NoError(t, b.UnmarshalBinary(buf))

	// Replaying the same join on both copies keeps them identical.
	require.Equal(t, a.AddNode(node(3)), b.AddNode(node(3)))
	bufA, err := a.MarshalBinary()
	require.NoError(t, err)
	bufB, err := b.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, bufA, bufB)
}

func TestSlotTable_UnmarshalBinary_Errors(t *testing.T) {
	src := MustNewSlotTable(t, testConfig(8, 2), node(1), node(1), node(2))
	src.AddNode(node(3))
	good, err := src.MarshalBinary()
	require.NoError(t, err)

	withField := func(num protowire.Number, v uint64) []byte {
		b := append([]byte(nil), good...)
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, v)
	}

	for name, buf := range map[string][]byte{
		"truncated":       good[:len(good)-1],
		"zero slots":      withField(1, 0),
		"slot mismatch":   withField(1, 9),
		"zero replicas":   withField(2, 0),
		"garbage":         {0xff, 0xff, 0xff},
		"no nodes":        protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 8),
		"bad owner index": appendOwners(good, 7),
	} {
		t.Run(name, func(t *testing.T) {
			dst, err := partition.NewEmptySlotTable(testConfig(8, 2), node(1))
			require.NoError(t, err)
			require.Error(t, dst.UnmarshalBinary(buf))
			require.Panics(t, func() { dst.RouteSlot(0) }, "table must stay uninitialized")
		})
	}
}

// appendOwners appends an extra slot owner entry pointing at node index idx.
func appendOwners(b []byte, idx uint64) []byte {
	b = append([]byte(nil), b...)
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	return protowire.AppendBytes(b, protowire.AppendVarint(nil, idx))
}

func TestSlotTable_UnmarshalBinary_SkipsUnknownFields(t *testing.T) {
	src := MustNewSlotTable(t, testConfig(8, 2), node(1), node(1), node(2))
	buf, err := src.MarshalBinary()
	require.NoError(t, err)

	buf = protowire.AppendTag(buf, 99, protowire.BytesType)
	buf = protowire.AppendString(buf, "future field")

	dst, err := partition.NewEmptySlotTable(testConfig(8, 2), node(1))
	require.NoError(t, err)
	require.NoError(t, dst.UnmarshalBinary(buf))
	require.Equal(t, src.AllNodes(), dst.AllNodes())
}
