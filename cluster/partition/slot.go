// Package partition maps storage groups and time partitions onto slots, and
// slots onto replica groups of cluster nodes.
//
// Every node computes the same mapping independently: the slot function is a
// pure hash of the storage group name and the time partition index, and the
// slot table is mutated only by replaying node joins in the same order.
package partition

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// SlotOf returns the slot owning timestamp of storageGroup. Timestamps are
// grouped into partitions of width interval; all timestamps of one partition
// share a slot. Operations that are not time scoped use timestamp 0.
func SlotOf(storageGroup string, timestamp, interval int64, totalSlots int) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(PartitionIndex(timestamp, interval)))

	d := xxhash.New()
	_, _ = d.WriteString(storageGroup)
	_, _ = d.Write(buf[:])
	return int(d.Sum64() % uint64(totalSlots))
}

// PartitionIndex returns floor(timestamp / interval).
func PartitionIndex(timestamp, interval int64) int64 {
	q := timestamp / interval
	if timestamp%interval != 0 && timestamp < 0 {
		q--
	}
	return q
}

// PartitionStart returns the first timestamp of the partition containing timestamp.
func PartitionStart(timestamp, interval int64) int64 {
	return PartitionIndex(timestamp, interval) * interval
}
