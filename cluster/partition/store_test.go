package partition_test

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partition.db")
	s := partition.NewStore(path)
	require.NoError(t, s.Open())
	defer s.Close()

	table := MustNewSlotTable(t, testConfig(32, 2), node(1), node(1), node(2))
	require.NoError(t, s.Save(table))
	table.AddNode(node(3))
	require.NoError(t, s.Save(table))

	versions, err := s.Versions()
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, versions)
	require.NoError(t, s.Close())

	// Reopen and load the latest snapshot.
	s = partition.NewStore(path)
	require.NoError(t, s.Open())
	defer s.Close()
	loaded, err := partition.NewEmptySlotTable(testConfig(32, 2), node(3))
	require.NoError(t, err)
	ok, err := s.Load(loaded)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint64(1), loaded.Version())
	require.Equal(t, table.AllNodes(), loaded.AllNodes())
	for slot := 0; slot < 32; slot++ {
		require.True(t, table.RouteSlot(slot).Equal(loaded.RouteSlot(slot)))
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := partition.NewStore(filepath.Join(t.TempDir(), "partition.db"))
	require.NoError(t, s.Open())
	defer s.Close()

	table, err := partition.NewEmptySlotTable(testConfig(32, 2), node(1))
	require.NoError(t, err)
	ok, err := s.Load(table)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_Closed(t *testing.T) {
	s := partition.NewStore(filepath.Join(t.TempDir(), "partition.db"))
	table := MustNewSlotTable(t, testConfig(32, 2), node(1), node(1))

	require.Equal(t, partition.ErrStoreClosed, s.Save(table))
	_, err := s.Load(table)
	require.Equal(t, partition.ErrStoreClosed, err)
	_, err = s.Versions()
	require.Equal(t, partition.ErrStoreClosed, err)
	require.NoError(t, s.Close())
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partition.db")
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("partition_table"))
		if err != nil {
			return err
		}
		return b.Put([]byte{0, 0, 0, 0, 0, 0, 0, 7}, []byte("not a snapshot"))
	}))
	require.NoError(t, db.Close())

	s := partition.NewStore(path)
	require.NoError(t, s.Open())
	defer s.Close()

	table, err := partition.NewEmptySlotTable(testConfig(32, 2), node(1))
	require.NoError(t, err)
	_, err = s.Load(table)
	require.Error(t, err)
}

func TestStore_SaveDuringJoins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partition.db")
	s := partition.NewStore(path)
	require.NoError(t, s.Open())

	table := MustNewSlotTable(t, testConfig(256, 3), node(1), node(1))
	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		for id := uint64(2); id < 30; id++ {
			table.AddNode(node(id))
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-done:
				return s.Save(table)
			default:
			}
			if err := s.Save(table); err != nil {
				return err
			}
		}
	})
	require.NoError(t, g.Wait())
	require.NoError(t, s.Close())

	// Every snapshot must hold the state of the version it is keyed by.
	db, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("partition_table")).ForEach(func(k, v []byte) error {
			buf, err := snappy.Decode(nil, v)
			require.NoError(t, err)
			decoded, err := partition.NewEmptySlotTable(testConfig(256, 3), node(1))
			require.NoError(t, err)
			require.NoError(t, decoded.UnmarshalBinary(buf))
			require.Equal(t, binary.BigEndian.Uint64(k), decoded.Version())
			require.Len(t, decoded.AllNodes(), int(decoded.Version())+1)
			return nil
		})
	}))
}
