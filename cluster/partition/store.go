package partition

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var snapshotBucket = []byte("partition_table")

// ErrStoreClosed is returned when using a store that is not open.
var ErrStoreClosed = errors.New("snapshot store is closed")

// Store persists encoded partition tables in a bolt database. Each snapshot
// is snappy compressed and keyed by the table version, so the history of
// joins is kept.
type Store struct {
	Path   string
	Logger *zap.Logger

	db *bolt.DB
}

// NewStore returns a new Store for the file at path.
func NewStore(path string) *Store {
	return &Store{
		Path:   path,
		Logger: zap.NewNop(),
	}
}

// Open opens or creates the bolt file.
func (s *Store) Open() error {
	if _, err := os.Stat(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}

	db, err := bolt.Open(s.Path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return errors.Wrapf(err, "open snapshot store %s", s.Path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	}); err != nil {
		db.Close()
		return errors.Wrap(err, "create snapshot bucket")
	}
	s.db = db
	return nil
}

// Close closes the bolt file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save stores the current state of t under its version, replacing any
// snapshot of the same version.
func (s *Store) Save(t *SlotTable) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	buf, version, err := t.marshal()
	if err != nil {
		return errors.Wrap(err, "encode partition table")
	}
	compressed := snappy.Encode(nil, buf)

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put(versionKey(version), compressed)
	}); err != nil {
		return errors.Wrapf(err, "save snapshot %d", version)
	}
	s.Logger.Debug("Saved partition table snapshot",
		zap.Uint64("version", version),
		zap.Int("bytes", len(buf)),
		zap.Int("compressed_bytes", len(compressed)))
	return nil
}

// Load replaces the state of t with the latest snapshot. It returns false if
// the store holds no snapshot.
func (s *Store) Load(t *SlotTable) (bool, error) {
	if s.db == nil {
		return false, ErrStoreClosed
	}

	var buf []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(snapshotBucket).Cursor().Last()
		if v == nil {
			return nil
		}
		var err error
		if buf, err = snappy.Decode(nil, v); err != nil {
			return errors.Wrapf(err, "decompress snapshot %d", binary.BigEndian.Uint64(k))
		}
		return nil
	}); err != nil {
		return false, err
	}
	if buf == nil {
		return false, nil
	}
	if err := t.UnmarshalBinary(buf); err != nil {
		return false, errors.Wrap(err, "decode partition table")
	}
	return true, nil
}

// Versions returns the versions of all stored snapshots in ascending order.
func (s *Store) Versions() ([]uint64, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	var versions []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).ForEach(func(k, _ []byte) error {
			versions = append(versions, binary.BigEndian.Uint64(k))
			return nil
		})
	})
	return versions, err
}

func versionKey(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
