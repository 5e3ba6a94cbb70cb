// Package meta keeps the storage group tree used to resolve time series
// paths to storage groups.
package meta

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/influxdata/influxdb-cluster/cluster"
	"go.uber.org/zap"
)

var (
	// ErrStorageGroupExists is returned when creating an existing storage group.
	ErrStorageGroupExists = errors.New("storage group already exists")

	// ErrNestedStorageGroup is returned when a storage group would contain,
	// or be contained by, another storage group.
	ErrNestedStorageGroup = errors.New("storage groups may not be nested")
)

const (
	pathSeparator = "."
	rootLevel     = "root"
	wildcard      = "*"
)

// Manager is an in-memory registry of storage groups. Paths are dot
// separated and start with "root"; a storage group is a path with at least
// one level below root.
type Manager struct {
	mu            sync.RWMutex
	storageGroups *btree.BTree

	Logger *zap.Logger
}

// NewManager returns a manager without storage groups.
func NewManager() *Manager {
	return &Manager{
		storageGroups: btree.New(2),
		Logger:        zap.NewNop(),
	}
}

// WithLogger sets the logger on the manager.
func (m *Manager) WithLogger(log *zap.Logger) {
	m.Logger = log.With(zap.String("service", "meta"))
}

// Open creates the storage groups listed in c. The manager stops logging
// when c disables it.
func (m *Manager) Open(c *Config) error {
	if !c.LoggingEnabled {
		m.Logger = zap.NewNop()
	}
	for _, sg := range c.StorageGroups {
		if err := m.SetStorageGroup(sg); err != nil && err != ErrStorageGroupExists {
			return err
		}
	}
	return nil
}

// SetStorageGroup creates the storage group path.
func (m *Manager) SetStorageGroup(path string) error {
	levels, err := parseStorageGroup(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storageGroups.Has(&storageGroup{path: path}) {
		return ErrStorageGroupExists
	}
	if _, ok := m.ancestor(levels[:len(levels)-1]); ok {
		return ErrNestedStorageGroup
	}
	// Descendants of path sort right after path + ".".
	nested := false
	prefix := path + pathSeparator
	m.storageGroups.AscendGreaterOrEqual(&storageGroup{path: prefix}, func(i btree.Item) bool {
		nested = strings.HasPrefix(i.(*storageGroup).path, prefix)
		return false
	})
	if nested {
		return ErrNestedStorageGroup
	}
	m.storageGroups.ReplaceOrInsert(&storageGroup{path: path, levels: levels})
	m.Logger.Info("Created storage group", zap.String("storage_group", path))
	return nil
}

// StorageGroups returns the storage groups in lexical order.
func (m *Manager) StorageGroups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sgs := make([]string, 0, m.storageGroups.Len())
	m.storageGroups.Ascend(func(i btree.Item) bool {
		sgs = append(sgs, i.(*storageGroup).path)
		return true
	})
	return sgs
}

// StorageGroupOf returns the storage group containing path.
func (m *Manager) StorageGroupOf(path string) (string, error) {
	levels, err := parsePath(path)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if sg, ok := m.ancestor(levels); ok {
		return sg, nil
	}
	return "", cluster.NewStorageGroupNotSetError(path)
}

// ancestor returns the storage group that is levels or one of its prefixes.
// The caller must hold the lock.
func (m *Manager) ancestor(levels []string) (string, bool) {
	for i := 2; i <= len(levels); i++ {
		sg := strings.Join(levels[:i], pathSeparator)
		if m.storageGroups.Has(&storageGroup{path: sg}) {
			return sg, true
		}
	}
	return "", false
}

// DetermineStorageGroup returns every storage group matched by path, mapped
// to the concrete path below it. A "*" level matches any single level; a
// trailing "*" also matches any number of deeper levels, and a storage group
// reached through it maps to the storage group followed by ".*".
//
// For example with storage groups root.sg1 and root.sg2, "root.*.d1" maps
// to {root.sg1: root.sg1.d1, root.sg2: root.sg2.d1} and "root.*" to
// {root.sg1: root.sg1.*, root.sg2: root.sg2.*}.
func (m *Manager) DetermineStorageGroup(path string) (map[string]string, error) {
	levels, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make(map[string]string)
	m.storageGroups.Ascend(func(i btree.Item) bool {
		sg := i.(*storageGroup)
		if concrete, ok := match(levels, sg.path, sg.levels); ok {
			matches[sg.path] = concrete
		}
		return true
	})
	return matches, nil
}

// storageGroup is a btree item ordered by path.
type storageGroup struct {
	path   string
	levels []string
}

// Less is used to implement btree.Item.
func (sg *storageGroup) Less(b btree.Item) bool {
	return sg.path < b.(*storageGroup).path
}

func match(levels []string, sg string, sgLevels []string) (string, bool) {
	for i, l := range sgLevels {
		if i >= len(levels) {
			return "", false
		}
		switch {
		case levels[i] == wildcard && i == len(levels)-1:
			return sg + pathSeparator + wildcard, true
		case levels[i] == wildcard, levels[i] == l:
		default:
			return "", false
		}
	}
	if rest := levels[len(sgLevels):]; len(rest) > 0 {
		return sg + pathSeparator + strings.Join(rest, pathSeparator), true
	}
	return sg, true
}

func parsePath(path string) ([]string, error) {
	levels := strings.Split(path, pathSeparator)
	if levels[0] != rootLevel {
		return nil, cluster.NewIllegalPathError(path)
	}
	for _, l := range levels {
		if l == "" {
			return nil, cluster.NewIllegalPathError(path)
		}
	}
	return levels, nil
}

func parseStorageGroup(path string) ([]string, error) {
	levels, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if len(levels) < 2 {
		return nil, cluster.NewIllegalPathError(path)
	}
	for _, l := range levels {
		if l == wildcard {
			return nil, cluster.NewIllegalPathError(path)
		}
	}
	return levels, nil
}
