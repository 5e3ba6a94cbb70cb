package cluster

import (
	"errors"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-cluster/toml"
	"go.uber.org/multierr"
)

const (
	// DefaultTotalSlots is the default number of slots in the partition keyspace.
	DefaultTotalSlots = 10000

	// DefaultReplicationFactor is the default number of nodes in a partition group.
	DefaultReplicationFactor = 2

	// DefaultPartitionInterval is the default width of a time partition.
	DefaultPartitionInterval = 7 * 24 * time.Hour

	// DefaultTimestampPrecision is the default unit of stored timestamps.
	DefaultTimestampPrecision = toml.Millisecond
)

// Config represents the configuration of the partition table. It is read once
// when the cluster is bootstrapped; the slot count must never change for the
// lifetime of the cluster.
type Config struct {
	TotalSlots         int            `toml:"total-slots"`
	ReplicationFactor  int            `toml:"replication-factor"`
	PartitionInterval  toml.Duration  `toml:"partition-interval"`
	TimestampPrecision toml.Precision `toml:"timestamp-precision"`
}

// NewConfig returns an instance of Config with defaults.
func NewConfig() Config {
	return Config{
		TotalSlots:         DefaultTotalSlots,
		ReplicationFactor:  DefaultReplicationFactor,
		PartitionInterval:  toml.Duration(DefaultPartitionInterval),
		TimestampPrecision: DefaultTimestampPrecision,
	}
}

// Validate returns an error if the config is invalid.
func (c Config) Validate() error {
	var err error
	if c.TotalSlots <= 0 {
		err = multierr.Append(err, errors.New("total-slots must be positive"))
	}
	if c.ReplicationFactor <= 0 {
		err = multierr.Append(err, errors.New("replication-factor must be positive"))
	}
	if interval, e := c.PartitionTicks(); e != nil {
		err = multierr.Append(err, e)
	} else if interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("partition-interval %s is shorter than one %s tick", c.PartitionInterval, c.TimestampPrecision))
	}
	return err
}

// PartitionTicks returns the time partition width in timestamp units.
func (c Config) PartitionTicks() (int64, error) {
	return c.TimestampPrecision.Ticks(c.PartitionInterval)
}
