package cluster_test

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/influxdb-cluster/cluster"
	itoml "github.com/influxdata/influxdb-cluster/toml"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestConfig_Parse(t *testing.T) {
	// Parse configuration.
	c := cluster.NewConfig()
	if _, err := toml.Decode(`
total-slots = 12
replication-factor = 3
partition-interval = "1s"
timestamp-precision = "ms"
`, &c); err != nil {
		t.Fatal(err)
	}

	// Validate configuration.
	require.NoError(t, c.Validate())
	require.Equal(t, 12, c.TotalSlots)
	require.Equal(t, 3, c.ReplicationFactor)
	require.Equal(t, time.Second, time.Duration(c.PartitionInterval))

	ticks, err := c.PartitionTicks()
	require.NoError(t, err)
	require.Equal(t, int64(1000), ticks)
}

func TestConfig_Defaults(t *testing.T) {
	c := cluster.NewConfig()
	require.NoError(t, c.Validate())

	ticks, err := c.PartitionTicks()
	require.NoError(t, err)
	require.Equal(t, int64(604800000), ticks)
}

func TestConfig_Validate(t *testing.T) {
	c := cluster.Config{
		TotalSlots:         0,
		ReplicationFactor:  -1,
		PartitionInterval:  itoml.Duration(time.Microsecond),
		TimestampPrecision: itoml.Millisecond,
	}
	err := c.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)

	c = cluster.NewConfig()
	c.TimestampPrecision = "fortnight"
	require.Error(t, c.Validate())
}
