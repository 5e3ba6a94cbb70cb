package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
[cluster]
  total-slots = 12
  replication-factor = 2
  partition-interval = "1s"
  timestamp-precision = "ms"

[meta]
  storage-groups = ["root.sg1"]

[logging]
  format = "logfmt"
  level = "debug"
`

type testTool struct {
	t        *testing.T
	config   string
	snapshot string
}

func newTestTool(t *testing.T) *testTool {
	dir := t.TempDir()
	config := filepath.Join(dir, "nodetool.toml")
	require.NoError(t, os.WriteFile(config, []byte(testConfig), 0600))
	return &testTool{t: t, config: config, snapshot: filepath.Join(dir, "partition.db")}
}

// Run executes nodetool with args and returns its standard output.
func (tt *testTool) Run(args ...string) (string, error) {
	tt.t.Helper()
	var stdout, stderr bytes.Buffer
	cmd, err := NewCommand(&stdout, &stderr)
	require.NoError(tt.t, err)

	args = append(args, "--config", tt.config, "--snapshot", tt.snapshot)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return stdout.String(), err
}

func (tt *testTool) MustRun(args ...string) string {
	tt.t.Helper()
	out, err := tt.Run(args...)
	require.NoError(tt.t, err)
	return out
}

func TestNodetool(t *testing.T) {
	tt := newTestTool(t)

	_, err := tt.Run("slots")
	require.Error(t, err)
	require.Contains(t, err.Error(), "run init first")

	out := tt.MustRun("init", "--node", "1@db1:9001:40001:6661", "--node", "2@db2:9002:40002:6662", "--node", "3@db3:9003:40003:6663")
	require.Equal(t, "initialized 12 slots over 3 nodes (replication factor 2)\n", out)

	_, err = tt.Run("init", "--node", "1@db1")
	require.Error(t, err)

	out = tt.MustRun("join", "--node", "4@db4:9004:40004:6664")
	require.Contains(t, out, "node 4 joined at version 1, group [4,1], 3 slots migrated")
	require.Contains(t, out, "1@db1:9001:40001:6661")
	require.Contains(t, out, "3@db3:9003:40003:6663")

	out = tt.MustRun("join", "--node", "4@db4:9004:40004:6664")
	require.Equal(t, "node 4 already joined, group [4,1]\n", out)

	out = tt.MustRun("slots", "--node-id", "1")
	require.Contains(t, out, "version 1, 12 slots, interval 1000")
	require.Contains(t, out, "4@db4:9004:40004:6664")
	require.Contains(t, out, "local groups of node 1: [[1,2] [4,1]]")

	out = tt.MustRun("slots", "--tree")
	require.Contains(t, out, "group [4,1] (3 slots)")
	require.Contains(t, out, "group [1,2] (3 slots)")

	out = tt.MustRun("route", "--path", "root.sg1.d1.s1", "--path", "root.sg2.d1.s1",
		"--storage-group", "root.sg2", "--start", "500", "--end", "2600")
	require.Equal(t, 3, strings.Count(out, "root.sg1.d1.s1"))
	require.Equal(t, 3, strings.Count(out, "root.sg2.d1.s1"))
	require.Contains(t, out, "1000")
	require.Contains(t, out, "1999")

	_, err = tt.Run("route", "--path", "root.sg1.d1.s1", "--start", "500", "--end", "2600", "--max-partitions", "3")
	require.NoError(t, err)
	_, err = tt.Run("route", "--path", "root.sg1.d1.s1", "--start", "500", "--end", "2600", "--max-partitions", "2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "spans more than 2 partitions")
	_, err = tt.Run("route", "--path", "root.sg1.d1.s1", "--start", "0", "--end", "9223372036854775807")
	require.Error(t, err)
	require.Contains(t, err.Error(), "spans more than 10000 partitions")

	_, err = tt.Run("route", "--path", "root.sg3.d1.s1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage group is not set")
}

func TestParseConfigFile(t *testing.T) {
	tt := newTestTool(t)
	c, err := ParseConfigFile(tt.config)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, 12, c.Cluster.TotalSlots)
	require.Equal(t, []string{"root.sg1"}, c.Meta.StorageGroups)
	require.Equal(t, "logfmt", c.Logging.Format)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[cluster]\ntotal-slots = 0\n"), 0600))
	c, err = ParseConfigFile(bad)
	require.NoError(t, err)
	require.Error(t, c.Validate())
}
