// Command nodetool inspects and modifies partition table snapshots.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/influxdata/influxdb-cluster/kit/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cmd, err := NewCommand(os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand returns the nodetool command writing results to stdout and
// logs to stderr.
func NewCommand(stdout, stderr io.Writer) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:          "nodetool",
		Short:        "Inspect and modify partition table snapshots",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	for _, build := range []func(*tool) (*cobra.Command, error){
		newInitCommand,
		newJoinCommand,
		newSlotsCommand,
		newRouteCommand,
	} {
		t := &tool{Stdout: stdout, Stderr: stderr, v: viper.New()}
		cmd, err := build(t)
		if err != nil {
			return nil, err
		}
		root.AddCommand(cmd)
	}
	return root, nil
}

// tool holds what every nodetool subcommand shares.
type tool struct {
	Stdout io.Writer
	Stderr io.Writer

	configPath   string
	snapshotPath string
	nodeID       uint64
	logLevel     zapcore.Level

	v      *viper.Viper
	config *Config
	logger *zap.Logger
}

func (t *tool) program(name, short string, run func(args []string) error, opts ...cli.Opt) *cli.Program {
	return &cli.Program{
		Name:      name,
		Short:     short,
		EnvPrefix: "nodetool",
		Run: func(args []string) error {
			if err := t.setup(); err != nil {
				return err
			}
			defer t.logger.Sync()
			return run(args)
		},
		Opts: append([]cli.Opt{
			cli.NewOpt(&t.configPath, "config", "", "path to the TOML configuration file"),
			cli.NewOpt(&t.snapshotPath, "snapshot", "partition.db", "path to the partition table snapshot store"),
			cli.NewOpt(&t.nodeID, "node-id", uint64(0), "id of the local node"),
			cli.NewOpt(&t.logLevel, "log-level", zapcore.InfoLevel, "log level, overrides the configuration"),
		}, opts...),
	}
}

func (t *tool) setup() error {
	config := NewConfig()
	if t.configPath != "" {
		c, err := ParseConfigFile(t.configPath)
		if err != nil {
			return err
		}
		config = c
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if t.v.IsSet("log-level") {
		config.Logging.Level = t.logLevel
	}

	log, err := config.Logging.New(t.Stderr)
	if err != nil {
		return err
	}
	t.config = config
	t.logger = log
	return nil
}

func (t *tool) openStore() (*partition.Store, error) {
	store := partition.NewStore(t.snapshotPath)
	store.Logger = t.logger
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// loadTable reads the latest snapshot of store.
func (t *tool) loadTable(store *partition.Store) (*partition.SlotTable, error) {
	table, err := partition.NewEmptySlotTable(t.config.Cluster, cluster.Node{ID: t.nodeID})
	if err != nil {
		return nil, err
	}
	table.WithLogger(t.logger)

	ok, err := store.Load(table)
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Errorf("snapshot store %s is empty, run init first", t.snapshotPath)
	}
	return table, nil
}
