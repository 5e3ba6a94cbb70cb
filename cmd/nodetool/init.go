package main

import (
	"fmt"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/influxdata/influxdb-cluster/kit/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInitCommand(t *tool) (*cobra.Command, error) {
	var nodes []string
	run := func(args []string) error {
		if len(nodes) == 0 {
			return errors.New("at least one --node must be supplied")
		}
		parsed := make([]cluster.Node, 0, len(nodes))
		for _, s := range nodes {
			n, err := cluster.ParseNode(s)
			if err != nil {
				return err
			}
			parsed = append(parsed, n)
		}

		local := parsed[0]
		if t.nodeID != 0 {
			local = cluster.Node{ID: t.nodeID}
		}
		table, err := partition.NewSlotTable(t.config.Cluster, local, parsed...)
		if err != nil {
			return err
		}
		table.WithLogger(t.logger)

		store, err := t.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if versions, err := store.Versions(); err != nil {
			return err
		} else if len(versions) > 0 {
			return errors.Errorf("snapshot store %s is already initialized", t.snapshotPath)
		}
		if err := store.Save(table); err != nil {
			return err
		}

		t.logger.Info("Initialized partition table",
			zap.Int("nodes", len(parsed)),
			zap.Int("total_slots", table.TotalSlots()),
			zap.String("path", t.snapshotPath))
		fmt.Fprintf(t.Stdout, "initialized %d slots over %d nodes (replication factor %d)\n",
			table.TotalSlots(), len(parsed), t.config.Cluster.ReplicationFactor)
		return nil
	}

	return cli.NewCommand(t.v, t.program("init", "Bootstrap a partition table snapshot", run,
		cli.NewOpt(&nodes, "node", nil, "bootstrap node as id@host:meta:data:client, repeatable"),
	))
}
