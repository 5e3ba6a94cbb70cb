package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/influxdata/influxdb-cluster/coordinator"
	"github.com/influxdata/influxdb-cluster/kit/cli"
	"github.com/influxdata/influxdb-cluster/services/meta"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRouteCommand(t *tool) (*cobra.Command, error) {
	var (
		paths         []string
		storageGroups []string
		start, end    int64
		maxPartitions int
	)
	run := func(args []string) error {
		if len(paths) == 0 {
			return errors.New("at least one --path must be supplied")
		}
		if start > end {
			return errors.Errorf("--start %d is after --end %d", start, end)
		}

		m := meta.NewManager()
		m.WithLogger(t.logger)
		if err := m.Open(t.config.Meta); err != nil {
			return err
		}
		for _, sg := range storageGroups {
			if err := m.SetStorageGroup(sg); err != nil && err != meta.ErrStorageGroupExists {
				return err
			}
		}

		store, err := t.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		table, err := t.loadTable(store)
		if err != nil {
			return err
		}

		if n := partitionSpan(start, end, table.PartitionInterval()); n >= uint64(maxPartitions) {
			return errors.Errorf("range [%d, %d] spans more than %d partitions, raise --max-partitions", start, end, maxPartitions)
		}

		router := coordinator.NewPlanRouter(table, m)
		router.WithLogger(t.logger)

		ranges := make([][]coordinator.TimeRangeGroup, len(paths))
		g, ctx := errgroup.WithContext(context.Background())
		for i, path := range paths {
			i, path := i, path
			g.Go(func() error {
				r, err := router.PartitionByPathRangeTime(ctx, path, start, end)
				if err != nil {
					return errors.Wrap(err, path)
				}
				ranges[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(t.Stdout, 8, 8, 1, '\t', 0)
		fmt.Fprintln(tw, "PATH\tSTART\tEND\tSLOT\tGROUP")
		for i, path := range paths {
			sg, err := m.StorageGroupOf(path)
			if err != nil {
				return err
			}
			for _, r := range ranges[i] {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", path, r.StartTime, r.EndTime, table.Slot(sg, r.StartTime), r.Group)
			}
		}
		return tw.Flush()
	}

	return cli.NewCommand(t.v, t.program("route", "Print the groups owning time ranges of paths", run,
		cli.NewOpt(&paths, "path", nil, "time series path to route, repeatable"),
		cli.NewOpt(&storageGroups, "storage-group", nil, "storage group to create in addition to the configured ones"),
		cli.NewOpt(&start, "start", int64(0), "first timestamp of the range, inclusive"),
		cli.NewOpt(&end, "end", int64(0), "last timestamp of the range, inclusive"),
		cli.NewOpt(&maxPartitions, "max-partitions", 10000, "largest number of time partitions a range may span"),
	))
}

// partitionSpan returns the number of partitions in [start, end] minus one.
// The difference of two int64 partition indexes always fits in a uint64.
func partitionSpan(start, end, interval int64) uint64 {
	return uint64(partition.PartitionIndex(end, interval) - partition.PartitionIndex(start, interval))
}
