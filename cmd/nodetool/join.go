package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/kit/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newJoinCommand(t *tool) (*cobra.Command, error) {
	var node string
	run := func(args []string) error {
		if node == "" {
			return errors.New("--node must be supplied")
		}
		n, err := cluster.ParseNode(node)
		if err != nil {
			return err
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

		version := table.Version()
		group := table.AddNode(n)
		if table.Version() == version {
			fmt.Fprintf(t.Stdout, "node %d already joined, group %s\n", n.ID, group)
			return nil
		}
		if err := store.Save(table); err != nil {
			return err
		}

		prev := table.PreviousNodeMap(n)
		slots := make([]int, 0, len(prev))
		for slot := range prev {
			slots = append(slots, slot)
		}
		sort.Ints(slots)

		fmt.Fprintf(t.Stdout, "node %d joined at version %d, group %s, %d slots migrated\n",
			n.ID, table.Version(), group, len(slots))
		tw := tabwriter.NewWriter(t.Stdout, 8, 8, 1, '\t', 0)
		fmt.Fprintln(tw, "SLOT\tPREVIOUS HEADER")
		for _, slot := range slots {
			fmt.Fprintf(tw, "%d\t%s\n", slot, prev[slot])
		}
		return tw.Flush()
	}

	return cli.NewCommand(t.v, t.program("join", "Add a node to a partition table snapshot", run,
		cli.NewOpt(&node, "node", "", "joining node as id@host:meta:data:client"),
	))
}
