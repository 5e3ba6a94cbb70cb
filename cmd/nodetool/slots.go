package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/influxdata/influxdb-cluster/kit/cli"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

func newSlotsCommand(t *tool) (*cobra.Command, error) {
	var tree bool
	run := func(args []string) error {
		store, err := t.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		table, err := t.loadTable(store)
		if err != nil {
			return err
		}
		buf, err := table.MarshalBinary()
		if err != nil {
			return err
		}

		fmt.Fprintf(t.Stdout, "version %d, %d slots, interval %d, snapshot %s\n",
			table.Version(), table.TotalSlots(), table.PartitionInterval(), humanize.Bytes(uint64(len(buf))))
		if tree {
			fmt.Fprint(t.Stdout, groupTree(table))
		} else if err := printSlotCounts(t, table); err != nil {
			return err
		}

		if t.nodeID != 0 {
			fmt.Fprintf(t.Stdout, "local groups of node %d: %v\n", t.nodeID, table.LocalGroups())
		}
		return nil
	}

	return cli.NewCommand(t.v, t.program("slots", "Print the slots owned by every node", run,
		cli.NewOpt(&tree, "tree", false, "print every group with its members as a tree"),
	))
}

func printSlotCounts(t *tool, table *partition.SlotTable) error {
	tw := tabwriter.NewWriter(t.Stdout, 8, 8, 1, '\t', 0)
	fmt.Fprintln(tw, "NODE\tSLOTS\tGROUP")
	for _, c := range table.SlotCounts() {
		g, _ := table.HeaderGroup(c.Node)
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Node, c.Slots, g)
	}
	return tw.Flush()
}

// groupTree renders every group headed by a node, in node ID order.
func groupTree(table *partition.SlotTable) string {
	root := treeprint.New()
	for _, c := range table.SlotCounts() {
		g, _ := table.HeaderGroup(c.Node)
		branch := root.AddBranch(fmt.Sprintf("group %s (%d slots)", g, c.Slots))
		for _, n := range g {
			branch.AddNode(n.String())
		}
	}
	return root.String()
}
