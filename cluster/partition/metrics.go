package partition

import (
	"strconv"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cluster"
const tableSubsystem = "partition_table"

var globalTableMetrics = newGlobalTableMetrics()

type globalMetrics struct {
	nodes    *prometheus.GaugeVec
	version  *prometheus.GaugeVec
	joins    *prometheus.CounterVec
	migrated *prometheus.CounterVec
}

// PrometheusCollectors returns all prometheus metrics for the partition package.
func PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		globalTableMetrics.nodes,
		globalTableMetrics.version,
		globalTableMetrics.joins,
		globalTableMetrics.migrated,
	}
}

func newGlobalTableMetrics() *globalMetrics {
	labels := []string{"node"}
	return &globalMetrics{
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tableSubsystem,
			Name:      "nodes",
			Help:      "Number of nodes in the partition table",
		}, labels),
		version: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: tableSubsystem,
			Name:      "version",
			Help:      "Number of node joins applied to the partition table",
		}, labels),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tableSubsystem,
			Name:      "node_joins_total",
			Help:      "Number of node joins applied by this process",
		}, labels),
		migrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: tableSubsystem,
			Name:      "migrated_slots_total",
			Help:      "Number of slots that changed header on node joins",
		}, labels),
	}
}

type tableMetrics struct {
	nodes    prometheus.Gauge
	version  prometheus.Gauge
	joins    prometheus.Counter
	migrated prometheus.Counter
}

func newTableMetrics(thisNode cluster.Node) *tableMetrics {
	labels := prometheus.Labels{"node": strconv.FormatUint(thisNode.ID, 10)}
	return &tableMetrics{
		nodes:    globalTableMetrics.nodes.With(labels),
		version:  globalTableMetrics.version.With(labels),
		joins:    globalTableMetrics.joins.With(labels),
		migrated: globalTableMetrics.migrated.With(labels),
	}
}
