package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/plan"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cluster"
const routerSubsystem = "router"

var globalRouterMetrics = newRouterMetrics()

type routerMetrics struct {
	plans    *prometheus.CounterVec
	subPlans *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// PrometheusCollectors returns all prometheus metrics for the coordinator package.
func PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		globalRouterMetrics.plans,
		globalRouterMetrics.subPlans,
		globalRouterMetrics.errors,
	}
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: routerSubsystem,
			Name:      "plans_total",
			Help:      "Number of plans routed successfully",
		}, []string{"kind"}),
		subPlans: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: routerSubsystem,
			Name:      "sub_plans",
			Help:      "Histogram of number of sub-plans produced per routed plan",
			Buckets:   []float64{1, 2, 5, 10, 100, 1000},
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: routerSubsystem,
			Name:      "errors_total",
			Help:      "Number of plans that could not be routed",
		}, []string{"kind", "error"}),
	}
}

func (m *routerMetrics) routed(p plan.Plan, n int) {
	kind := kindOf(p)
	m.plans.WithLabelValues(kind).Inc()
	m.subPlans.WithLabelValues(kind).Observe(float64(n))
}

func (m *routerMetrics) failed(p plan.Plan, err error) {
	reason := "other"
	var e *cluster.Error
	if errors.As(err, &e) {
		reason = strings.ReplaceAll(e.Kind.String(), " ", "_")
	}
	m.errors.WithLabelValues(kindOf(p), reason).Inc()
}

// kindOf returns the type name of p, such as "InsertPlan".
func kindOf(p plan.Plan) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", p), "*plan.")
}
