package coordinator

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/partition"
	"github.com/influxdata/influxdb-cluster/cluster/plan"
	"github.com/influxdata/influxdb-cluster/logger"
	"go.uber.org/zap"
)

// MetaClient resolves paths to storage groups.
type MetaClient interface {
	// StorageGroupOf returns the storage group path belongs to.
	StorageGroupOf(path string) (string, error)

	// DetermineStorageGroup expands a path that may contain wildcards into
	// the storage groups it covers, mapping each to the concrete path below
	// that storage group.
	DetermineStorageGroup(path string) (map[string]string, error)
}

// PartitionTable is the part of partition.Table the router reads.
type PartitionTable interface {
	Route(storageGroup string, timestamp int64) cluster.PartitionGroup
	Slot(storageGroup string, timestamp int64) int
	LocalGroups() []cluster.PartitionGroup
	PartitionInterval() int64
}

var _ PartitionTable = (partition.Table)(nil)

// PlanGroup is a sub-plan and the group it must be executed by.
type PlanGroup struct {
	Plan  plan.Plan
	Group cluster.PartitionGroup
}

// TimeRangeGroup is the group owning the inclusive time range
// [StartTime, EndTime] of a path. The range never spans time partitions.
type TimeRangeGroup struct {
	StartTime int64
	EndTime   int64
	Group     cluster.PartitionGroup
}

// PlanRouter maps plans onto the partition groups that own their data.
type PlanRouter struct {
	MetaClient MetaClient
	Table      PartitionTable
	Logger     *zap.Logger

	stats *routerMetrics
}

// NewPlanRouter returns a router over table resolving storage groups with metaClient.
func NewPlanRouter(table PartitionTable, metaClient MetaClient) *PlanRouter {
	return &PlanRouter{
		MetaClient: metaClient,
		Table:      table,
		Logger:     zap.NewNop(),
		stats:      globalRouterMetrics,
	}
}

// WithLogger sets the Logger on r.
func (r *PlanRouter) WithLogger(log *zap.Logger) {
	r.Logger = log.With(zap.String("service", "plan-router"))
}

func (r *PlanRouter) logger(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, r.Logger)
}

// Route routes p with RoutePlan or SplitAndRoutePlan depending on whether p
// can be split.
func (r *PlanRouter) Route(ctx context.Context, p plan.Plan) ([]PlanGroup, error) {
	if p.CanBeSplit() {
		return r.SplitAndRoutePlan(ctx, p)
	}
	g, err := r.RoutePlan(ctx, p)
	if err != nil {
		return nil, err
	}
	return []PlanGroup{{Plan: p, Group: g}}, nil
}

// RoutePlan returns the single group that must execute p.
func (r *PlanRouter) RoutePlan(ctx context.Context, p plan.Plan) (cluster.PartitionGroup, error) {
	g, err := r.routePlan(ctx, p)
	if err != nil {
		r.fail(ctx, p, err)
		return nil, err
	}
	r.stats.routed(p, 1)
	return g, nil
}

func (r *PlanRouter) routePlan(ctx context.Context, p plan.Plan) (cluster.PartitionGroup, error) {
	if plan.Classify(p) != plan.Partitionable {
		return nil, cluster.NewUnsupportedPlanError(p)
	}

	switch p := p.(type) {
	case *plan.InsertPlan:
		return r.PartitionByPathTime(ctx, p.DeviceID, p.Time)
	case *plan.CreateTimeSeriesPlan:
		return r.PartitionByPathTime(ctx, p.Path, 0)
	case *plan.ShowChildPathsPlan:
		g, err := r.PartitionByPathTime(ctx, p.Path, 0)
		if !errors.Is(err, cluster.ErrStorageGroupNotSet) {
			return g, err
		}
		// Paths above every storage group, such as "root", are answered locally.
		if local := r.Table.LocalGroups(); len(local) > 0 {
			return local[0], nil
		}
		return nil, err
	default:
		return nil, cluster.NewUnsupportedPlanError(p)
	}
}

// SplitAndRoutePlan splits p into sub-plans that each target one group.
// Together the sub-plans cover the data of p exactly once.
func (r *PlanRouter) SplitAndRoutePlan(ctx context.Context, p plan.Plan) ([]PlanGroup, error) {
	groups, err := r.splitAndRoutePlan(ctx, p)
	if err != nil {
		r.fail(ctx, p, err)
		return nil, err
	}
	r.stats.routed(p, len(groups))
	r.logger(ctx).Debug("Split plan",
		zap.Stringer("plan", p),
		zap.Int("sub_plans", len(groups)))
	return groups, nil
}

func (r *PlanRouter) splitAndRoutePlan(ctx context.Context, p plan.Plan) ([]PlanGroup, error) {
	if plan.Classify(p) != plan.Partitionable {
		return nil, cluster.NewUnsupportedPlanError(p)
	}

	switch p := p.(type) {
	case *plan.BatchInsertPlan:
		return r.splitBatchInsert(ctx, p)
	case *plan.QueryPlan:
		return r.splitRangeByPath(ctx, p.Paths, p.StartTime, p.EndTime, func(i int, start, end int64) plan.Plan {
			return &plan.QueryPlan{Paths: []string{p.Paths[i]}, StartTime: start, EndTime: end}
		})
	case *plan.AggregationPlan:
		if len(p.Aggregations) != len(p.Paths) {
			return nil, cluster.NewIllegalPlanError("%d aggregations for %d paths", len(p.Aggregations), len(p.Paths))
		}
		return r.splitRangeByPath(ctx, p.Paths, p.StartTime, p.EndTime, func(i int, start, end int64) plan.Plan {
			return &plan.AggregationPlan{
				QueryPlan:    plan.QueryPlan{Paths: []string{p.Paths[i]}, StartTime: start, EndTime: end},
				Aggregations: []string{p.Aggregations[i]},
			}
		})
	case *plan.GroupByPlan:
		if len(p.Aggregations) != len(p.Paths) {
			return nil, cluster.NewIllegalPlanError("%d aggregations for %d paths", len(p.Aggregations), len(p.Paths))
		}
		return r.splitRangeByPath(ctx, p.Paths, p.StartTime, p.EndTime, func(i int, start, end int64) plan.Plan {
			return &plan.GroupByPlan{
				AggregationPlan: plan.AggregationPlan{
					QueryPlan:    plan.QueryPlan{Paths: []string{p.Paths[i]}, StartTime: start, EndTime: end},
					Aggregations: []string{p.Aggregations[i]},
				},
				Interval:    p.Interval,
				SlidingStep: p.SlidingStep,
			}
		})
	case *plan.FillQueryPlan:
		return r.splitFillQuery(ctx, p)
	case *plan.DeletePlan:
		return r.splitDelete(ctx, p)
	case *plan.CountPlan:
		return r.splitCount(ctx, p)
	case *plan.ShowTimeSeriesPlan:
		return r.splitWildcard(p.Path, func(path string) plan.Plan {
			return &plan.ShowTimeSeriesPlan{Path: path}
		})
	case *plan.ShowDevicesPlan:
		return r.splitWildcard(p.Path, func(path string) plan.Plan {
			return &plan.ShowDevicesPlan{Path: path}
		})
	default:
		return nil, cluster.NewUnsupportedPlanError(p)
	}
}

// PartitionByPathTime returns the group owning timestamp of the storage
// group of path.
func (r *PlanRouter) PartitionByPathTime(ctx context.Context, path string, timestamp int64) (cluster.PartitionGroup, error) {
	sg, err := r.MetaClient.StorageGroupOf(path)
	if err != nil {
		return nil, err
	}
	return r.Table.Route(sg, timestamp), nil
}

// PartitionByPathRangeTime splits the inclusive range [startTime, endTime] of
// path at time partition boundaries and returns the group of every piece in
// time order. It returns no pieces when startTime > endTime.
//
// One piece is allocated per partition the range touches, so the result grows
// linearly with (endTime - startTime) / PartitionInterval. Callers routing
// user supplied ranges should bound them first.
func (r *PlanRouter) PartitionByPathRangeTime(ctx context.Context, path string, startTime, endTime int64) ([]TimeRangeGroup, error) {
	sg, err := r.MetaClient.StorageGroupOf(path)
	if err != nil {
		return nil, err
	}
	return r.partitionRange(sg, startTime, endTime), nil
}

func (r *PlanRouter) partitionRange(sg string, startTime, endTime int64) []TimeRangeGroup {
	if startTime > endTime {
		return nil
	}

	interval := r.Table.PartitionInterval()
	var ranges []TimeRangeGroup
	for cur := startTime; ; {
		last := partitionEnd(cur, interval)
		if last > endTime {
			last = endTime
		}
		ranges = append(ranges, TimeRangeGroup{
			StartTime: cur,
			EndTime:   last,
			Group:     r.Table.Route(sg, cur),
		})
		if last == endTime {
			return ranges
		}
		cur = last + 1
	}
}

// partitionEnd returns the last timestamp of the partition containing
// timestamp, clamped to math.MaxInt64.
func partitionEnd(timestamp, interval int64) int64 {
	offset := timestamp % interval
	if offset < 0 {
		offset += interval
	}
	left := interval - 1 - offset
	if timestamp > math.MaxInt64-left {
		return math.MaxInt64
	}
	return timestamp + left
}

// CalculateLogSlot returns the slot a replicated log entry carrying p is
// ordered under. Only schema creation and inserts have one.
func (r *PlanRouter) CalculateLogSlot(ctx context.Context, p plan.Plan) (int, error) {
	var path string
	switch p := p.(type) {
	case *plan.CreateTimeSeriesPlan:
		path = p.Path
	case *plan.InsertPlan:
		path = p.DeviceID
	case *plan.BatchInsertPlan:
		path = p.DeviceID
	default:
		err := cluster.NewUnsupportedPlanError(p)
		r.fail(ctx, p, err)
		return 0, err
	}

	sg, err := r.MetaClient.StorageGroupOf(path)
	if err != nil {
		r.fail(ctx, p, err)
		return 0, err
	}
	return r.Table.Slot(sg, 0), nil
}

// splitBatchInsert cuts the rows of p at time partition boundaries and
// merges the pieces by destination group. Groups appear in the order their
// first row appears in p; rows keep their order within a group.
func (r *PlanRouter) splitBatchInsert(ctx context.Context, p *plan.BatchInsertPlan) ([]PlanGroup, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	times := p.Times
	if len(times) == 0 {
		return nil, nil
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return nil, cluster.NewIllegalPlanError("%s: timestamps are not sorted at row %d (%d after %d)",
				p.DeviceID, i, times[i], times[i-1])
		}
	}

	sg, err := r.MetaClient.StorageGroupOf(p.DeviceID)
	if err != nil {
		return nil, err
	}

	var (
		interval = r.Table.PartitionInterval()
		order    []cluster.PartitionGroup
		ranges   = make(map[uint64][]plan.Range)
	)
	closeRange := func(start, end int) {
		// Every timestamp of a partition routes like the partition start.
		g := r.Table.Route(sg, times[start])
		h := g.Header().ID
		if _, ok := ranges[h]; !ok {
			order = append(order, g)
		}
		ranges[h] = append(ranges[h], plan.Range{Start: start, End: end})
	}

	startLoc := 0
	current := partition.PartitionIndex(times[0], interval)
	for i := 1; i < len(times); i++ {
		if k := partition.PartitionIndex(times[i], interval); k != current {
			closeRange(startLoc, i)
			startLoc, current = i, k
		}
	}
	closeRange(startLoc, len(times))

	groups := make([]PlanGroup, 0, len(order))
	for _, g := range order {
		groups = append(groups, PlanGroup{
			Plan:  p.Select(ranges[g.Header().ID]),
			Group: g,
		})
	}
	return groups, nil
}

func (r *PlanRouter) splitRangeByPath(ctx context.Context, paths []string, startTime, endTime int64, subPlan func(i int, start, end int64) plan.Plan) ([]PlanGroup, error) {
	var groups []PlanGroup
	for i, path := range paths {
		ranges, err := r.PartitionByPathRangeTime(ctx, path, startTime, endTime)
		if err != nil {
			return nil, err
		}
		for _, tr := range ranges {
			groups = append(groups, PlanGroup{
				Plan:  subPlan(i, tr.StartTime, tr.EndTime),
				Group: tr.Group,
			})
		}
	}
	return groups, nil
}

func (r *PlanRouter) splitFillQuery(ctx context.Context, p *plan.FillQueryPlan) ([]PlanGroup, error) {
	groups := make([]PlanGroup, 0, len(p.Paths))
	for _, path := range p.Paths {
		g, err := r.PartitionByPathTime(ctx, path, p.QueryTime)
		if err != nil {
			return nil, err
		}
		groups = append(groups, PlanGroup{
			Plan:  &plan.FillQueryPlan{Paths: []string{path}, QueryTime: p.QueryTime, Fill: p.Fill},
			Group: g,
		})
	}
	return groups, nil
}

// splitDelete routes a delete whose paths all belong to one storage group.
// Deletes spanning storage groups are not supported.
func (r *PlanRouter) splitDelete(ctx context.Context, p *plan.DeletePlan) ([]PlanGroup, error) {
	var sg string
	for _, path := range p.Paths {
		other, err := r.MetaClient.StorageGroupOf(path)
		if err != nil {
			return nil, err
		}
		if sg != "" && other != sg {
			return nil, cluster.NewUnsupportedPlanError(p)
		}
		sg = other
	}
	if sg == "" {
		return nil, nil
	}

	var groups []PlanGroup
	for _, tr := range r.partitionRange(sg, p.StartTime, p.EndTime) {
		groups = append(groups, PlanGroup{
			Plan: &plan.DeletePlan{
				Paths:     append([]string(nil), p.Paths...),
				StartTime: tr.StartTime,
				EndTime:   tr.EndTime,
			},
			Group: tr.Group,
		})
	}
	return groups, nil
}

// splitCount treats the path of p as if it ended with a wildcard. Counting
// time series accepts wildcards, so every storage group gets the concrete
// path; the other counts take the path literally and only drop the wildcard
// added here.
func (r *PlanRouter) splitCount(ctx context.Context, p *plan.CountPlan) ([]PlanGroup, error) {
	sgPaths, err := r.storageGroupPaths(p.Path)
	if err != nil {
		return nil, err
	}

	if p.Type != plan.CountTimeSeries && len(sgPaths) == 1 {
		return []PlanGroup{{Plan: p, Group: r.Table.Route(sgPaths[0].storageGroup, 0)}}, nil
	}

	groups := make([]PlanGroup, 0, len(sgPaths))
	for _, sp := range sgPaths {
		path := sp.path
		if p.Type != plan.CountTimeSeries {
			path = strings.TrimSuffix(path, ".*")
		}
		groups = append(groups, PlanGroup{
			Plan:  &plan.CountPlan{Type: p.Type, Path: path, Level: p.Level},
			Group: r.Table.Route(sp.storageGroup, 0),
		})
	}
	return groups, nil
}

func (r *PlanRouter) splitWildcard(path string, subPlan func(path string) plan.Plan) ([]PlanGroup, error) {
	sgPaths, err := r.storageGroupPaths(path)
	if err != nil {
		return nil, err
	}
	groups := make([]PlanGroup, 0, len(sgPaths))
	for _, sp := range sgPaths {
		groups = append(groups, PlanGroup{
			Plan:  subPlan(sp.path),
			Group: r.Table.Route(sp.storageGroup, 0),
		})
	}
	return groups, nil
}

type storageGroupPath struct {
	storageGroup string
	path         string
}

// storageGroupPaths expands path followed by a wildcard, ordered by storage
// group name.
func (r *PlanRouter) storageGroupPaths(path string) ([]storageGroupPath, error) {
	m, err := r.MetaClient.DetermineStorageGroup(path + ".*")
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, cluster.NewStorageGroupNotSetError(path)
	}

	sgPaths := make([]storageGroupPath, 0, len(m))
	for sg, p := range m {
		sgPaths = append(sgPaths, storageGroupPath{storageGroup: sg, path: p})
	}
	sort.Slice(sgPaths, func(i, j int) bool { return sgPaths[i].storageGroup < sgPaths[j].storageGroup })
	return sgPaths, nil
}

func (r *PlanRouter) fail(ctx context.Context, p plan.Plan, err error) {
	r.stats.failed(p, err)
	r.logger(ctx).Info("Failed to route plan",
		zap.Stringer("plan", p),
		zap.Error(err))
}
