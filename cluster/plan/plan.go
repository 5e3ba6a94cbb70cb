// Package plan defines the physical plans the coordinator routes across
// partition groups.
package plan

import (
	"fmt"
	"strings"
)

// Plan is an operation to be executed by one or more partition groups. The
// set of plans is closed: every implementation lives in this package.
type Plan interface {
	fmt.Stringer

	// CanBeSplit reports whether the plan may target several groups and must
	// be routed with SplitAndRoutePlan rather than RoutePlan.
	CanBeSplit() bool

	isPlan()
}

// Class describes where a plan runs.
type Class int

const (
	// Partitionable plans are routed to the groups owning their data.
	Partitionable Class = iota
	// Local plans run on the node that received them.
	Local
	// Global plans run on every group.
	Global
)

func (c Class) String() string {
	switch c {
	case Partitionable:
		return "partitionable"
	case Local:
		return "local"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Classify returns the class of p.
func Classify(p Plan) Class {
	switch p.(type) {
	case *LoadConfigurationPlan, *FlushPlan:
		return Local
	case *AuthorPlan, *DataAuthPlan, *SetStorageGroupPlan:
		return Global
	default:
		return Partitionable
	}
}

// InsertPlan writes one row of a device.
type InsertPlan struct {
	DeviceID     string
	Time         int64
	Measurements []string
	DataTypes    []DataType
	Values       []string
}

func (p *InsertPlan) String() string {
	return fmt.Sprintf("InsertPlan{device: %s, time: %d, measurements: %v}", p.DeviceID, p.Time, p.Measurements)
}
func (p *InsertPlan) CanBeSplit() bool { return false }
func (p *InsertPlan) isPlan()          {}

// CreateTimeSeriesPlan registers a time series.
type CreateTimeSeriesPlan struct {
	Path       string
	DataType   DataType
	Encoding   string
	Compressor string
	Props      map[string]string
}

func (p *CreateTimeSeriesPlan) String() string {
	return fmt.Sprintf("CreateTimeSeriesPlan{path: %s, type: %s}", p.Path, p.DataType)
}
func (p *CreateTimeSeriesPlan) CanBeSplit() bool { return false }
func (p *CreateTimeSeriesPlan) isPlan()          {}

// DeletePlan removes the points of Paths within [StartTime, EndTime].
type DeletePlan struct {
	Paths     []string
	StartTime int64
	EndTime   int64
}

func (p *DeletePlan) String() string {
	return fmt.Sprintf("DeletePlan{paths: %v, range: [%d, %d]}", p.Paths, p.StartTime, p.EndTime)
}
func (p *DeletePlan) CanBeSplit() bool { return true }
func (p *DeletePlan) isPlan()          {}

// QueryPlan reads the raw points of Paths within [StartTime, EndTime].
type QueryPlan struct {
	Paths     []string
	StartTime int64
	EndTime   int64
}

func (p *QueryPlan) String() string {
	return fmt.Sprintf("QueryPlan{paths: %v, range: [%d, %d]}", p.Paths, p.StartTime, p.EndTime)
}
func (p *QueryPlan) CanBeSplit() bool { return true }
func (p *QueryPlan) isPlan()          {}

// AggregationPlan applies Aggregations to Paths within [StartTime, EndTime].
// Aggregations is index aligned with Paths.
type AggregationPlan struct {
	QueryPlan
	Aggregations []string
}

func (p *AggregationPlan) String() string {
	return fmt.Sprintf("AggregationPlan{paths: %v, aggregations: %v, range: [%d, %d]}", p.Paths, p.Aggregations, p.StartTime, p.EndTime)
}
func (p *AggregationPlan) isPlan() {}

// GroupByPlan aggregates Paths over windows of Interval every SlidingStep.
type GroupByPlan struct {
	AggregationPlan
	Interval    int64
	SlidingStep int64
}

func (p *GroupByPlan) String() string {
	return fmt.Sprintf("GroupByPlan{paths: %v, aggregations: %v, range: [%d, %d], interval: %d, step: %d}",
		p.Paths, p.Aggregations, p.StartTime, p.EndTime, p.Interval, p.SlidingStep)
}
func (p *GroupByPlan) isPlan() {}

// FillQueryPlan reads the value of Paths at QueryTime, filling gaps with Fill.
type FillQueryPlan struct {
	Paths     []string
	QueryTime int64
	Fill      string
}

func (p *FillQueryPlan) String() string {
	return fmt.Sprintf("FillQueryPlan{paths: %v, time: %d, fill: %s}", p.Paths, p.QueryTime, p.Fill)
}
func (p *FillQueryPlan) CanBeSplit() bool { return true }
func (p *FillQueryPlan) isPlan()          {}

// UpdatePlan overwrites the points of Path within [StartTime, EndTime].
type UpdatePlan struct {
	Path      string
	StartTime int64
	EndTime   int64
	Value     string
}

func (p *UpdatePlan) String() string {
	return fmt.Sprintf("UpdatePlan{path: %s, range: [%d, %d]}", p.Path, p.StartTime, p.EndTime)
}
func (p *UpdatePlan) CanBeSplit() bool { return true }
func (p *UpdatePlan) isPlan()          {}

// PropertyPlan manipulates property labels attached to metadata.
type PropertyPlan struct {
	Operation    string
	PropertyPath string
	MetadataPath string
}

func (p *PropertyPlan) String() string {
	return fmt.Sprintf("PropertyPlan{op: %s, property: %s, metadata: %s}", p.Operation, p.PropertyPath, p.MetadataPath)
}
func (p *PropertyPlan) CanBeSplit() bool { return false }
func (p *PropertyPlan) isPlan()          {}

// ShowContentType selects what a CountPlan counts.
type ShowContentType int

const (
	CountTimeSeries ShowContentType = iota
	CountNodeTimeSeries
	CountNodes
)

func (t ShowContentType) String() string {
	switch t {
	case CountTimeSeries:
		return "COUNT_TIMESERIES"
	case CountNodeTimeSeries:
		return "COUNT_NODE_TIMESERIES"
	case CountNodes:
		return "COUNT_NODES"
	default:
		return fmt.Sprintf("ShowContentType(%d)", int(t))
	}
}

// CountPlan counts time series or nodes below Path. Path behaves as if it
// ended with a wildcard.
type CountPlan struct {
	Type  ShowContentType
	Path  string
	Level int
}

func (p *CountPlan) String() string {
	return fmt.Sprintf("CountPlan{type: %s, path: %s, level: %d}", p.Type, p.Path, p.Level)
}
func (p *CountPlan) CanBeSplit() bool { return true }
func (p *CountPlan) isPlan()          {}

// ShowTimeSeriesPlan lists the time series below Path.
type ShowTimeSeriesPlan struct {
	Path string
}

func (p *ShowTimeSeriesPlan) String() string {
	return fmt.Sprintf("ShowTimeSeriesPlan{path: %s}", p.Path)
}
func (p *ShowTimeSeriesPlan) CanBeSplit() bool { return true }
func (p *ShowTimeSeriesPlan) isPlan()          {}

// ShowDevicesPlan lists the devices below Path.
type ShowDevicesPlan struct {
	Path string
}

func (p *ShowDevicesPlan) String() string {
	return fmt.Sprintf("ShowDevicesPlan{path: %s}", p.Path)
}
func (p *ShowDevicesPlan) CanBeSplit() bool { return true }
func (p *ShowDevicesPlan) isPlan()          {}

// ShowChildPathsPlan lists the direct children of Path.
type ShowChildPathsPlan struct {
	Path string
}

func (p *ShowChildPathsPlan) String() string {
	return fmt.Sprintf("ShowChildPathsPlan{path: %s}", p.Path)
}
func (p *ShowChildPathsPlan) CanBeSplit() bool { return false }
func (p *ShowChildPathsPlan) isPlan()          {}

// AuthorPlan changes users, roles or privileges.
type AuthorPlan struct {
	Operation  string
	UserName   string
	RoleName   string
	Privileges []string
	NodeName   string
}

func (p *AuthorPlan) String() string {
	return fmt.Sprintf("AuthorPlan{op: %s, user: %s, role: %s}", p.Operation, p.UserName, p.RoleName)
}
func (p *AuthorPlan) CanBeSplit() bool { return false }
func (p *AuthorPlan) isPlan()          {}

// DataAuthPlan grants or revokes data access of users.
type DataAuthPlan struct {
	Users []string
	Grant bool
}

func (p *DataAuthPlan) String() string {
	return fmt.Sprintf("DataAuthPlan{users: %s, grant: %t}", strings.Join(p.Users, ","), p.Grant)
}
func (p *DataAuthPlan) CanBeSplit() bool { return false }
func (p *DataAuthPlan) isPlan()          {}

// SetStorageGroupPlan creates a storage group.
type SetStorageGroupPlan struct {
	Path string
}

func (p *SetStorageGroupPlan) String() string {
	return fmt.Sprintf("SetStorageGroupPlan{path: %s}", p.Path)
}
func (p *SetStorageGroupPlan) CanBeSplit() bool { return false }
func (p *SetStorageGroupPlan) isPlan()          {}

// LoadConfigurationPlan reloads the configuration of the receiving node.
type LoadConfigurationPlan struct{}

func (p *LoadConfigurationPlan) String() string   { return "LoadConfigurationPlan{}" }
func (p *LoadConfigurationPlan) CanBeSplit() bool { return false }
func (p *LoadConfigurationPlan) isPlan()          {}

// FlushPlan flushes the memtables of the receiving node.
type FlushPlan struct {
	StorageGroups []string
}

func (p *FlushPlan) String() string {
	return fmt.Sprintf("FlushPlan{storage groups: %v}", p.StorageGroups)
}
func (p *FlushPlan) CanBeSplit() bool { return false }
func (p *FlushPlan) isPlan()          {}
