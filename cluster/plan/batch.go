package plan

import (
	"fmt"

	"github.com/influxdata/influxdb-cluster/cluster"
)

// DataType is the declared type of a measurement.
type DataType int

const (
	Text DataType = iota
	Float
	Int32
	Int64
	Double
	Boolean
)

func (t DataType) String() string {
	switch t {
	case Text:
		return "TEXT"
	case Float:
		return "FLOAT"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Double:
		return "DOUBLE"
	case Boolean:
		return "BOOLEAN"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// BatchInsertPlan writes many rows of a device in columnar form. Columns[i]
// holds the values of Measurements[i] and is a []string, []float32, []int32,
// []int64, []float64 or []bool according to DataTypes[i]. Times must be sorted
// in ascending order.
type BatchInsertPlan struct {
	DeviceID     string
	Measurements []string
	DataTypes    []DataType
	Times        []int64
	Columns      []interface{}
}

func (p *BatchInsertPlan) String() string {
	return fmt.Sprintf("BatchInsertPlan{device: %s, measurements: %v, rows: %d}", p.DeviceID, p.Measurements, len(p.Times))
}
func (p *BatchInsertPlan) CanBeSplit() bool { return true }
func (p *BatchInsertPlan) isPlan()          {}

// Len returns the number of rows in the batch.
func (p *BatchInsertPlan) Len() int { return len(p.Times) }

// Validate checks that the columns are aligned with the timestamps and
// match their declared types.
func (p *BatchInsertPlan) Validate() error {
	if len(p.Measurements) != len(p.DataTypes) || len(p.DataTypes) != len(p.Columns) {
		return cluster.NewIllegalPlanError("%s: %d measurements, %d data types, %d columns",
			p.DeviceID, len(p.Measurements), len(p.DataTypes), len(p.Columns))
	}
	for i, col := range p.Columns {
		n, ok := columnLen(p.DataTypes[i], col)
		if !ok {
			return cluster.NewIllegalPlanError("%s: column %d declared %s but holds %T", p.DeviceID, i, p.DataTypes[i], col)
		}
		if n != len(p.Times) {
			return cluster.NewIllegalPlanError("%s: column %d has %d values for %d timestamps", p.DeviceID, i, n, len(p.Times))
		}
	}
	return nil
}

// Range is the half-open row interval [Start, End).
type Range struct {
	Start, End int
}

// Select returns a new plan holding the rows of ranges, in the given order.
// The columns of the new plan are fresh arrays of the declared types. p must
// be valid.
func (p *BatchInsertPlan) Select(ranges []Range) *BatchInsertPlan {
	n := 0
	for _, r := range ranges {
		n += r.End - r.Start
	}

	other := &BatchInsertPlan{
		DeviceID:     p.DeviceID,
		Measurements: append([]string(nil), p.Measurements...),
		DataTypes:    append([]DataType(nil), p.DataTypes...),
		Times:        selectRows(p.Times, ranges, n),
		Columns:      make([]interface{}, len(p.Columns)),
	}
	for i, col := range p.Columns {
		switch col := col.(type) {
		case []string:
			other.Columns[i] = selectRows(col, ranges, n)
		case []float32:
			other.Columns[i] = selectRows(col, ranges, n)
		case []int32:
			other.Columns[i] = selectRows(col, ranges, n)
		case []int64:
			other.Columns[i] = selectRows(col, ranges, n)
		case []float64:
			other.Columns[i] = selectRows(col, ranges, n)
		case []bool:
			other.Columns[i] = selectRows(col, ranges, n)
		}
	}
	return other
}

func selectRows[T any](src []T, ranges []Range, n int) []T {
	dst := make([]T, 0, n)
	for _, r := range ranges {
		dst = append(dst, src[r.Start:r.End]...)
	}
	return dst
}

func columnLen(t DataType, col interface{}) (int, bool) {
	switch t {
	case Text:
		c, ok := col.([]string)
		return len(c), ok
	case Float:
		c, ok := col.([]float32)
		return len(c), ok
	case Int32:
		c, ok := col.([]int32)
		return len(c), ok
	case Int64:
		c, ok := col.([]int64)
		return len(c), ok
	case Double:
		c, ok := col.([]float64)
		return len(c), ok
	case Boolean:
		c, ok := col.([]bool)
		return len(c), ok
	default:
		return 0, false
	}
}
