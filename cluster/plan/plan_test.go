package plan_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/cluster/plan"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, tt := range []struct {
		p     plan.Plan
		class plan.Class
		split bool
	}{
		{&plan.InsertPlan{}, plan.Partitionable, false},
		{&plan.CreateTimeSeriesPlan{}, plan.Partitionable, false},
		{&plan.ShowChildPathsPlan{}, plan.Partitionable, false},
		{&plan.BatchInsertPlan{}, plan.Partitionable, true},
		{&plan.QueryPlan{}, plan.Partitionable, true},
		{&plan.AggregationPlan{}, plan.Partitionable, true},
		{&plan.GroupByPlan{}, plan.Partitionable, true},
		{&plan.FillQueryPlan{}, plan.Partitionable, true},
		{&plan.DeletePlan{}, plan.Partitionable, true},
		{&plan.CountPlan{}, plan.Partitionable, true},
		{&plan.ShowTimeSeriesPlan{}, plan.Partitionable, true},
		{&plan.ShowDevicesPlan{}, plan.Partitionable, true},
		{&plan.UpdatePlan{}, plan.Partitionable, true},
		{&plan.PropertyPlan{}, plan.Partitionable, false},
		{&plan.AuthorPlan{}, plan.Global, false},
		{&plan.DataAuthPlan{}, plan.Global, false},
		{&plan.SetStorageGroupPlan{}, plan.Global, false},
		{&plan.LoadConfigurationPlan{}, plan.Local, false},
		{&plan.FlushPlan{}, plan.Local, false},
	} {
		t.Run(tt.p.String(), func(t *testing.T) {
			require.Equal(t, tt.class, plan.Classify(tt.p))
			require.Equal(t, tt.split, tt.p.CanBeSplit())
		})
	}
}

func newBatch() *plan.BatchInsertPlan {
	return &plan.BatchInsertPlan{
		DeviceID:     "root.sg1.d1",
		Measurements: []string{"s0", "s1", "s2", "s3", "s4", "s5"},
		DataTypes:    []plan.DataType{plan.Text, plan.Float, plan.Int32, plan.Int64, plan.Double, plan.Boolean},
		Times:        []int64{1, 2, 3, 4},
		Columns: []interface{}{
			[]string{"a", "b", "c", "d"},
			[]float32{1, 2, 3, 4},
			[]int32{1, 2, 3, 4},
			[]int64{1, 2, 3, 4},
			[]float64{1, 2, 3, 4},
			[]bool{true, false, true, false},
		},
	}
}

func TestBatchInsertPlan_Validate(t *testing.T) {
	require.NoError(t, newBatch().Validate())

	p := newBatch()
	p.Columns[2] = []int64{1, 2, 3, 4}
	require.True(t, errors.Is(p.Validate(), cluster.ErrIllegalPlan))

	p = newBatch()
	p.Columns[0] = []string{"a"}
	require.True(t, errors.Is(p.Validate(), cluster.ErrIllegalPlan))

	p = newBatch()
	p.DataTypes = p.DataTypes[:2]
	require.True(t, errors.Is(p.Validate(), cluster.ErrIllegalPlan))

	p = newBatch()
	p.DataTypes[5] = plan.DataType(42)
	require.True(t, errors.Is(p.Validate(), cluster.ErrIllegalPlan))
}

func TestBatchInsertPlan_Select(t *testing.T) {
	p := newBatch()
	got := p.Select([]plan.Range{{Start: 3, End: 4}, {Start: 0, End: 2}})

	want := &plan.BatchInsertPlan{
		DeviceID:     "root.sg1.d1",
		Measurements: p.Measurements,
		DataTypes:    p.DataTypes,
		Times:        []int64{4, 1, 2},
		Columns: []interface{}{
			[]string{"d", "a", "b"},
			[]float32{4, 1, 2},
			[]int32{4, 1, 2},
			[]int64{4, 1, 2},
			[]float64{4, 1, 2},
			[]bool{false, true, false},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected sub-plan -want/+got:\n%s", diff)
	}
	require.NoError(t, got.Validate())

	// The selection must not share storage with the source plan.
	got.Times[0] = 99
	got.Columns[0].([]string)[0] = "z"
	require.Equal(t, int64(4), p.Times[3])
	require.Equal(t, "d", p.Columns[0].([]string)[3])

	empty := p.Select(nil)
	require.Equal(t, 0, empty.Len())
	require.NoError(t, empty.Validate())
}

func TestDataType_String(t *testing.T) {
	require.Equal(t, "TEXT", plan.Text.String())
	require.Equal(t, "BOOLEAN", plan.Boolean.String())
	require.Equal(t, "DataType(9)", plan.DataType(9).String())
}
