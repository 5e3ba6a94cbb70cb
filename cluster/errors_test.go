package cluster_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/stretchr/testify/require"
)

type namedPlan string

func (p namedPlan) String() string { return string(p) }

func TestError_Is(t *testing.T) {
	err := cluster.NewStorageGroupNotSetError("root.a.b")
	require.True(t, errors.Is(err, cluster.ErrStorageGroupNotSet))
	require.False(t, errors.Is(err, cluster.ErrIllegalPath))
	require.Contains(t, err.Error(), "root.a.b")

	wrapped := fmt.Errorf("route: %w", cluster.NewUnsupportedPlanError(namedPlan("UpdatePlan")))
	require.True(t, errors.Is(wrapped, cluster.ErrUnsupportedPlan))
	require.Equal(t, "route: unsupported plan: UpdatePlan", wrapped.Error())

	require.True(t, errors.Is(cluster.NewIllegalPathError("root..x"), cluster.ErrIllegalPath))
	require.True(t, errors.Is(cluster.NewIllegalPlanError("times not sorted at %d", 3), cluster.ErrIllegalPlan))

	var e *cluster.Error
	require.True(t, errors.As(wrapped, &e))
	require.Equal(t, cluster.UnsupportedPlan, e.Kind)
}
