package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildControlPointIndexNilOnEmpty(t *testing.T) {
	idx := buildControlPointIndex(nil)
	assert.Nil(t, idx)
	_, _, ok := idx.Nearest(Pt{0, 0})
	assert.False(t, ok)
}

func TestControlPointIndexFindsNearest(t *testing.T) {
	pts := []Pt{{0, 0}, {10, 0}, {0, 10}, {100, 100}}
	idx := buildControlPointIndex(pts)
	require.NotNil(t, idx)

	nearestIdx, dist, ok := idx.Nearest(Pt{1, 1})
	require.True(t, ok)
	assert.Equal(t, 0, nearestIdx)
	assert.Less(t, dist, 2.0)
}

func TestControlPointIndexFindsFarCluster(t *testing.T) {
	pts := []Pt{{0, 0}, {10, 0}, {0, 10}, {100, 100}}
	idx := buildControlPointIndex(pts)

	nearestIdx, _, ok := idx.Nearest(Pt{99, 99})
	require.True(t, ok)
	assert.Equal(t, 3, nearestIdx)
}
