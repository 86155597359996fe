package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridLatticePointsCoversShape(t *testing.T) {
	pts := gridLatticePoints(100, 100, 50)
	assert.NotEmpty(t, pts)
	for _, p := range pts {
		assert.GreaterOrEqual(t, p[0], 0.0)
		assert.GreaterOrEqual(t, p[1], 0.0)
	}
}

func TestGridLatticeDimsMatchesSpacing(t *testing.T) {
	rows, cols := gridLatticeDims(128, 256, 64)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 4, cols)
}

func TestPercentileWeightMonotonic(t *testing.T) {
	records := []EnhancedAlignmentRecord{
		{Weight: 0.1}, {Weight: 0.5}, {Weight: 0.9}, {Weight: 0.3},
	}
	low := percentileWeight(records, 0)
	high := percentileWeight(records, 100)
	assert.LessOrEqual(t, low, high)
}

func TestPercentileWeightEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, percentileWeight(nil, 50))
}

func TestRefineGridOnSyntheticIdenticalRasters(t *testing.T) {
	r := texturedRaster(256, 256, 7)
	initial := NewRigid(Pt{0, 0}, Pt{128, 128}, 0)

	opts := RefineOptions{
		CellSize:      32,
		GridSpacing:   64,
		NumIterations: 1,
		Basis:         RBFThinPlate,
		Pool:          NewPool(1),
	}
	result, err := RefineGrid(initial, r, r, nil, opts)
	require.NoError(t, err)
	assert.NotNil(t, result.Grid)
	assert.Greater(t, result.Grid.TargetBBox().Height, 0.0)
}
