package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRBFExactAtCenters(t *testing.T) {
	centers := []Pt{{0, 0}, {10, 0}, {0, 10}, {10, 10}, {5, 5}}
	values := []float64{0, 1, 2, 3, 1.5}

	model, err := fitRBF(centers, values, RBFThinPlate)
	require.NoError(t, err)

	for i, c := range centers {
		assert.InDelta(t, values[i], model.eval(c), 1e-4, "center %d not reproduced", i)
	}
}

func TestFitRBFRejectsEmptySet(t *testing.T) {
	_, err := fitRBF(nil, nil, RBFThinPlate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientEvidence)
}

func TestRBFFallbackForwardInverse(t *testing.T) {
	pairs := []ControlPointPair{
		{SourceX: 0, SourceY: 0, TargetX: 0, TargetY: 0},
		{SourceX: 10, SourceY: 0, TargetX: 11, TargetY: 1},
		{SourceX: 0, SourceY: 10, TargetX: 1, TargetY: 11},
		{SourceX: 10, SourceY: 10, TargetX: 12, TargetY: 12},
	}
	f := newRBFFallback(RBFThinPlate)
	require.NoError(t, f.ensureFit(pairs))

	for _, p := range pairs {
		got := f.forward(p.SourcePoint())
		assert.True(t, PtAlmostEqual(got, p.TargetPoint(), 1e-3))
		back := f.inverse(p.TargetPoint())
		assert.True(t, PtAlmostEqual(back, p.SourcePoint(), 1e-3))
	}
}

func TestBasisFuncVariants(t *testing.T) {
	assert.Equal(t, 0.0, basisFunc(RBFThinPlate, 0))
	assert.Equal(t, 5.0, basisFunc(RBFLinear, 5))
	assert.Equal(t, 8.0, basisFunc(RBFCubic, 2))
}
