package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func impulseRaster(h, w, row, col int) *Raster {
	r := NewRaster(h, w, F32)
	r.Set(row, col, 1)
	return r
}

func TestPhaseCorrelateSelfPeaksAtOrigin(t *testing.T) {
	r := impulseRaster(16, 16, 8, 8)
	corr, err := PhaseCorrelate(r, r)
	require.NoError(t, err)

	shifted := fftshift(corr)
	normed, err := normalizeUnit(shifted)
	require.NoError(t, err)

	offset, strength, err := FindPeak(normed, nil, 0.995)
	require.NoError(t, err)
	assert.InDelta(t, 0, offset[0], 1)
	assert.InDelta(t, 0, offset[1], 1)
	assert.Greater(t, strength, 0.0)
}

func TestPhaseCorrelateShapeMismatch(t *testing.T) {
	a := NewRaster(4, 4, F32)
	b := NewRaster(4, 5, F32)
	_, err := PhaseCorrelate(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFFTShiftIsInvolution(t *testing.T) {
	r := NewRaster(6, 6, F32)
	for i := range r.Data {
		r.Data[i] = float32(i)
	}
	once := fftshift(r)
	twice := fftshift(once)
	for i := range r.Data {
		assert.Equal(t, r.Data[i], twice.Data[i])
	}
}

func TestNormalizeUnitRange(t *testing.T) {
	r := NewRaster(2, 2, F32)
	r.Data = []float32{-5, 0, 5, 10}
	normed, err := normalizeUnit(r)
	require.NoError(t, err)
	for _, v := range normed.Data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.Equal(t, float32(0), normed.Data[0])
	assert.Equal(t, float32(1), normed.Data[3])
}

func TestBuildOverlapMaskFullOverlapAtZeroOffset(t *testing.T) {
	mask := BuildOverlapMask([2]int{8, 8}, [2]int{8, 8}, [2]int{8, 8}, 0.9, 1.0)
	assert.True(t, mask.At(4, 4))
}

func TestFindOffsetDetectsTranslation(t *testing.T) {
	a := impulseRaster(32, 32, 16, 16)
	b := impulseRaster(32, 32, 16, 20)

	rec, err := FindOffset(a, b, 0.1, 1.0, [2]int{32, 32}, [2]int{32, 32})
	require.NoError(t, err)
	assert.InDelta(t, -4, rec.PeakX, 1)
}
