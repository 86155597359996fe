package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatRaster(h, w int, v float32) *Raster {
	r := NewRaster(h, w, F32)
	for i := range r.Data {
		r.Data[i] = v
	}
	return r
}

func TestRasterStatsFlat(t *testing.T) {
	r := flatRaster(4, 4, 3)
	stats, err := r.Stats(nil)
	require.NoError(t, err)
	assert.Equal(t, float32(3), stats.Median)
	assert.Equal(t, float32(3), stats.Mean)
	assert.Equal(t, float32(0), stats.StdDev)
}

func TestRasterStatsMaskedEmptyIsDegenerate(t *testing.T) {
	r := flatRaster(2, 2, 1)
	mask := NewMask(2, 2)
	for i := range mask.Data {
		mask.Data[i] = false
	}
	_, err := r.Stats(mask)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateStats)
}

func TestFlipVerticalRoundTrips(t *testing.T) {
	r := NewRaster(2, 2, F32)
	r.Set(0, 0, 1)
	r.Set(0, 1, 2)
	r.Set(1, 0, 3)
	r.Set(1, 1, 4)
	flipped := FlipVertical(r)
	assert.Equal(t, float32(3), flipped.At(0, 0))
	assert.Equal(t, float32(4), flipped.At(0, 1))
	twice := FlipVertical(flipped)
	for i := range r.Data {
		assert.Equal(t, r.Data[i], twice.Data[i])
	}
}

func TestRotateRasterZeroIsClone(t *testing.T) {
	r := flatRaster(3, 3, 5)
	out, err := RotateRaster(r, 0, LiteralFill(0))
	require.NoError(t, err)
	assert.Equal(t, r.Data, out.Data)
}

func TestRotateRasterFullCircleApproximatesOriginalInterior(t *testing.T) {
	r := NewRaster(9, 9, F32)
	r.Set(4, 4, 100)
	out, err := RotateRaster(r, 360, LiteralFill(0))
	require.NoError(t, err)
	assert.InDelta(t, 100, out.At(4, 4), 1)
}

func TestBilinearSampleOutOfBounds(t *testing.T) {
	r := flatRaster(2, 2, 1)
	_, ok := bilinearSample(r, -0.1, 0)
	assert.False(t, ok)
	_, ok = bilinearSample(r, 0.5, 0.5)
	assert.True(t, ok)
}

func TestBilinearSampleExactGridValue(t *testing.T) {
	r := NewRaster(2, 2, F32)
	r.Set(0, 0, 10)
	r.Set(0, 1, 20)
	r.Set(1, 0, 30)
	r.Set(1, 1, 40)
	v, ok := bilinearSample(r, 0, 0)
	require.True(t, ok)
	assert.Equal(t, float32(10), v)
}

func TestResizeRasterShape(t *testing.T) {
	r := flatRaster(10, 10, 1)
	out := ResizeRaster(r, 5, 5)
	assert.Equal(t, 5, out.Height)
	assert.Equal(t, 5, out.Width)
}
