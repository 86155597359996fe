package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadForPhaseCorrelationPreservesInterior(t *testing.T) {
	r := NewRaster(4, 4, F32)
	for i := range r.Data {
		r.Data[i] = 7
	}
	padded, err := PadForPhaseCorrelation(r, 0.5, 8, 8, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, padded.Height)
	assert.Equal(t, 8, padded.Width)

	offY, offX := (8-4)/2, (8-4)/2
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			assert.Equal(t, float32(7), padded.At(row+offY, col+offX))
		}
	}
}

func TestPaddedDimNeverShrinks(t *testing.T) {
	assert.GreaterOrEqual(t, paddedDim(100, 1.0, false), 100)
	assert.GreaterOrEqual(t, paddedDim(100, 0.1, true), 100)
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 1, nextPow2(0))
	assert.Equal(t, 1, nextPow2(1))
	assert.Equal(t, 8, nextPow2(5))
	assert.Equal(t, 16, nextPow2(16))
}

func TestCropClampsOutOfBounds(t *testing.T) {
	r := NewRaster(2, 2, F32)
	r.Set(0, 0, 1)
	r.Set(0, 1, 2)
	r.Set(1, 0, 3)
	r.Set(1, 1, 4)

	out, err := Crop(r, -1, -1, 4, 4, LiteralFill(9))
	require.NoError(t, err)
	assert.Equal(t, float32(9), out.At(0, 0))
	assert.Equal(t, float32(1), out.At(1, 1))
}

func TestImageToTilesCoversPaddedGrid(t *testing.T) {
	r := NewRaster(5, 5, F32)
	count := 0
	for pos, tile := range ImageToTiles(r, 2, 2, 0, 0) {
		assert.Equal(t, 2, tile.Height)
		assert.Equal(t, 2, tile.Width)
		assert.GreaterOrEqual(t, pos.Row, 0)
		count++
	}
	assert.Equal(t, 9, count) // ceil(5/2)^2
}

func TestReplaceExtremaWithNoiseRemovesOldExtrema(t *testing.T) {
	r := NewRaster(3, 3, F32)
	for i := range r.Data {
		r.Data[i] = 5
	}
	r.Set(0, 0, 0)
	r.Set(2, 2, 100)
	out, err := ReplaceExtremaWithNoise(r, nil)
	require.NoError(t, err)
	assert.NotEqual(t, float32(0), out.At(0, 0))
	assert.NotEqual(t, float32(100), out.At(2, 2))
}
