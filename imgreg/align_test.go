package imgreg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texturedRaster(h, w int, seed int64) *Raster {
	rng := rand.New(rand.NewSource(seed))
	r := NewRaster(h, w, F32)
	for i := range r.Data {
		r.Data[i] = float32(rng.Float64())
	}
	return r
}

func TestSliceToSliceFindsZeroOffsetForIdenticalRasters(t *testing.T) {
	r := texturedRaster(48, 48, 1)
	opts := AlignOptions{
		AngleSearch: []float64{0},
		MinOverlap:  0.5,
		MaxOverlap:  1.0,
		Pool:        NewPool(1),
	}
	rec, err := SliceToSlice(r, r, nil, nil, opts)
	require.NoError(t, err)
	assert.InDelta(t, 0, rec.PeakX, 2)
	assert.InDelta(t, 0, rec.PeakY, 2)
	assert.Equal(t, 0.0, rec.AngleDegrees)
}

func TestSliceToSliceRespectsExplicitAngleSearch(t *testing.T) {
	r := texturedRaster(32, 32, 2)
	opts := AlignOptions{
		AngleSearch: []float64{0, 90},
		Pool:        NewPool(2),
	}
	rec, err := SliceToSlice(r, r, nil, nil, opts)
	require.NoError(t, err)
	assert.Contains(t, []float64{0, 90}, rec.AngleDegrees)
}

func TestSliceToSliceTestFlipEnablesFlippedCandidates(t *testing.T) {
	r := texturedRaster(32, 32, 3)
	flipped := FlipVertical(r)
	opts := AlignOptions{
		AngleSearch: []float64{0},
		TestFlip:    true,
		Pool:        NewPool(1),
	}
	rec, err := SliceToSlice(flipped, r, nil, nil, opts)
	require.NoError(t, err)
	assert.True(t, rec.FlippedVertically)
}

func TestCoarseAnglesCoversFullCircle(t *testing.T) {
	angles := coarseAngles()
	assert.Equal(t, 0.0, angles[0])
	assert.Less(t, angles[len(angles)-1], 360.0)
}

func TestFineAnglesAroundCentersOnInput(t *testing.T) {
	angles := fineAnglesAround(45)
	found := false
	for _, a := range angles {
		if a == 45 {
			found = true
		}
	}
	assert.True(t, found)
}
