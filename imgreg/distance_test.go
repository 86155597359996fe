package imgreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDistanceImageCornersEquidistant(t *testing.T) {
	d := computeDistanceImage(9, 9)
	// A square raster's four corners are all equally far from center.
	assert.InDelta(t, d.At(0, 0), d.At(0, 8), 1e-6)
	assert.InDelta(t, d.At(0, 0), d.At(8, 0), 1e-6)
	assert.InDelta(t, d.At(0, 0), d.At(8, 8), 1e-6)
}

func TestComputeDistanceImageCenterIsMinimum(t *testing.T) {
	d := computeDistanceImage(9, 9)
	center := d.At(4, 4)
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			assert.GreaterOrEqual(t, d.At(row, col), center)
		}
	}
}

func TestDistanceCacheMemoizes(t *testing.T) {
	c := NewDistanceCache("")
	a, err := c.Get(5, 5)
	require.NoError(t, err)
	b, err := c.Get(5, 5)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDistanceCacheDiskRoundTrips(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "imgreg-distance-cache-test")
	defer os.RemoveAll(dir)

	c := NewDistanceCache(dir)
	r, err := c.Get(6, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Height)
	assert.Equal(t, 7, r.Width)

	fresh := NewDistanceCache(dir)
	reloaded, err := fresh.Get(6, 7)
	require.NoError(t, err)
	for i := range r.Data {
		assert.InDelta(t, r.Data[i], reloaded.Data[i], 1e-3)
	}
}
