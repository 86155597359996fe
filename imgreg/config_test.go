package imgreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuntimeContextValues(t *testing.T) {
	ctx := DefaultRuntimeContext()
	assert.Equal(t, 0.5, ctx.Align.MinOverlap)
	assert.Equal(t, 1.0, ctx.Align.MaxOverlap)
	assert.Equal(t, 64, ctx.Refine.CellSize)
	assert.Equal(t, 4, ctx.Refine.NumIterations)
	assert.Equal(t, 1, ctx.Workers)
}

func TestSaveLoadRuntimeContextRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	ctx := DefaultRuntimeContext()
	ctx.Workers = 8
	ctx.Align.TestFlip = true
	ctx.Refine.AnglesToSearch = []float64{-2, 0, 2}

	require.NoError(t, SaveRuntimeContext(path, ctx))

	loaded, err := LoadRuntimeContext(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Workers)
	assert.True(t, loaded.Align.TestFlip)
	assert.Equal(t, []float64{-2, 0, 2}, loaded.Refine.AnglesToSearch)
}

func TestLoadRuntimeContextLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 16\n"), 0644))

	ctx, err := LoadRuntimeContext(path)
	require.NoError(t, err)
	assert.Equal(t, 16, ctx.Workers)
	assert.Equal(t, 0.5, ctx.Align.MinOverlap) // untouched default
}

func TestLoadRuntimeContextMissingFile(t *testing.T) {
	_, err := LoadRuntimeContext(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAlignOptionsBuilderWiresPool(t *testing.T) {
	ctx := DefaultRuntimeContext()
	pool := NewPool(4)
	opts := ctx.AlignOptions(pool)
	assert.Same(t, pool, opts.Pool)
	assert.Equal(t, ctx.Align.MinOverlap, opts.MinOverlap)
}

func TestRefineOptionsBuilderWiresBasis(t *testing.T) {
	ctx := DefaultRuntimeContext()
	opts := ctx.RefineOptions(NewPool(1), RBFLinear)
	assert.Equal(t, RBFLinear, opts.Basis)
	assert.Equal(t, ctx.Refine.CellSize, opts.CellSize)
}

func TestNewPoolFromConfigUsesWorkers(t *testing.T) {
	ctx := DefaultRuntimeContext()
	ctx.Workers = 6
	pool := ctx.NewPoolFromConfig()
	assert.Equal(t, 6, pool.Parallelism)
}
