package imgreg

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSingleThreadRunsSynchronously(t *testing.T) {
	p := NewPool(1)
	var ran int32
	h := p.Submit("task", func() (any, error) {
		atomic.AddInt32(&ran, 1)
		return 42, nil
	})
	assert.True(t, h.IsCompleted())
	v, err := h.WaitReturn()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), ran)
}

func TestPoolParallelRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	var count int32
	handles := make([]*TaskHandle, 20)
	for i := range handles {
		handles[i] = p.Submit("task", func() (any, error) {
			atomic.AddInt32(&count, 1)
			return nil, nil
		})
	}
	for _, h := range handles {
		_, err := h.WaitReturn()
		require.NoError(t, err)
	}
	assert.Equal(t, int32(20), count)
}

func TestPoolPropagatesError(t *testing.T) {
	p := NewPool(1)
	h := p.Submit("task", func() (any, error) {
		return nil, ErrInsufficientEvidence
	})
	_, err := h.WaitReturn()
	assert.ErrorIs(t, err, ErrInsufficientEvidence)
}

func TestNewPoolClampsParallelism(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, 1, p.Parallelism)
	p = NewPool(-5)
	assert.Equal(t, 1, p.Parallelism)
}

func TestRunAllCollectsResultsInOrder(t *testing.T) {
	p := NewPool(3)
	thunks := make([]func() (int, error), 5)
	for i := range thunks {
		i := i
		thunks[i] = func() (int, error) { return i * i, nil }
	}
	results, errs := RunAll(context.Background(), p, nil, thunks)
	for i, r := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, i*i, r)
	}
}

func TestHarvestIfSaturatedToleratesRepeatedCalls(t *testing.T) {
	p := NewPool(2)
	for i := 0; i < 10; i++ {
		p.Submit("task", func() (any, error) { return nil, nil })
		p.HarvestIfSaturated()
	}
	// Every task finishes almost at once, so the pool is rarely saturated and
	// completed handles may stay in its pending list; this just checks
	// HarvestIfSaturated doesn't panic on repeated calls against a pool with
	// little or no outstanding work.
	p.HarvestIfSaturated()
}

// TestPoolSubmitCapsConcurrency proves Submit's semaphore, not just
// HarvestIfSaturated's bookkeeping, keeps concurrently-running task bodies
// at or below Parallelism: each task holds its slot for a few milliseconds,
// long enough that a missing cap would let more than Parallelism of the 30
// tasks overlap at once.
func TestPoolSubmitCapsConcurrency(t *testing.T) {
	const parallelism = 3
	p := NewPool(parallelism)

	var current, peak int32
	handles := make([]*TaskHandle, 30)
	for i := range handles {
		handles[i] = p.Submit("task", func() (any, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil, nil
		})
	}
	for _, h := range handles {
		_, err := h.WaitReturn()
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, int(atomic.LoadInt32(&peak)), parallelism)
}
