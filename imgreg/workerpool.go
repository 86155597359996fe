package imgreg

import (
	"context"
	"log"
	"sync"
)

// TaskHandle is the result slot returned by Pool.Submit: a value or error
// retrievable once, blocking until the task completes (spec §4.G).
type TaskHandle struct {
	done   chan struct{}
	result any
	err    error
}

// WaitReturn blocks until the task finishes and returns its result or error.
func (h *TaskHandle) WaitReturn() (any, error) {
	<-h.done
	return h.result, h.err
}

// IsCompleted reports whether the task has finished without blocking.
func (h *TaskHandle) IsCompleted() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Pool is a fixed-size parallel worker pool for the CPU-bound FFT and
// interpolation work in brute-force alignment, grid refinement, and tile
// assembly (spec §4.G). A Pool with Parallelism <= 1 runs every task
// synchronously on the caller's goroutine — the SingleThread override used
// for debuggability (spec §4.D). For Parallelism > 1, Submit itself blocks
// once Parallelism tasks are already running, so the pool never has more
// than Parallelism task bodies executing concurrently regardless of how
// fast the caller submits.
type Pool struct {
	Parallelism int

	mu      sync.Mutex
	pending []*TaskHandle
	sem     chan struct{}
}

// NewPool builds a Pool with the given worker count. parallelism <= 1 forces
// sequential (SingleThread) evaluation.
func NewPool(parallelism int) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Pool{Parallelism: parallelism, sem: make(chan struct{}, parallelism)}
}

// Submit runs fn (named for logging) on a pool goroutine, or synchronously
// when Parallelism == 1, returning a TaskHandle immediately. For
// Parallelism > 1, Submit acquires one of Parallelism semaphore slots before
// the goroutine is allowed to start fn, and releases it on completion — the
// actual concurrency cap spec §4.G requires. A caller that submits faster
// than the pool drains will block inside Submit once every slot is taken,
// which is what keeps submitted-but-unfinished tasks from growing without
// bound.
func (p *Pool) Submit(name string, fn func() (any, error)) *TaskHandle {
	h := &TaskHandle{done: make(chan struct{})}
	if p.Parallelism <= 1 {
		h.result, h.err = fn()
		close(h.done)
		return h
	}

	p.sem <- struct{}{}

	p.mu.Lock()
	p.pending = append(p.pending, h)
	p.mu.Unlock()

	go func() {
		defer func() { <-p.sem }()
		defer close(h.done)
		result, err := fn()
		if err != nil {
			log.Printf("[WORKERPOOL] task %q failed: %v", name, err)
		}
		h.result, h.err = result, err
	}()
	return h
}

// HarvestIfSaturated prunes already-completed handles out of the pool's
// internal pending-task bookkeeping once unfinished submissions exceed
// Parallelism. It does not bound memory by itself — Submit's semaphore does
// that by blocking new task bodies from starting — and it performs no
// domain-specific integration of results; a caller that must free a
// completed task's result as soon as possible (e.g. compositing a rendered
// tile into a mosaic) has to harvest and act on its own handles inline, the
// way TilesetToImage does.
func (p *Pool) HarvestIfSaturated() {
	p.mu.Lock()
	defer p.mu.Unlock()

	unfinished := 0
	for _, h := range p.pending {
		if !h.IsCompleted() {
			unfinished++
		}
	}
	if unfinished <= p.Parallelism {
		return
	}
	remaining := p.pending[:0]
	for _, h := range p.pending {
		if !h.IsCompleted() {
			remaining = append(remaining, h)
		}
	}
	p.pending = remaining
}

// RunAll submits every thunk in order, opportunistically harvesting between
// submissions (spec §4.G), and returns their results once all complete.
func RunAll[T any](ctx context.Context, p *Pool, names []string, thunks []func() (T, error)) ([]T, []error) {
	handles := make([]*TaskHandle, len(thunks))
	for i, thunk := range thunks {
		if ctx.Err() != nil {
			break
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fn := thunk
		handles[i] = p.Submit(name, func() (any, error) { return fn() })
		p.HarvestIfSaturated()
	}

	results := make([]T, len(thunks))
	errs := make([]error, len(thunks))
	for i, h := range handles {
		if h == nil {
			continue
		}
		v, err := h.WaitReturn()
		errs[i] = err
		if err == nil && v != nil {
			results[i] = v.(T)
		}
	}
	return results, errs
}
