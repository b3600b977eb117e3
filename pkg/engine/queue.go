package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/next-exp/spectra_go/pkg/daq"
)

// SpillQueue is a bounded FIFO between producers and the builder. Any
// number of goroutines may push; one goroutine pops.
type SpillQueue struct {
	ch      chan *daq.Spill
	dropped atomic.Uint64
	metrics *Metrics
}

func NewSpillQueue(capacity int, metrics *Metrics) *SpillQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &SpillQueue{ch: make(chan *daq.Spill, capacity), metrics: metrics}
}

// Push blocks until there is room for spill or ctx is done.
func (q *SpillQueue) Push(ctx context.Context, spill *daq.Spill) error {
	select {
	case q.ch <- spill:
		q.metrics.setQueueLength(len(q.ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues spill without blocking. A full queue drops the spill and
// counts it.
func (q *SpillQueue) TryPush(spill *daq.Spill) bool {
	select {
	case q.ch <- spill:
		q.metrics.setQueueLength(len(q.ch))
		return true
	default:
		q.dropped.Add(1)
		q.metrics.spillDropped()
		return false
	}
}

// Pop waits at most timeout for a spill.
func (q *SpillQueue) Pop(timeout time.Duration) (*daq.Spill, bool) {
	select {
	case s := <-q.ch:
		q.metrics.setQueueLength(len(q.ch))
		return s, true
	default:
	}
	if timeout <= 0 {
		return nil, false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s := <-q.ch:
		q.metrics.setQueueLength(len(q.ch))
		return s, true
	case <-t.C:
		return nil, false
	}
}

func (q *SpillQueue) Len() int { return len(q.ch) }
func (q *SpillQueue) Cap() int { return cap(q.ch) }

// Dropped is the number of spills rejected by TryPush.
func (q *SpillQueue) Dropped() uint64 { return q.dropped.Load() }
