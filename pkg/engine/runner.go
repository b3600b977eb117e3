package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/next-exp/spectra_go/pkg/daq"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// DefaultPopTimeout bounds each wait of the builder on an empty queue.
const DefaultPopTimeout = 100 * time.Millisecond

// Producer delivers the spills of one or more streams until ctx is done or
// its data runs out. Returning ctx.Err() is a normal end.
type Producer interface {
	Run(ctx context.Context, q *SpillQueue) error
}

type RunnerOptions struct {
	PopTimeout time.Duration
	Logger     daq.Logger
	Metrics    *Metrics
}

// Summary describes one acquisition.
type Summary struct {
	Spills uint64
	// Events counts the events of every stream, chopper markers included.
	Events uint64
	// StreamEvents splits Events by stream.
	StreamEvents map[string]uint64
	Dropped      uint64
	Skipped      int
	Streams      []string
	Elapsed      time.Duration
	Interrupted  bool
}

// Runner bins the spills of its producers into a project. Producers run on
// their own goroutines; every spill is binned on the goroutine that called
// Acquire.
type Runner struct {
	project   *Project
	queue     *SpillQueue
	producers []Producer
	opts      RunnerOptions
	log       daq.Logger

	interrupt atomic.Bool
	ready     *Signal

	// last spill seen per stream, used to close streams on shutdown
	last map[string]*daq.Spill
}

func NewRunner(p *Project, q *SpillQueue, opts RunnerOptions, producers ...Producer) *Runner {
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	return &Runner{
		project:   p,
		queue:     q,
		producers: producers,
		opts:      opts,
		log:       daq.OrNop(opts.Logger),
		ready:     NewSignal(),
		last:      make(map[string]*daq.Spill),
	}
}

// Interrupt asks Acquire to stop after the spill being binned.
func (r *Runner) Interrupt() { r.interrupt.Store(true) }

func (r *Runner) Interrupted() bool { return r.interrupt.Load() }

// Ready is notified after every binned spill and activated when the
// acquisition ends.
func (r *Runner) Ready() *Signal { return r.ready }

// Acquire runs the producers and bins their spills until they finish, the
// duration elapses (when positive), ctx is cancelled or Interrupt is called.
// Streams left open get a synthesized stop spill before the project is
// flushed.
func (r *Runner) Acquire(ctx context.Context, duration time.Duration) (Summary, error) {
	start := time.Now()
	r.interrupt.Store(false)
	r.ready.Reset()
	clear(r.last)
	defer r.ready.Activate()

	var cancel context.CancelFunc
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	r.opts.Metrics.setSpectra(r.project.Len())
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range r.producers {
		g.Go(func() error { return p.Run(gctx, r.queue) })
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var sum Summary
	droppedBefore := r.queue.Dropped()
	producing := true
	var prodErr error
	for {
		if r.interrupt.Load() {
			sum.Interrupted = true
			break
		}
		if spill, ok := r.queue.Pop(r.opts.PopTimeout); ok {
			r.bin(spill, &sum)
		}
		if producing {
			select {
			case prodErr = <-done:
				producing = false
			default:
			}
		}
		if !producing && r.queue.Len() == 0 {
			break
		}
	}
	if producing {
		cancel()
		prodErr = <-done
	}
	if sum.Interrupted {
		sum.Skipped = r.discard()
		if sum.Skipped > 0 {
			r.log.Warn(fmt.Sprintf("acquisition interrupted, %d queued spills discarded", sum.Skipped), "runner")
		}
	}

	r.closeStreams(&sum)
	r.project.Flush()
	r.ready.Notify()

	sum.Dropped = r.queue.Dropped() - droppedBefore
	if sum.Dropped > 0 {
		r.log.Warn(fmt.Sprintf("%d spills dropped with the queue full", sum.Dropped), "runner")
	}
	for stream := range r.last {
		sum.Streams = append(sum.Streams, stream)
	}
	slices.Sort(sum.Streams)
	sum.Elapsed = time.Since(start)

	if prodErr != nil && !errors.Is(prodErr, context.Canceled) && !errors.Is(prodErr, context.DeadlineExceeded) {
		return sum, fmt.Errorf("producer failed: %w", prodErr)
	}
	return sum, nil
}

func (r *Runner) bin(spill *daq.Spill, sum *Summary) {
	if spill == nil {
		r.log.Warn("nil spill skipped", "runner")
		return
	}
	t0 := time.Now()
	r.project.PushSpill(spill)
	r.opts.Metrics.spillBinned(spill.StreamID, spill.Type.String(), len(spill.Events), time.Since(t0))
	if spill.Type != daq.SpillStatus {
		r.last[spill.StreamID] = spill
	}
	sum.Spills++
	sum.Events += uint64(len(spill.Events))
	if sum.StreamEvents == nil {
		sum.StreamEvents = make(map[string]uint64)
	}
	sum.StreamEvents[spill.StreamID] += uint64(len(spill.Events))
	r.ready.Notify()
}

// discard empties the queue and returns how many spills it held.
func (r *Runner) discard() int {
	n := 0
	for {
		if _, ok := r.queue.Pop(0); !ok {
			return n
		}
		n++
	}
}

// closeStreams pushes a stop spill for every stream whose last spill was
// not one. The stop carries the stream's model and statistics so elapsed
// time keeps accumulating.
func (r *Runner) closeStreams(sum *Summary) {
	streams := make([]string, 0, len(r.last))
	for stream, spill := range r.last {
		if spill.Type != daq.SpillStop {
			streams = append(streams, stream)
		}
	}
	slices.Sort(streams)
	for _, stream := range streams {
		prev := r.last[stream]
		stop := daq.NewSpill(stream, daq.SpillStop)
		stop.EventModel = prev.EventModel.Clone()
		for k, v := range prev.State {
			stop.SetStat(k, v)
		}
		r.log.Info(fmt.Sprintf("closing stream %q with a synthesized stop spill", stream), "runner")
		r.bin(stop, sum)
	}
}
