package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

// Ticker is the timer abstraction driving the Scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// SnapshotFunc receives every completed snapshot.
type SnapshotFunc func(snapshot.Snapshot) error

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTicker replaces the wall-clock ticker.
func WithTicker(newTicker func(time.Duration) Ticker) SchedulerOption {
	return func(s *Scheduler) {
		s.newTicker = newTicker
	}
}

// WithRecorder sets the recorder notified of skipped ticks.
func WithRecorder(r Recorder) SchedulerOption {
	return func(s *Scheduler) {
		s.recorder = orNop(r)
	}
}

// Scheduler runs collection cycles on a fixed interval. Cycles never
// overlap: a tick that arrives while a cycle is running is skipped.
type Scheduler struct {
	aggregator *Aggregator
	interval   time.Duration
	newTicker  func(time.Duration) Ticker
	recorder   Recorder
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(aggregator *Aggregator, interval time.Duration, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		aggregator: aggregator,
		interval:   interval,
		newTicker:  newTimeTicker,
		recorder:   nopRecorder{},
		logger:     logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the collection interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run is the handle of a started schedule.
type Run struct {
	stopOnce sync.Once
	stop     chan struct{}
	loopDone chan struct{}
	cycles   sync.WaitGroup
	count    atomic.Int64
}

// Stop cancels the timer. No cycle starts after Stop returns; a cycle
// already in flight still completes and is delivered. Stop is idempotent.
func (r *Run) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.loopDone
}

// Wait blocks until the run has been stopped (by Stop or by cancelling the
// Start context) and the last cycle has been delivered.
func (r *Run) Wait() {
	<-r.loopDone
	r.cycles.Wait()
}

// Cycles returns the number of cycles started so far.
func (r *Run) Cycles() int64 {
	return r.count.Load()
}

// Start runs one cycle immediately and then one per interval until the
// returned Run is stopped or ctx is cancelled. onSnapshot is called once per
// completed cycle, in cycle order; its errors and panics are logged and do
// not stop the schedule.
func (s *Scheduler) Start(ctx context.Context, descs []source.Descriptor, onSnapshot SnapshotFunc) *Run {
	r := &Run{
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	s.logger.Info("starting scheduler",
		"interval", s.interval,
		"sources", len(descs),
	)

	ticker := s.newTicker(s.interval)
	go s.loop(ctx, r, ticker, descs, onSnapshot)
	return r
}

func (s *Scheduler) loop(ctx context.Context, r *Run, ticker Ticker, descs []source.Descriptor, onSnapshot SnapshotFunc) {
	defer close(r.loopDone)
	defer ticker.Stop()

	var running atomic.Bool

	trigger := func() {
		if !running.CompareAndSwap(false, true) {
			s.recorder.CycleSkipped()
			s.logger.Debug("previous cycle still running, skipping tick")
			return
		}

		n := r.count.Add(1)
		r.cycles.Add(1)
		go func() {
			defer r.cycles.Done()
			defer running.Store(false)
			s.runCycle(ctx, n, descs, onSnapshot)
		}()
	}

	trigger()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled, stopping timer")
			return
		case <-r.stop:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C():
			trigger()
		}
	}
}

// runCycle collects one snapshot. The cycle ignores cancellation of ctx so
// that shutdown never truncates it.
func (s *Scheduler) runCycle(ctx context.Context, n int64, descs []source.Descriptor, onSnapshot SnapshotFunc) {
	snap := s.aggregator.Collect(context.WithoutCancel(ctx), descs)
	if onSnapshot == nil {
		return
	}
	if err := s.deliver(snap, onSnapshot); err != nil {
		s.logger.Error("snapshot consumer failed",
			"cycle", n,
			"cycle_id", snap.CycleID,
			"error", err,
		)
	}
}

func (s *Scheduler) deliver(snap snapshot.Snapshot, onSnapshot SnapshotFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in snapshot consumer: %v", r)
		}
	}()
	return onSnapshot(snap)
}
