package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

// Aggregator fans a collection cycle out over all sources and joins the
// outcomes into one snapshot.
type Aggregator struct {
	fetcher  *Fetcher
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewAggregator creates an Aggregator. now stamps each snapshot with the
// cycle start; nil means time.Now.
func NewAggregator(fetcher *Fetcher, logger *slog.Logger, recorder Recorder, now func() time.Time) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		fetcher:  fetcher,
		logger:   logger.With("component", "aggregator"),
		recorder: orNop(recorder),
		now:      now,
	}
}

// Collect fetches every descriptor concurrently and waits for all of them to
// settle. The returned snapshot has exactly one entry per descriptor id,
// whatever the individual outcomes were.
func (a *Aggregator) Collect(ctx context.Context, descs []source.Descriptor) snapshot.Snapshot {
	collectedAt := a.now()
	start := time.Now()

	outcomes := make([]Outcome, len(descs))
	var wg sync.WaitGroup
	for i, d := range descs {
		wg.Add(1)
		go func(i int, d source.Descriptor) {
			defer wg.Done()
			outcomes[i] = a.fetcher.Fetch(ctx, d)
		}(i, d)
	}
	wg.Wait()

	results := make(map[string]snapshot.SourceResult, len(descs))
	for _, o := range outcomes {
		results[o.SourceID] = o.Result()
	}

	snap := snapshot.New(collectedAt, time.Since(start), results)
	a.recorder.ObserveCycle(snap)

	a.logger.Info("collection cycle complete",
		"cycle_id", snap.CycleID,
		"sources", len(results),
		"failed", snap.Failed(),
		"duration", snap.Duration,
	)
	return snap
}
