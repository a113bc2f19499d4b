package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sdnpulse/sdnpulse/internal/source"
)

// Fetcher performs bounded, retryable fetches of single sources.
type Fetcher struct {
	logger   *slog.Logger
	recorder Recorder
}

// NewFetcher creates a Fetcher. A nil recorder disables metrics.
func NewFetcher(logger *slog.Logger, recorder Recorder) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		logger:   logger.With("component", "fetcher"),
		recorder: orNop(recorder),
	}
}

// Fetch attempts d up to d.MaxAttempts times, waiting d.RetryBackoff between
// failed attempts. It never returns an error: failure is reported in the
// Outcome together with the final attempt's error.
func (f *Fetcher) Fetch(ctx context.Context, d source.Descriptor) Outcome {
	logger := f.logger.With("source_id", d.ID)
	start := time.Now()

	maxAttempts := max(d.MaxAttempts, 1)
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return d.RetryBackoff, false
	}))

	attempts := 0
	payload, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (any, error) {
		attempts++
		attemptStart := time.Now()

		p, err := f.attempt(ctx, d)
		f.recorder.ObserveAttempt(d.ID, err, time.Since(attemptStart))
		if err != nil {
			logger.Debug("attempt failed",
				"attempt", attempts,
				"max_attempts", maxAttempts,
				"error", err,
			)
			return nil, retry.RetryableError(err)
		}
		return p, nil
	})

	out := Outcome{
		SourceID: d.ID,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
	if err != nil {
		out.Err = err
		logger.Warn("source failed",
			"attempts", attempts,
			"elapsed", out.Elapsed,
			"error", err,
		)
	} else {
		out.Payload = payload
		logger.Debug("source fetched", "attempts", attempts, "elapsed", out.Elapsed)
	}

	f.recorder.ObserveOutcome(out)
	return out
}

type attemptResult struct {
	payload any
	err     error
}

// attempt runs a single endpoint call bounded by d.Timeout. The call runs in
// its own goroutine so an endpoint that ignores ctx cannot hold the attempt
// past its deadline.
func (f *Fetcher) attempt(ctx context.Context, d source.Descriptor) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: fmt.Errorf("%w: %v", ErrEndpointPanic, r)}
			}
		}()
		p, err := d.Endpoint.Attempt(ctx)
		done <- attemptResult{payload: p, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrAttemptTimeout, d.Timeout, r.err)
		}
		return r.payload, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, d.Timeout)
		}
		return nil, ctx.Err()
	}
}
