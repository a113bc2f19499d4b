package poller

import (
	"errors"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/snapshot"
)

var (
	// ErrAttemptTimeout marks an attempt that ran past its descriptor timeout.
	ErrAttemptTimeout = errors.New("attempt timed out")
	// ErrEndpointPanic marks an attempt whose endpoint panicked.
	ErrEndpointPanic = errors.New("endpoint panicked")
)

// Outcome is the terminal result of fetching one source. Err is nil on
// success; on failure it holds the error of the final attempt.
type Outcome struct {
	SourceID string
	Payload  any
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result converts the outcome into its snapshot entry.
func (o Outcome) Result() snapshot.SourceResult {
	r := snapshot.SourceResult{
		Attempts:  o.Attempts,
		ElapsedMS: o.Elapsed.Milliseconds(),
	}
	if o.OK() {
		r.Status = snapshot.StatusSuccess
		r.Data = o.Payload
		return r
	}
	r.Status = snapshot.StatusError
	r.Error = o.Err.Error()
	return r
}

// Recorder observes collection activity. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveAttempt(sourceID string, err error, elapsed time.Duration)
	ObserveOutcome(o Outcome)
	ObserveCycle(snap snapshot.Snapshot)
	CycleSkipped()
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, error, time.Duration) {}
func (nopRecorder) ObserveOutcome(Outcome)                      {}
func (nopRecorder) ObserveCycle(snapshot.Snapshot)              {}
func (nopRecorder) CycleSkipped()                               {}

func orNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
