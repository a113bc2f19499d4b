// Package snapshot holds the aggregated result of a collection cycle and the
// store that publishes it to consumers.
package snapshot

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status of a single source within a snapshot.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SourceResult is the per-source entry of a Snapshot.
type SourceResult struct {
	Status    Status
	Data      any
	Error     string
	Attempts  int
	ElapsedMS int64
}

// OK reports whether the source produced data in this cycle.
func (r SourceResult) OK() bool {
	return r.Status == StatusSuccess
}

type sourceResultJSON struct {
	Status    Status  `json:"status"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Attempts  int     `json:"attempts"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

// MarshalJSON renders data as null on error and error as null on success.
func (r SourceResult) MarshalJSON() ([]byte, error) {
	out := sourceResultJSON{
		Status:    r.Status,
		Attempts:  r.Attempts,
		ElapsedMS: r.ElapsedMS,
	}
	if r.OK() {
		out.Data = r.Data
	} else {
		msg := r.Error
		out.Error = &msg
	}
	return json.Marshal(out)
}

// Snapshot is the immutable result of one collection cycle. BySource has
// exactly one entry per configured source.
type Snapshot struct {
	CycleID     uuid.UUID               `json:"cycle_id"`
	CollectedAt time.Time               `json:"collected_at"`
	Duration    time.Duration           `json:"-"`
	BySource    map[string]SourceResult `json:"by_source"`
}

// New builds a snapshot. The results map is owned by the snapshot afterwards.
func New(collectedAt time.Time, duration time.Duration, results map[string]SourceResult) Snapshot {
	if results == nil {
		results = make(map[string]SourceResult)
	}
	return Snapshot{
		CycleID:     uuid.New(),
		CollectedAt: collectedAt,
		Duration:    duration,
		BySource:    results,
	}
}

// Source returns the result for one source id.
func (s Snapshot) Source(id string) (SourceResult, bool) {
	r, ok := s.BySource[id]
	return r, ok
}

// IDs returns the source ids in the snapshot, sorted.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.BySource))
	for id := range s.BySource {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Failed returns the number of sources that ended in error.
func (s Snapshot) Failed() int {
	n := 0
	for _, r := range s.BySource {
		if !r.OK() {
			n++
		}
	}
	return n
}

// MarshalJSON adds duration_ms to the encoded snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias(s), s.Duration.Milliseconds()})
}
