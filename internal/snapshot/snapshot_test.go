package snapshot

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestSourceResultJSON(t *testing.T) {
	tests := []struct {
		name   string
		result SourceResult
		want   map[string]any
	}{
		{
			name:   "success has null error",
			result: SourceResult{Status: StatusSuccess, Data: 42, Attempts: 1},
			want:   map[string]any{"status": "success", "data": float64(42), "error": nil, "attempts": float64(1), "elapsed_ms": float64(0)},
		},
		{
			name:   "error has null data",
			result: SourceResult{Status: StatusError, Data: "stale", Error: "connection refused", Attempts: 3, ElapsedMS: 250},
			want:   map[string]any{"status": "error", "data": nil, "error": "connection refused", "attempts": float64(3), "elapsed_ms": float64(250)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.result)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("json = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotAccessors(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := New(at, 1500*time.Millisecond, map[string]SourceResult{
		"trafficStats": {Status: StatusSuccess, Data: map[string]any{}},
		"queueStats":   {Status: StatusError, Error: "timeout"},
	})

	if got := snap.IDs(); !reflect.DeepEqual(got, []string{"queueStats", "trafficStats"}) {
		t.Errorf("IDs() = %v", got)
	}
	if r, ok := snap.Source("queueStats"); !ok || r.OK() {
		t.Errorf("Source(queueStats) = %+v, %v", r, ok)
	}
	if _, ok := snap.Source("missing"); ok {
		t.Error("Source(missing) should not be found")
	}
	if snap.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", snap.Failed())
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", got["duration_ms"])
	}
	if got["cycle_id"] != snap.CycleID.String() {
		t.Errorf("cycle_id = %v, want %v", got["cycle_id"], snap.CycleID)
	}
	if len(got["by_source"].(map[string]any)) != 2 {
		t.Errorf("by_source = %v", got["by_source"])
	}
}
