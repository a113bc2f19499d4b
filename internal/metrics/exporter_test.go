package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sdnpulse/sdnpulse/internal/parse"
	"github.com/sdnpulse/sdnpulse/internal/poller"
	"github.com/sdnpulse/sdnpulse/internal/snapshot"
)

func TestExporterRecordsActivity(t *testing.T) {
	e := NewExporter()

	e.ObserveAttempt("queueStats", errors.New("refused"), 10*time.Millisecond)
	e.ObserveAttempt("queueStats", nil, 5*time.Millisecond)
	e.ObserveOutcome(poller.Outcome{SourceID: "queueStats", Attempts: 2})
	e.ObserveOutcome(poller.Outcome{SourceID: "dpiStats", Attempts: 1, Err: errors.New("timeout")})
	e.CycleSkipped()

	if got := testutil.ToFloat64(e.attempts.WithLabelValues("queueStats", "error")); got != 1 {
		t.Errorf("error attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.attempts.WithLabelValues("queueStats", "success")); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.sourceUp.WithLabelValues("queueStats")); got != 1 {
		t.Errorf("queueStats up = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.sourceUp.WithLabelValues("dpiStats")); got != 0 {
		t.Errorf("dpiStats up = %v, want 0", got)
	}
	if got := testutil.ToFloat64(e.sourceAttempts.WithLabelValues("queueStats")); got != 2 {
		t.Errorf("queueStats attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(e.cyclesSkipped); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestExporterObserveCycle(t *testing.T) {
	e := NewExporter()

	at := time.Unix(1700000000, 0)
	snap := snapshot.New(at, 2*time.Second, map[string]snapshot.SourceResult{
		"queueStats":   {Status: snapshot.StatusSuccess, Data: parse.QueueStats{Backlog: 12000, Drops: 3, Overlimits: 7, CongestionPredicted: 1}},
		"dpiStats":     {Status: snapshot.StatusSuccess, Data: parse.DPISummary{TotalPackets: 3, ProtocolCounts: map[string]int{"DNS": 2, "TLS": 1}}},
		"trafficStats": {Status: snapshot.StatusError, Error: "timeout"},
	})
	e.ObserveCycle(snap)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"cycles", testutil.ToFloat64(e.cycles), 1},
		{"failed", testutil.ToFloat64(e.sourcesFailed), 1},
		{"last snapshot", testutil.ToFloat64(e.lastSnapshot), 1700000000},
		{"backlog", testutil.ToFloat64(e.queueBacklog.WithLabelValues("queueStats")), 12000},
		{"congested", testutil.ToFloat64(e.queueCongested.WithLabelValues("queueStats")), 1},
		{"dns packets", testutil.ToFloat64(e.dpiProtocols.WithLabelValues("dpiStats", "DNS")), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	e.CycleSkipped()

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "sdnpulse_cycles_skipped_total 1") {
		t.Errorf("metrics output missing skipped counter:\n%s", body)
	}
}
