package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/auth"
	"github.com/sdnpulse/sdnpulse/internal/config"
	"github.com/sdnpulse/sdnpulse/internal/middleware"
	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

const (
	testJWTSecret = "12345678901234567890123456789012"
	testEncKey    = "12345678901234567890123456789012"
)

func testSources() []source.Descriptor {
	ep := source.EndpointFunc(func(ctx context.Context) (any, error) { return nil, nil })
	return []source.Descriptor{
		{ID: "queueStats", Kind: "http", Class: source.ClassStandard, Endpoint: ep, Timeout: 10 * time.Second, MaxAttempts: 3, RetryBackoff: 2 * time.Second},
		{ID: "dpiStats", Kind: "exec", Class: source.ClassHeavy, Endpoint: ep, Timeout: 40 * time.Second, MaxAttempts: 1, RetryBackoff: 2 * time.Second},
	}
}

func testSnapshot() snapshot.Snapshot {
	return snapshot.New(time.Now(), time.Second, map[string]snapshot.SourceResult{
		"queueStats": {Status: snapshot.StatusSuccess, Data: map[string]any{"backlog": 10}, Attempts: 1},
		"dpiStats":   {Status: snapshot.StatusError, Error: "attempt timed out after 40s", Attempts: 1},
	})
}

// setupRouter creates a router over a fresh store
func setupRouter(t *testing.T, authEnabled bool) (http.Handler, *snapshot.Store, *auth.Service) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.Enabled = authEnabled
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	authService, err := auth.NewService(testJWTSecret, testEncKey, "admin", "admin-pass", time.Hour)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	store := snapshot.NewStore(nil)
	router := NewRouter(Dependencies{
		Config:   cfg,
		Store:    store,
		Sources:  testSources(),
		Registry: source.NewRegistry(),
		Auth:     authService,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("sdnpulse_cycles_total 0\n"))
		}),
	})
	return router, store, authService
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	router, store, _ := setupRouter(t, false)

	t.Run("Health", func(t *testing.T) {
		w := do(t, router, "GET", "/health", nil, "")
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "ok" {
			t.Errorf("expected status ok, got %s", resp.Status)
		}
	})

	t.Run("Ready before first cycle", func(t *testing.T) {
		w := do(t, router, "GET", "/ready", nil, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", w.Code)
		}
	})

	t.Run("Ready after first cycle", func(t *testing.T) {
		store.Publish(testSnapshot())
		w := do(t, router, "GET", "/ready", nil, "")
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestSnapshotHandler_Get(t *testing.T) {
	router, store, _ := setupRouter(t, false)

	w := do(t, router, "GET", "/api/v1/snapshot", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var errResp middleware.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error.Code != "NOT_READY" {
		t.Errorf("expected NOT_READY, got %s", errResp.Error.Code)
	}

	snap := testSnapshot()
	store.Publish(snap)

	w = do(t, router, "GET", "/api/v1/snapshot", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		CycleID  string                    `json:"cycle_id"`
		BySource map[string]map[string]any `json:"by_source"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.CycleID != snap.CycleID.String() {
		t.Errorf("cycle_id = %s, want %s", resp.CycleID, snap.CycleID)
	}
	if len(resp.BySource) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.BySource))
	}
	dpi := resp.BySource["dpiStats"]
	if dpi["status"] != "error" || dpi["data"] != nil || dpi["error"] != "attempt timed out after 40s" {
		t.Errorf("dpiStats = %v", dpi)
	}
	queue := resp.BySource["queueStats"]
	if queue["status"] != "success" || queue["error"] != nil {
		t.Errorf("queueStats = %v", queue)
	}
}

func TestSnapshotHandler_Sources(t *testing.T) {
	router, store, _ := setupRouter(t, false)

	t.Run("List before first cycle", func(t *testing.T) {
		w := do(t, router, "GET", "/api/v1/sources", nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp struct {
			Sources []SourceInfo `json:"sources"`
			Total   int          `json:"total"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Total != 2 || resp.Sources[0].ID != "queueStats" || resp.Sources[1].ID != "dpiStats" {
			t.Errorf("sources = %+v", resp.Sources)
		}
		if resp.Sources[0].WorstCaseMS != 34000 {
			t.Errorf("worst case = %d, want 34000", resp.Sources[0].WorstCaseMS)
		}
	})

	store.Publish(testSnapshot())

	t.Run("Get", func(t *testing.T) {
		w := do(t, router, "GET", "/api/v1/sources/dpiStats", nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp map[string]any
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		latest, ok := resp["latest"].(map[string]any)
		if !ok || latest["status"] != "error" {
			t.Errorf("latest = %v", resp["latest"])
		}
		if resp["class"] != "heavy" || resp["max_attempts"] != float64(1) {
			t.Errorf("source = %v", resp)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		w := do(t, router, "GET", "/api/v1/sources/nope", nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("Kinds", func(t *testing.T) {
		w := do(t, router, "GET", "/api/v1/kinds", nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp struct {
			Kinds []source.Kind `json:"kinds"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Kinds) != 8 {
			t.Errorf("expected 8 kinds, got %d", len(resp.Kinds))
		}
	})
}

func TestAuthFlow(t *testing.T) {
	router, store, _ := setupRouter(t, true)
	store.Publish(testSnapshot())

	if w := do(t, router, "GET", "/api/v1/snapshot", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"Bad JSON", `{`, http.StatusBadRequest},
		{"Missing password", `{"username":"admin"}`, http.StatusBadRequest},
		{"Wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"OK", `{"username":"admin","password":"admin-pass"}`, http.StatusOK},
	}

	var token string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/v1/login", []byte(tt.body), "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp auth.LoginResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				token = resp.Token
			}
		})
	}

	if token == "" {
		t.Fatal("no token issued")
	}
	if w := do(t, router, "GET", "/api/v1/snapshot", nil, token); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
	// Health stays public.
	if w := do(t, router, "GET", "/health", nil, ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 for /health, got %d", w.Code)
	}
}

func TestLoginRouteAbsentWithoutAuth(t *testing.T) {
	router, _, _ := setupRouter(t, false)

	w := do(t, router, "POST", "/api/v1/login", []byte(`{"username":"admin","password":"admin-pass"}`), "")
	if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected login to be unavailable, got %d", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _, _ := setupRouter(t, true)

	w := do(t, router, "GET", "/metrics", nil, "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("sdnpulse_cycles_total")) {
		t.Errorf("metrics = %d %q", w.Code, w.Body.String())
	}
}
