package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// ErrAllTargetsDown is returned when no connectivity target answered.
var ErrAllTargetsDown = errors.New("all targets unreachable")

// ErrTargetDown is returned in strict mode when any target failed.
var ErrTargetDown = errors.New("target unreachable")

// TCPConfig configures a connectivity check.
type TCPConfig struct {
	// Targets maps a display name to host:port.
	Targets    map[string]string `yaml:"targets" json:"targets" validate:"required,min=1,dive,hostname_port"`
	RequireAll bool              `yaml:"require_all" json:"require_all"`
}

// LinkStatus is the result for one target.
type LinkStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// TCPEndpoint dials every target concurrently.
type TCPEndpoint struct {
	targets    map[string]string
	requireAll bool
	dialer     *net.Dialer
}

// NewTCPEndpoint creates a connectivity endpoint.
func NewTCPEndpoint(cfg TCPConfig) *TCPEndpoint {
	return &TCPEndpoint{
		targets:    cfg.Targets,
		requireAll: cfg.RequireAll,
		dialer:     &net.Dialer{},
	}
}

func newTCPFromConfig(cfg EndpointConfig, _ Reveal) (Endpoint, error) {
	if cfg.TCP == nil {
		return nil, missingSection("tcp")
	}
	if len(cfg.TCP.Targets) == 0 {
		return nil, errors.New("tcp: at least one target is required")
	}
	return NewTCPEndpoint(*cfg.TCP), nil
}

// Attempt dials all targets and returns a map of LinkStatus keyed by name.
func (e *TCPEndpoint) Attempt(ctx context.Context) (any, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]LinkStatus, len(e.targets))
	)

	for name, addr := range e.targets {
		wg.Add(1)
		go func(name, addr string) {
			defer wg.Done()
			status := e.probe(ctx, addr)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, addr)
	}
	wg.Wait()

	var down []string
	for name, st := range results {
		if st.Status != "success" {
			down = append(down, name)
		}
	}
	sort.Strings(down)

	switch {
	case len(down) == len(results):
		return nil, fmt.Errorf("%w: %v", ErrAllTargetsDown, down)
	case e.requireAll && len(down) > 0:
		return nil, fmt.Errorf("%w: %v", ErrTargetDown, down)
	}
	return results, nil
}

func (e *TCPEndpoint) probe(ctx context.Context, addr string) LinkStatus {
	start := time.Now()
	conn, err := e.dialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return LinkStatus{Status: "error", Message: err.Error(), LatencyMS: latency}
	}
	conn.Close()
	return LinkStatus{Status: "success", Message: "connected to " + addr, LatencyMS: latency}
}
