// Package source describes the telemetry sources polled by the collector.
//
// A Descriptor is immutable once built from configuration. The poller only
// depends on the Endpoint interface; every transport (HTTP, SSH, SNMP, ...)
// is an adapter that satisfies it.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Class selects the default timeout/retry profile of a source.
type Class string

const (
	ClassStandard Class = "standard"
	// ClassHeavy is for expensive sources such as a DPI capture. They get a
	// long timeout and a single attempt so a slow upstream is never hit by a
	// retry storm.
	ClassHeavy Class = "heavy"
)

// Profile holds the default budget for a class.
type Profile struct {
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Defaults returns the budget applied when a source leaves a field unset.
func (c Class) Defaults() Profile {
	if c == ClassHeavy {
		return Profile{Timeout: 40 * time.Second, MaxAttempts: 1, RetryBackoff: 2 * time.Second}
	}
	return Profile{Timeout: 10 * time.Second, MaxAttempts: 3, RetryBackoff: 2 * time.Second}
}

// Endpoint performs a single attempt against an upstream.
type Endpoint interface {
	Attempt(ctx context.Context) (any, error)
}

// EndpointFunc adapts a plain function to Endpoint.
type EndpointFunc func(ctx context.Context) (any, error)

// Attempt calls f(ctx).
func (f EndpointFunc) Attempt(ctx context.Context) (any, error) {
	return f(ctx)
}

// Descriptor is the static description of one source.
type Descriptor struct {
	ID           string
	Kind         string
	Class        Class
	Endpoint     Endpoint
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

var (
	ErrDuplicateID     = errors.New("duplicate source id")
	ErrInvalidBudget   = errors.New("invalid retry budget")
	ErrMissingEndpoint = errors.New("missing endpoint")
)

// Validate checks the invariants of a single descriptor.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("source id is required")
	}
	if d.Endpoint == nil {
		return fmt.Errorf("source %q: %w", d.ID, ErrMissingEndpoint)
	}
	if d.MaxAttempts < 1 {
		return fmt.Errorf("source %q: max attempts must be >= 1, got %d: %w", d.ID, d.MaxAttempts, ErrInvalidBudget)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("source %q: timeout must be > 0, got %s: %w", d.ID, d.Timeout, ErrInvalidBudget)
	}
	if d.RetryBackoff < 0 {
		return fmt.Errorf("source %q: retry backoff must be >= 0, got %s: %w", d.ID, d.RetryBackoff, ErrInvalidBudget)
	}
	return nil
}

// WorstCase is the longest a fetch of this source can take.
func (d Descriptor) WorstCase() time.Duration {
	if d.MaxAttempts < 1 {
		return 0
	}
	return time.Duration(d.MaxAttempts)*d.Timeout + time.Duration(d.MaxAttempts-1)*d.RetryBackoff
}

// ValidateDescriptors checks every descriptor and that ids are unique.
func ValidateDescriptors(descs []Descriptor) error {
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("source %q: %w", d.ID, ErrDuplicateID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

// IDs returns the ids of descs in configuration order.
func IDs(descs []Descriptor) []string {
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	return ids
}

// CloseAll closes every endpoint that holds resources.
func CloseAll(descs []Descriptor) error {
	var errs []error
	for _, d := range descs {
		if c, ok := d.Endpoint.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("source %q: %w", d.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}
