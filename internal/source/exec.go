package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/parse"
)

// ErrEmptyOutput is returned when a command printed nothing to decode.
var ErrEmptyOutput = errors.New("command returned empty output")

// ExecConfig configures a local command endpoint.
type ExecConfig struct {
	Command string   `yaml:"command" json:"command" validate:"required"`
	Args    []string `yaml:"args" json:"args,omitempty"`
	Format  string   `yaml:"format" json:"format,omitempty"`
	// CaptureMS turns the command into a capture: it is interrupted after
	// this window and whatever it printed is decoded.
	CaptureMS int `yaml:"capture_ms" json:"capture_ms,omitempty" validate:"gte=0"`
}

// GetCapture returns the capture window as a duration.
func (c *ExecConfig) GetCapture() time.Duration {
	return time.Duration(c.CaptureMS) * time.Millisecond
}

// ExecEndpoint runs a local command per attempt.
type ExecEndpoint struct {
	command string
	args    []string
	format  string
	capture time.Duration
}

// NewExecEndpoint creates a command endpoint.
func NewExecEndpoint(cfg ExecConfig) *ExecEndpoint {
	return &ExecEndpoint{
		command: cfg.Command,
		args:    cfg.Args,
		format:  cfg.Format,
		capture: cfg.GetCapture(),
	}
}

func newExecFromConfig(cfg EndpointConfig, _ Reveal) (Endpoint, error) {
	if cfg.Exec == nil {
		return nil, missingSection("exec")
	}
	if cfg.Exec.Command == "" {
		return nil, errors.New("exec: command is required")
	}
	if !parse.Supported(cfg.Exec.Format) {
		return nil, fmt.Errorf("exec: unsupported format %q", cfg.Exec.Format)
	}
	return NewExecEndpoint(*cfg.Exec), nil
}

// Attempt runs the command and decodes stdout.
func (e *ExecEndpoint) Attempt(ctx context.Context) (any, error) {
	runCtx := ctx
	if e.capture > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.capture)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.command, e.args...)
	if e.capture > 0 {
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// The outer deadline always wins over a capture window.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	captured := e.capture > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if err != nil && !captured {
		return nil, fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return nil, ErrEmptyOutput
	}

	return parse.Decode(e.format, stdout.Bytes())
}
