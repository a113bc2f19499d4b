package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/masterzen/winrm"
	"github.com/sdnpulse/sdnpulse/internal/parse"
)

// WinRMConfig configures a remote command over WinRM.
type WinRMConfig struct {
	Host     string `yaml:"host" json:"host" validate:"required"`
	Port     int    `yaml:"port" json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"-" validate:"required"`
	UseHTTPS bool   `yaml:"use_https" json:"use_https"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
	Command  string `yaml:"command" json:"command" validate:"required"`
	Format   string `yaml:"format" json:"format,omitempty"`
}

// WinRMEndpoint runs a command on a Windows host.
type WinRMEndpoint struct {
	client  *winrm.Client
	command string
	format  string
}

func newWinRMFromConfig(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	if cfg.WinRM == nil {
		return nil, missingSection("winrm")
	}
	c := *cfg.WinRM
	if !parse.Supported(c.Format) {
		return nil, fmt.Errorf("winrm: unsupported format %q", c.Format)
	}
	password, err := reveal(c.Password)
	if err != nil {
		return nil, fmt.Errorf("winrm: password: %w", err)
	}
	c.Password = password
	return NewWinRMEndpoint(c)
}

// NewWinRMEndpoint creates the WinRM client.
func NewWinRMEndpoint(c WinRMConfig) (*WinRMEndpoint, error) {
	port := c.Port
	if port == 0 {
		port = 5985
		if c.UseHTTPS {
			port = 5986
		}
	}

	// The per-attempt context bounds each call; this is only the protocol
	// operation timeout.
	endpoint := winrm.NewEndpoint(c.Host, port, c.UseHTTPS, c.Insecure, nil, nil, nil, 60*time.Second)

	client, err := winrm.NewClient(endpoint, c.Username, c.Password)
	if err != nil {
		return nil, fmt.Errorf("winrm: client creation failed: %w", err)
	}

	return &WinRMEndpoint{client: client, command: c.Command, format: c.Format}, nil
}

// Attempt runs the command.
func (e *WinRMEndpoint) Attempt(ctx context.Context) (any, error) {
	stdout, stderr, exitCode, err := e.client.RunWithContextWithString(ctx, e.command, "")
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("winrm command failed: %w", err))
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("winrm command exited with code %d: %s", exitCode, strings.TrimSpace(stderr))
	}
	if strings.TrimSpace(stdout) == "" {
		return nil, ErrEmptyOutput
	}
	return parse.Decode(e.format, []byte(stdout))
}
