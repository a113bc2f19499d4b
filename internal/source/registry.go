package source

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EndpointConfig selects an endpoint kind and carries its settings. Exactly
// the section matching Kind is read.
type EndpointConfig struct {
	Kind     string          `yaml:"kind" json:"kind" validate:"required"`
	HTTP     *HTTPConfig     `yaml:"http,omitempty" json:"http,omitempty"`
	TCP      *TCPConfig      `yaml:"tcp,omitempty" json:"tcp,omitempty"`
	Exec     *ExecConfig     `yaml:"exec,omitempty" json:"exec,omitempty"`
	SSH      *SSHConfig      `yaml:"ssh,omitempty" json:"ssh,omitempty"`
	WinRM    *WinRMConfig    `yaml:"winrm,omitempty" json:"winrm,omitempty"`
	SNMP     *SNMPConfig     `yaml:"snmp,omitempty" json:"snmp,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
	Modbus   *ModbusConfig   `yaml:"modbus,omitempty" json:"modbus,omitempty"`
}

// Reveal turns a stored secret into its plain value.
type Reveal func(string) (string, error)

// PlainText is the Reveal used when secrets are not encrypted.
func PlainText(s string) (string, error) { return s, nil }

// Factory builds an endpoint from its configuration.
type Factory func(cfg EndpointConfig, reveal Reveal) (Endpoint, error)

// Kind describes a registered endpoint kind.
type Kind struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DefaultPort int    `json:"default_port,omitempty"`
}

// Registry maps endpoint kinds to factories.
type Registry struct {
	kinds     map[string]Kind
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns a registry with every built-in endpoint kind.
func NewRegistry() *Registry {
	r := &Registry{
		kinds:     make(map[string]Kind),
		factories: make(map[string]Factory),
	}
	r.initializeKinds()
	return r
}

func (r *Registry) initializeKinds() {
	r.Register(Kind{
		ID:          "http",
		Name:        "HTTP JSON",
		Description: "GET a JSON document from a REST endpoint",
		DefaultPort: 80,
	}, newHTTPFromConfig)

	r.Register(Kind{
		ID:          "tcp",
		Name:        "TCP connectivity",
		Description: "Dial a set of targets and report per-target reachability",
	}, newTCPFromConfig)

	r.Register(Kind{
		ID:          "exec",
		Name:        "Local command",
		Description: "Run a local command and decode its output",
	}, newExecFromConfig)

	r.Register(Kind{
		ID:          "ssh",
		Name:        "Remote command (SSH)",
		Description: "Run a command on a Linux/Unix host over SSH and decode its output",
		DefaultPort: 22,
	}, newSSHFromConfig)

	r.Register(Kind{
		ID:          "winrm",
		Name:        "Remote command (WinRM)",
		Description: "Run a command on a Windows host over WinRM and decode its output",
		DefaultPort: 5985,
	}, newWinRMFromConfig)

	r.Register(Kind{
		ID:          "snmp",
		Name:        "SNMP v2c",
		Description: "GET a set of OIDs from an SNMP agent",
		DefaultPort: 161,
	}, newSNMPFromConfig)

	r.Register(Kind{
		ID:          "postgres",
		Name:        "PostgreSQL query",
		Description: "Run a read-only query against a metrics database",
		DefaultPort: 5432,
	}, newPostgresFromConfig)

	r.Register(Kind{
		ID:          "modbus",
		Name:        "Modbus TCP",
		Description: "Read holding or input registers from a Modbus TCP device",
		DefaultPort: 502,
	}, newModbusFromConfig)
}

// Register adds or replaces a kind.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind.ID] = kind
	r.factories[kind.ID] = factory
}

// GetKind returns a kind by id.
func (r *Registry) GetKind(id string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, exists := r.kinds[id]
	if !exists {
		return Kind{}, fmt.Errorf("endpoint kind not found: %s", id)
	}
	return kind, nil
}

// ListKinds returns all kinds sorted by id.
func (r *Registry) ListKinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].ID < kinds[j].ID })
	return kinds
}

// Build constructs the endpoint described by cfg.
func (r *Registry) Build(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))

	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown endpoint kind: %q", cfg.Kind)
	}
	if reveal == nil {
		reveal = PlainText
	}
	return factory(cfg, reveal)
}

func missingSection(kind string) error {
	return fmt.Errorf("endpoint kind %q requires a %q section", kind, kind)
}
