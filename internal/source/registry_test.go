package source

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistryKinds(t *testing.T) {
	registry := NewRegistry()

	expected := map[string]bool{
		"http":     false,
		"tcp":      false,
		"exec":     false,
		"ssh":      false,
		"winrm":    false,
		"snmp":     false,
		"postgres": false,
		"modbus":   false,
	}

	for _, k := range registry.ListKinds() {
		if _, exists := expected[k.ID]; !exists {
			t.Errorf("Unexpected kind: %s", k.ID)
		}
		expected[k.ID] = true
	}
	for id, found := range expected {
		if !found {
			t.Errorf("Expected kind not found: %s", id)
		}
	}

	if _, err := registry.GetKind("ftp"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRegistryBuild(t *testing.T) {
	registry := NewRegistry()

	testCases := []struct {
		name    string
		cfg     EndpointConfig
		wantErr string
	}{
		{"unknown kind", EndpointConfig{Kind: "ftp"}, "unknown endpoint kind"},
		{"missing section", EndpointConfig{Kind: "http"}, `requires a "http" section`},
		{"http", EndpointConfig{Kind: "HTTP", HTTP: &HTTPConfig{URL: "http://localhost/api/queue-stats"}}, ""},
		{"http bad format", EndpointConfig{Kind: "http", HTTP: &HTTPConfig{URL: "http://x", Format: "xml"}}, "unsupported format"},
		{"tcp", EndpointConfig{Kind: "tcp", TCP: &TCPConfig{Targets: map[string]string{"s1": "127.0.0.1:6653"}}}, ""},
		{"tcp no targets", EndpointConfig{Kind: "tcp", TCP: &TCPConfig{}}, "at least one target"},
		{"exec", EndpointConfig{Kind: "exec", Exec: &ExecConfig{Command: "tc", Format: "tc-qdisc"}}, ""},
		{"ssh no auth", EndpointConfig{Kind: "ssh", SSH: &SSHConfig{Host: "h", Username: "u", Command: "uptime"}}, "no authentication method"},
		{"ssh password", EndpointConfig{Kind: "ssh", SSH: &SSHConfig{Host: "h", Username: "u", Password: "p", Command: "uptime"}}, ""},
		{"snmp no oids", EndpointConfig{Kind: "snmp", SNMP: &SNMPConfig{Target: "h", Community: "public"}}, "at least one oid"},
		{"snmp", EndpointConfig{Kind: "snmp", SNMP: &SNMPConfig{Target: "h", Community: "public", OIDs: map[string]string{"in": "1.3.6.1.2.1.2.2.1.10.1"}}}, ""},
		{"modbus bad quantity", EndpointConfig{Kind: "modbus", Modbus: &ModbusConfig{Endpoint: "127.0.0.1:502"}}, "quantity"},
		{"postgres bad dsn", EndpointConfig{Kind: "postgres", Postgres: &PostgresConfig{DSN: "host=localhost port=notaport", Query: "select 1"}}, "invalid dsn"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := registry.Build(tc.cfg, nil)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Build() error = %v", err)
				}
				if ep == nil {
					t.Fatal("Build() returned nil endpoint")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Build() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestRegistryBuild_RevealsSecrets(t *testing.T) {
	registry := NewRegistry()
	var revealed []string
	reveal := func(s string) (string, error) {
		revealed = append(revealed, s)
		if s == "enc:bad" {
			return "", errors.New("cannot decrypt")
		}
		return strings.TrimPrefix(s, "enc:"), nil
	}

	_, err := registry.Build(EndpointConfig{Kind: "snmp", SNMP: &SNMPConfig{
		Target: "h", Community: "enc:public", OIDs: map[string]string{"in": "1.3.6.1"},
	}}, reveal)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(revealed) != 1 || revealed[0] != "enc:public" {
		t.Errorf("revealed = %v", revealed)
	}

	_, err = registry.Build(EndpointConfig{Kind: "snmp", SNMP: &SNMPConfig{
		Target: "h", Community: "enc:bad", OIDs: map[string]string{"in": "1.3.6.1"},
	}}, reveal)
	if err == nil {
		t.Error("expected reveal error to fail the build")
	}
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Kind{ID: "static", Name: "Static"}, func(EndpointConfig, Reveal) (Endpoint, error) {
		return EndpointFunc(func(context.Context) (any, error) { return "ok", nil }), nil
	})

	ep, err := registry.Build(EndpointConfig{Kind: "static"}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	v, err := ep.Attempt(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("Attempt() = %v, %v", v, err)
	}
}
