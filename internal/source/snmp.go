package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// SNMPConfig configures an SNMP v2c GET.
type SNMPConfig struct {
	Target    string `yaml:"target" json:"target" validate:"required"`
	Port      int    `yaml:"port" json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Community string `yaml:"community" json:"-" validate:"required"`
	// OIDs maps a result name to a numeric OID, e.g. in_octets: 1.3.6.1.2.1.31.1.1.1.6.3
	OIDs map[string]string `yaml:"oids" json:"oids" validate:"required,min=1"`
}

// SNMPEndpoint reads a fixed set of OIDs.
type SNMPEndpoint struct {
	target    string
	port      uint16
	community string
	names     map[string]string // normalized OID -> name
	oids      []string
}

func newSNMPFromConfig(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	if cfg.SNMP == nil {
		return nil, missingSection("snmp")
	}
	c := *cfg.SNMP
	community, err := reveal(c.Community)
	if err != nil {
		return nil, fmt.Errorf("snmp: community: %w", err)
	}
	c.Community = community
	return NewSNMPEndpoint(c)
}

// NewSNMPEndpoint validates the OID set.
func NewSNMPEndpoint(c SNMPConfig) (*SNMPEndpoint, error) {
	if len(c.OIDs) == 0 {
		return nil, errors.New("snmp: at least one oid is required")
	}
	port := c.Port
	if port == 0 {
		port = 161
	}

	e := &SNMPEndpoint{
		target:    c.Target,
		port:      uint16(port),
		community: c.Community,
		names:     make(map[string]string, len(c.OIDs)),
	}
	for name, oid := range c.OIDs {
		normalized := "." + strings.TrimPrefix(strings.TrimSpace(oid), ".")
		e.names[normalized] = name
		e.oids = append(e.oids, normalized)
	}
	return e, nil
}

// Attempt performs one GetRequest and returns values keyed by name.
func (e *SNMPEndpoint) Attempt(ctx context.Context) (any, error) {
	g := &gosnmp.GoSNMP{
		Target:    e.target,
		Port:      e.port,
		Version:   gosnmp.Version2c,
		Community: e.community,
		Context:   ctx,
		Retries:   0,
	}
	g.Timeout = 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		g.Timeout = max(time.Until(deadline), time.Millisecond)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connection failed: %w", err)
	}
	defer g.Conn.Close()

	result, err := g.Get(e.oids)
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("snmp get failed: %w", err))
	}
	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp agent error: %v", result.Error)
	}

	values := make(map[string]any, len(result.Variables))
	for _, v := range result.Variables {
		name, ok := e.names[v.Name]
		if !ok {
			name = v.Name
		}
		switch v.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
			values[name] = nil
		case gosnmp.OctetString:
			b, _ := v.Value.([]byte)
			values[name] = string(b)
		case gosnmp.Integer:
			values[name] = gosnmp.ToBigInt(v.Value).Int64()
		case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
			values[name] = gosnmp.ToBigInt(v.Value).Uint64()
		default:
			values[name] = fmt.Sprintf("%v", v.Value)
		}
	}
	return values, nil
}
