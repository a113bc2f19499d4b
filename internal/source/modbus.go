package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig configures a register read from a Modbus TCP device.
type ModbusConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required,hostname_port"`
	UnitID   uint8  `yaml:"unit_id" json:"unit_id"`
	Function string `yaml:"function" json:"function" validate:"omitempty,oneof=holding input"`
	Address  uint16 `yaml:"address" json:"address"`
	Quantity uint16 `yaml:"quantity" json:"quantity" validate:"required,min=1,max=125"`
	// Names labels registers in order; unnamed registers are returned by index.
	Names []string `yaml:"names" json:"names,omitempty"`
}

// ModbusEndpoint reads a block of registers per attempt.
type ModbusEndpoint struct {
	cfg ModbusConfig
}

func newModbusFromConfig(cfg EndpointConfig, _ Reveal) (Endpoint, error) {
	if cfg.Modbus == nil {
		return nil, missingSection("modbus")
	}
	return NewModbusEndpoint(*cfg.Modbus)
}

// NewModbusEndpoint validates the register block.
func NewModbusEndpoint(c ModbusConfig) (*ModbusEndpoint, error) {
	if c.Endpoint == "" {
		return nil, errors.New("modbus: endpoint required")
	}
	if c.Quantity == 0 || c.Quantity > 125 {
		return nil, fmt.Errorf("modbus: quantity must be between 1 and 125, got %d", c.Quantity)
	}
	if c.Function == "" {
		c.Function = "holding"
	}
	return &ModbusEndpoint{cfg: c}, nil
}

// Attempt connects, reads and disconnects.
func (e *ModbusEndpoint) Attempt(ctx context.Context) (any, error) {
	h := modbus.NewTCPClientHandler(e.cfg.Endpoint)
	h.SlaveId = e.cfg.UnitID
	h.Timeout = 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		h.Timeout = max(time.Until(deadline), time.Millisecond)
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus connect failed: %w", err)
	}
	defer h.Close()

	client := modbus.NewClient(h)

	var raw []byte
	var err error
	if e.cfg.Function == "input" {
		raw, err = client.ReadInputRegisters(e.cfg.Address, e.cfg.Quantity)
	} else {
		raw, err = client.ReadHoldingRegisters(e.cfg.Address, e.cfg.Quantity)
	}
	if err != nil {
		return nil, ctxErrOr(ctx, fmt.Errorf("modbus read failed: %w", err))
	}

	return labelRegisters(unpackRegisters(raw), e.cfg.Names), nil
}

func unpackRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return out
}

func labelRegisters(regs []uint16, names []string) map[string]uint16 {
	out := make(map[string]uint16, len(regs))
	for i, v := range regs {
		key := fmt.Sprintf("%d", i)
		if i < len(names) && names[i] != "" {
			key = names[i]
		}
		out[key] = v
	}
	return out
}
