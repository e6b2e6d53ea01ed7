package service

import (
	"strings"

	"github.com/wkrzos/parked/internal/parking/types"
)

// DefaultGates is the role → gate id mapping used when none is configured.
var DefaultGates = map[string]int64{
	types.GateRoleEntry:     1,
	types.GateRoleDeparture: 2,
}

// GateRegistry resolves a gate role to the numeric gate id written to gate_log.
type GateRegistry struct {
	gates map[string]int64
}

func NewGateRegistry(gates map[string]int64) *GateRegistry {
	if len(gates) == 0 {
		gates = DefaultGates
	}
	m := make(map[string]int64, len(gates))
	for role, id := range gates {
		m[strings.ToLower(strings.TrimSpace(role))] = id
	}
	return &GateRegistry{gates: m}
}

// GateID returns the id for role, or 0 when the role is unknown.
func (r *GateRegistry) GateID(role string) int64 {
	return r.gates[strings.ToLower(strings.TrimSpace(role))]
}
