package hardware

import (
	"fmt"
	"sync"
)

// simSize is the number of inputs and coils on the simulated board.
const simSize = 16

// Sim is an in-memory I/O board.
type Sim struct {
	mu     sync.Mutex
	inputs [simSize]bool
	coils  [simSize]bool
	writes int
}

// NewSim returns a board with all inputs low and all coils off.
func NewSim() *Sim {
	return &Sim{}
}

// SetInput drives the simulated input at addr.
func (s *Sim) SetInput(addr uint16, level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) < simSize {
		s.inputs[addr] = level
	}
}

// ReadInputs implements InputReader.
func (s *Sim) ReadInputs(addr, qty uint16) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr)+int(qty) > simSize {
		return nil, fmt.Errorf("sim: inputs %d..%d out of range", addr, int(addr)+int(qty)-1)
	}
	out := make([]bool, qty)
	copy(out, s.inputs[addr:int(addr)+int(qty)])
	return out, nil
}

// WriteCoil implements CoilWriter.
func (s *Sim) WriteCoil(addr uint16, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= simSize {
		return fmt.Errorf("sim: coil %d out of range", addr)
	}
	s.coils[addr] = on
	s.writes++
	return nil
}

// Coil returns the state of the coil at addr.
func (s *Sim) Coil(addr uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr) >= simSize {
		return false
	}
	return s.coils[addr]
}

// CoilWrites returns the number of coil writes so far.
func (s *Sim) CoilWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close implements Board.
func (s *Sim) Close() error { return nil }
