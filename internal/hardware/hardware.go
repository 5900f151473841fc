package hardware

import (
	"errors"
	"fmt"
)

// ErrReadInputs is returned when the input backend cannot be sampled.
var ErrReadInputs = errors.New("hardware: reading inputs failed")

// InputReader reads a contiguous block of discrete inputs.
type InputReader interface {
	ReadInputs(addr, qty uint16) ([]bool, error)
}

// CoilWriter drives a single coil.
type CoilWriter interface {
	WriteCoil(addr uint16, on bool) error
}

// Board is a complete I/O backend.
type Board interface {
	InputReader
	CoilWriter
	Close() error
}

// Coil is an on/off actuator bound to one coil address.
type Coil struct {
	w    CoilWriter
	addr uint16
}

// NewCoil returns an actuator for the coil at addr.
func NewCoil(w CoilWriter, addr uint16) *Coil {
	return &Coil{w: w, addr: addr}
}

// Set switches the coil.
func (c *Coil) Set(on bool) error {
	if err := c.w.WriteCoil(c.addr, on); err != nil {
		return fmt.Errorf("coil %d: %w", c.addr, err)
	}
	return nil
}
