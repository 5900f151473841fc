package hardware

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/nerrad567/shadowsync/internal/infrastructure/config"
)

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// Modbus is an I/O board reached over Modbus TCP. Buttons are discrete
// inputs (FC 2) and outputs are coils (FC 5).
type Modbus struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// DialModbus connects to the board described by cfg.
func DialModbus(cfg config.ModbusConfig) (*Modbus, error) {
	if cfg.Address == "" {
		return nil, errors.New("hardware modbus: address required")
	}

	h := modbus.NewTCPClientHandler(cfg.Address)
	h.Timeout = cfg.Timeout
	if h.Timeout <= 0 {
		h.Timeout = time.Second
	}
	h.SlaveId = cfg.SlaveID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Modbus{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// newModbusWithClient wraps an existing client.
func newModbusWithClient(c modbus.Client) *Modbus {
	return &Modbus{client: c}
}

// ReadInputs implements InputReader.
func (m *Modbus) ReadInputs(addr, qty uint16) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(qty)), nil
}

// WriteCoil implements CoilWriter.
func (m *Modbus) WriteCoil(addr uint16, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := coilOff
	if on {
		value = coilOn
	}
	_, err := m.client.WriteSingleCoil(addr, value)
	return err
}

// Close closes the TCP connection.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return nil
	}
	return m.handler.Close()
}

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		out[i] = data[byteIdx]&(1<<uint(i%8)) != 0
	}
	return out
}

// Open returns the board selected by cfg.Driver.
func Open(cfg config.HardwareConfig) (Board, error) {
	switch cfg.Driver {
	case "", "sim":
		return NewSim(), nil
	case "modbus":
		return DialModbus(cfg.Modbus)
	default:
		return nil, errors.New("hardware: unknown driver " + cfg.Driver)
	}
}
