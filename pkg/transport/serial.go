package transport

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// SerialConfig describes the UART line. The appliance runs 9600 8N1.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string // "none", "odd", "even"
	StopBits int    // 1 or 2
}

// DefaultSerialConfig returns 9600 baud, 8 data bits, no parity, 1 stop bit.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:   device,
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "none",
		StopBits: 1,
	}
}

func (c SerialConfig) mode() (*serial.Mode, error) {
	m := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	switch c.Parity {
	case "", "none":
		m.Parity = serial.NoParity
	case "odd":
		m.Parity = serial.OddParity
	case "even":
		m.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("transport: unsupported parity %q", c.Parity)
	}
	switch c.StopBits {
	case 0, 1:
		m.StopBits = serial.OneStopBit
	case 2:
		m.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("transport: unsupported stop bits %d", c.StopBits)
	}
	return m, nil
}

// OpenSerial opens the UART and returns it as a link.
func OpenSerial(cfg SerialConfig, opts ...Option) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("transport: serial device is required")
	}
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}
	return NewPort(serialAdapter{p}, opts...), nil
}

// serialAdapter maps driver errors onto the Port contract.
type serialAdapter struct {
	serial.Port
}

func (a serialAdapter) Read(p []byte) (int, error) {
	n, err := a.Port.Read(p)
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
		return n, ErrClosed
	}
	return n, err
}
