package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// UART is a serial bridge sink: bytes go out on a serial port and the
// data/command flag is signalled on the port's RTS line.
type UART struct {
	p     serial.Port
	dc    bool
	known bool
}

// NewUART wraps an open serial port.
func NewUART(p serial.Port) *UART {
	return &UART{p: p}
}

func (u *UART) String() string {
	return "transport.UART"
}

// Write implements Writer.
func (u *UART) Write(dc bool, b []byte) error {
	if !u.known || u.dc != dc {
		if err := u.p.SetRTS(dc); err != nil {
			return fmt.Errorf("transport: set RTS: %w", err)
		}
		u.dc = dc
		u.known = true
	}
	for len(b) > 0 {
		n, err := u.p.Write(b)
		if err != nil {
			return fmt.Errorf("transport: serial write: %w", err)
		}
		if n == 0 {
			return ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// CarriesDC implements Writer.
func (u *UART) CarriesDC() bool {
	return true
}

// Read implements Reader.
func (u *UART) Read(b []byte) error {
	for len(b) > 0 {
		n, err := u.p.Read(b)
		if err != nil {
			return fmt.Errorf("transport: serial read: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("transport: serial read timed out with %d bytes missing", len(b))
		}
		b = b[n:]
	}
	return nil
}

// Close releases the serial port.
func (u *UART) Close() error {
	return u.p.Close()
}
