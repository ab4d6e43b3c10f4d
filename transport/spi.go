package transport

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3"
)

// SPI is a serial sink using 8 bits per word. The data/command line is
// driven by the caller.
type SPI struct {
	c   conn.Conn
	max int
}

// NewSPI wraps an SPI connection opened with 8 bits per word.
func NewSPI(c conn.Conn) *SPI {
	return &SPI{c: c, max: maxTxSize(c)}
}

func (s *SPI) String() string {
	return fmt.Sprintf("transport.SPI{%s}", s.c)
}

// Write implements Writer.
func (s *SPI) Write(dc bool, p []byte) error {
	return txChunked(s.c, s.max, p)
}

// CarriesDC implements Writer.
func (s *SPI) CarriesDC() bool {
	return false
}

// Read implements Reader.
func (s *SPI) Read(p []byte) error {
	return s.c.Tx(nil, p)
}

// SPI9 is a serial sink on a port that natively supports 9 bits per word.
// Each 9 bit unit travels as a 16 bit word in host order, as spidev
// expects.
type SPI9 struct {
	c   conn.Conn
	max int
	buf []byte
}

// NewSPI9 wraps an SPI connection opened with 9 bits per word. n is the
// number of units sent per transfer.
func NewSPI9(c conn.Conn, n int) *SPI9 {
	if n < 1 {
		n = 1
	}
	return &SPI9{c: c, max: maxTxSize(c), buf: make([]byte, 2*n)}
}

func (s *SPI9) String() string {
	return fmt.Sprintf("transport.SPI9{%s}", s.c)
}

// Write implements Writer.
func (s *SPI9) Write(dc bool, p []byte) error {
	var flag uint16
	if dc {
		flag = 0x100
	}
	for len(p) > 0 {
		n := min(len(p), len(s.buf)/2)
		for i := 0; i < n; i++ {
			binary.NativeEndian.PutUint16(s.buf[2*i:], flag|uint16(p[i]))
		}
		if err := txChunked(s.c, s.max, s.buf[:2*n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write9 implements Writer9.
func (s *SPI9) Write9(units []uint16) error {
	for len(units) > 0 {
		n := min(len(units), len(s.buf)/2)
		for i := 0; i < n; i++ {
			binary.NativeEndian.PutUint16(s.buf[2*i:], units[i]&0x1FF)
		}
		if err := txChunked(s.c, s.max, s.buf[:2*n]); err != nil {
			return err
		}
		units = units[n:]
	}
	return nil
}

// CarriesDC implements Writer.
func (s *SPI9) CarriesDC() bool {
	return true
}

// Emulated9 sends 9 bit units over an 8 bit serial port by packing them
// into a bit stream.
type Emulated9 struct {
	c     conn.Conn
	max   int
	extra []byte
	units []uint16
}

// NewEmulated9 wraps an SPI connection opened with 8 bits per word. n is
// the base transmit buffer length; the packing buffer is n + n/8 + 8 bytes.
func NewEmulated9(c conn.Conn, n int) *Emulated9 {
	if n < 8 {
		n = 8
	}
	return &Emulated9{
		c:     c,
		max:   maxTxSize(c),
		extra: make([]byte, n+n/8+8),
		units: make([]uint16, 0, n),
	}
}

func (e *Emulated9) String() string {
	return fmt.Sprintf("transport.Emulated9{%s}", e.c)
}

// Write implements Writer.
func (e *Emulated9) Write(dc bool, p []byte) error {
	step := cap(e.units)
	for len(p) > 0 {
		n := min(len(p), step)
		e.units = Units9(e.units, dc, p[:n])
		if err := e.Write9(e.units); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write9 implements Writer9.
func (e *Emulated9) Write9(units []uint16) error {
	// Whole groups of 8 units keep every chunk byte aligned.
	step := (len(e.extra) - 8) / 9 * 8
	if step == 0 {
		step = 8
	}
	for len(units) > 0 {
		n := min(len(units), step)
		m := Pack9(e.extra, units[:n])
		if err := txChunked(e.c, e.max, e.extra[:m]); err != nil {
			return err
		}
		units = units[n:]
	}
	return nil
}

// CarriesDC implements Writer.
func (e *Emulated9) CarriesDC() bool {
	return true
}

func maxTxSize(c conn.Conn) int {
	if l, ok := c.(conn.Limits); ok {
		return l.MaxTxSize()
	}
	return 0
}

func txChunked(c conn.Conn, max int, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if max > 0 && n > max {
			n = max
		}
		if err := c.Tx(p[:n], nil); err != nil {
			return fmt.Errorf("transport: tx of %d bytes failed: %w", n, err)
		}
		p = p[n:]
	}
	return nil
}
