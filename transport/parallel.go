package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Parallel is a bit-banged 8 or 16 bit parallel bus with a write strobe.
//
// For each unit it drives the data lines, then pulses wr low then high. On
// a 16 bit bus the input is a stream of 16 bit words in host order. Lines
// whose level is unchanged since the previous unit are not driven again.
type Parallel struct {
	wr     gpio.PinOut
	db     []gpio.PinOut
	prev   uint16
	primed bool
}

// NewParallel returns a parallel sink. db holds the data lines, LSB first;
// its length is the bus width and must be 8 or 16.
func NewParallel(wr gpio.PinOut, db []gpio.PinOut) (*Parallel, error) {
	if wr == nil {
		return nil, errors.New("transport: parallel bus requires a wr line")
	}
	if len(db) != 8 && len(db) != 16 {
		return nil, fmt.Errorf("transport: unsupported parallel bus width %d", len(db))
	}
	for i, p := range db {
		if p == nil {
			return nil, fmt.Errorf("transport: missing db%02d line", i)
		}
	}
	return &Parallel{wr: wr, db: db}, nil
}

func (p *Parallel) String() string {
	return fmt.Sprintf("transport.Parallel{wr=%s, %d bit}", p.wr, len(p.db))
}

// Write implements Writer.
func (p *Parallel) Write(dc bool, b []byte) error {
	if len(p.db) == 8 {
		for _, v := range b {
			if err := p.strobe(uint16(v)); err != nil {
				return err
			}
		}
		return nil
	}
	if len(b)%2 != 0 {
		return fmt.Errorf("transport: odd length %d on 16 bit bus", len(b))
	}
	for i := 0; i < len(b); i += 2 {
		if err := p.strobe(binary.NativeEndian.Uint16(b[i:])); err != nil {
			return err
		}
	}
	return nil
}

// CarriesDC implements Writer.
func (p *Parallel) CarriesDC() bool {
	return false
}

func (p *Parallel) strobe(v uint16) error {
	for i, pin := range p.db {
		bit := v >> uint(i) & 1
		if p.primed && p.prev>>uint(i)&1 == bit {
			continue
		}
		if err := pin.Out(gpio.Level(bit == 1)); err != nil {
			return fmt.Errorf("transport: db%02d: %w", i, err)
		}
	}
	p.prev = v
	p.primed = true
	if err := p.wr.Out(gpio.Low); err != nil {
		return fmt.Errorf("transport: wr: %w", err)
	}
	if err := p.wr.Out(gpio.High); err != nil {
		return fmt.Errorf("transport: wr: %w", err)
	}
	return nil
}
