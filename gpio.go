package fbtft

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Pins holds the control lines of a panel. Every line is optional; which
// ones are required depends on the bus.
type Pins struct {
	Reset gpio.PinOut // Active low reset
	DC    gpio.PinOut // Data/command select: low for commands
	RD    gpio.PinOut // Parallel read strobe
	WR    gpio.PinOut // Parallel write strobe
	CS    gpio.PinOut // Chip select, active low

	DB  [16]gpio.PinOut // Parallel data lines
	LED [16]gpio.PinOut // Backlight lines
}

// PinsFromProperties resolves the "reset-gpios", "dc-gpios", "rd-gpios",
// "wr-gpios", "cs-gpios", "db-gpios" and "led-gpios" properties to pins
// using byName, typically gpioreg.ByName. List properties hold comma
// separated names.
//
// A name that byName cannot resolve yet yields ErrDeferred.
func PinsFromProperties(props Properties, byName func(string) gpio.PinIO) (*Pins, error) {
	p := &Pins{}
	if props == nil {
		return p, nil
	}
	single := []struct {
		name string
		dst  *gpio.PinOut
	}{
		{"reset-gpios", &p.Reset},
		{"dc-gpios", &p.DC},
		{"rd-gpios", &p.RD},
		{"wr-gpios", &p.WR},
		{"cs-gpios", &p.CS},
	}
	for _, s := range single {
		names, err := pinNames(props, s.name, 1)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			continue
		}
		pin, err := lookupPin(byName, s.name, names[0])
		if err != nil {
			return nil, err
		}
		*s.dst = pin
	}
	for _, l := range []struct {
		name string
		dst  *[16]gpio.PinOut
	}{
		{"db-gpios", &p.DB},
		{"led-gpios", &p.LED},
	} {
		names, err := pinNames(props, l.name, 16)
		if err != nil {
			return nil, err
		}
		for i, n := range names {
			pin, err := lookupPin(byName, l.name, n)
			if err != nil {
				return nil, err
			}
			l.dst[i] = pin
		}
	}
	return p, nil
}

func pinNames(props Properties, name string, limit int) ([]string, error) {
	s, ok, err := props.String(name)
	if err != nil || !ok {
		return nil, err
	}
	names := splitList(s)
	if len(names) > limit {
		return nil, fmt.Errorf("%w: %s lists %d lines, at most %d", ErrConfigInvalid, name, len(names), limit)
	}
	return names, nil
}

func lookupPin(byName func(string) gpio.PinIO, prop, name string) (gpio.PinOut, error) {
	if byName == nil {
		return nil, fmt.Errorf("%w: no pin lookup for %s", ErrConfigInvalid, prop)
	}
	pin := byName(strings.TrimSpace(name))
	if pin == nil {
		return nil, fmt.Errorf("%w: %s: pin %q not found", ErrDeferred, prop, name)
	}
	return pin, nil
}

// busKind selects the pin verification rules.
type busKind int

const (
	busSerial busKind = iota
	busParallel
)

// verify checks that the lines required by the bus are present.
func (p *Pins) verify(kind busKind, busWidth int, startByte byte, carriesDC bool) error {
	if busWidth != 9 && startByte == 0 && !carriesDC && p.DC == nil {
		return fmt.Errorf("%w: missing dc line", ErrConfigInvalid)
	}
	if kind != busParallel {
		return nil
	}
	if p.WR == nil {
		return fmt.Errorf("%w: missing wr line", ErrConfigInvalid)
	}
	for i := 0; i < busWidth && i < len(p.DB); i++ {
		if p.DB[i] == nil {
			return fmt.Errorf("%w: missing db%02d line", ErrConfigInvalid, i)
		}
	}
	return nil
}

// initLevels drives every present line to its idle level.
func (p *Pins) initLevels() error {
	for _, l := range []struct {
		name string
		pin  gpio.PinOut
		lvl  gpio.Level
	}{
		{"reset", p.Reset, gpio.Low},
		{"dc", p.DC, gpio.Low},
		{"rd", p.RD, gpio.High},
		{"wr", p.WR, gpio.High},
		{"cs", p.CS, gpio.High},
	} {
		if l.pin == nil {
			continue
		}
		if err := l.pin.Out(l.lvl); err != nil {
			return fmt.Errorf("%w: %s line: %w", ErrTransport, l.name, err)
		}
	}
	for _, group := range []*[16]gpio.PinOut{&p.DB, &p.LED} {
		for i, pin := range group {
			if pin == nil {
				continue
			}
			if err := pin.Out(gpio.Low); err != nil {
				return fmt.Errorf("%w: line %s: %w", ErrTransport, pinName(pin, i), err)
			}
		}
	}
	return nil
}

func pinName(p gpio.PinOut, i int) string {
	if s := p.Name(); s != "" {
		return s
	}
	return fmt.Sprintf("#%d", i)
}

// reset pulses the reset line low. It is a no-op without a reset line.
func (p *Pins) reset(sleep func(time.Duration)) error {
	if p.Reset == nil {
		return nil
	}
	if err := p.Reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: reset line: %w", ErrTransport, err)
	}
	sleep(30 * time.Microsecond)
	if err := p.Reset.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: reset line: %w", ErrTransport, err)
	}
	sleep(120 * time.Millisecond)
	return nil
}

// selectChip asserts chip select when present.
func (p *Pins) selectChip() error {
	if p.CS == nil {
		return nil
	}
	if err := p.CS.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: cs line: %w", ErrTransport, err)
	}
	return nil
}

// setDC drives the data/command line when present.
func (p *Pins) setDC(dc bool) error {
	if p.DC == nil {
		return nil
	}
	if err := p.DC.Out(gpio.Level(dc)); err != nil {
		return fmt.Errorf("%w: dc line: %w", ErrTransport, err)
	}
	return nil
}

// halt releases every present line.
func (p *Pins) halt() error {
	var first error
	each := func(pin gpio.PinOut) {
		if pin == nil {
			return
		}
		if err := pin.Halt(); err != nil && first == nil {
			first = err
		}
	}
	for _, pin := range []gpio.PinOut{p.Reset, p.DC, p.RD, p.WR, p.CS} {
		each(pin)
	}
	for i := range p.DB {
		each(p.DB[i])
	}
	for i := range p.LED {
		each(p.LED[i])
	}
	return first
}
