package fbtft

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"periph.io/x/devices/v3/fbtft/initseq"
	"periph.io/x/devices/v3/fbtft/transport"
)

// Par is the driver state handed to panel operations.
//
// Operations run with the bus held; they must use the methods of Par and
// never call back into Dev.
type Par struct {
	name string
	w    transport.Writer
	w9   transport.Writer9 // nil unless the sink takes 9 bit units
	pins *Pins
	disp Display
	ops  Ops

	startByte byte
	bgr       bool
	rotate    int
	xres      int
	yres      int
	stride    int

	vmem   []byte
	txbuf  []byte
	units  []uint16
	regbuf []byte
	swap   bool // byte swap pixels on the wire

	prog initseq.Program
	bl   Backlight

	logger *log.Logger
	debug  bool
	sleep  func(time.Duration)
}

// WriteRegister writes reg followed by data through the selected register
// encoder.
func (p *Par) WriteRegister(reg int, data ...int) error {
	if p.debug {
		p.logf("write_register: reg=0x%X data=% X", reg, data)
	}
	return p.ops.WriteRegister(p, reg, data...)
}

// Write drives the D/C line then sends b.
func (p *Par) Write(dc bool, b []byte) error {
	if !p.w.CarriesDC() {
		if err := p.pins.setDC(dc); err != nil {
			return err
		}
	}
	if p.debug {
		n := min(len(b), 32)
		p.logf("write(dc=%t, len=%d):\n%s", dc, len(b), hex.Dump(b[:n]))
	}
	if err := p.ops.Write(p, dc, b); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Write9 sends 9 bit units; bit 8 of each unit is its D/C flag.
func (p *Par) Write9(units []uint16) error {
	if p.w9 == nil {
		return fmt.Errorf("%w: transport does not take 9 bit units", ErrNotSupported)
	}
	if err := p.w9.Write9(units); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Read reads from the panel into b.
func (p *Par) Read(b []byte) error {
	return p.ops.Read(p, b)
}

// Reset pulses the reset line.
func (p *Par) Reset() error {
	return p.ops.Reset(p)
}

// Select asserts chip select, when present.
func (p *Par) Select() error {
	return p.pins.selectChip()
}

// Sleep pauses for d.
func (p *Par) Sleep(d time.Duration) {
	p.sleep(d)
}

// SetAddrWin selects the controller memory window.
func (p *Par) SetAddrWin(xs, ys, xe, ye int) error {
	return p.ops.SetAddrWin(p, xs, ys, xe, ye)
}

// Rotate returns the rotation in degrees.
func (p *Par) Rotate() int { return p.rotate }

// BGR reports whether the panel expects blue first.
func (p *Par) BGR() bool { return p.bgr }

// Size returns the logical resolution, after rotation.
func (p *Par) Size() (w, h int) { return p.xres, p.yres }

// Display returns the resolved descriptor.
func (p *Par) Display() Display { return p.disp }

// Pins returns the control lines.
func (p *Par) Pins() *Pins { return p.pins }

// Logf logs with the driver name prefix.
func (p *Par) Logf(format string, v ...any) {
	p.logf(format, v...)
}

func (p *Par) logf(format string, v ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(p.name+": "+format, v...)
}

// defaultOps returns the fallback operations for p. The encoders are picked
// by selectEncoders.
func defaultOps() Ops {
	return Ops{
		Write:               writeTransport,
		Read:                readTransport,
		SetAddrWin:          setAddrWin,
		Reset:               resetPins,
		InitDisplay:         initDisplay,
		RegisterBacklight:   registerBacklight,
		UnregisterBacklight: unregisterBacklight,
	}
}

func writeTransport(p *Par, dc bool, b []byte) error {
	return p.w.Write(dc, b)
}

func readTransport(p *Par, b []byte) error {
	r, ok := p.w.(transport.Reader)
	if !ok {
		return fmt.Errorf("%w: transport cannot read", ErrNotSupported)
	}
	if err := r.Read(b); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func resetPins(p *Par) error {
	if p.pins.Reset == nil {
		return nil
	}
	p.logf("reset")
	return p.pins.reset(p.sleep)
}

// initDisplay runs the decoded init program.
func initDisplay(p *Par) error {
	if p.prog == nil {
		return fmt.Errorf("%w: init sequence is not set", ErrConfigInvalid)
	}
	return initseq.Run(context.Background(), p.prog, p)
}

var _ initseq.Target = (*Par)(nil)
