package fbtft

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/fbtft/image565"
	"periph.io/x/devices/v3/fbtft/initseq"
	"periph.io/x/devices/v3/fbtft/transport"
)

// Display describes a panel: its geometry, bus layout, init program and
// operation overrides. Zero fields take defaults.
type Display struct {
	Width  int // Pixels per line before rotation
	Height int // Lines before rotation
	BPP    int // Bits per pixel, 16 or 8 (default: 16)
	FPS    int // Deferred flush rate (default: 20)

	RegWidth int // Register width in bits, 8 or 16 (default: 8)
	BusWidth int // Bus width in bits: 8, 9 or 16

	// TxBufLen is the transmit buffer length in bytes. -1 sizes it to the
	// whole frame. Zero means none, except on little-endian hosts with more
	// than 8 bits per pixel where a 4 KiB buffer is used for byte swapping.
	TxBufLen int

	Backlight bool // Drive LED[0] as the backlight

	GammaNum int    // Number of gamma curves
	GammaLen int    // Values per curve
	Gamma    string // Default gamma, see ParseGamma

	// Init is the flat init program: -1 reg values..., -2 ms, -3 to end.
	Init []int

	Ops Ops
}

// Opts is the configuration of a device instance.
type Opts struct {
	// Name prefixes log lines (default: "fbtft").
	Name string
	// Props overrides the descriptor, as a device tree node would.
	Props Properties

	Rotate    int  // 0, 90, 180 or 270
	BGR       bool // Blue first color order
	StartByte byte // Leading byte for panels without a D/C line
	TxBufLen  int  // Overrides Display.TxBufLen when non-zero

	Hz   physic.Frequency // SPI clock (default: 10MHz)
	Mode spi.Mode         // SPI mode (default: Mode0)
	// Emulate9 packs a 9 bit bus into 8 bit SPI words, for ports that
	// cannot send 9 bits per word.
	Emulate9 bool

	// NoSetVar skips the SetVar operation during bring up.
	NoSetVar bool
	// Debug logs every register and bus write.
	Debug bool
	// Logger receives driver messages (default: log.Default()).
	Logger *log.Logger
	// Backlight replaces the LED[0] backlight.
	Backlight Backlight

	sleep func(time.Duration)
}

// Dev is an open panel. It implements display.Drawer, draw.Image and
// drivers.Displayer over an in-memory pixel buffer that is flushed to the
// panel in the background.
type Dev struct {
	par   *Par
	img   draw.Image
	rect  image.Rectangle
	dirty *dirtyLines
	fl    *flusher

	// busMu serializes everything that talks to the panel.
	busMu sync.Mutex

	mu      sync.Mutex
	palette [16]uint32
	gamma   [][]uint32

	halted atomic.Bool
}

// New brings up a panel on an already opened transport.
func New(w transport.Writer, pins *Pins, disp *Display, opts *Opts) (*Dev, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: no transport", ErrConfigInvalid)
	}
	p, err := resolve(disp, opts)
	if err != nil {
		return nil, err
	}
	kind := busSerial
	if _, ok := w.(*transport.Parallel); ok {
		kind = busParallel
	}
	return attach(p, w, pins, kind, opts)
}

// NewSPI brings up a panel on an SPI port. The port is connected once. A 9
// bit bus is opened with 9 bits per word unless Opts.Emulate9 is set, in
// which case the units are packed into a stream of 8 bit words.
func NewSPI(port spi.Port, pins *Pins, disp *Display, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	p, err := resolve(disp, opts)
	if err != nil {
		return nil, err
	}
	hz := opts.Hz
	if hz == 0 {
		hz = 10 * physic.MegaHertz
	}
	bits := 8
	if p.disp.BusWidth == 9 && !opts.Emulate9 {
		bits = 9
	}
	c, err := port.Connect(hz, opts.Mode, bits)
	if err != nil {
		if bits == 9 {
			return nil, fmt.Errorf("%w: 9 bits per word (set Opts.Emulate9 on ports without it): %w", ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	n := max(p.disp.TxBufLen, initseq.MaxValues)
	var w transport.Writer
	switch {
	case bits == 9:
		w = transport.NewSPI9(c, n)
	case p.disp.BusWidth == 9:
		p.logf("emulating 9 bit SPI using 8 bit words")
		w = transport.NewEmulated9(c, n)
	default:
		w = transport.NewSPI(c)
	}
	return attach(p, w, pins, busSerial, opts)
}

// NewParallel brings up a panel on a GPIO driven 8080 style bus. pins must
// hold WR and BusWidth data lines.
func NewParallel(pins *Pins, disp *Display, opts *Opts) (*Dev, error) {
	p, err := resolve(disp, opts)
	if err != nil {
		return nil, err
	}
	bus := p.disp.BusWidth
	if bus != 8 && bus != 16 {
		return nil, fmt.Errorf("%w: parallel bus width %d", ErrConfigInvalid, bus)
	}
	if pins == nil {
		pins = &Pins{}
	}
	if err := pins.verify(busParallel, bus, p.startByte, false); err != nil {
		return nil, err
	}
	w, err := transport.NewParallel(pins.WR, pins.DB[:bus])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return attach(p, w, pins, busParallel, opts)
}

// NewUART brings up a panel behind a serial bridge that maps RTS to the D/C
// line. The port is not closed by Halt.
func NewUART(port serial.Port, pins *Pins, disp *Display, opts *Opts) (*Dev, error) {
	return New(transport.NewUART(port), pins, disp, opts)
}

// resolve applies defaults and property overrides to the descriptor.
func resolve(disp *Display, opts *Opts) (*Par, error) {
	if disp == nil {
		return nil, fmt.Errorf("%w: no display descriptor", ErrConfigInvalid)
	}
	if opts == nil {
		opts = &Opts{}
	}
	p := &Par{
		name:      opts.Name,
		disp:      *disp,
		rotate:    opts.Rotate,
		bgr:       opts.BGR,
		startByte: opts.StartByte,
		debug:     opts.Debug,
		logger:    opts.Logger,
		sleep:     opts.sleep,
	}
	if p.name == "" {
		p.name = "fbtft"
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	if opts.TxBufLen != 0 {
		p.disp.TxBufLen = opts.TxBufLen
	}
	if err := p.readProperties(opts.Props); err != nil {
		return nil, err
	}

	d := &p.disp
	if d.BPP == 0 {
		d.BPP = 16
	}
	if d.FPS <= 0 {
		d.FPS = 20
	}
	if d.RegWidth == 0 {
		d.RegWidth = 8
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("%w: resolution %dx%d", ErrConfigInvalid, d.Width, d.Height)
	}
	if d.BPP != 8 && d.BPP != 16 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrConfigInvalid, d.BPP)
	}
	if d.BusWidth == 0 {
		return nil, fmt.Errorf("%w: bus width is not set", ErrConfigInvalid)
	}
	switch p.rotate {
	case 0, 180:
		p.xres, p.yres = d.Width, d.Height
	case 90, 270:
		p.xres, p.yres = d.Height, d.Width
	default:
		return nil, fmt.Errorf("%w: rotate %d", ErrConfigInvalid, p.rotate)
	}
	p.stride = p.xres * d.BPP / 8

	vmemSize := p.stride * p.yres
	if d.TxBufLen == -1 || d.TxBufLen > vmemSize+2 {
		d.TxBufLen = vmemSize + 2
	}
	p.swap = hostLittleEndian && d.BPP > 8
	if d.TxBufLen == 0 && (p.swap || p.startByte != 0) {
		d.TxBufLen = min(PageSize, vmemSize+2)
	}
	if d.TxBufLen < 0 {
		return nil, fmt.Errorf("%w: txbuflen %d", ErrConfigInvalid, d.TxBufLen)
	}
	if d.GammaNum*d.GammaLen > MaxGammaValues {
		return nil, fmt.Errorf("%w: gamma %dx%d exceeds %d values", ErrConfigInvalid, d.GammaNum, d.GammaLen, MaxGammaValues)
	}
	return p, nil
}

// readProperties overrides the descriptor and options from props.
func (p *Par) readProperties(props Properties) error {
	if props == nil {
		return nil
	}
	d := &p.disp
	w, h := d.Width, d.Height
	var backlight, debug int
	for _, u := range []struct {
		name string
		dst  *int
	}{
		{"width", &d.Width},
		{"height", &d.Height},
		{"regwidth", &d.RegWidth},
		{"buswidth", &d.BusWidth},
		{"bpp", &d.BPP},
		{"fps", &d.FPS},
		{"txbuflen", &d.TxBufLen},
		{"rotate", &p.rotate},
		{"backlight", &backlight},
		{"debug", &debug},
	} {
		if err := propUnsigned(props, u.name, u.dst); err != nil {
			return err
		}
	}
	if (w != 0 && w != d.Width) || (h != 0 && h != d.Height) {
		p.logf("resolution %dx%d overridden by properties to %dx%d", w, h, d.Width, d.Height)
	}
	var sb int
	if err := propUnsigned(props, "startbyte", &sb); err != nil {
		return err
	}
	if sb != 0 {
		p.startByte = byte(sb)
	}
	if props.Present("bgr") {
		p.bgr = true
	}
	if backlight > 0 || props.Present("led-gpios") {
		d.Backlight = true
	}
	if debug > 0 {
		p.debug = true
	}
	if s, ok, err := props.String("gamma"); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	} else if ok {
		d.Gamma = s
	}
	words, ok, err := props.U32s("init")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if ok {
		prog, err := initseq.ParseWords(words)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
		p.prog = prog
	}
	return nil
}

// attach finishes the device on transport w and brings the panel up.
func attach(p *Par, w transport.Writer, pins *Pins, kind busKind, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if pins == nil {
		pins = &Pins{}
	}
	p.w = w
	p.pins = pins
	if w9, ok := w.(transport.Writer9); ok && p.disp.BusWidth == 9 {
		p.w9 = w9
	}
	if err := pins.verify(kind, p.disp.BusWidth, p.startByte, w.CarriesDC()); err != nil {
		return nil, err
	}

	if p.prog == nil && p.disp.Init != nil {
		prog, err := initseq.ParseFlat(p.disp.Init)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
		p.prog = prog
	}
	if p.prog != nil {
		maxValue := 0xFFFF
		if p.disp.RegWidth == 8 && p.disp.BusWidth != 16 {
			maxValue = 0xFF
		}
		if err := p.prog.Validate(maxValue); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
	}

	def := defaultOps()
	selectEncoders(p, &def)
	if !p.disp.Backlight && opts.Backlight == nil {
		def.RegisterBacklight = nil
	}
	p.ops = p.disp.Ops.merge(def)
	p.bl = opts.Backlight

	if err := p.allocate(); err != nil {
		return nil, err
	}

	d := &Dev{
		par:   p,
		rect:  image.Rect(0, 0, p.xres, p.yres),
		dirty: newDirtyLines(p.yres),
	}
	if p.disp.BPP == 16 {
		d.img = image565.NewFrom(p.vmem, p.stride, d.rect)
	} else {
		d.img = &image.Gray{Pix: p.vmem, Stride: p.stride, Rect: d.rect}
	}
	d.fl = newFlusher(time.Second/time.Duration(p.disp.FPS), d.deferredFlush)

	if err := d.bringUp(opts); err != nil {
		return nil, errors.Join(err, d.release())
	}
	return d, nil
}

// release switches the backlight off and releases the control lines.
func (d *Dev) release() error {
	p := d.par
	if p.ops.UnregisterBacklight != nil {
		p.ops.UnregisterBacklight(p)
	}
	return p.pins.halt()
}

// allocate sizes the pixel, transmit and scratch buffers.
func (p *Par) allocate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrOutOfMemory, r)
		}
	}()
	p.vmem = make([]byte, p.stride*p.yres)
	if n := p.disp.TxBufLen; n > 0 {
		p.txbuf = make([]byte, max(n, 4))
	}
	if p.w9 != nil {
		p.units = make([]uint16, 0, max(p.disp.TxBufLen, initseq.MaxValues))
	}
	p.regbuf = make([]byte, 0, 2*initseq.MaxValues+1)
	return nil
}

// bringUp runs the controller init and the first full frame flush.
func (d *Dev) bringUp(opts *Opts) error {
	p := d.par
	if err := p.pins.initLevels(); err != nil {
		return err
	}
	if err := p.ops.InitDisplay(p); err != nil {
		return fmt.Errorf("%s: init display: %w", p.name, err)
	}
	if p.ops.SetVar != nil && !opts.NoSetVar {
		if err := p.ops.SetVar(p); err != nil {
			return fmt.Errorf("%s: set var: %w", p.name, err)
		}
	}
	if p.disp.GammaNum > 0 && p.disp.GammaLen > 0 && p.disp.Gamma != "" {
		curves, err := ParseGamma(p.disp.Gamma, p.disp.GammaNum, p.disp.GammaLen)
		if err != nil {
			return err
		}
		if p.ops.SetGamma != nil {
			if err := p.ops.SetGamma(p, curves); err != nil {
				return fmt.Errorf("%s: set gamma: %w", p.name, err)
			}
		}
		d.gamma = curves
	}
	if p.ops.RegisterBacklight != nil {
		if err := p.ops.RegisterBacklight(p); err != nil {
			return fmt.Errorf("%s: backlight: %w", p.name, err)
		}
	}
	if err := d.updateDisplay(0, p.yres-1); err != nil {
		return err
	}
	if p.bl != nil {
		if err := p.bl.SetBacklight(true); err != nil {
			return err
		}
	}
	p.logf("%dx%d, %d bpp, %d KiB video memory, %d KiB buffer memory, fps=%d, %v",
		p.xres, p.yres, p.disp.BPP, len(p.vmem)>>10, len(p.txbuf)>>10, p.disp.FPS, p.w)
	return nil
}

// deferredFlush is the flusher job. Errors are logged; the interval is
// not restored.
func (d *Dev) deferredFlush() {
	if err := d.flush(); err != nil {
		d.par.logf("deferred flush: %v", err)
	}
}

func (d *Dev) flush() error {
	d.busMu.Lock()
	defer d.busMu.Unlock()
	first, last, ok := d.dirty.take()
	if !ok {
		return nil
	}
	return d.updateDisplay(first, last)
}

// updateDisplay pushes lines first..last, inclusive. An inverted or out
// of range interval is widened to the full frame.
func (d *Dev) updateDisplay(first, last int) error {
	p := d.par
	if first > last || first < 0 || last > p.yres-1 {
		p.logf("update_display: invalid lines %d..%d, flushing the full frame", first, last)
		first, last = 0, p.yres-1
	}
	var start time.Time
	if p.debug {
		start = time.Now()
	}
	if err := p.SetAddrWin(0, first, p.xres-1, last); err != nil {
		return err
	}
	offset := first * p.stride
	n := (last - first + 1) * p.stride
	if err := p.ops.WriteVmem(p, offset, n); err != nil {
		return fmt.Errorf("%s: write vmem: %w", p.name, err)
	}
	if p.debug {
		p.logf("update_display: lines %d..%d, %d bytes in %s", first, last, n, time.Since(start))
	}
	return nil
}

// Flush pushes the pending dirty lines now instead of waiting for the
// deferred flush.
func (d *Dev) Flush() error {
	if d.halted.Load() {
		return ErrHalted
	}
	return d.flush()
}

// MarkDirty records lines y..y+n-1 as changed and schedules a flush. y ==
// -1 marks the whole frame.
func (d *Dev) MarkDirty(y, n int) {
	if d.halted.Load() {
		return
	}
	d.dirty.mark(y, n)
	d.fl.arm()
}

// MarkPagesDirty records the lines covered by the given PageSize pages of
// the pixel buffer and schedules a flush.
func (d *Dev) MarkPagesDirty(pages ...int) {
	if d.halted.Load() {
		return
	}
	marked := false
	for _, pg := range pages {
		first, last, ok := pageLines(pg, d.par.stride, d.par.yres)
		if !ok {
			continue
		}
		d.dirty.mark(first, last-first+1)
		marked = true
	}
	if marked {
		d.fl.arm()
	}
}

// WriteRegister writes a register directly, bypassing the pixel buffer.
func (d *Dev) WriteRegister(reg int, data ...int) error {
	if d.halted.Load() {
		return ErrHalted
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	return d.par.WriteRegister(reg, data...)
}

// Halt stops the deferred flush, pushes what is still pending, switches
// the backlight off and releases the control lines.
func (d *Dev) Halt() error {
	if !d.halted.CompareAndSwap(false, true) {
		return nil
	}
	d.fl.stop()
	err := d.flush()
	d.busMu.Lock()
	defer d.busMu.Unlock()
	return errors.Join(err, d.release())
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("fbtft.Dev{%s, %dx%d}", d.par.name, d.par.xres, d.par.yres)
}

// Do runs f with the bus held, for panel specific commands that need more
// than WriteRegister.
func (d *Dev) Do(ctx context.Context, f func(p *Par) error) error {
	if d.halted.Load() {
		return ErrHalted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	return f(d.par)
}
