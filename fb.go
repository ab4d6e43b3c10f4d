package fbtft

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/fbtft/image565"
	"tinygo.org/x/drivers"
)

// Every call below that changes the pixel buffer marks the lines it touched
// and leaves the transfer to the deferred flush.

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return d.img.ColorModel()
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// At implements image.Image.
func (d *Dev) At(x, y int) color.Color {
	return d.img.At(x, y)
}

// Set implements draw.Image.
func (d *Dev) Set(x, y int, c color.Color) {
	if d.halted.Load() || !(image.Point{X: x, Y: y}.In(d.rect)) {
		return
	}
	d.img.Set(x, y, c)
	d.MarkDirty(y, 1)
}

// Draw implements display.Drawer. The image is copied into the pixel
// buffer and flushed later.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted.Load() {
		return ErrHalted
	}
	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	// Fast path: same format at full size
	if img, ok := src.(*image565.Image); ok && d.par.disp.BPP == 16 && dst == d.rect && img.Rect == d.rect && sp == d.rect.Min {
		copy(d.par.vmem, img.Pix)
	} else {
		draw.Draw(d.img, dst, src, sp, draw.Src)
	}
	d.MarkDirty(dst.Min.Y, dst.Dy())
	return nil
}

// ReadAt implements io.ReaderAt over the raw pixel buffer.
func (d *Dev) ReadAt(p []byte, off int64) (int, error) {
	vmem := d.par.vmem
	if off < 0 {
		return 0, fmt.Errorf("fbtft: negative offset %d", off)
	}
	if off >= int64(len(vmem)) {
		return 0, io.EOF
	}
	n := copy(p, vmem[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt over the raw pixel buffer. Writes past
// the end are truncated and report io.ErrShortWrite.
func (d *Dev) WriteAt(p []byte, off int64) (int, error) {
	if d.halted.Load() {
		return 0, ErrHalted
	}
	vmem := d.par.vmem
	if off < 0 {
		return 0, fmt.Errorf("fbtft: negative offset %d", off)
	}
	if off >= int64(len(vmem)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.ErrShortWrite
	}
	n := copy(vmem[off:], p)
	if n > 0 {
		stride := int64(d.par.stride)
		first := off / stride
		last := (off + int64(n) - 1) / stride
		d.MarkDirty(int(first), int(last-first+1))
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Write replaces the whole pixel buffer. p must be exactly one frame in
// the buffer's layout.
func (d *Dev) Write(p []byte) (int, error) {
	if d.halted.Load() {
		return 0, ErrHalted
	}
	if len(p) != len(d.par.vmem) {
		return 0, fmt.Errorf("fbtft: invalid buffer size %d, want %d", len(p), len(d.par.vmem))
	}
	copy(d.par.vmem, p)
	d.MarkDirty(-1, 0)
	return len(p), nil
}

// FillRect fills r, clipped to the screen, with c.
func (d *Dev) FillRect(r image.Rectangle, c color.Color) error {
	if d.halted.Load() {
		return ErrHalted
	}
	r = r.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	if img, ok := d.img.(*image565.Image); ok {
		img.Fill(r, image565.Model.Convert(c).(image565.RGB565))
	} else {
		draw.Draw(d.img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	d.MarkDirty(r.Min.Y, r.Dy())
	return nil
}

// CopyArea copies the pixels of src to dst, the new top left corner. The
// areas may overlap.
func (d *Dev) CopyArea(dst image.Point, src image.Rectangle) error {
	if d.halted.Load() {
		return ErrHalted
	}
	src = src.Intersect(d.rect)
	to := src.Sub(src.Min).Add(dst).Intersect(d.rect)
	if to.Empty() {
		return nil
	}
	// Trim src to what lands on screen.
	src = to.Sub(dst).Add(src.Min)
	bpp := d.par.disp.BPP / 8
	stride := d.par.stride
	vmem := d.par.vmem
	w := to.Dx() * bpp
	row := func(y int) {
		s := (src.Min.Y+y)*stride + src.Min.X*bpp
		t := (to.Min.Y+y)*stride + to.Min.X*bpp
		copy(vmem[t:t+w], vmem[s:s+w])
	}
	if to.Min.Y > src.Min.Y {
		for y := to.Dy() - 1; y >= 0; y-- {
			row(y)
		}
	} else {
		for y := 0; y < to.Dy(); y++ {
			row(y)
		}
	}
	d.MarkDirty(to.Min.Y, to.Dy())
	return nil
}

// ImageBlit draws src with its top left corner at dst.
func (d *Dev) ImageBlit(dst image.Point, src image.Image) error {
	b := src.Bounds()
	return d.Draw(b.Sub(b.Min).Add(dst), src, b.Min)
}

// SetColReg stores entry regno of the 16 entry pseudo palette. Channels
// are 16 bit values packed into RGB565.
func (d *Dev) SetColReg(regno uint, red, green, blue uint16) error {
	if regno >= 16 {
		return fmt.Errorf("%w: palette index %d", ErrNotSupported, regno)
	}
	v := chanToField(red, 11, 5) | chanToField(green, 5, 6) | chanToField(blue, 0, 5)
	d.mu.Lock()
	d.palette[regno] = v
	d.mu.Unlock()
	return nil
}

func chanToField(c uint16, offset, length uint) uint32 {
	v := uint32(c) & 0xFFFF
	v >>= 16 - length
	return v << offset
}

// Palette returns the pseudo palette.
func (d *Dev) Palette() [16]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.palette
}

// Blank switches the panel output off (on == true) or back on. Panels
// without a Blank operation return ErrNotSupported.
func (d *Dev) Blank(on bool) error {
	if d.halted.Load() {
		return ErrHalted
	}
	p := d.par
	if p.ops.Blank == nil {
		return ErrNotSupported
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	return p.ops.Blank(p, on)
}

// SetBacklight switches the backlight, when there is one.
func (d *Dev) SetBacklight(on bool) error {
	if d.halted.Load() {
		return ErrHalted
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	if d.par.bl == nil {
		return ErrNotSupported
	}
	return d.par.bl.SetBacklight(on)
}

// SetGamma parses s with the panel's curve shape and loads it.
func (d *Dev) SetGamma(s string) error {
	if d.halted.Load() {
		return ErrHalted
	}
	p := d.par
	if p.ops.SetGamma == nil {
		return ErrNotSupported
	}
	curves, err := ParseGamma(s, p.disp.GammaNum, p.disp.GammaLen)
	if err != nil {
		return err
	}
	d.busMu.Lock()
	err = p.ops.SetGamma(p, curves)
	d.busMu.Unlock()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.gamma = curves
	d.mu.Unlock()
	return nil
}

// Gamma returns the loaded gamma curves in ParseGamma format.
func (d *Dev) Gamma() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FormatGamma(d.gamma)
}

// Size implements drivers.Displayer.
func (d *Dev) Size() (x, y int16) {
	return int16(d.rect.Dx()), int16(d.rect.Dy())
}

// SetPixel implements drivers.Displayer.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	d.Set(int(x), int(y), c)
}

// Display implements drivers.Displayer: it flushes pending lines now.
func (d *Dev) Display() error {
	return d.Flush()
}

var (
	_ display.Drawer    = (*Dev)(nil)
	_ draw.Image        = (*Dev)(nil)
	_ drivers.Displayer = (*Dev)(nil)
	_ io.ReaderAt       = (*Dev)(nil)
	_ io.WriterAt       = (*Dev)(nil)
)
