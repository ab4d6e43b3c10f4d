// Package image565 provides the RGB565 image format used by small TFT panels.
//
// Pixels are 16 bits: red in bits 15-11, green in bits 10-5, blue in bits
// 4-0. In memory each pixel is stored little-endian, low byte first, which
// is what a framebuffer on a little-endian host holds before the driver
// swaps bytes for the wire.
package image565

import (
	"image"
	"image/color"
)

// RGB565 is a 16 bit packed color.
type RGB565 uint16

// RGBA implements color.Color. Each channel is expanded by bit replication.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r = (r5<<11 | r5<<6 | r5<<1) | r5>>4
	g = g6<<10 | g6<<4 | g6>>2
	b = (b5<<11 | b5<<6 | b5<<1) | b5>>4
	return r, g, b, 0xFFFF
}

// FromRGB packs 8 bit channels.
func FromRGB(r, g, b uint8) RGB565 {
	return RGB565(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

func toRGB565(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return RGB565(uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11))
}

// Model converts colors to RGB565.
var Model = color.ModelFunc(toRGB565)

// Image is an RGB565 image stored little-endian, two bytes per pixel.
type Image struct {
	Pix    []byte          // Pixel data, 2 bytes per pixel
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// New returns a zeroed image with the given bounds.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// NewFrom returns an image over an existing buffer. pix is not copied.
func NewFrom(pix []byte, stride int, r image.Rectangle) *Image {
	if len(pix) < stride*r.Dy() {
		panic("image565: buffer too small")
	}
	return &Image{Pix: pix, Stride: stride, Rect: r}
}

// ColorModel implements image.Image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds implements image.Image.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the pixel at (x, y), or 0 outside the bounds.
func (p *Image) RGB565At(x, y int) RGB565 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	i := p.PixOffset(x, y)
	return RGB565(uint16(p.Pix[i]) | uint16(p.Pix[i+1])<<8)
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, Model.Convert(c).(RGB565))
}

// SetRGB565 sets the pixel at (x, y) without color conversion.
func (p *Image) SetRGB565(x, y int, c RGB565) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i] = byte(c)
	p.Pix[i+1] = byte(c >> 8)
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Fill sets every pixel in r, clipped to the bounds, to c.
func (p *Image) Fill(r image.Rectangle, c RGB565) {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return
	}
	lo, hi := byte(c), byte(c>>8)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := p.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			p.Pix[i] = lo
			p.Pix[i+1] = hi
			i += 2
		}
	}
}
