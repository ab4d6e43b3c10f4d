// Package fbtft drives small TFT and OLED panels through an in-memory
// framebuffer.
//
// Drawing calls change the pixel buffer and record which scanlines changed.
// A deferred flush collects the changed lines and pushes them to the panel
// controller at most FPS times per second, so a burst of drawing costs one
// bus transfer. The driver implements the display.Drawer interface from
// periph.io, draw.Image, and the Displayer interface of tinygo.org/x/drivers.
//
// # Panels
//
// A panel is described by a Display: its resolution, color depth, register
// and bus widths, an init program and optional overrides of the default
// operations. Ready made descriptors live in the panels package.
//
// # Buses
//
// Four transports are supported:
//
//   - SPI with a D/C line, 8 bits per word
//   - SPI with 9 bits per word, native or emulated by bit packing
//   - an 8 or 16 bit 8080 style parallel bus bit-banged on GPIO lines
//   - a serial bridge that maps RTS to the D/C line
//
// # Hardware Connection
//
// A typical SPI panel:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCK         → SPI Clock (SCLK)
//	SDI/MOSI    → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	RESET       → GPIO (optional)
//	LED         → GPIO (optional backlight)
//	CS          → SPI Chip Select
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//		"image/color"
//
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/fbtft"
//		"periph.io/x/devices/v3/fbtft/panels"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		b, _ := spireg.Open("")
//		defer b.Close()
//
//		pins := &fbtft.Pins{
//			DC:    gpioreg.ByName("GPIO24"),
//			Reset: gpioreg.ByName("GPIO25"),
//		}
//		pins.LED[0] = gpioreg.ByName("GPIO18")
//
//		dev, _ := fbtft.NewSPI(b, pins, panels.ILI9341(), &fbtft.Opts{Rotate: 90})
//		defer dev.Halt()
//
//		dev.FillRect(image.Rect(10, 10, 110, 60), color.RGBA{R: 0xFF, A: 0xFF})
//		dev.Flush()
//	}
//
// # Init Programs
//
// Display.Init is a flat program of integers:
//
//	-1, reg, values...   write a register
//	-2, ms               sleep
//	-3                   end of program
//
// The "init" property takes the word encoding instead, where 0x01000000|reg
// writes a register, 0x02000000|ms sleeps, and plain words are values of the
// preceding register. See the initseq package.
//
// # Properties
//
// Opts.Props overrides the descriptor the way a device tree node would:
// "width", "height", "regwidth", "buswidth", "bpp", "fps", "txbuflen",
// "rotate", "startbyte", "bgr", "backlight", "debug", "gamma" and "init".
// PinsFromProperties resolves the "*-gpios" properties.
//
// # Teardown
//
// Halt cancels the pending flush, pushes what is left, switches the
// backlight off and releases the control lines. Every mutating call
// returns ErrHalted afterwards.
package fbtft
