// Package panels holds descriptors for common TFT controllers.
//
// Each function returns a fresh *fbtft.Display that can be changed before
// it is passed to fbtft.NewSPI or fbtft.NewParallel.
package panels

import (
	"sort"

	"periph.io/x/devices/v3/fbtft"
)

// MIPI DCS commands shared by the controllers below.
const (
	dcsSoftReset      = 0x01
	dcsExitSleepMode  = 0x11
	dcsSetGammaCurve  = 0x26
	dcsSetDisplayOff  = 0x28
	dcsSetDisplayOn   = 0x29
	dcsWriteMemStart  = 0x2C
	dcsSetTearOn      = 0x35
	dcsSetAddressMode = 0x36
	dcsSetPixelFormat = 0x3A
	dcsSetTearLine    = 0x44
)

// Address mode (MADCTL) bits.
const (
	madctlMY  = 0x80 // Row address order
	madctlMX  = 0x40 // Column address order
	madctlMV  = 0x20 // Row/column exchange
	madctlML  = 0x10 // Vertical refresh order
	madctlBGR = 0x08
)

var registry = map[string]func() *fbtft.Display{
	"ili9341": ILI9341,
	"hx8357d": HX8357D,
}

// ByName returns the descriptor of a controller, by lower case name.
func ByName(name string) (*fbtft.Display, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names lists the known controllers.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// blankDCS switches the panel output with the DCS display on/off commands.
func blankDCS(p *fbtft.Par, on bool) error {
	if on {
		return p.WriteRegister(dcsSetDisplayOff)
	}
	return p.WriteRegister(dcsSetDisplayOn)
}

func bgr(p *fbtft.Par) int {
	if p.BGR() {
		return madctlBGR
	}
	return 0
}
