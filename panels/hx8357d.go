package panels

import (
	"time"

	"periph.io/x/devices/v3/fbtft"
)

// HX8357D specific commands.
const (
	hx8357SetOsc    = 0xB0
	hx8357SetPwr1   = 0xB1
	hx8357SetRGB    = 0xB3
	hx8357dSetCyc   = 0xB4
	hx8357dSetCom   = 0xB6
	hx8357dSetC     = 0xB9
	hx8357dSetStba  = 0xC0
	hx8357SetPanel  = 0xCC
	hx8357dSetGamma = 0xE0
)

// HX8357D returns the descriptor of a 320x480 HX8357-D panel on an 8 bit
// SPI bus.
func HX8357D() *fbtft.Display {
	return &fbtft.Display{
		Width:    320,
		Height:   480,
		BusWidth: 8,
		Ops: fbtft.Ops{
			InitDisplay: hx8357dInit,
			SetVar:      hx8357dSetVar,
			Blank:       blankDCS,
		},
	}
}

func hx8357dInit(p *fbtft.Par) error {
	if err := p.Reset(); err != nil {
		return err
	}
	if err := p.Select(); err != nil {
		return err
	}
	steps := []struct {
		reg   int
		data  []int
		sleep time.Duration
	}{
		{dcsSoftReset, nil, 6 * time.Millisecond},
		{hx8357dSetC, []int{0xFF, 0x83, 0x57}, 150 * time.Millisecond},
		{hx8357SetRGB, []int{0x00, 0x00, 0x06, 0x06}, 0},
		{hx8357dSetCom, []int{0x25}, 0},        // -1.52V
		{hx8357SetOsc, []int{0x68}, 0},         // Normal mode 70Hz, idle mode 55Hz
		{hx8357SetPanel, []int{0x05}, 0},       // BGR, gate direction swapped
		{hx8357SetPwr1, []int{0x00, 0x15, 0x1C, 0x1C, 0x83, 0xAA}, 0},
		{hx8357dSetStba, []int{0x50, 0x50, 0x01, 0x3C, 0x1E, 0x08}, 0},
		{hx8357dSetCyc, []int{0x02, 0x40, 0x00, 0x2A, 0x2A, 0x0D, 0x78}, 0},
		{hx8357dSetGamma, []int{
			0x02, 0x0A, 0x11, 0x1D, 0x23, 0x35, 0x41, 0x4B, 0x4B, 0x42, 0x3A, 0x27, 0x1B, 0x08, 0x09, 0x03,
			0x02, 0x0A, 0x11, 0x1D, 0x23, 0x35, 0x41, 0x4B, 0x4B, 0x42, 0x3A, 0x27, 0x1B, 0x08, 0x09, 0x03,
			0x00, 0x01,
		}, 0},
		{dcsSetPixelFormat, []int{0x55}, 0},
		{dcsSetAddressMode, []int{0xC0}, 0},
		{dcsSetTearOn, []int{0x00}, 0},
		{dcsSetTearLine, []int{0x00, 0x02}, 0},
		{dcsExitSleepMode, nil, 150 * time.Millisecond},
		{dcsSetDisplayOn, nil, 6 * time.Millisecond},
		{dcsWriteMemStart, nil, 0},
	}
	for _, s := range steps {
		if err := p.WriteRegister(s.reg, s.data...); err != nil {
			return err
		}
		if s.sleep > 0 {
			p.Sleep(s.sleep)
		}
	}
	return nil
}

func hx8357dSetVar(p *fbtft.Par) error {
	var mode int
	switch p.Rotate() {
	case 0:
		mode = madctlMX | madctlMY
	case 90:
		mode = madctlMV | madctlMY
	case 180:
		mode = 0
	case 270:
		mode = madctlMV | madctlMX
	}
	return p.WriteRegister(dcsSetAddressMode, mode|bgr(p))
}
