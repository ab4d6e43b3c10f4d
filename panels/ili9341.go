package panels

import (
	"fmt"

	"periph.io/x/devices/v3/fbtft"
)

const ili9341Gamma = "0F 31 2B 0C 0E 08 4E F1 37 07 10 03 0E 09 00\n" +
	"00 0E 14 03 11 07 31 C1 48 08 0F 0C 31 36 0F"

// ILI9341 returns the descriptor of a 240x320 ILI9341 panel on an 8 bit
// SPI bus.
func ILI9341() *fbtft.Display {
	return &fbtft.Display{
		Width:    240,
		Height:   320,
		BusWidth: 8,
		TxBufLen: 4 * fbtft.PageSize,
		GammaNum: 2,
		GammaLen: 15,
		Gamma:    ili9341Gamma,
		Init: []int{
			-1, dcsSoftReset, -2, 5,
			-1, dcsSetDisplayOff,
			-1, 0xCF, 0x00, 0x83, 0x30, // Power control B
			-1, 0xED, 0x64, 0x03, 0x12, 0x81, // Power on sequence
			-1, 0xE8, 0x85, 0x01, 0x79, // Driver timing A
			-1, 0xCB, 0x39, 0x2C, 0x00, 0x34, 0x02, // Power control A
			-1, 0xF7, 0x20, // Pump ratio
			-1, 0xEA, 0x00, 0x00, // Driver timing B
			-1, 0xC0, 0x26, // Power control 1
			-1, 0xC1, 0x11, // Power control 2
			-1, 0xC5, 0x35, 0x3E, // VCOM control 1
			-1, 0xC7, 0xBE, // VCOM control 2
			-1, dcsSetPixelFormat, 0x55,
			-1, 0xB1, 0x00, 0x1B, // Frame rate
			-1, dcsSetGammaCurve, 0x01,
			-1, 0xB7, 0x07, // Entry mode
			-1, 0xB6, 0x0A, 0x82, 0x27, 0x00, // Display function control
			-1, dcsExitSleepMode, -2, 100,
			-1, dcsSetDisplayOn, -2, 20,
			-3,
		},
		Ops: fbtft.Ops{
			SetVar:   ili9341SetVar,
			SetGamma: ili9341SetGamma,
			Blank:    blankDCS,
		},
	}
}

func ili9341SetVar(p *fbtft.Par) error {
	var mode int
	switch p.Rotate() {
	case 0:
		mode = madctlMX
	case 90:
		mode = madctlMY | madctlMX | madctlMV
	case 180:
		mode = madctlMY
	case 270:
		mode = madctlMV | madctlML
	}
	return p.WriteRegister(dcsSetAddressMode, mode|bgr(p))
}

// ili9341SetGamma loads the positive then the negative curve.
func ili9341SetGamma(p *fbtft.Par, curves [][]uint32) error {
	if len(curves) != 2 {
		return fmt.Errorf("ili9341: want 2 gamma curves, got %d", len(curves))
	}
	for i, reg := range []int{0xE0, 0xE1} {
		vals := make([]int, len(curves[i]))
		for j, v := range curves[i] {
			vals[j] = int(v & 0xFF)
		}
		if err := p.WriteRegister(reg, vals...); err != nil {
			return err
		}
	}
	return nil
}
