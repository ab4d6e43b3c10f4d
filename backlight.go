package fbtft

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Backlight switches a panel backlight.
type Backlight interface {
	SetBacklight(on bool) error
}

// PinBacklight drives a backlight through a single line. On is the level
// that lights the panel.
type PinBacklight struct {
	Pin gpio.PinOut
	On  gpio.Level
}

// SetBacklight implements Backlight.
func (b *PinBacklight) SetBacklight(on bool) error {
	l := b.On
	if !on {
		l = !l
	}
	if err := b.Pin.Out(l); err != nil {
		return fmt.Errorf("%w: backlight: %w", ErrTransport, err)
	}
	return nil
}

func (b *PinBacklight) String() string {
	return fmt.Sprintf("PinBacklight{%s, on=%s}", b.Pin, b.On)
}

// registerBacklight attaches LED[0] as the backlight. The level read from
// the line at start up is taken as "off", so a line that idles low is
// active high.
func registerBacklight(p *Par) error {
	if p.bl != nil {
		return nil
	}
	led := p.pins.LED[0]
	if led == nil {
		p.logf("no backlight line, backlight control disabled")
		return nil
	}
	on := gpio.High
	if in, ok := led.(gpio.PinIn); ok && in.Read() == gpio.High {
		on = gpio.Low
	}
	p.bl = &PinBacklight{Pin: led, On: on}
	return nil
}

func unregisterBacklight(p *Par) {
	if p.bl == nil {
		return
	}
	if err := p.bl.SetBacklight(false); err != nil {
		p.logf("backlight off: %v", err)
	}
	p.bl = nil
}
