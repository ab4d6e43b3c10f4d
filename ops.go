package fbtft

// Ops is the table of panel operations. A panel driver fills in the entries
// it needs in Display.Ops; every nil entry falls back to the default chosen
// during bring up.
type Ops struct {
	// Write sends bytes on the transport. The D/C line is already set.
	Write func(p *Par, dc bool, b []byte) error
	// Read reads bytes back from the panel.
	Read func(p *Par, b []byte) error
	// WriteVmem sends n bytes of the pixel buffer starting at offset.
	WriteVmem func(p *Par, offset, n int) error
	// WriteRegister sends a register index followed by its values.
	WriteRegister func(p *Par, reg int, data ...int) error
	// SetAddrWin selects the controller memory window for a pixel burst.
	// Coordinates are inclusive.
	SetAddrWin func(p *Par, xs, ys, xe, ye int) error
	// Reset pulses the reset line.
	Reset func(p *Par) error
	// InitDisplay programs the controller after reset.
	InitDisplay func(p *Par) error
	// Blank turns the panel output off (on == true) or back on.
	Blank func(p *Par, on bool) error
	// SetVar applies rotation and color order.
	SetVar func(p *Par) error
	// SetGamma loads gamma curves.
	SetGamma func(p *Par, curves [][]uint32) error
	// RegisterBacklight attaches a backlight control, or leaves p without one.
	RegisterBacklight func(p *Par) error
	// UnregisterBacklight releases the backlight control.
	UnregisterBacklight func(p *Par)
}

// merge returns o with every nil entry taken from def.
func (o Ops) merge(def Ops) Ops {
	if o.Write == nil {
		o.Write = def.Write
	}
	if o.Read == nil {
		o.Read = def.Read
	}
	if o.WriteVmem == nil {
		o.WriteVmem = def.WriteVmem
	}
	if o.WriteRegister == nil {
		o.WriteRegister = def.WriteRegister
	}
	if o.SetAddrWin == nil {
		o.SetAddrWin = def.SetAddrWin
	}
	if o.Reset == nil {
		o.Reset = def.Reset
	}
	if o.InitDisplay == nil {
		o.InitDisplay = def.InitDisplay
	}
	if o.Blank == nil {
		o.Blank = def.Blank
	}
	if o.SetVar == nil {
		o.SetVar = def.SetVar
	}
	if o.SetGamma == nil {
		o.SetGamma = def.SetGamma
	}
	if o.RegisterBacklight == nil {
		o.RegisterBacklight = def.RegisterBacklight
	}
	if o.UnregisterBacklight == nil {
		o.UnregisterBacklight = def.UnregisterBacklight
	}
	return o
}
