package fbtft

// MIPI DCS memory window commands.
const (
	cmdColumnAddressSet = 0x2A
	cmdPageAddressSet   = 0x2B
	cmdMemoryWrite      = 0x2C
)

// setAddrWin selects columns xs..xe and rows ys..ye, then opens a memory
// write. Each coordinate is sent as its high byte then its low byte.
func setAddrWin(p *Par, xs, ys, xe, ye int) error {
	if err := p.WriteRegister(cmdColumnAddressSet, xs>>8, xs&0xFF, xe>>8, xe&0xFF); err != nil {
		return err
	}
	if err := p.WriteRegister(cmdPageAddressSet, ys>>8, ys&0xFF, ye>>8, ye&0xFF); err != nil {
		return err
	}
	return p.WriteRegister(cmdMemoryWrite)
}
