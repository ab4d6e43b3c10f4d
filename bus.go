package fbtft

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/devices/v3/fbtft/initseq"
)

// Register encoders turn a register index and its values into bus bytes.
// Pixel encoders send a slice of the pixel buffer. The pair is chosen from
// the register width and the bus width by selectEncoders.

// hostLittleEndian is true when the pixel buffer holds 16 bit pixels low
// byte first.
var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// selectEncoders fills in the register and pixel encoders for the widths
// in p.disp, leaving panel overrides alone. Unknown combinations keep the
// 8 bit encoders and log a warning.
func selectEncoders(p *Par, def *Ops) {
	reg, bus := p.disp.RegWidth, p.disp.BusWidth
	switch {
	case reg == 8 && bus == 8:
		def.WriteRegister = writeReg8Bus8
	case reg == 8 && bus == 9 && p.w9 != nil:
		def.WriteRegister = writeReg8Bus9
	case reg == 16 && bus == 8:
		def.WriteRegister = writeReg16Bus8
	case reg == 16 && bus == 16:
		def.WriteRegister = writeReg16Bus16
	default:
		def.WriteRegister = writeReg8Bus8
		if p.disp.Ops.WriteRegister == nil {
			p.logf("no default functions for regwidth=%d and buswidth=%d", reg, bus)
		}
	}
	switch {
	case bus == 8:
		def.WriteVmem = writeVmem16Bus8
	case bus == 9 && p.w9 != nil:
		def.WriteVmem = writeVmem16Bus9
	case bus == 16:
		def.WriteVmem = writeVmem16Bus16
	default:
		def.WriteVmem = writeVmem16Bus8
		if p.disp.Ops.WriteVmem == nil {
			p.logf("no default pixel function for buswidth=%d", bus)
		}
	}
}

func checkValues(data []int) error {
	if len(data)+1 > initseq.MaxValues {
		return fmt.Errorf("%w: %d values exceed the limit of %d", ErrConfigInvalid, len(data)+1, initseq.MaxValues)
	}
	return nil
}

// regHead returns p.regbuf emptied, with the start byte when one is
// configured. dc selects the start byte's RS bit.
func (p *Par) regHead(dc bool) []byte {
	b := p.regbuf[:0]
	if p.startByte != 0 {
		sb := p.startByte
		if dc {
			sb |= 0x2
		}
		b = append(b, sb)
	}
	return b
}

func writeReg8Bus8(p *Par, reg int, data ...int) error {
	if err := checkValues(data); err != nil {
		return err
	}
	if err := p.Write(false, append(p.regHead(false), byte(reg))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	b := p.regHead(true)
	for _, v := range data {
		b = append(b, byte(v))
	}
	return p.Write(true, b)
}

// writeReg8Bus9 sends the register and its values in a single transfer,
// each byte tagged with its own D/C flag.
func writeReg8Bus9(p *Par, reg int, data ...int) error {
	if err := checkValues(data); err != nil {
		return err
	}
	u := p.units[:0]
	u = append(u, uint16(reg&0xFF))
	for _, v := range data {
		u = append(u, 0x100|uint16(v&0xFF))
	}
	return p.Write9(u)
}

// writeReg16Bus8 sends every value as a big-endian 16 bit word.
func writeReg16Bus8(p *Par, reg int, data ...int) error {
	if err := checkValues(data); err != nil {
		return err
	}
	if err := p.Write(false, binary.BigEndian.AppendUint16(p.regHead(false), uint16(reg))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	b := p.regHead(true)
	for _, v := range data {
		b = binary.BigEndian.AppendUint16(b, uint16(v))
	}
	return p.Write(true, b)
}

// writeReg16Bus16 sends every value as a host order 16 bit word, which the
// 16 bit bus puts on its data lines unchanged.
func writeReg16Bus16(p *Par, reg int, data ...int) error {
	if err := checkValues(data); err != nil {
		return err
	}
	if err := p.Write(false, binary.NativeEndian.AppendUint16(p.regHead(false), uint16(reg))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	b := p.regHead(true)
	for _, v := range data {
		b = binary.NativeEndian.AppendUint16(b, uint16(v))
	}
	return p.Write(true, b)
}

// writeVmem16Bus8 sends pixels most significant byte first. On little
// endian hosts the bytes are swapped through the transmit buffer.
func writeVmem16Bus8(p *Par, offset, n int) error {
	src := p.vmem[offset : offset+n]
	if !p.swap && p.startByte == 0 {
		return p.Write(true, src)
	}
	head := 0
	if p.startByte != 0 {
		p.txbuf[0] = p.startByte | 0x2
		head = 1
	}
	room := (len(p.txbuf) - head) &^ 1
	for len(src) > 0 {
		k := min(room, len(src))
		dst := p.txbuf[head : head+k]
		if p.swap {
			swap16(dst, src[:k])
		} else {
			copy(dst, src[:k])
		}
		if err := p.Write(true, p.txbuf[:head+k]); err != nil {
			return err
		}
		src = src[k:]
	}
	return nil
}

// writeVmem16Bus9 sends pixel bytes as 9 bit data units.
func writeVmem16Bus9(p *Par, offset, n int) error {
	src := p.vmem[offset : offset+n]
	for len(src) > 0 {
		k := min(cap(p.units)&^1, len(src))
		u := p.units[:k]
		for i := 0; i < k; i++ {
			j := i
			if p.swap {
				j = i ^ 1
				if j >= k {
					j = i
				}
			}
			u[i] = 0x100 | uint16(src[j])
		}
		if err := p.Write9(u); err != nil {
			return err
		}
		src = src[k:]
	}
	return nil
}

// writeVmem16Bus16 sends the pixel buffer as is; each pixel is one bus word.
func writeVmem16Bus16(p *Par, offset, n int) error {
	return p.Write(true, p.vmem[offset:offset+n])
}

// swap16 copies src into dst exchanging the bytes of every 16 bit word. An
// odd trailing byte is copied unchanged.
func swap16(dst, src []byte) {
	i := 0
	for ; i+1 < len(src); i += 2 {
		dst[i], dst[i+1] = src[i+1], src[i]
	}
	if i < len(src) {
		dst[i] = src[i]
	}
}
