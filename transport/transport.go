// Package transport implements the byte sinks that carry register and pixel
// data to a panel controller.
//
// Every sink is synchronous. A sink either relies on a separate data/command
// line driven by the caller before Write, or carries the data/command flag
// itself (9 bit serial, serial bridges). The latter report CarriesDC() true.
package transport

import (
	"errors"
)

// Writer sends bytes to the panel.
type Writer interface {
	// Write sends p. dc is the data/command flag: false for command bytes,
	// true for data bytes. Sinks driven through a separate D/C line ignore
	// it; the line must be set before the call and stay stable during it.
	Write(dc bool, p []byte) error
	// CarriesDC reports whether the sink transmits the dc flag itself.
	CarriesDC() bool
}

// Writer9 is implemented by sinks that accept 9 bit units, where bit 8 is
// the data/command flag.
type Writer9 interface {
	Writer
	Write9(units []uint16) error
}

// Reader is implemented by sinks that can read back from the panel.
type Reader interface {
	Read(p []byte) error
}

// ErrShortWrite is returned when a sink accepted fewer bytes than given.
var ErrShortWrite = errors.New("transport: short write")

// ErrNotSupported is returned by optional operations a sink cannot do.
var ErrNotSupported = errors.New("transport: not supported")

// Pack9 packs 9 bit units into dst, most significant bit first. Each unit
// contributes its data/command flag (bit 8) followed by its 8 data bits.
// Eight units fill exactly nine bytes; a trailing partial byte is padded
// with zero bits. It returns the number of bytes written; dst must hold at
// least PackedLen(len(units)) bytes.
func Pack9(dst []byte, units []uint16) int {
	var acc uint32
	var nbits uint
	n := 0
	for _, u := range units {
		acc = acc<<9 | uint32(u&0x1FF)
		nbits += 9
		for nbits >= 8 {
			nbits -= 8
			dst[n] = byte(acc >> nbits)
			n++
		}
		acc &= 1<<nbits - 1
	}
	if nbits > 0 {
		dst[n] = byte(acc << (8 - nbits))
		n++
	}
	return n
}

// PackedLen returns the number of bytes Pack9 writes for n units.
func PackedLen(n int) int {
	return (n*9 + 7) / 8
}

// Units9 expands p into 9 bit units carrying dc in bit 8.
func Units9(dst []uint16, dc bool, p []byte) []uint16 {
	var flag uint16
	if dc {
		flag = 0x100
	}
	dst = dst[:0]
	for _, b := range p {
		dst = append(dst, flag|uint16(b))
	}
	return dst
}
