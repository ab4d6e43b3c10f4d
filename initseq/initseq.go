// Package initseq decodes and runs panel initialisation programs.
//
// A program is a sequence of register writes and millisecond delays that
// brings a panel controller out of reset. Two wire encodings exist: a flat
// list of ints with negative delimiters, as found in compiled-in panel
// descriptors, and a list of tagged 32 bit words, as found in a device
// property named "init". Both decode to the same Program.
package initseq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Flat encoding delimiters.
const (
	FlatCmd   = -1
	FlatDelay = -2
	FlatStop  = -3
)

// Word encoding tags, held in the upper half of each word.
const (
	InitCmd   uint32 = 1 << 24
	InitDelay uint32 = 1 << 25
)

const (
	// MaxValues is the maximum number of values (register included) in a
	// single register write.
	MaxValues = 64
	// MaxFlatLen is how far into a flat program the stop marker is searched.
	MaxFlatLen = 512
	// MaxDelay is the largest delay in milliseconds.
	MaxDelay = 0xFFFF
)

// ErrInvalid is wrapped by every decoding and execution error caused by a
// malformed program.
var ErrInvalid = errors.New("initseq: invalid program")

// Kind is the opcode of an Op.
type Kind int

// Opcodes.
const (
	Cmd Kind = iota
	Delay
	Stop
)

// Op is one step of a program.
type Op struct {
	Kind Kind
	Reg  int   // Cmd only
	Data []int // Cmd only
	Ms   int   // Delay only
}

func (o Op) String() string {
	switch o.Kind {
	case Cmd:
		var b strings.Builder
		fmt.Fprintf(&b, "write(0x%02X)", o.Reg)
		for _, v := range o.Data {
			fmt.Fprintf(&b, " 0x%02X", v)
		}
		return b.String()
	case Delay:
		return fmt.Sprintf("mdelay(%d)", o.Ms)
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("Op(%d)", int(o.Kind))
}

// Program is a decoded initialisation program.
type Program []Op

// Validate checks that every register and data value fits in max.
func (p Program) Validate(max int) error {
	for i, op := range p {
		if op.Kind != Cmd {
			continue
		}
		if op.Reg < 0 || op.Reg > max {
			return fmt.Errorf("initseq: op %d: register 0x%X out of range: %w", i, op.Reg, ErrInvalid)
		}
		for _, v := range op.Data {
			if v < 0 || v > max {
				return fmt.Errorf("initseq: op %d: value 0x%X out of range: %w", i, v, ErrInvalid)
			}
		}
	}
	return nil
}

// ParseFlat decodes the flat encoding: FlatCmd followed by the register and
// its data, FlatDelay followed by milliseconds, FlatStop at the end.
func ParseFlat(seq []int) (Program, error) {
	end := -1
	for i := 0; i < len(seq) && i < MaxFlatLen; i++ {
		if seq[i] == FlatStop {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("initseq: missing stop marker at end of init sequence: %w", ErrInvalid)
	}

	var p Program
	i := 0
	for {
		v := seq[i]
		if v == FlatStop {
			return append(p, Op{Kind: Stop}), nil
		}
		if v >= 0 {
			return nil, fmt.Errorf("initseq: missing delimiter at position %d: %w", i, ErrInvalid)
		}
		if seq[i+1] < 0 {
			return nil, fmt.Errorf("initseq: missing value after delimiter %d at position %d: %w", v, i, ErrInvalid)
		}
		i++
		switch v {
		case FlatCmd:
			var vals []int
			for seq[i] >= 0 {
				if len(vals) == MaxValues {
					return nil, fmt.Errorf("initseq: maximum register values exceeded at position %d: %w", i, ErrInvalid)
				}
				vals = append(vals, seq[i])
				i++
			}
			p = append(p, Op{Kind: Cmd, Reg: vals[0], Data: vals[1:]})
		case FlatDelay:
			ms := seq[i]
			if ms > MaxDelay {
				return nil, fmt.Errorf("initseq: delay %d at position %d out of range: %w", ms, i, ErrInvalid)
			}
			p = append(p, Op{Kind: Delay, Ms: ms})
			i++
		default:
			return nil, fmt.Errorf("initseq: unknown delimiter %d at position %d: %w", v, i-1, ErrInvalid)
		}
	}
}

// ParseWords decodes the tagged word encoding. A word tagged InitCmd starts a
// register write with the register in its lower 16 bits; following untagged
// words are its data. A word tagged InitDelay is a delay in milliseconds.
// The program ends with the last word.
func ParseWords(words []uint32) (Program, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("initseq: empty init property: %w", ErrInvalid)
	}
	var p Program
	i := 0
	for i < len(words) {
		w := words[i]
		switch {
		case w&InitCmd != 0:
			vals := []int{int(w & 0xFFFF)}
			i++
			for i < len(words) && words[i]&0xFFFF0000 == 0 {
				if len(vals) == MaxValues {
					return nil, fmt.Errorf("initseq: maximum register values exceeded at word %d: %w", i, ErrInvalid)
				}
				vals = append(vals, int(words[i]))
				i++
			}
			p = append(p, Op{Kind: Cmd, Reg: vals[0], Data: vals[1:]})
		case w&InitDelay != 0:
			p = append(p, Op{Kind: Delay, Ms: int(w & 0xFFFF)})
			i++
		default:
			return nil, fmt.Errorf("initseq: illegal init value 0x%X: %w", w, ErrInvalid)
		}
	}
	return append(p, Op{Kind: Stop}), nil
}

// Target is the device a program runs against.
type Target interface {
	// Reset pulses the hardware reset line.
	Reset() error
	// Select activates the chip.
	Select() error
	// WriteRegister writes reg followed by its data.
	WriteRegister(reg int, data ...int) error
	// Sleep blocks for d.
	Sleep(d time.Duration)
}

// Run resets and selects t, then executes p until its Stop op.
//
// ctx is checked between ops.
func Run(ctx context.Context, p Program, t Target) error {
	if err := t.Reset(); err != nil {
		return err
	}
	if err := t.Select(); err != nil {
		return err
	}
	for i, op := range p {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch op.Kind {
		case Cmd:
			if len(op.Data)+1 > MaxValues {
				return fmt.Errorf("initseq: op %d: maximum register values exceeded: %w", i, ErrInvalid)
			}
			if err := t.WriteRegister(op.Reg, op.Data...); err != nil {
				return err
			}
		case Delay:
			if op.Ms < 0 || op.Ms > MaxDelay {
				return fmt.Errorf("initseq: op %d: delay %d out of range: %w", i, op.Ms, ErrInvalid)
			}
			t.Sleep(time.Duration(op.Ms) * time.Millisecond)
		case Stop:
			return nil
		default:
			return fmt.Errorf("initseq: op %d: undecodable opcode %d: %w", i, int(op.Kind), ErrInvalid)
		}
	}
	return fmt.Errorf("initseq: missing stop marker: %w", ErrInvalid)
}
