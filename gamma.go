package fbtft

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxGammaValues caps the total number of gamma values over all curves.
const MaxGammaValues = 128

// ParseGamma parses num curves of n hex values each. Curves are separated
// by newlines or ';', values by spaces or commas. A "0x" prefix is
// accepted.
func ParseGamma(s string, num, n int) ([][]uint32, error) {
	if num <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: gamma is not supported by this panel", ErrNotSupported)
	}
	if num*n > MaxGammaValues {
		return nil, fmt.Errorf("%w: gamma %dx%d exceeds %d values", ErrConfigInvalid, num, n, MaxGammaValues)
	}
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ';' })
	var curves [][]uint32
	for _, l := range lines {
		fields := strings.FieldsFunc(l, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\r' })
		if len(fields) == 0 {
			continue
		}
		if len(curves) == num {
			return nil, fmt.Errorf("%w: gamma has more than %d curves", ErrConfigInvalid, num)
		}
		if len(fields) != n {
			return nil, fmt.Errorf("%w: gamma curve %d has %d values, want %d", ErrConfigInvalid, len(curves), len(fields), n)
		}
		c := make([]uint32, n)
		for i, f := range fields {
			v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: gamma value %q: %w", ErrConfigInvalid, f, err)
			}
			c[i] = uint32(v)
		}
		curves = append(curves, c)
	}
	if len(curves) != num {
		return nil, fmt.Errorf("%w: gamma has %d curves, want %d", ErrConfigInvalid, len(curves), num)
	}
	return curves, nil
}

// FormatGamma is the inverse of ParseGamma: one line per curve, values in
// hex separated by spaces.
func FormatGamma(curves [][]uint32) string {
	var b strings.Builder
	for _, c := range curves {
		for i, v := range c {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%x", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
