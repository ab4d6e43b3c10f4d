package fbtft

import (
	"fmt"
	"strconv"
	"strings"
)

// Properties is a read-only device property store, such as a device tree
// node. A property that does not exist reports ok == false.
type Properties interface {
	Present(name string) bool
	U32(name string) (v uint32, ok bool, err error)
	U32s(name string) (v []uint32, ok bool, err error)
	String(name string) (v string, ok bool, err error)
}

// PropertyMap is a Properties backed by strings. Numbers are decimal or
// 0x-prefixed hex; arrays are separated by commas or white space. A flag
// property such as "bgr" is present when its key exists, whatever its value.
type PropertyMap map[string]string

// ParsePropertyMap builds a PropertyMap from "key=value" pairs. A pair
// without '=' is a flag.
func ParsePropertyMap(pairs []string) PropertyMap {
	m := PropertyMap{}
	for _, kv := range pairs {
		k, v, _ := strings.Cut(kv, "=")
		m[strings.TrimSpace(k)] = v
	}
	return m
}

// Present implements Properties.
func (m PropertyMap) Present(name string) bool {
	_, ok := m[name]
	return ok
}

// U32 implements Properties.
func (m PropertyMap) U32(name string) (uint32, bool, error) {
	s, ok := m[name]
	if !ok {
		return 0, false, nil
	}
	v, err := parseU32(name, s)
	return v, true, err
}

// U32s implements Properties.
func (m PropertyMap) U32s(name string) ([]uint32, bool, error) {
	s, ok := m[name]
	if !ok {
		return nil, false, nil
	}
	fields := splitList(s)
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := parseU32(name, f)
		if err != nil {
			return nil, true, err
		}
		out = append(out, v)
	}
	return out, true, nil
}

// String implements Properties.
func (m PropertyMap) String(name string) (string, bool, error) {
	s, ok := m[name]
	return s, ok, nil
}

func parseU32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("fbtft: property %q: %w", name, err)
	}
	return uint32(v), nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// propUnsigned overrides *dst with the property when present.
func propUnsigned(p Properties, name string, dst *int) error {
	if p == nil {
		return nil
	}
	v, ok, err := p.U32(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if ok {
		*dst = int(v)
	}
	return nil
}
