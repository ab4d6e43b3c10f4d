package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.bug.st/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// recordConn is a conn.Conn that records every write.
type recordConn struct {
	writes [][]byte
	limit  int
	fail   error
}

func (r *recordConn) String() string { return "record" }

func (r *recordConn) Duplex() conn.Duplex { return conn.Half }

func (r *recordConn) Tx(w, rd []byte) error {
	if r.fail != nil {
		return r.fail
	}
	r.writes = append(r.writes, append([]byte(nil), w...))
	for i := range rd {
		rd[i] = byte(i)
	}
	return nil
}

func (r *recordConn) all() []byte {
	return bytes.Join(r.writes, nil)
}

type limitedConn struct {
	recordConn
}

func (l *limitedConn) MaxTxSize() int { return l.limit }

func TestPack9(t *testing.T) {
	c := qt.New(t)

	units := []uint16{0x0AB, 0x101, 0x102, 0x103, 0x104, 0x105, 0x106, 0x107}
	dst := make([]byte, PackedLen(len(units)))
	n := Pack9(dst, units)
	c.Assert(n, qt.Equals, 9)
	c.Assert(dst, qt.DeepEquals, []byte{0x55, 0xC0, 0x60, 0x50, 0x38, 0x24, 0x16, 0x0D, 0x07})

	// The first bit of each 9 bit unit is its flag.
	for i, u := range units {
		bit := i * 9
		got := dst[bit/8] >> (7 - uint(bit%8)) & 1
		c.Assert(uint16(got), qt.Equals, u>>8, qt.Commentf("unit %d", i))
	}
}

func TestPack9Partial(t *testing.T) {
	c := qt.New(t)

	dst := make([]byte, PackedLen(1))
	c.Assert(Pack9(dst, []uint16{0x12A}), qt.Equals, 2)
	c.Assert(dst, qt.DeepEquals, []byte{0x95, 0x00})
}

func TestUnits9(t *testing.T) {
	c := qt.New(t)

	c.Assert(Units9(nil, false, []byte{0x2C}), qt.DeepEquals, []uint16{0x02C})
	c.Assert(Units9(nil, true, []byte{0x01, 0xFF}), qt.DeepEquals, []uint16{0x101, 0x1FF})
}

func TestSPIChunks(t *testing.T) {
	c := qt.New(t)

	lc := &limitedConn{recordConn{limit: 3}}
	s := NewSPI(lc)
	c.Assert(s.Write(true, []byte{1, 2, 3, 4, 5, 6, 7}), qt.IsNil)
	c.Assert(lc.writes, qt.DeepEquals, [][]byte{{1, 2, 3}, {4, 5, 6}, {7}})
	c.Assert(s.CarriesDC(), qt.IsFalse)

	buf := make([]byte, 3)
	c.Assert(s.Read(buf), qt.IsNil)
	c.Assert(buf, qt.DeepEquals, []byte{0, 1, 2})
}

func TestSPIError(t *testing.T) {
	c := qt.New(t)

	boom := errors.New("boom")
	s := NewSPI(&recordConn{fail: boom})
	err := s.Write(false, []byte{0x2C})
	c.Assert(err, qt.ErrorIs, boom)
	c.Assert(err, qt.ErrorMatches, "transport: tx of 1 bytes failed: boom")
}

func TestSPI9(t *testing.T) {
	c := qt.New(t)

	rc := &recordConn{}
	s := NewSPI9(rc, 2)
	c.Assert(s.Write(true, []byte{0x11, 0x22, 0x33}), qt.IsNil)

	want := make([]byte, 6)
	binary.NativeEndian.PutUint16(want[0:], 0x111)
	binary.NativeEndian.PutUint16(want[2:], 0x122)
	binary.NativeEndian.PutUint16(want[4:], 0x133)
	c.Assert(rc.all(), qt.DeepEquals, want)
	c.Assert(rc.writes, qt.HasLen, 2)

	rc.writes = nil
	c.Assert(s.Write9([]uint16{0x02A}), qt.IsNil)
	want = make([]byte, 2)
	binary.NativeEndian.PutUint16(want, 0x02A)
	c.Assert(rc.all(), qt.DeepEquals, want)
}

func TestEmulated9(t *testing.T) {
	c := qt.New(t)

	rc := &recordConn{}
	e := NewEmulated9(rc, 8)
	c.Assert(len(e.extra), qt.Equals, 8+1+8)
	c.Assert(e.Write9([]uint16{0x0AB, 0x101, 0x102, 0x103, 0x104, 0x105, 0x106, 0x107}), qt.IsNil)
	c.Assert(rc.all(), qt.DeepEquals, []byte{0x55, 0xC0, 0x60, 0x50, 0x38, 0x24, 0x16, 0x0D, 0x07})
	c.Assert(e.CarriesDC(), qt.IsTrue)
}

func TestEmulated9Chunks(t *testing.T) {
	c := qt.New(t)

	rc := &recordConn{}
	e := NewEmulated9(rc, 16)
	data := make([]byte, 40)
	c.Assert(e.Write(true, data), qt.IsNil)
	// 40 units: 16 + 16 + 8, every chunk a whole number of 8 unit groups.
	c.Assert(rc.writes, qt.HasLen, 3)
	c.Assert(rc.writes[0], qt.HasLen, 18)
	c.Assert(rc.writes[2], qt.HasLen, 9)
	// Data units with a zero payload pack as a 1 followed by eight 0.
	c.Assert(rc.writes[2][0], qt.Equals, byte(0x80))
}

// logPin records its level changes into a shared log.
type logPin struct {
	*gpiotest.Pin
	log *[]string
}

func (p *logPin) Out(l gpio.Level) error {
	*p.log = append(*p.log, fmt.Sprintf("%s=%d", p.N, b2i(l)))
	return p.Pin.Out(l)
}

func b2i(l gpio.Level) int {
	if l {
		return 1
	}
	return 0
}

func newLogPins(log *[]string, names ...string) []gpio.PinOut {
	out := make([]gpio.PinOut, len(names))
	for i, n := range names {
		out[i] = &logPin{Pin: &gpiotest.Pin{N: n, Num: i}, log: log}
	}
	return out
}

func TestParallel8(t *testing.T) {
	c := qt.New(t)

	var log []string
	wr := newLogPins(&log, "wr")[0]
	db := newLogPins(&log, "d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7")
	p, err := NewParallel(wr, db)
	c.Assert(err, qt.IsNil)

	c.Assert(p.Write(true, []byte{0x81, 0x81, 0x80}), qt.IsNil)
	c.Assert(log, qt.DeepEquals, []string{
		"d0=1", "d1=0", "d2=0", "d3=0", "d4=0", "d5=0", "d6=0", "d7=1",
		"wr=0", "wr=1",
		"wr=0", "wr=1",
		"d0=0",
		"wr=0", "wr=1",
	})
}

func TestParallel16(t *testing.T) {
	c := qt.New(t)

	var log []string
	names := make([]string, 16)
	for i := range names {
		names[i] = fmt.Sprintf("d%d", i)
	}
	db := newLogPins(&log, names...)
	wr := newLogPins(&log, "wr")[0]
	p, err := NewParallel(wr, db)
	c.Assert(err, qt.IsNil)

	buf := make([]byte, 2)
	binary.NativeEndian.PutUint16(buf, 0x8001)
	c.Assert(p.Write(true, buf), qt.IsNil)
	c.Assert(db[0].(*logPin).L, qt.Equals, gpio.High)
	c.Assert(db[1].(*logPin).L, qt.Equals, gpio.Low)
	c.Assert(db[15].(*logPin).L, qt.Equals, gpio.High)
	c.Assert(log[len(log)-2:], qt.DeepEquals, []string{"wr=0", "wr=1"})

	c.Assert(p.Write(true, []byte{1}), qt.ErrorMatches, "transport: odd length 1 on 16 bit bus")
}

func TestNewParallelErrors(t *testing.T) {
	c := qt.New(t)

	var log []string
	_, err := NewParallel(nil, newLogPins(&log, "d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7"))
	c.Assert(err, qt.ErrorMatches, "transport: parallel bus requires a wr line")

	wr := newLogPins(&log, "wr")[0]
	_, err = NewParallel(wr, newLogPins(&log, "d0"))
	c.Assert(err, qt.ErrorMatches, "transport: unsupported parallel bus width 1")

	db := newLogPins(&log, "d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7")
	db[3] = nil
	_, err = NewParallel(wr, db)
	c.Assert(err, qt.ErrorMatches, "transport: missing db03 line")
}

// fakePort is a serial.Port writing into a buffer.
type fakePort struct {
	out   bytes.Buffer
	in    []byte
	rts   []bool
	chunk int
}

func (f *fakePort) SetMode(mode *serial.Mode) error { return nil }

func (f *fakePort) Read(p []byte) (int, error) {
	n := copy(p, f.in)
	f.in = f.in[n:]
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.out.Write(p)
}

func (f *fakePort) Drain() error             { return nil }
func (f *fakePort) ResetInputBuffer() error  { return nil }
func (f *fakePort) ResetOutputBuffer() error { return nil }
func (f *fakePort) SetDTR(dtr bool) error    { return nil }

func (f *fakePort) SetRTS(rts bool) error {
	f.rts = append(f.rts, rts)
	return nil
}

func (f *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error { return nil }
func (f *fakePort) Close() error                         { return nil }
func (f *fakePort) Break(time.Duration) error            { return nil }

func TestUART(t *testing.T) {
	c := qt.New(t)

	fp := &fakePort{chunk: 2}
	u := NewUART(fp)
	c.Assert(u.Write(false, []byte{0x2A}), qt.IsNil)
	c.Assert(u.Write(true, []byte{0, 0, 0, 0xEF}), qt.IsNil)
	c.Assert(u.Write(true, []byte{0x01}), qt.IsNil)
	c.Assert(fp.out.Bytes(), qt.DeepEquals, []byte{0x2A, 0, 0, 0, 0xEF, 0x01})
	c.Assert(fp.rts, qt.DeepEquals, []bool{false, true})
	c.Assert(u.CarriesDC(), qt.IsTrue)
}

func TestUARTRead(t *testing.T) {
	c := qt.New(t)

	fp := &fakePort{in: []byte{0x85, 0x52}}
	u := NewUART(fp)
	buf := make([]byte, 2)
	c.Assert(u.Read(buf), qt.IsNil)
	c.Assert(buf, qt.DeepEquals, []byte{0x85, 0x52})

	c.Assert(u.Read(buf), qt.ErrorMatches, "transport: serial read timed out with 2 bytes missing")
	c.Assert(u.Close(), qt.IsNil)
}

var (
	_ Writer9 = (*SPI9)(nil)
	_ Writer9 = (*Emulated9)(nil)
	_ Reader  = (*SPI)(nil)
	_ Reader  = (*UART)(nil)
	_ Writer  = (*Parallel)(nil)
)
