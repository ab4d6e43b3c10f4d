package fbtft

import (
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestDirtyLinesMark(t *testing.T) {
	tests := []struct {
		name        string
		marks       [][2]int
		first, last int
	}{
		{"single line", [][2]int{{5, 1}}, 5, 5},
		{"union", [][2]int{{10, 2}, {3, 1}, {7, 1}}, 3, 11},
		{"full frame", [][2]int{{-1, 0}}, 0, 239},
		{"clamped end", [][2]int{{0, 10000}}, 0, 239},
		{"empty height counts as one line", [][2]int{{20, 0}}, 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDirtyLines(240)
			for _, m := range tt.marks {
				d.mark(m[0], m[1])
			}
			first, last, ok := d.take()
			if !ok || first != tt.first || last != tt.last {
				t.Errorf("take() = (%d, %d, %t), want (%d, %d, true)", first, last, ok, tt.first, tt.last)
			}
		})
	}
}

func TestDirtyLinesResetAfterTake(t *testing.T) {
	c := qt.New(t)

	d := newDirtyLines(240)
	first, last, ok := d.peek()
	c.Assert([]int{first, last}, qt.DeepEquals, []int{239, 0})
	c.Assert(ok, qt.IsFalse)

	d.mark(4, 4)
	d.take()
	first, last, ok = d.peek()
	c.Assert([]int{first, last}, qt.DeepEquals, []int{239, 0})
	c.Assert(ok, qt.IsFalse)
}

func TestPageLines(t *testing.T) {
	tests := []struct {
		page, stride, height int
		first, last          int
		ok                   bool
	}{
		{0, 480, 320, 0, 8, true},
		{1, 480, 320, 8, 17, true},
		{37, 480, 320, 315, 319, true},
		{38, 480, 320, 0, 0, false},
		{-1, 480, 320, 0, 0, false},
	}
	for _, tt := range tests {
		first, last, ok := pageLines(tt.page, tt.stride, tt.height)
		if first != tt.first || last != tt.last || ok != tt.ok {
			t.Errorf("pageLines(%d) = (%d, %d, %t), want (%d, %d, %t)", tt.page, first, last, ok, tt.first, tt.last, tt.ok)
		}
	}
}

func TestFlusherSingleSlot(t *testing.T) {
	c := qt.New(t)

	clk := &fakeClock{}
	runs := 0
	f := newFlusher(50*time.Millisecond, func() { runs++ })
	f.afterFunc = clk.afterFunc

	f.arm()
	f.arm()
	f.arm()
	c.Assert(clk.pending(), qt.Equals, 1)
	c.Assert(f.pending(), qt.IsTrue)
	clk.fire()
	c.Assert(runs, qt.Equals, 1)
	c.Assert(f.pending(), qt.IsFalse)

	f.arm()
	c.Assert(clk.pending(), qt.Equals, 1)
}

func TestFlusherRearmDuringRun(t *testing.T) {
	c := qt.New(t)

	clk := &fakeClock{}
	var f *flusher
	runs := 0
	f = newFlusher(time.Millisecond, func() {
		runs++
		if runs == 1 {
			f.arm()
		}
	})
	f.afterFunc = clk.afterFunc

	f.arm()
	clk.fire()
	c.Assert(clk.pending(), qt.Equals, 1)
	clk.fire()
	c.Assert(runs, qt.Equals, 2)
}

func TestFlusherStop(t *testing.T) {
	c := qt.New(t)

	clk := &fakeClock{}
	runs := 0
	f := newFlusher(time.Millisecond, func() { runs++ })
	f.afterFunc = clk.afterFunc

	f.arm()
	f.stop()
	c.Assert(clk.timers[0].stopped, qt.IsTrue)
	clk.fire()
	c.Assert(runs, qt.Equals, 0)
	f.arm()
	c.Assert(clk.pending(), qt.Equals, 0)
}

func TestFlushCoalesces(t *testing.T) {
	c := qt.New(t)

	d := newTestDev(c, testDisplay(), nil)
	d.MarkDirty(5, 1)
	d.MarkDirty(2, 1)
	d.MarkDirty(7, 2)
	c.Assert(d.clk.pending(), qt.Equals, 1)

	d.clk.fire()
	ys, ye, ok := d.w.window()
	c.Assert(ok, qt.IsTrue)
	c.Assert([]int{ys, ye}, qt.DeepEquals, []int{2, 8})
	last := d.w.recs[len(d.w.recs)-1]
	c.Assert(last.B, qt.HasLen, (8-2+1)*d.par.stride)

	_, _, marked := d.dirty.peek()
	c.Assert(marked, qt.IsFalse)
}

func TestFlushCoversEveryMark(t *testing.T) {
	c := qt.New(t)

	d := newTestDev(c, &Display{BusWidth: 8, Width: 2, Height: 240, Init: []int{-3}}, nil)
	marks := [][2]int{{100, 3}, {0, 1}, {239, 1}, {50, 10}}
	for _, m := range marks {
		d.MarkDirty(m[0], m[1])
	}
	d.clk.fire()
	ys, ye, _ := d.w.window()
	for _, m := range marks {
		c.Assert(ys <= m[0] && m[0]+m[1]-1 <= ye, qt.IsTrue, qt.Commentf("mark %v outside %d..%d", m, ys, ye))
	}
}

func TestFlushClean(t *testing.T) {
	c := qt.New(t)

	d := newTestDev(c, testDisplay(), nil)
	c.Assert(d.Flush(), qt.IsNil)
	c.Assert(d.w.recs, qt.HasLen, 0)
}

func TestFlushInvalidIntervalIsFullFrame(t *testing.T) {
	c := qt.New(t)

	d := newTestDev(c, testDisplay(), nil)
	d.MarkDirty(-5, 1)
	c.Assert(d.Flush(), qt.IsNil)
	ys, ye, _ := d.w.window()
	c.Assert([]int{ys, ye}, qt.DeepEquals, []int{0, 9})
}

func TestMarkPagesDirty(t *testing.T) {
	c := qt.New(t)

	d := newTestDev(c, &Display{BusWidth: 8, Width: 240, Height: 320, Init: []int{-3}}, nil)
	d.MarkPagesDirty(1, 3)
	first, last, ok := d.dirty.peek()
	c.Assert(ok, qt.IsTrue)
	c.Assert([]int{first, last}, qt.DeepEquals, []int{8, 34})
	c.Assert(d.clk.pending(), qt.Equals, 1)

	d.clk.fire()
	d.MarkPagesDirty(1000)
	c.Assert(d.clk.pending(), qt.Equals, 0)
}

func TestDirtyLinesConcurrentMarks(t *testing.T) {
	const height, producers = 64, 8
	d := newDirtyLines(height)
	covered := make([]bool, height)
	cover := func(first, last int) {
		for y := first; y <= last; y++ {
			covered[y] = true
		}
	}

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for y := g; y < height; y += producers {
					d.mark(y, 1)
				}
			}
		}(g)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if first, last, ok := d.take(); ok {
				cover(first, last)
			}
		}
	}()
	wg.Wait()
	<-done
	if first, last, ok := d.take(); ok {
		cover(first, last)
	}
	for y, ok := range covered {
		if !ok {
			t.Errorf("line %d was marked but never taken", y)
		}
	}
}

func TestFlushConcurrentMarks(t *testing.T) {
	c := qt.New(t)

	const height, producers = 64, 8
	w := &recWriter{}
	disp := &Display{Width: 2, Height: height, BusWidth: 8, FPS: 1000, Init: []int{-3}}
	d, err := New(w, &Pins{DC: &gpiotest.Pin{N: "dc"}}, disp, &Opts{Logger: discard, sleep: func(time.Duration) {}})
	c.Assert(err, qt.IsNil)
	w.reset()

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for y := g; y < height; y += producers {
					d.MarkDirty(y, 1)
				}
				if i%10 == 0 {
					c.Check(d.Flush(), qt.IsNil)
				}
			}
		}(g)
	}
	wg.Wait()
	c.Assert(d.Halt(), qt.IsNil)

	// Every line went out in some window, and nothing is left pending.
	covered := make([]bool, height)
	for i, r := range w.recs[:len(w.recs)-1] {
		if !r.DC && len(r.B) == 1 && r.B[0] == cmdPageAddressSet {
			b := w.recs[i+1].B
			for y := int(b[0])<<8 | int(b[1]); y <= int(b[2])<<8|int(b[3]); y++ {
				covered[y] = true
			}
		}
	}
	for y, ok := range covered {
		c.Check(ok, qt.IsTrue, qt.Commentf("line %d", y))
	}
	_, _, marked := d.dirty.peek()
	c.Assert(marked, qt.IsFalse)
}
