package fbtft

import "sync"

// PageSize is the granularity of page based dirty marking.
const PageSize = 4096

// dirtyLines is the pending flush interval: an inclusive range of scanlines.
// The empty interval is stored as (height-1, 0).
type dirtyLines struct {
	mu     sync.Mutex
	height int
	first  int
	last   int
	marked bool
}

func newDirtyLines(height int) *dirtyLines {
	return &dirtyLines{height: height, first: height - 1, last: 0}
}

// mark merges the lines y..y+n-1 into the interval. y == -1 marks the full
// frame. The end is clamped to the last line; out of range starts are kept
// and caught when the interval is taken.
func (d *dirtyLines) mark(y, n int) {
	if y == -1 {
		y, n = 0, d.height
	}
	if n < 1 {
		n = 1
	}
	end := min(y+n-1, d.height-1)
	d.mu.Lock()
	d.first = min(d.first, y)
	d.last = max(d.last, end)
	d.marked = true
	d.mu.Unlock()
}

// take returns the interval and resets it to empty. ok is false when
// nothing was marked since the previous take.
func (d *dirtyLines) take() (first, last int, ok bool) {
	d.mu.Lock()
	first, last, ok = d.first, d.last, d.marked
	d.first, d.last, d.marked = d.height-1, 0, false
	d.mu.Unlock()
	return first, last, ok
}

// peek returns the interval without resetting it.
func (d *dirtyLines) peek() (first, last int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.first, d.last, d.marked
}

// pageLines returns the lines covered by a page of the pixel buffer.
func pageLines(page, stride, height int) (first, last int, ok bool) {
	if stride <= 0 || page < 0 {
		return 0, 0, false
	}
	first = page * PageSize / stride
	if first > height-1 {
		return 0, 0, false
	}
	last = min(((page+1)*PageSize-1)/stride, height-1)
	return first, last, true
}
