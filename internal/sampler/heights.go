package sampler

import "fmt"

// HeightCursor walks the grid origin, origin+step, ... up to and including to. The last
// height is always to, even when it is off the grid. Heights are produced one batch at a
// time so long ranges never materialize in memory.
type HeightCursor struct {
	origin uint64
	to     uint64
	step   uint64
	next   uint64
	done   bool
}

// NewHeightCursor returns a cursor positioned at from.
func NewHeightCursor(from, to, step uint64) (*HeightCursor, error) {
	if step == 0 {
		return nil, fmt.Errorf("sample step must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}
	return &HeightCursor{origin: from, to: to, step: step, next: from}, nil
}

// ResumeAfter moves the cursor to the first grid height after last, so a resumed run
// samples the same blocks as an uninterrupted one. A last below the origin is ignored.
func (c *HeightCursor) ResumeAfter(last uint64) {
	if last < c.origin {
		return
	}
	if last >= c.to {
		c.done = true
		return
	}
	k := (last-c.origin)/c.step + 1
	if k > (c.to-c.origin)/c.step {
		c.next = c.to
		return
	}
	c.next = c.origin + k*c.step
}

// Peek returns the next height without consuming it; ok is false once the cursor is exhausted.
func (c *HeightCursor) Peek() (height uint64, ok bool) {
	if c.done {
		return 0, false
	}
	return c.next, true
}

// NextBatch returns up to size heights, or nil once the cursor is exhausted.
func (c *HeightCursor) NextBatch(size int) ([]uint64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if c.done {
		return nil, nil
	}

	batch := make([]uint64, 0, size)
	for len(batch) < size && !c.done {
		h := c.next
		batch = append(batch, h)
		switch {
		case h == c.to:
			c.done = true
		case c.to-h < c.step:
			c.next = c.to
		default:
			c.next = h + c.step
		}
	}
	return batch, nil
}

// SampleHeights returns every height the cursor for (from, to, step) would produce.
func SampleHeights(from, to, step uint64) ([]uint64, error) {
	cursor, err := NewHeightCursor(from, to, step)
	if err != nil {
		return nil, err
	}
	var heights []uint64
	for {
		batch, err := cursor.NextBatch(1024)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return heights, nil
		}
		heights = append(heights, batch...)
	}
}
