package ringbuf

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Ring is a fixed-then-growable ring buffer over an ordered element type.
// The zero value is not usable; construct with New.
type Ring[E constraints.Ordered] struct {
	s    []E
	r, w uint
}

// New constructs a Ring with an initial capacity of size, which must be a
// positive power of two.
func New[E constraints.Ordered](size int) *Ring[E] {
	if size <= 0 || size&(size-1) != 0 {
		panic(`ringbuf: size must be a power of 2`)
	}
	return &Ring[E]{s: make([]E, size)}
}

func (x *Ring[E]) mask(val uint) uint {
	return val & (uint(len(x.s)) - 1)
}

func (x *Ring[E]) bounds() (i1, l1, l2 int) {
	if x.r == x.w {
		return
	}
	i1 = int(x.mask(x.r))
	l1 = int(x.mask(x.w))
	if l1 <= i1 {
		l2 = l1
		l1 = len(x.s)
	}
	return
}

// Len returns the number of elements currently stored.
func (x *Ring[E]) Len() int {
	return int(x.w - x.r)
}

// Cap returns the current backing capacity.
func (x *Ring[E]) Cap() int {
	return len(x.s)
}

// Get returns the i'th element, 0 being the oldest.
func (x *Ring[E]) Get(i int) E {
	if i < 0 || i >= x.Len() {
		panic(`ringbuf: get: index out of range`)
	}
	return x.s[x.mask(x.r+uint(i))]
}

// Slice returns a newly allocated copy of the buffer contents, oldest
// first.
func (x *Ring[E]) Slice() (b []E) {
	if l := x.Len(); l != 0 {
		b = make([]E, l)
		i1, l1, l2 := x.bounds()
		copy(b, x.s[i1:l1])
		copy(b[l1-i1:], x.s[:l2])
	}
	return b
}

// RemoveBefore discards the first index elements.
func (x *Ring[E]) RemoveBefore(index int) {
	if index < 0 || index > x.Len() {
		panic(`ringbuf: remove before: index out of range`)
	}
	x.r += uint(index)
}

// Search returns the index of the first element >= value, via binary
// search; the buffer must be sorted ascending.
func (x *Ring[E]) Search(value E) int {
	return sort.Search(x.Len(), func(i int) bool {
		return x.Get(i) >= value
	})
}

// Insert inserts value at index, growing the backing array if full.
func (x *Ring[E]) Insert(index int, value E) {
	l := x.Len()
	if index < 0 || index > l {
		panic(`ringbuf: insert: index out of range`)
	}

	if l == len(x.s) {
		// full, special case: requires expanding the buffer
		s := make([]E, uint(len(x.s))<<1)
		if len(s) == 0 {
			panic(`ringbuf: insert: overflow`)
		}

		// since we're copying the whole thing anyway, we can start at 0
		i1, l1, l2 := x.bounds()
		l = l1 - i1
		if index < l {
			// insert in the first segment
			copy(s, x.s[i1:i1+index])
			s[index] = value
			copy(s[index+1:], x.s[i1+index:l1])
			l++
			copy(s[l:], x.s[:l2])
			l += l2
		} else {
			// insert in the second segment
			copy(s, x.s[i1:l1])
			copy(s[l:], x.s[:index-l])
			s[index] = value
			copy(s[index+1:], x.s[index-l:l2])
			l += l2 + 1
		}

		x.r = 0
		x.w = uint(l)
		x.s = s
		return
	}

	// optimization: everything works nicer if it's not wrapped around
	// so, if we can, pre-emptively reset the offsets to 0
	var i, j int
	if l == 0 {
		x.r = 0
		x.w = 0
	} else {
		i = int(x.mask(x.r))
		j = int(x.mask(x.w))
	}

	// fastest case: not wrapped around, and there's room to write
	if l == 0 || i < j {
		copy(x.s[i+index+1:], x.s[i+index:j])
		x.s[i+index] = value
		x.w++
		return
	}

	// slow case that only adjusts one segment: write into the
	// wrapped-around part at the start of the buffer
	if index >= len(x.s)-i {
		index -= len(x.s) - i
		copy(x.s[index+1:], x.s[index:j])
		x.s[index] = value
		x.w++
		return
	}

	// slowest case that requires adjusting both segments
	copy(x.s[1:], x.s[:j])
	x.s[0] = x.s[len(x.s)-1]
	copy(x.s[i+index+1:], x.s[i+index:])
	x.s[i+index] = value
	x.w++
}

// PushBack appends value at the end, growing the buffer if necessary.
func (x *Ring[E]) PushBack(value E) {
	x.Insert(x.Len(), value)
}

// PopFront removes and returns the oldest element. It panics if the buffer
// is empty.
func (x *Ring[E]) PopFront() E {
	v := x.Get(0)
	x.RemoveBefore(1)
	return v
}
