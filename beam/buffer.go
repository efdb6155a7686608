// Package beam implements the bounded sorted candidate set ("beam") that
// drives best-first graph traversal in an ANN query. It mirrors the
// SearchBuffer of the quantizer core: an insertion-sorted array of
// Candidates plus a cursor pointing at the smallest unchecked entry.
package beam

import (
	"math"

	"github.com/caqsearch/caq"
)

// Buffer is a capacity-bounded, sorted candidate set reused across queries
// via Clear. It is not safe for concurrent use.
//
// Invariants: entries [0,size) are sorted by Distance ascending; cur <=
// size; every entry at an index < cur has caq.CheckedBit set on its stored
// ID; if size == capacity then TopDist is data[capacity-1].Distance,
// otherwise +Inf.
type Buffer struct {
	data     []caq.Candidate
	size     int
	cur      int
	capacity int
}

// New allocates a Buffer with room for capacity Candidates plus one
// sentinel slot used by the shift-insert in Insert.
func New(capacity int) *Buffer {
	return &Buffer{
		data:     make([]caq.Candidate, capacity+1),
		capacity: capacity,
	}
}

// isChecked reports whether id has already been popped.
func isChecked(id caq.PointID) bool {
	return id&caq.CheckedBit != 0
}

func setChecked(id caq.PointID) caq.PointID {
	return id | caq.CheckedBit
}

// binarySearch returns the leftmost index whose stored distance is >= dist.
// Each iteration halves the remaining range and folds a boolean into the
// offset instead of branching on it, giving log2(capacity) comparisons with
// no data-dependent branch misprediction.
func (b *Buffer) binarySearch(dist float32) int {
	lo := 0
	length := b.size
	for length > 1 {
		half := length >> 1
		length -= half
		if b.data[lo+half-1].Distance < dist {
			lo += half
		}
	}
	if lo < b.size && b.data[lo].Distance < dist {
		return lo + 1
	}
	return lo
}

// TopDist returns the current worst (largest) distance kept in the buffer,
// or +Inf while the buffer has not yet filled to capacity.
func (b *Buffer) TopDist() float32 {
	if b.size == b.capacity {
		return b.data[b.capacity-1].Distance
	}
	return float32(math.Inf(1))
}

// isFull reports whether dist is no better than the current worst kept
// distance, i.e. inserting it would have no effect.
func (b *Buffer) isFull(dist float32) bool {
	return b.size == b.capacity && dist >= b.TopDist()
}

// Insert adds (id, dist) to the buffer if it improves on the current worst
// kept candidate, evicting the previous worst if the buffer was already at
// capacity. If id already carries the checked bit it is masked off first —
// the buffer itself owns that bit and a caller setting it is a usage bug,
// not grounds to corrupt the sorted invariant.
func (b *Buffer) Insert(id caq.PointID, dist float32) {
	id &^= caq.CheckedBit
	if b.isFull(dist) {
		return
	}

	lo := b.binarySearch(dist)
	copy(b.data[lo+1:b.size+1], b.data[lo:b.size])
	b.data[lo] = caq.Candidate{ID: id, Distance: dist}
	if b.size < b.capacity {
		b.size++
	}
	if lo < b.cur {
		b.cur = lo
	}
}

// HasNext reports whether there remains an unchecked candidate to Pop.
func (b *Buffer) HasNext() bool {
	return b.cur < b.size
}

// NextID returns the id Pop would return, without marking it checked.
func (b *Buffer) NextID() caq.PointID {
	return b.data[b.cur].ID
}

// Pop returns the unchecked candidate with the smallest distance, marks it
// checked, and advances the cursor past any now-stale checked entries.
// Pop panics if HasNext is false.
func (b *Buffer) Pop() caq.PointID {
	if !b.HasNext() {
		panic("beam: Pop called on a buffer with no unchecked candidates")
	}
	id := b.data[b.cur].ID
	b.data[b.cur].ID = setChecked(id)
	b.cur++
	for b.cur < b.size && isChecked(b.data[b.cur].ID) {
		b.cur++
	}
	return id
}

// CopyResults writes the size ids currently held, in sorted order, with the
// checked bit masked off. out must have length >= Len().
func (b *Buffer) CopyResults(out []caq.PointID) {
	for i := 0; i < b.size; i++ {
		out[i] = b.data[i].ID &^ caq.CheckedBit
	}
}

// Len returns the number of candidates currently held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Clear empties the buffer for reuse by the next query.
func (b *Buffer) Clear() {
	b.size = 0
	b.cur = 0
}

// Resize reallocates the buffer to a new capacity. Prior contents are
// discarded, including size and cursor, since there is no sound way to
// preserve a sorted prefix against a shrunk capacity.
func (b *Buffer) Resize(capacity int) {
	b.capacity = capacity
	b.data = make([]caq.Candidate, capacity+1)
	b.size = 0
	b.cur = 0
}
