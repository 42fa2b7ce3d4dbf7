// Package ring is a single-producer, single-consumer byte FIFO with
// edge-triggered readiness channels. It backs the UART RX and TX queues.
package ring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
// Indices are monotonic; size is a power of two.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // empty -> non-empty edge
	writable chan struct{} // full -> non-full edge
}

// New allocates a ring. size must be a power of two >= 2.
func New(size int) *Ring {
	if !ValidSize(size) {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

// ValidSize reports whether size is acceptable to New.
func ValidSize(size int) bool { return size >= 2 && size&(size-1) == 0 }

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Space returns free bytes (producer view).
func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// Available returns buffered bytes (consumer view).
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Producer side

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	beforeAvail := wr - rd
	space := int(r.size() - beforeAvail)
	if space <= 0 {
		return 0
	}
	if len(src) < space {
		space = len(src)
	}
	n = space

	size := r.size()
	wrIdx := wr & r.mask
	first := int(size - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	if beforeAvail == 0 {
		notify(r.readable)
	}
	return n
}

// PutByte appends one byte; false if the ring is full.
func (r *Ring) PutByte(b byte) bool {
	var one [1]byte
	one[0] = b
	return r.TryWriteFrom(one[:]) == 1
}

// Consumer side

// TryReadInto copies up to len(dst) buffered bytes and returns the count.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	size := r.size()
	rdIdx := rd & r.mask
	first := int(size - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release

	if wr-rd == size {
		notify(r.writable)
	}
	return n
}

// GetByte removes one byte; false if the ring is empty.
func (r *Ring) GetByte() (byte, bool) {
	var one [1]byte
	if r.TryReadInto(one[:]) == 0 {
		return 0, false
	}
	return one[0], true
}

// Discard drops everything buffered. Consumer side only.
func (r *Ring) Discard() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	n := int(wr - rd)
	if n == 0 {
		return 0
	}
	r.rd.Store(wr)
	if uint32(n) == r.size() {
		notify(r.writable)
	}
	return n
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
