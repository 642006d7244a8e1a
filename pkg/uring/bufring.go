//go:build linux

package uring

import (
	"strconv"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/pawelgaczynski/giouring"
)

var (
	ErrBufferRingSize = errors.Define("uring: buffer ring size must be a power of two")
)

// BufferRing is the worker's pool of receive buffers shared with the kernel
// through a registered buffer ring. Every buffer is in exactly one of three
// states: offered to the kernel, borrowed by handler code, or in flight
// between the two. Registration offers them all; Borrow takes a buffer the
// kernel selected, and Return offers it to the kernel again.
type BufferRing struct {
	br       *giouring.BufAndRing
	entries  uint32
	mask     int
	bufSize  int
	buffers  [][]byte
	borrowed []uint64
	held     int
}

// RegisterBufferRing allocates entries buffers of bufSize bytes, registers
// the ring under BufferGroupID and publishes every buffer to the kernel.
// Must be called exactly once per worker before the first recv. entries must
// be a power of two: the ring index arithmetic masks with entries-1.
func (r *Ring) RegisterBufferRing(entries uint32, bufSize int) (*BufferRing, error) {
	if entries == 0 || entries&(entries-1) != 0 {
		return nil, ErrBufferRingSize
	}
	br, brErr := r.ring.SetupBufRing(entries, BufferGroupID, 0)
	if brErr != nil {
		return nil, errors.New("uring: buffer ring registration failed", errors.WithWrap(brErr))
	}
	b := newBufferRing(br, entries, bufSize)
	b.publishAll()
	return b, nil
}

func newBufferRing(br *giouring.BufAndRing, entries uint32, bufSize int) *BufferRing {
	b := &BufferRing{
		br:       br,
		entries:  entries,
		mask:     giouring.BufRingMask(entries),
		bufSize:  bufSize,
		buffers:  make([][]byte, entries),
		borrowed: make([]uint64, (entries+63)/64),
	}
	for i := range b.buffers {
		b.buffers[i] = make([]byte, bufSize)
	}
	return b
}

func (b *BufferRing) publishAll() {
	for i := uint32(0); i < b.entries; i++ {
		b.br.BufRingAdd(uintptr(unsafe.Pointer(&b.buffers[i][0])), uint32(b.bufSize), uint16(i), b.mask, int(i))
	}
	b.br.BufRingAdvance(int(b.entries))
}

// Borrow marks the kernel-selected buffer as held by handler code and
// returns a view limited to the n bytes the completion reported. Only those
// bytes are meaningful: contents are never zeroed on return. Borrowing a
// buffer that is already held is a programming error.
func (b *BufferRing) Borrow(bid uint16, n int) []byte {
	word, bit := int(bid)>>6, uint64(1)<<(bid&63)
	if b.borrowed[word]&bit != 0 {
		panic("uring: double borrow of buffer " + strconv.Itoa(int(bid)))
	}
	b.borrowed[word] |= bit
	b.held++
	return b.buffers[bid][:n]
}

// Return publishes the buffer back to the kernel ring and clears the borrow
// mark.
func (b *BufferRing) Return(bid uint16) {
	word, bit := int(bid)>>6, uint64(1)<<(bid&63)
	if b.borrowed[word]&bit == 0 {
		panic("uring: returning buffer " + strconv.Itoa(int(bid)) + " that is not borrowed")
	}
	b.borrowed[word] &^= bit
	b.held--
	b.br.BufRingAdd(uintptr(unsafe.Pointer(&b.buffers[bid][0])), uint32(b.bufSize), bid, b.mask, 0)
	b.br.BufRingAdvance(1)
}

// Recycle republishes a buffer the kernel picked for a completion that was
// discarded before any handler borrowed it.
func (b *BufferRing) Recycle(bid uint16) {
	b.br.BufRingAdd(uintptr(unsafe.Pointer(&b.buffers[bid][0])), uint32(b.bufSize), bid, b.mask, 0)
	b.br.BufRingAdvance(1)
}

// Borrowed reports how many buffers handler code currently holds.
func (b *BufferRing) Borrowed() int { return b.held }

func (b *BufferRing) Capacity() int { return int(b.entries) }

func (b *BufferRing) BufferSize() int { return b.bufSize }
