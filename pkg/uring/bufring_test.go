//go:build linux

package uring

import (
	"testing"

	"github.com/brickingsoft/errors"
	"github.com/pawelgaczynski/giouring"
)

// testBufferRing builds a buffer ring over plain user memory: the ring
// metadata is just an entry array, so publication arithmetic can be
// exercised without a kernel registration.
func testBufferRing(entries uint32, bufSize int) *BufferRing {
	mem := make([]giouring.BufAndRing, entries)
	br := &mem[0]
	br.BufRingInit()
	b := newBufferRing(br, entries, bufSize)
	b.publishAll()
	return b
}

func TestRegisterRejectsNonPowerOfTwo(t *testing.T) {
	r := &Ring{}
	if _, err := r.RegisterBufferRing(3, 1024); !errors.Is(err, ErrBufferRingSize) {
		t.Error("expected ErrBufferRingSize, got", err)
	}
	if _, err := r.RegisterBufferRing(0, 1024); !errors.Is(err, ErrBufferRingSize) {
		t.Error("expected ErrBufferRingSize, got", err)
	}
}

func TestPublishAllOffersEveryBuffer(t *testing.T) {
	b := testBufferRing(8, 64)
	if b.br.Tail != 8 {
		t.Error("expected tail 8 after registration, got", b.br.Tail)
	}
	if b.Borrowed() != 0 {
		t.Error("no buffer should be borrowed after registration")
	}
	if b.Capacity() != 8 || b.BufferSize() != 64 {
		t.Error("unexpected geometry:", b.Capacity(), b.BufferSize())
	}
}

func TestBorrowReturnCycle(t *testing.T) {
	b := testBufferRing(8, 64)
	tail := b.br.Tail

	view := b.Borrow(3, 5)
	if len(view) != 5 {
		t.Error("borrow view not limited to completion length:", len(view))
	}
	if b.Borrowed() != 1 {
		t.Error("expected one borrowed buffer, got", b.Borrowed())
	}

	b.Return(3)
	if b.Borrowed() != 0 {
		t.Error("return did not clear the borrow mark")
	}
	if b.br.Tail != tail+1 {
		t.Error("return did not republish the buffer:", b.br.Tail, tail)
	}
}

func TestBorrowedViewAliasesBuffer(t *testing.T) {
	b := testBufferRing(4, 16)
	view := b.Borrow(1, 4)
	view[0] = 0xab
	if b.buffers[1][0] != 0xab {
		t.Error("borrow must return a view of the registered buffer, not a copy")
	}
	b.Return(1)
}

func TestDoubleBorrowPanics(t *testing.T) {
	b := testBufferRing(4, 16)
	b.Borrow(2, 8)
	defer func() {
		if recover() == nil {
			t.Error("double borrow must panic")
		}
	}()
	b.Borrow(2, 8)
}

func TestReturnWithoutBorrowPanics(t *testing.T) {
	b := testBufferRing(4, 16)
	defer func() {
		if recover() == nil {
			t.Error("returning an unborrowed buffer must panic")
		}
	}()
	b.Return(0)
}

func TestRecycleRepublishesWithoutBorrowMark(t *testing.T) {
	b := testBufferRing(4, 16)
	tail := b.br.Tail
	b.Recycle(2)
	if b.br.Tail != tail+1 {
		t.Error("recycle did not republish the buffer")
	}
	if b.Borrowed() != 0 {
		t.Error("recycle must not touch borrow accounting")
	}
}
