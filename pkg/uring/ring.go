//go:build linux

package uring

import (
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/pawelgaczynski/giouring"
)

// BufferGroupID is the buffer group every buffer-select recv draws from.
// One worker registers exactly one buffer ring under it.
const BufferGroupID = 7

var (
	ErrSubmissionQueueFull = errors.Define("uring: submission queue full")
)

// Ring is the gateway to one kernel submission/completion ring. It prepares
// ops against descriptors, flushes them, and iterates completions. A Ring is
// owned by exactly one worker and is not safe for concurrent use.
type Ring struct {
	ring    *giouring.Ring
	entries uint32
	cqes    []*giouring.CompletionQueueEvent
	pending map[*Operation]struct{}
}

func New(entries uint32) (*Ring, error) {
	entries = roundupPow2(entries)
	ring, ringErr := giouring.CreateRing(entries)
	if ringErr != nil {
		return nil, errors.New("uring: ring setup failed", errors.WithWrap(ringErr))
	}
	return &Ring{
		ring:    ring,
		entries: entries,
		cqes:    make([]*giouring.CompletionQueueEvent, entries),
		pending: make(map[*Operation]struct{}),
	}, nil
}

func (r *Ring) Entries() uint32 { return r.entries }

func (r *Ring) Close() {
	r.ring.QueueExit()
}

// SubmitAndWait flushes the submission queue and blocks until at least
// waitNr completions are available.
func (r *Ring) SubmitAndWait(waitNr uint32) error {
	if _, err := r.ring.SubmitAndWait(waitNr); err != nil {
		return errors.New("uring: submit and wait failed", errors.WithWrap(err))
	}
	return nil
}

// Cancel detaches the descriptor's continuation, parks it in the
// pending-cancel set so its address outlives the dropped awaitable, and asks
// the kernel to cancel the op. When no submission slot is free the target
// merely stays parked: the ring is being torn down anyway and its completion,
// if one ever arrives, is discarded like any other detached completion.
func (r *Ring) Cancel(target *Operation) {
	target.Detach()
	r.pending[target] = struct{}{}
	probe := &Operation{}
	if err := r.PrepareCancel(probe, target); err != nil {
		return
	}
	r.pending[probe] = struct{}{}
}

// Discarded reports whether op is parked in the pending-cancel set. The
// descriptor is released once its final completion has been observed; a
// multishot op stays parked while the kernel signals more completions.
func (r *Ring) Discarded(op *Operation) bool {
	if _, ok := r.pending[op]; !ok {
		return false
	}
	if op.flags&giouring.CQEFMore == 0 {
		delete(r.pending, op)
	}
	return true
}

// Completion is one completion record: kernel result, flags, and the
// user-data pointer returned verbatim.
type Completion struct {
	Res   int32
	Flags uint32
	data  unsafe.Pointer
}

func (c Completion) Operation() *Operation {
	return (*Operation)(c.data)
}

// Completions is a lazy, non-restartable pass over the currently available
// completion records. Each record is marked seen as it is yielded.
type Completions struct {
	ring *Ring
	n    uint32
	i    uint32
}

func (r *Ring) Completions() Completions {
	return Completions{ring: r, n: r.ring.PeekBatchCQE(r.cqes)}
}

func (cs *Completions) Next() (Completion, bool) {
	if cs.i >= cs.n {
		return Completion{}, false
	}
	cqe := cs.ring.cqes[cs.i]
	cs.i++
	c := Completion{Res: cqe.Res, Flags: cqe.Flags, data: cqe.GetData()}
	cs.ring.ring.CQESeen(cqe)
	return c, true
}

// SelectedBuffer extracts the buffer id the kernel picked for a
// buffer-select completion.
func SelectedBuffer(flags uint32) (uint16, bool) {
	if flags&giouring.CQEFBuffer == 0 {
		return 0, false
	}
	return uint16(flags >> giouring.CQEBufferShift), true
}

func roundupPow2(n uint32) uint32 {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
