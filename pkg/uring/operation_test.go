//go:build linux

package uring

import (
	"testing"

	"github.com/pawelgaczynski/giouring"
)

func TestOperationResumesStoredContinuation(t *testing.T) {
	resumed := 0
	op := &Operation{cont: func() { resumed++ }}
	op.Complete(13, 0)
	if !op.Resume() {
		t.Error("resume reported an empty continuation slot")
	}
	if resumed != 1 {
		t.Error("continuation must run exactly once, ran", resumed)
	}
	if op.Result() != 13 {
		t.Error("completion result not recorded:", op.Result())
	}
}

func TestDetachedOperationDiscardsCompletion(t *testing.T) {
	op := &Operation{cont: func() { t.Error("detached continuation must not run") }}
	op.Detach()
	if !op.Detached() {
		t.Error("detach did not empty the slot")
	}
	if op.Resume() {
		t.Error("resume on a detached descriptor must report discard")
	}
}

func TestPendingCancelSetReleasesOnFinalCompletion(t *testing.T) {
	r := &Ring{pending: make(map[*Operation]struct{})}
	op := &Operation{}
	r.pending[op] = struct{}{}

	op.Complete(-125, giouring.CQEFMore)
	if !r.Discarded(op) {
		t.Error("parked descriptor must be discarded")
	}
	if _, ok := r.pending[op]; !ok {
		t.Error("descriptor released while the kernel still signals more completions")
	}

	op.Complete(-125, 0)
	if !r.Discarded(op) {
		t.Error("final completion must still be discarded")
	}
	if _, ok := r.pending[op]; ok {
		t.Error("descriptor not released after its final completion")
	}
	if r.Discarded(op) {
		t.Error("released descriptor must no longer be discarded")
	}
}

func TestSelectedBuffer(t *testing.T) {
	flags := uint32(42)<<giouring.CQEBufferShift | giouring.CQEFBuffer
	bid, ok := SelectedBuffer(flags)
	if !ok || bid != 42 {
		t.Error("expected buffer 42, got", bid, ok)
	}
	if _, ok = SelectedBuffer(0); ok {
		t.Error("no buffer flag must mean no buffer")
	}
}

func TestRoundupPow2(t *testing.T) {
	cases := map[uint32]uint32{1: 2, 2: 2, 3: 4, 1000: 1024, 2048: 2048}
	for in, want := range cases {
		if got := roundupPow2(in); got != want {
			t.Error("roundupPow2(", in, ") =", got, "want", want)
		}
	}
}
