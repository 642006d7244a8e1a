//go:build linux

package uring

import (
	"syscall"

	"github.com/brickingsoft/couring/pkg/task"
	"github.com/pawelgaczynski/giouring"
)

// Awaitable ops. Each one stores the calling task's continuation in a
// descriptor (a fresh one per call, except AcceptStream, which reuses its
// installed one), installs the op if needed, and suspends; the worker's dispatch loop
// resumes the continuation once the completion has been copied into the
// descriptor. A cancelled suspension hands the descriptor to the
// pending-cancel set before unwinding, keeping its address valid for the
// kernel.

// Recv awaits a buffer-select recv. n is 0 when the peer closed the
// connection; bid identifies the buffer the kernel picked, to be borrowed
// from the worker's BufferRing.
func (r *Ring) Recv(fr *task.Frame, fd int, length int) (bid uint16, n int, err error) {
	op := &Operation{cont: fr.Resumer()}
	if err = r.PrepareRecv(op, fd, length); err != nil {
		return
	}
	if serr := fr.Suspend(); serr != nil {
		r.Cancel(op)
		err = serr
		return
	}
	if op.res < 0 {
		err = syscall.Errno(-op.res)
		return
	}
	n = int(op.res)
	bid, _ = SelectedBuffer(op.flags)
	return
}

// Send awaits a send from a caller-owned buffer, which must stay intact
// until Send returns.
func (r *Ring) Send(fr *task.Frame, fd int, b []byte) (n int, err error) {
	op := &Operation{cont: fr.Resumer()}
	if err = r.PrepareSend(op, fd, b); err != nil {
		return
	}
	if serr := fr.Suspend(); serr != nil {
		r.Cancel(op)
		err = serr
		return
	}
	if op.res < 0 {
		err = syscall.Errno(-op.res)
		return
	}
	n = int(op.res)
	return
}

// Splice awaits a splice of up to length bytes between two descriptors.
func (r *Ring) Splice(fr *task.Frame, srcFd int, dstFd int, length uint32) (n int, err error) {
	op := &Operation{cont: fr.Resumer()}
	if err = r.PrepareSplice(op, srcFd, dstFd, length); err != nil {
		return
	}
	if serr := fr.Suspend(); serr != nil {
		r.Cancel(op)
		err = serr
		return
	}
	if op.res < 0 {
		err = syscall.Errno(-op.res)
		return
	}
	n = int(op.res)
	return
}

// CancelAwait awaits the cancellation of target and returns the kernel's
// result code for the cancel op itself. The target's own completion is
// discarded by the dispatch loop.
func (r *Ring) CancelAwait(fr *task.Frame, target *Operation) (int32, error) {
	target.Detach()
	r.pending[target] = struct{}{}
	op := &Operation{cont: fr.Resumer()}
	if err := r.PrepareCancel(op, target); err != nil {
		return 0, err
	}
	if serr := fr.Suspend(); serr != nil {
		r.Cancel(op)
		return 0, serr
	}
	return op.res, nil
}

// AcceptStream is the multishot accept awaitable: a lazy, non-restartable
// sequence of accepted connections backed by a single installed descriptor.
type AcceptStream struct {
	ring      *Ring
	fd        int
	op        *Operation
	installed bool
}

func (r *Ring) AcceptStream(fd int) *AcceptStream {
	return &AcceptStream{ring: r, fd: fd}
}

// Next yields the next accepted connection fd. A negative fd reports a
// kernel accept failure the caller may skip. The multishot submission is
// installed on first use and reinstalled whenever the kernel retires it.
func (s *AcceptStream) Next(fr *task.Frame) (fd int, err error) {
	if !s.installed {
		s.op = &Operation{}
		if err = s.ring.PrepareAcceptMultishot(s.op, s.fd); err != nil {
			return -1, err
		}
		s.installed = true
	}
	s.op.cont = fr.Resumer()
	if serr := fr.Suspend(); serr != nil {
		s.ring.Cancel(s.op)
		s.installed = false
		return -1, serr
	}
	if s.op.flags&giouring.CQEFMore == 0 {
		s.installed = false
	}
	if s.op.res < 0 {
		return -1, nil
	}
	return int(s.op.res), nil
}
