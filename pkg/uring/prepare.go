//go:build linux

package uring

import (
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

func (r *Ring) getSQE() (*giouring.SubmissionQueueEntry, error) {
	sqe := r.ring.GetSQE()
	if sqe == nil {
		return nil, ErrSubmissionQueueFull
	}
	return sqe, nil
}

// PrepareAcceptMultishot installs a multishot accept that yields one
// completion per accepted connection until the kernel retires it.
func (r *Ring) PrepareAcceptMultishot(op *Operation, fd int) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	op.kind = KindAccept
	sqe.PrepareMultishotAccept(fd, 0, 0, 0)
	sqe.SetData(unsafe.Pointer(op))
	return nil
}

// PrepareRecv installs a buffer-select recv: the kernel picks a buffer from
// the worker's registered group and reports its id in the completion flags.
func (r *Ring) PrepareRecv(op *Operation, fd int, length int) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	op.kind = KindRecv
	sqe.PrepareRecv(fd, 0, uint32(length), 0)
	sqe.Flags |= giouring.SqeBufferSelect
	sqe.BufIG = BufferGroupID
	sqe.SetData(unsafe.Pointer(op))
	return nil
}

// PrepareSend installs a send from a caller-owned buffer. The descriptor
// keeps the buffer reachable until the completion arrives.
func (r *Ring) PrepareSend(op *Operation, fd int, b []byte) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	op.kind = KindSend
	op.buf = b
	sqe.PrepareSend(fd, uintptr(unsafe.Pointer(&b[0])), uint32(len(b)), 0)
	sqe.SetData(unsafe.Pointer(op))
	return nil
}

// PrepareSplice installs a zero-copy splice between two descriptors, one of
// which must be a pipe end.
func (r *Ring) PrepareSplice(op *Operation, srcFd int, dstFd int, length uint32) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	op.kind = KindSplice
	sqe.PrepareSplice(srcFd, -1, dstFd, -1, length, 0)
	sqe.SetData(unsafe.Pointer(op))
	return nil
}

// PrepareCancel installs a cancellation of the op identified by target's
// descriptor address.
func (r *Ring) PrepareCancel(op *Operation, target *Operation) error {
	sqe, err := r.getSQE()
	if err != nil {
		return err
	}
	op.kind = KindCancel
	sqe.PrepareCancel64(uint64(uintptr(unsafe.Pointer(target))), 0)
	sqe.SetData(unsafe.Pointer(op))
	return nil
}
