//go:build linux

package uring

// Op kinds, recorded on the descriptor so the dispatch loop can release
// resources attached to discarded completions.
const (
	KindNop uint8 = iota
	KindAccept
	KindRecv
	KindSend
	KindSplice
	KindCancel
)

// Operation is the submission descriptor of one in-flight ring op: the
// completion result, the completion flags and the continuation of the task
// that awaits it. The kernel holds its address through the SQE user-data
// slot, so the descriptor must stay reachable and at a stable address from
// preparation until its final completion is observed.
type Operation struct {
	kind  uint8
	res   int32
	flags uint32
	cont  func()
	buf   []byte
}

func (op *Operation) Kind() uint8 { return op.kind }

// Complete records a completion into the descriptor.
func (op *Operation) Complete(res int32, flags uint32) {
	op.res = res
	op.flags = flags
}

func (op *Operation) Result() int32 { return op.res }

func (op *Operation) Flags() uint32 { return op.flags }

// Resume invokes the stored continuation, reporting false when the slot is
// empty and the completion must be discarded.
func (op *Operation) Resume() bool {
	if op.cont == nil {
		return false
	}
	op.cont()
	return true
}

// Detach empties the continuation slot. A detached descriptor absorbs its
// completions without resuming anyone.
func (op *Operation) Detach() {
	op.cont = nil
}

func (op *Operation) Detached() bool { return op.cont == nil }
