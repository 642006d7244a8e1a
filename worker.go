//go:build linux

package couring

import (
	"path"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/brickingsoft/couring/pkg/http1"
	"github.com/brickingsoft/couring/pkg/sys"
	"github.com/brickingsoft/couring/pkg/task"
	"github.com/brickingsoft/couring/pkg/uring"
	"github.com/brickingsoft/errors"
)

// spliceWant is the pipe capacity requested for the file-to-socket splice
// channel. Splices are chunked to whatever the kernel actually grants.
const spliceWant = 1 << 20

// worker is one event loop: a ring, a buffer ring, a splice pipe, a
// listening socket and the set of live detached tasks. Nothing in it ever
// crosses to another worker.
type worker struct {
	ring    *uring.Ring
	buffers *uring.BufferRing
	ln      int
	pipeR   int
	pipeW   int
	pipeCap int
	root    string
	tasks   map[uint64]*task.Task[task.Void]
	nextID  uint64
	fatal   error
}

func newWorker(port int, options Options) (*worker, error) {
	ring, ringErr := uring.New(options.RingEntries)
	if ringErr != nil {
		return nil, ringErr
	}
	buffers, buffersErr := ring.RegisterBufferRing(options.BufferRingSize, options.BufferSize)
	if buffersErr != nil {
		ring.Close()
		return nil, buffersErr
	}
	ln, lnErr := sys.ListenTCP(port, options.Backlog)
	if lnErr != nil {
		ring.Close()
		return nil, lnErr
	}
	pipeR, pipeW, pipeCap, pipeErr := sys.Pipe(spliceWant)
	if pipeErr != nil {
		sys.Close(ln)
		ring.Close()
		return nil, pipeErr
	}
	return &worker{
		ring:    ring,
		buffers: buffers,
		ln:      ln,
		pipeR:   pipeR,
		pipeW:   pipeW,
		pipeCap: pipeCap,
		root:    options.Root,
		tasks:   make(map[uint64]*task.Task[task.Void]),
	}, nil
}

func (w *worker) close() {
	sys.Close(w.pipeR)
	sys.Close(w.pipeW)
	sys.Close(w.ln)
	w.ring.Close()
}

// run is the worker's event loop: install the accept stream, then dispatch
// completions until a fatal failure. It executes on the worker's locked
// thread; every continuation it resumes runs there too.
func (w *worker) run() error {
	defer w.teardown()
	w.spawn(func(fr *task.Frame) error {
		return w.acceptLoop(fr)
	})
	return w.dispatch()
}

// spawn starts a detached task and tracks it until its final completion, so
// teardown can cancel the survivors deterministically.
func (w *worker) spawn(fn func(fr *task.Frame) error) {
	id := w.nextID
	w.nextID++
	t := task.Spawn(func(fr *task.Frame) (task.Void, error) {
		return task.Void{}, fn(fr)
	})
	if t.Done() {
		return
	}
	w.tasks[id] = t
	t.OnFinal(func() {
		delete(w.tasks, id)
	})
}

func (w *worker) fail(err error) {
	if w.fatal == nil {
		w.fatal = err
	}
}

func (w *worker) acceptLoop(fr *task.Frame) error {
	stream := w.ring.AcceptStream(w.ln)
	for {
		fd, err := stream.Next(fr)
		if err != nil {
			if errors.Is(err, task.ErrCanceled) {
				return err
			}
			w.fail(err)
			return err
		}
		if fd < 0 {
			continue
		}
		conn := fd
		w.spawn(func(fr *task.Frame) error {
			return w.handle(fr, conn)
		})
	}
}

// handle serves one connection: at most one in-flight recv at a time, the
// kernel-selected buffer borrowed just long enough to feed the parser and
// returned on every iteration.
func (w *worker) handle(fr *task.Frame, fd int) error {
	defer sys.Close(fd)
	parser := http1.NewParser()
	for {
		bid, n, err := w.ring.Recv(fr, fd, w.buffers.BufferSize())
		if err != nil {
			if errors.Is(err, task.ErrCanceled) {
				return err
			}
			if errors.Is(err, uring.ErrSubmissionQueueFull) {
				w.fail(err)
				return err
			}
			if errors.Is(err, syscall.ENOBUFS) {
				// every buffer is out with other handlers; re-submitting
				// serialises this recv on buffer availability
				continue
			}
			return nil
		}
		if n == 0 {
			return nil
		}
		buf := w.buffers.Borrow(bid, n)
		parser.Feed(buf)
		w.buffers.Return(bid)
		for {
			req, reqErr := parser.Next()
			if reqErr != nil {
				return nil
			}
			if req == nil {
				break
			}
			if respErr := w.respond(fr, fd, req); respErr != nil {
				if errors.Is(respErr, uring.ErrSubmissionQueueFull) {
					w.fail(respErr)
				}
				return respErr
			}
		}
	}
}

func (w *worker) respond(fr *task.Frame, fd int, req *http1.Request) error {
	file, size, openErr := sys.OpenFile(w.resolve(req.URL))
	if openErr != nil {
		resp := http1.Response{
			Version:    req.Version,
			Status:     "404",
			StatusText: "Not Found",
			Headers:    []http1.Header{{Name: "content-length", Value: "0"}},
		}
		return w.sendAll(fr, fd, resp.Serialize())
	}
	defer sys.Close(file)
	resp := http1.Response{
		Version:    req.Version,
		Status:     "200",
		StatusText: "OK",
		Headers:    []http1.Header{{Name: "content-length", Value: strconv.FormatInt(size, 10)}},
	}
	if err := w.sendAll(fr, fd, resp.Serialize()); err != nil {
		return err
	}
	return w.spliceFile(fr, file, fd, size)
}

// resolve maps a request URL to a filesystem path constrained to the
// worker's root.
func (w *worker) resolve(url string) string {
	return filepath.Join(w.root, path.Clean("/"+url))
}

func (w *worker) sendAll(fr *task.Frame, fd int, b []byte) error {
	for len(b) > 0 {
		n, err := w.ring.Send(fr, fd, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// spliceFile moves the file to the socket through the worker's pipe: drain
// file bytes into the pipe, pump them out to the socket, chunked by the
// pipe's capacity.
func (w *worker) spliceFile(fr *task.Frame, file int, sock int, size int64) error {
	for remain := size; remain > 0; {
		chunk := remain
		if chunk > int64(w.pipeCap) {
			chunk = int64(w.pipeCap)
		}
		drained, drainErr := w.ring.Splice(fr, file, w.pipeW, uint32(chunk))
		if drainErr != nil {
			return drainErr
		}
		if drained == 0 {
			return errors.New("couring: file shrank during splice")
		}
		for pumped := 0; pumped < drained; {
			n, pumpErr := w.ring.Splice(fr, w.pipeR, sock, uint32(drained-pumped))
			if pumpErr != nil {
				return pumpErr
			}
			if n == 0 {
				return errors.New("couring: socket closed during splice")
			}
			pumped += n
		}
		remain -= int64(drained)
	}
	return nil
}

// dispatch is the completion side of the loop: flush submissions, wait for
// at least one completion, copy each result into its descriptor, mark it
// seen, and resume the stored continuation synchronously. Resumptions run in
// completion-queue order; discarded completions release whatever resource
// the kernel attached to them.
func (w *worker) dispatch() error {
	for {
		if w.fatal != nil {
			return w.fatal
		}
		if err := w.ring.SubmitAndWait(1); err != nil {
			w.fail(err)
			return w.fatal
		}
		completions := w.ring.Completions()
		for {
			c, ok := completions.Next()
			if !ok {
				break
			}
			op := c.Operation()
			op.Complete(c.Res, c.Flags)
			if w.ring.Discarded(op) || op.Detached() {
				w.discard(op)
				continue
			}
			op.Resume()
			if w.fatal != nil {
				return w.fatal
			}
		}
	}
}

// discard drops a completion whose awaiter is gone, closing an accepted fd
// or recycling a kernel-selected buffer so neither leaks.
func (w *worker) discard(op *uring.Operation) {
	switch op.Kind() {
	case uring.KindAccept:
		if op.Result() > 0 {
			sys.Close(int(op.Result()))
		}
	case uring.KindRecv:
		if bid, ok := uring.SelectedBuffer(op.Flags()); ok {
			w.buffers.Recycle(bid)
		}
	}
}

// teardown cancels every live detached task, unwinding each from its
// suspension point, then releases the worker's descriptors.
func (w *worker) teardown() {
	ids := make([]uint64, 0, len(w.tasks))
	for id := range w.tasks {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if t, ok := w.tasks[id]; ok {
			t.Cancel()
		}
	}
	w.close()
}
