//go:build linux

package couring

import (
	"github.com/brickingsoft/couring/pkg/task"
	"github.com/brickingsoft/errors"
)

// Server drives one worker per configured thread. Workers are fully
// isolated: each owns its ring, its buffer ring, its splice pipe and its
// listening socket; they share nothing but the port.
type Server struct {
	port    int
	options Options
}

func NewServer(port int, options ...Option) (*Server, error) {
	if port < 1 || port > 65535 {
		return nil, errors.New("couring: invalid port")
	}
	opts := defaultOptions()
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, err
		}
	}
	return &Server{port: port, options: opts}, nil
}

// ListenAndServe constructs every worker up front, so that any ring, buffer
// registration or bind failure surfaces before a single connection is
// accepted, then runs the workers on their own locked threads and parks the
// calling thread on them. It does not return under normal operation.
func (s *Server) ListenAndServe() error {
	workers := make([]*worker, 0, s.options.Workers)
	for i := 0; i < s.options.Workers; i++ {
		w, err := newWorker(s.port, s.options)
		if err != nil {
			for _, prev := range workers {
				prev.close()
			}
			return err
		}
		workers = append(workers, w)
	}
	tasks := make([]*task.Task[task.Void], 0, len(workers))
	for _, w := range workers {
		w := w
		tasks = append(tasks, task.Spawn(func(fr *task.Frame) (task.Void, error) {
			if err := task.Schedule(fr); err != nil {
				return task.Void{}, err
			}
			return task.Void{}, w.run()
		}))
	}
	errs := make(chan error, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			_, err := task.SyncWait(t)
			errs <- err
		}()
	}
	for range tasks {
		if err := <-errs; err != nil {
			return err
		}
	}
	return nil
}
