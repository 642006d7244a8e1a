package couring

import (
	"runtime"

	"github.com/brickingsoft/errors"
)

const (
	DefaultRingEntries    = uint32(2048)
	DefaultBufferRingSize = uint32(1024)
	DefaultBufferSize     = 1024
	DefaultBacklog        = 1024
)

type Options struct {
	Workers        int
	RingEntries    uint32
	BufferRingSize uint32
	BufferSize     int
	Root           string
	Backlog        int
}

type Option func(options *Options) (err error)

// WithWorkers sets how many worker threads share the listening port.
//
// Defaults to runtime.NumCPU().
func WithWorkers(workers int) Option {
	return func(options *Options) error {
		if workers < 1 {
			return errors.New("couring: workers must be at least 1")
		}
		options.Workers = workers
		return nil
	}
}

// WithRingEntries sets the submission queue depth of each worker's ring.
// The ring is sized so that submission slots never run out under design
// load; exhausting it is fatal to the worker.
func WithRingEntries(entries uint32) Option {
	return func(options *Options) error {
		if entries < 1 {
			return errors.New("couring: ring entries must be at least 1")
		}
		options.RingEntries = entries
		return nil
	}
}

// WithBufferRing sets the receive buffer ring geometry of each worker:
// size buffers of bufferSize bytes. size must be a power of two.
func WithBufferRing(size uint32, bufferSize int) Option {
	return func(options *Options) error {
		if size == 0 || size&(size-1) != 0 {
			return errors.New("couring: buffer ring size must be a power of two")
		}
		if bufferSize < 1 {
			return errors.New("couring: buffer size must be at least 1")
		}
		options.BufferRingSize = size
		options.BufferSize = bufferSize
		return nil
	}
}

// WithRoot sets the directory served files are resolved under. Request
// paths cannot escape it.
func WithRoot(root string) Option {
	return func(options *Options) error {
		if root == "" {
			return errors.New("couring: root must not be empty")
		}
		options.Root = root
		return nil
	}
}

// WithBacklog sets the listen backlog of each worker's socket.
func WithBacklog(backlog int) Option {
	return func(options *Options) error {
		if backlog < 1 {
			return errors.New("couring: backlog must be at least 1")
		}
		options.Backlog = backlog
		return nil
	}
}

func defaultOptions() Options {
	return Options{
		Workers:        runtime.NumCPU(),
		RingEntries:    DefaultRingEntries,
		BufferRingSize: DefaultBufferRingSize,
		BufferSize:     DefaultBufferSize,
		Root:           ".",
		Backlog:        DefaultBacklog,
	}
}
