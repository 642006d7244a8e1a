// Package couring is a multi-threaded HTTP/1.x static file server built on
// a completion-based io_uring runtime.
//
// Each worker owns one native thread and, on it, one submission/completion
// ring, one kernel-shared receive buffer ring and one splice pipe. A
// multishot accept stream spawns a detached handler task per connection;
// handlers suspend on awaitable ops (recv, send, splice) and are resumed by
// the worker's dispatch loop in completion-queue order. Nothing is shared
// across workers, so the core needs no locks.
package couring
