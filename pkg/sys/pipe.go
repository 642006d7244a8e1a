//go:build linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// defaultPipeSize is what the kernel gives an unconfigured pipe.
const defaultPipeSize = 64 << 10

// Pipe opens the worker's splice channel and tries to grow it to want
// bytes. capacity reports what the kernel actually granted; splice chunks
// must not exceed it.
func Pipe(want int) (r int, w int, capacity int, err error) {
	var p [2]int
	if pipeErr := unix.Pipe2(p[:], unix.O_CLOEXEC); pipeErr != nil {
		return -1, -1, 0, os.NewSyscallError("pipe2", pipeErr)
	}
	r, w = p[0], p[1]
	capacity = defaultPipeSize
	if want > capacity {
		if granted, fcntlErr := unix.FcntlInt(uintptr(w), unix.F_SETPIPE_SZ, want); fcntlErr == nil {
			capacity = granted
		}
	}
	return r, w, capacity, nil
}
