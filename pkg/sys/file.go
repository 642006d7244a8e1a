//go:build linux

package sys

import (
	"os"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

var (
	ErrNotRegular = errors.Define("sys: not a regular file")
)

// OpenFile opens path read-only and reports its size. Anything but a
// regular file is rejected.
func OpenFile(path string) (fd int, size int64, err error) {
	fd, openErr := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if openErr != nil {
		return -1, 0, os.NewSyscallError("open", openErr)
	}
	var stat unix.Stat_t
	if statErr := unix.Fstat(fd, &stat); statErr != nil {
		_ = unix.Close(fd)
		return -1, 0, os.NewSyscallError("fstat", statErr)
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFREG {
		_ = unix.Close(fd)
		return -1, 0, ErrNotRegular
	}
	return fd, stat.Size, nil
}
