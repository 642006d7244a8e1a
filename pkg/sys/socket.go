//go:build linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// ListenTCP binds a listening socket on the port. Every worker binds its
// own socket with SO_REUSEPORT so the kernel spreads incoming connections
// across them.
func ListenTCP(port int, backlog int) (fd int, err error) {
	fd, sockErr := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if sockErr != nil {
		return -1, os.NewSyscallError("socket", sockErr)
	}
	if optErr := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); optErr != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("setsockopt", optErr)
	}
	if optErr := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); optErr != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("setsockopt", optErr)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if bindErr := unix.Bind(fd, addr); bindErr != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("bind", bindErr)
	}
	if listenErr := unix.Listen(fd, backlog); listenErr != nil {
		_ = unix.Close(fd)
		return -1, os.NewSyscallError("listen", listenErr)
	}
	return fd, nil
}

func Close(fd int) {
	_ = unix.Close(fd)
}
