//go:build windows

package netio

import (
	"net"

	"golang.org/x/sys/windows"
)

// tuneSocket mirrors tune_linux.go's intent on Windows: disable Nagle
// and enable keepalive via the syscall-level socket handle.
func tuneSocket(c net.Conn) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		h := windows.Handle(fd)
		_ = windows.SetsockoptInt(h, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
		_ = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_KEEPALIVE, 1)
	})
}
