//go:build linux

// Grounded on the platform-split pattern in
// _examples/momentics-hioload-ws/pool/numapool_linux.go /
// numapool_windows.go / numapool_stub.go: one file per OS behind a build
// tag, a stub for everything else. Here the concern is socket tuning
// instead of NUMA page placement, and the dependency that travels with
// it is golang.org/x/sys/unix instead of x/sys/cpu.
package netio

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneSocket disables Nagle's algorithm, enables TCP keepalive and caps
// TCP_USER_TIMEOUT so a dead peer is detected without waiting on the
// kernel's default retransmission backoff — all good-citizen defaults
// for a latency-sensitive request/response client.
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
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, 30000)
	})
}
