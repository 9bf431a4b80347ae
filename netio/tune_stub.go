//go:build !linux && !windows

package netio

import "net"

// tuneSocket is a no-op on platforms without a dedicated tuning path,
// matching _examples/momentics-hioload-ws/pool/numapool_stub.go's
// fallback shape.
func tuneSocket(net.Conn) {}
