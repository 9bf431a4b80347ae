// Package netio implements AsyncConnection (§4.2): one TCP socket bound
// to a single in-flight command, exposing connect/send/receive as
// blocking calls that return once the operation has completed or
// failed. Grounded on
// _examples/momentics-hioload-ws/protocol/connection.go's WSConnection
// (callback-bound, atomic closed flag, done channel) and
// _examples/momentics-hioload-ws/api/transport.go's NetConn contract,
// adapted from a full-duplex frame pump to the single-command
// connect→send→receive binding §3/§4.2 require.
package netio

import (
	"context"
	"io"
	"sync/atomic"
)

// Connection is the contract AsyncCommand drives (§4.2). The core is
// agnostic to whether the implementation is reactor/selector-based,
// future-based, or thread-per-connection — only this contract is
// required.
type Connection interface {
	// Connect dials addr and returns once the connection is established
	// or has failed; the outcome is the returned error.
	Connect(ctx context.Context, addr string) error

	// Send streams count bytes from buf[offset:offset+count]. Partial
	// sends loop internally. A send that completes zero bytes with a nil
	// error is treated as a closed connection (§4.2).
	Send(buf []byte, offset, count int) error

	// Receive streams count bytes into buf[offset:offset+count],
	// looping internally until count bytes have been collected.
	Receive(buf []byte, offset, count int) error

	// Reset clears any command binding so the connection can be pooled
	// and handed to a different command (§3 Connection invariants).
	Reset()

	// Close tears the socket down. Idempotent.
	Close() error
}

// ErrClosedByPeer is returned by Send or Receive when zero bytes were
// transferred with no error, or when the connection was already closed,
// signaling the peer closed the connection (§4.2).
var ErrClosedByPeer = io.ErrClosedPipe

// bindState is shared scaffolding for Connection implementations that
// need a single atomic "has this connection been closed" flag,
// matching the atomic.CompareAndSwapInt32 pattern in
// protocol/connection.go's `closed` field.
type bindState struct {
	closed int32
}

func (b *bindState) markClosed() bool {
	return atomic.CompareAndSwapInt32(&b.closed, 0, 1)
}

func (b *bindState) isClosed() bool {
	return atomic.LoadInt32(&b.closed) == 1
}
