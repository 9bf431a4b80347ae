package netio

import (
	"context"
	"net"
)

// TCPConnection is the concrete, TCP-only Connection (§1 Non-goals:
// "pluggable transports other than TCP sockets").
type TCPConnection struct {
	bindState
	conn net.Conn
}

// NewTCPConnection returns an unconnected TCPConnection.
func NewTCPConnection() *TCPConnection {
	return &TCPConnection{}
}

// Connect dials addr and applies the platform socket tuning in
// tune_linux.go/tune_windows.go/tune_stub.go.
func (c *TCPConnection) Connect(ctx context.Context, addr string) error {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	tuneSocket(nc)
	c.conn = nc
	return nil
}

// Send streams count bytes, looping over partial writes (§4.2). A write
// that returns zero bytes with a nil error is treated as a closed peer.
func (c *TCPConnection) Send(buf []byte, offset, count int) error {
	if c.isClosed() {
		return ErrClosedByPeer
	}
	for count > 0 {
		n, err := c.conn.Write(buf[offset : offset+count])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrClosedByPeer
		}
		offset += n
		count -= n
	}
	return nil
}

// Receive streams count bytes into buf, looping until satisfied (§4.2).
func (c *TCPConnection) Receive(buf []byte, offset, count int) error {
	if c.isClosed() {
		return ErrClosedByPeer
	}
	for count > 0 {
		n, err := c.conn.Read(buf[offset : offset+count])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrClosedByPeer
		}
		offset += n
		count -= n
	}
	return nil
}

// Reset clears per-attempt transport state so the connection can be
// pooled and rebound to a different command (§3).
func (c *TCPConnection) Reset() {
	if c.conn != nil {
		_ = c.conn.SetDeadline(zeroTime)
	}
}

// Close tears the socket down. Idempotent (§4.2).
func (c *TCPConnection) Close() error {
	if !c.markClosed() {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
