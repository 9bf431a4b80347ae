// Package fake provides scriptable test doubles for the core contracts,
// grounded on _examples/momentics-hioload-ws/fake/transport.go: a
// mutex-guarded struct with settable error fields and recorded I/O,
// hand-rolled rather than built on a mocking framework — the teacher
// never imports one, and that texture is kept here.
package fake

import (
	"bytes"
	"context"
	"sync"

	"github.com/kvasync/asyncore/netio"
)

// Conn is a scriptable netio.Connection double.
type Conn struct {
	mu sync.Mutex

	connectErr error
	sendErr    error
	recvErr    error
	closeErr   error

	recvQueue   bytes.Buffer
	sent        bytes.Buffer
	closed      bool
	connectHook func()

	// ShortWrite, when >0, caps how many bytes a single Send call
	// reports, to exercise AsyncConnection's partial-send loop (§4.2).
	ShortWrite int
}

// NewConn returns a ready-to-use fake connection.
func NewConn() *Conn { return &Conn{} }

func (c *Conn) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectHook != nil {
		c.connectHook()
	}
	return c.connectErr
}

// Send appends to the sent log and honors SetSendError/ShortWrite.
func (c *Conn) Send(buf []byte, offset, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return netio.ErrClosedByPeer
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	for count > 0 {
		n := count
		if c.ShortWrite > 0 && n > c.ShortWrite {
			n = c.ShortWrite
		}
		c.sent.Write(buf[offset : offset+n])
		offset += n
		count -= n
	}
	return nil
}

// Receive drains from the scripted recvQueue.
func (c *Conn) Receive(buf []byte, offset, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return netio.ErrClosedByPeer
	}
	if c.recvErr != nil {
		return c.recvErr
	}
	if c.recvQueue.Len() < count {
		return netio.ErrClosedByPeer
	}
	n, err := c.recvQueue.Read(buf[offset : offset+count])
	if err != nil {
		return err
	}
	if n != count {
		return netio.ErrClosedByPeer
	}
	return nil
}

func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = nil
	c.recvErr = nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// --- scripting surface ---

func (c *Conn) SetConnectError(err error) { c.mu.Lock(); c.connectErr = err; c.mu.Unlock() }
func (c *Conn) SetSendError(err error)     { c.mu.Lock(); c.sendErr = err; c.mu.Unlock() }
func (c *Conn) SetRecvError(err error)     { c.mu.Lock(); c.recvErr = err; c.mu.Unlock() }
func (c *Conn) SetCloseError(err error)    { c.mu.Lock(); c.closeErr = err; c.mu.Unlock() }
func (c *Conn) OnConnect(fn func())        { c.mu.Lock(); c.connectHook = fn; c.mu.Unlock() }

// Feed appends bytes that Receive will hand out.
func (c *Conn) Feed(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvQueue.Write(b)
}

// Sent returns everything written via Send so far.
func (c *Conn) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.sent.Len())
	copy(out, c.sent.Bytes())
	return out
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ netio.Connection = (*Conn)(nil)
