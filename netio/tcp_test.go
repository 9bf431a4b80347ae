package netio

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPConnectionSendReceiveRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		_, _ = conn.Write(buf)
	}()

	c := NewTCPConnection()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx, ln.Addr().String()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	out := []byte("hello")
	if err := c.Send(out, 0, len(out)); err != nil {
		t.Fatalf("send: %v", err)
	}

	in := make([]byte, 5)
	if err := c.Receive(in, 0, len(in)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(in) != "hello" {
		t.Fatalf("expected echoed hello, got %q", in)
	}

	<-serverDone
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewTCPConnection()
	// Close before ever connecting must not panic.
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
