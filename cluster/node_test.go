package cluster

import (
	"testing"
	"time"

	"github.com/kvasync/asyncore/fake"
	"github.com/kvasync/asyncore/netio"
)

func TestPutAsyncConnectionLIFOReuse(t *testing.T) {
	n := NewNode("n1", "127.0.0.1:3000", func() netio.Connection { return fake.NewConn() }, 4, 0, time.Second)

	a := fake.NewConn()
	b := fake.NewConn()
	n.PutAsyncConnection(a)
	n.PutAsyncConnection(b)

	got, ok := n.GetAsyncConnection()
	if !ok {
		t.Fatal("expected a pooled connection")
	}
	if got != netio.Connection(b) {
		t.Fatal("expected most-recently-returned connection to be reused first")
	}
}

func TestPutAsyncConnectionOverflowClosesConnection(t *testing.T) {
	n := NewNode("n1", "addr", func() netio.Connection { return fake.NewConn() }, 1, 0, time.Second)

	a := fake.NewConn()
	b := fake.NewConn()
	n.PutAsyncConnection(a)
	n.PutAsyncConnection(b) // overflow beyond maxIdle=1

	if !a.IsClosed() && !b.IsClosed() {
		t.Fatal("expected one of the overflowing connections to be closed")
	}
}

func TestValidateErrorCountQuarantines(t *testing.T) {
	n := NewNode("n1", "addr", func() netio.Connection { return fake.NewConn() }, 4, 3, time.Minute)

	if err := n.ValidateErrorCount(); err != nil {
		t.Fatalf("expected no backoff before any errors, got %v", err)
	}

	for i := 0; i < 3; i++ {
		n.AddError()
	}

	if err := n.ValidateErrorCount(); err == nil {
		t.Fatal("expected Backoff once error-rate threshold is reached")
	}
}

func TestCloseAsyncConnOnErrorNeverPools(t *testing.T) {
	n := NewNode("n1", "addr", func() netio.Connection { return fake.NewConn() }, 4, 0, time.Second)
	c := fake.NewConn()
	n.CloseAsyncConnOnError(c)
	if !c.IsClosed() {
		t.Fatal("expected connection to be closed")
	}
	if _, ok := n.GetAsyncConnection(); ok {
		t.Fatal("expected no connection to be pooled after CloseAsyncConnOnError")
	}
}
