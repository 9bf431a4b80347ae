package command

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/cluster"
	"github.com/kvasync/asyncore/fake"
	"github.com/kvasync/asyncore/internal/scheduling"
	"github.com/kvasync/asyncore/netio"
	"github.com/kvasync/asyncore/pool"
	"github.com/kvasync/asyncore/protocol"
)

type harness struct {
	pool      *pool.Pool
	scheduler *scheduling.Scheduler
	timeouts  *scheduling.TimeoutQueue
	node      *cluster.Node
}

func newHarness(dial cluster.Dialer) *harness {
	p := pool.NewPool(4, 512)
	sched := scheduling.NewScheduler(api.SchedulingReject, p, 0)
	tq := scheduling.NewTimeoutQueue(time.Hour) // never ticks on its own; tests drive checks directly
	n := cluster.NewNode("n1", "127.0.0.1:0", dial, 4, 0, time.Second)
	return &harness{pool: p, scheduler: sched, timeouts: tq, node: n}
}

func (h *harness) resolver() NodeResolver {
	return func() (*cluster.Node, error) { return h.node, nil }
}

func buildOKReadResponse(bins map[string]any) []byte {
	buf := make([]byte, 4096)
	buf[0] = byte(int8(api.ResultOK))
	n := EncodeBins(buf[responseHeaderSize:], bins)
	return buf[:responseHeaderSize+n]
}

type recordListener struct {
	mu      sync.Mutex
	success bool
	key     api.Key
	record  *api.Record
	failure *api.CommandError
}

func (l *recordListener) OnSuccess(key api.Key, record *api.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.success = true
	l.key = key
	l.record = record
}
func (l *recordListener) OnFailure(err *api.CommandError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failure = err
}

type writeListener struct {
	mu      sync.Mutex
	success bool
	failure *api.CommandError
}

func (l *writeListener) OnSuccess() { l.mu.Lock(); l.success = true; l.mu.Unlock() }
func (l *writeListener) OnFailure(err *api.CommandError) {
	l.mu.Lock()
	l.failure = err
	l.mu.Unlock()
}

func TestReadCommandSuccessDeliversRecord(t *testing.T) {
	conn := fake.NewConn()
	bins := map[string]any{"x": "1"}
	body := buildOKReadResponse(bins)
	hdr := make([]byte, protocol.HeaderSize)
	protocol.WriteHeader(hdr, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeCommand, Length: int64(len(body))})
	conn.Feed(hdr)
	conn.Feed(body)

	h := newHarness(func() netio.Connection { return conn })
	defer h.timeouts.Stop()

	listener := &recordListener{}
	rc := &ReadCommand{Key: api.Key{Namespace: "test", Set: "demo"}, Listener: listener}
	cmd := NewAsyncCommand(api.DefaultCommandPolicy(), h.resolver(), h.scheduler, h.timeouts, rc, nil)

	if err := h.scheduler.Schedule(cmd); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if !listener.success {
		t.Fatalf("expected success, got failure=%v", listener.failure)
	}
	if listener.record == nil || listener.record.Bins["x"] != "1" {
		t.Fatalf("unexpected record: %+v", listener.record)
	}
	if h.pool.InPool() != h.pool.Capacity() {
		t.Fatalf("expected buffer released back to pool, InPool=%d Capacity=%d", h.pool.InPool(), h.pool.Capacity())
	}
}

func TestWriteCommandNetworkErrorMarksInDoubtAfterSend(t *testing.T) {
	conn := fake.NewConn()
	conn.SetRecvError(netio.ErrClosedByPeer)

	h := newHarness(func() netio.Connection { return conn })
	defer h.timeouts.Stop()

	listener := &writeListener{}
	wc := &WriteCommand{Key: api.Key{Namespace: "test", Set: "demo"}, Bins: map[string]any{"x": "1"}, Listener: listener}
	policy := api.DefaultCommandPolicy()
	policy.MaxRetries = 0
	cmd := NewAsyncCommand(policy, h.resolver(), h.scheduler, h.timeouts, wc, nil)

	if err := h.scheduler.Schedule(cmd); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if listener.failure == nil {
		t.Fatal("expected a failure callback")
	}
	if !listener.failure.InDoubt {
		t.Fatalf("expected in-doubt write failure, got %+v", listener.failure)
	}
	if listener.failure.Kind != api.KindConnection {
		t.Fatalf("unexpected kind: %v", listener.failure.Kind)
	}
}

func TestShouldRetryRespectsMaxRetries(t *testing.T) {
	h := newHarness(func() netio.Connection { return fake.NewConn() })
	defer h.timeouts.Stop()

	policy := api.DefaultCommandPolicy()
	policy.MaxRetries = 1
	policy.TotalTimeout = 0
	listener := &writeListener{}
	wc := &WriteCommand{Listener: listener}
	cmd := NewAsyncCommand(policy, h.resolver(), h.scheduler, h.timeouts, wc, nil)

	if !cmd.shouldRetry() {
		t.Fatal("expected first retry to be allowed")
	}
	cmd.iteration = 1
	if cmd.shouldRetry() {
		t.Fatal("expected retry budget to be exhausted at iteration == maxRetries")
	}
}

func TestCheckTotalTimeoutFiresOnceAndNotifiesFailure(t *testing.T) {
	h := newHarness(func() netio.Connection { return fake.NewConn() })
	defer h.timeouts.Stop()

	listener := &writeListener{}
	wc := &WriteCommand{Listener: listener}
	policy := api.DefaultCommandPolicy()
	cmd := NewAsyncCommand(policy, h.resolver(), h.scheduler, h.timeouts, wc, nil)
	cmd.segment, _ = h.pool.Acquire()
	cmd.node = h.node
	cmd.totalWatchStart = 0
	cmd.totalDeadline = 1000

	if drop := cmd.CheckTotalTimeout(500); drop {
		t.Fatal("must not fire before the deadline")
	}
	if drop := cmd.CheckTotalTimeout(1500); !drop {
		t.Fatal("must fire and drop once past the deadline")
	}
	if listener.failure == nil || listener.failure.Kind != api.KindTotalTimeout {
		t.Fatalf("expected a total-timeout failure, got %+v", listener.failure)
	}
	if atomic.LoadInt32(&cmd.state) != int32(api.StateFailTotalTimeout) {
		t.Fatalf("expected StateFailTotalTimeout, got %v", cmd.State())
	}
	// A second sweep must see the already-terminal state and just drop.
	if drop := cmd.CheckTotalTimeout(2000); !drop {
		t.Fatal("expected a terminal command to keep dropping")
	}
}

func TestFinishRacesAgainstFailTotalTimeoutReleasesQuietly(t *testing.T) {
	h := newHarness(func() netio.Connection { return fake.NewConn() })
	defer h.timeouts.Stop()

	listener := &writeListener{}
	wc := &WriteCommand{Listener: listener}
	cmd := NewAsyncCommand(api.DefaultCommandPolicy(), h.resolver(), h.scheduler, h.timeouts, wc, nil)
	cmd.segment, _ = h.pool.Acquire()
	cmd.node = h.node
	atomic.StoreInt32(&cmd.state, int32(api.StateFailTotalTimeout))

	cmd.finish()

	if listener.success {
		t.Fatal("must not deliver success once the ticker already notified")
	}
	if listener.failure != nil {
		t.Fatal("finish() itself must not notify a second time")
	}
}

func TestFinishRacesAgainstFailSocketTimeoutStillDeliversSuccess(t *testing.T) {
	h := newHarness(func() netio.Connection { return fake.NewConn() })
	defer h.timeouts.Stop()

	listener := &writeListener{}
	wc := &WriteCommand{Listener: listener}
	cmd := NewAsyncCommand(api.DefaultCommandPolicy(), h.resolver(), h.scheduler, h.timeouts, wc, nil)
	cmd.segment, _ = h.pool.Acquire()
	cmd.node = h.node
	atomic.StoreInt32(&cmd.state, int32(api.StateFailSocketTimeout))

	cmd.finish()

	if !listener.success {
		t.Fatal("expected success delivered despite the socket-timeout race (ticker never notifies on this path)")
	}
}
