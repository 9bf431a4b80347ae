package batch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/cluster"
	"github.com/kvasync/asyncore/command"
	"github.com/kvasync/asyncore/fake"
	"github.com/kvasync/asyncore/internal/scheduling"
	"github.com/kvasync/asyncore/netio"
	"github.com/kvasync/asyncore/pool"
	"github.com/kvasync/asyncore/protocol"
)

var errNoRoute = errors.New("no route to node")

// fakeReader feeds a pre-built sequence of groups to a ResponseReader
// consumer, mirroring command package's own multicommand test double.
type fakeReader struct {
	groups [][]byte
	idx    int
}

func (f *fakeReader) NextGroup() ([]byte, error) {
	if f.idx >= len(f.groups) {
		return nil, netio.ErrClosedByPeer
	}
	g := f.groups[f.idx]
	f.idx++
	return g, nil
}

func newTestNode(name string, dial cluster.Dialer) *cluster.Node {
	return cluster.NewNode(name, "127.0.0.1:0", dial, 4, 0, time.Second)
}

func keyRouter(byLetter map[string]*cluster.Node) cluster.Router {
	return func(k api.Key) (*cluster.Node, error) { return byLetter[k.Set], nil }
}

func TestBuildBatchNodesCoversEveryOffsetExactlyOnce(t *testing.T) {
	nodeA := newTestNode("a", nil)
	nodeB := newTestNode("b", nil)
	router := keyRouter(map[string]*cluster.Node{"A": nodeA, "B": nodeB})

	keys := []api.Key{
		{Namespace: "ns", Set: "A"},
		{Namespace: "ns", Set: "B"},
		{Namespace: "ns", Set: "A"},
		{Namespace: "ns", Set: "B"},
	}

	groups, err := buildBatchNodes(router, keys)
	if err != nil {
		t.Fatalf("buildBatchNodes: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 node groups, got %d", len(groups))
	}

	seen := make(map[int]bool)
	for _, g := range groups {
		for _, off := range g.Offsets {
			if seen[off] {
				t.Fatalf("offset %d assigned twice", off)
			}
			seen[off] = true
		}
	}
	if len(seen) != len(keys) {
		t.Fatalf("expected every offset covered, got %d of %d", len(seen), len(keys))
	}
}

func TestBuildBatchNodesSplitsByNamespaceWhenUnsupported(t *testing.T) {
	nodeA := newTestNode("a", nil)
	nodeA.SetMultiNamespaceBatchSupport(false)
	router := keyRouter(map[string]*cluster.Node{"A": nodeA})

	keys := []api.Key{
		{Namespace: "ns1", Set: "A"},
		{Namespace: "ns2", Set: "A"},
		{Namespace: "ns1", Set: "A"},
	}

	groups, err := buildBatchNodes(router, keys)
	if err != nil {
		t.Fatalf("buildBatchNodes: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected a single node group, got %d", len(groups))
	}
	g := groups[0]
	if g.NamespaceGroups == nil {
		t.Fatal("expected a namespace split when the node declines multi-namespace batches")
	}
	if len(g.NamespaceGroups["ns1"]) != 2 || len(g.NamespaceGroups["ns2"]) != 1 {
		t.Fatalf("unexpected namespace split: %+v", g.NamespaceGroups)
	}
}

type batchListener struct {
	mu        sync.Mutex
	success   bool
	allKeysOK bool
	records   []*api.BatchRecord
	failure   *api.CommandError
}

func (l *batchListener) OnSuccess(records []*api.BatchRecord, allKeysOK bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.success = true
	l.allKeysOK = allKeysOK
	l.records = records
}
func (l *batchListener) OnFailure(err *api.CommandError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failure = err
}

type batchHarness struct {
	pool      *pool.Pool
	scheduler *scheduling.Scheduler
	timeouts  *scheduling.TimeoutQueue
}

func newBatchHarness() *batchHarness {
	p := pool.NewPool(8, 512)
	sched := scheduling.NewScheduler(api.SchedulingReject, p, 0)
	tq := scheduling.NewTimeoutQueue(time.Hour)
	return &batchHarness{pool: p, scheduler: sched, timeouts: tq}
}

// buildBatchGroupResponse frames one data row for localIdx (this
// sub-command's own row order, not the original key-array offset)
// echoing key's digest followed by bins, then the empty row carrying
// INFO3_LAST (§4.6) that ends the result.
func buildBatchGroupResponse(localIdx int32, key api.Key, bins map[string]any) []byte {
	rowBody := make([]byte, 20+command.BinsEncodedSize(bins))
	copy(rowBody[:20], key.Digest[:])
	command.EncodeBins(rowBody[20:], bins)

	buf := make([]byte, 4096)
	off := protocol.AppendRow(buf, 0, protocol.RowHeader{ResultCode: api.ResultOK, BatchIndex: localIdx}, rowBody)
	off = protocol.AppendRow(buf, off, protocol.RowHeader{Info3: protocol.INFO3Last, ResultCode: api.ResultOK}, nil)
	return buf[:off]
}

func feedFramedGroup(conn *fake.Conn, group []byte) {
	hdr := make([]byte, protocol.HeaderSize)
	protocol.WriteHeader(hdr, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeCommand, Length: int64(len(group))})
	conn.Feed(hdr)
	conn.Feed(group)
}

func TestExecutorGetSucceedsAcrossTwoNodes(t *testing.T) {
	h := newBatchHarness()
	defer h.timeouts.Stop()

	connA := fake.NewConn()
	connB := fake.NewConn()
	nodeA := newTestNode("a", func() netio.Connection { return connA })
	nodeB := newTestNode("b", func() netio.Connection { return connB })
	router := keyRouter(map[string]*cluster.Node{"A": nodeA, "B": nodeB})

	keyA := api.Key{Namespace: "ns", Set: "A"}
	keyB := api.Key{Namespace: "ns", Set: "B"}
	feedFramedGroup(connA, buildBatchGroupResponse(0, keyA, map[string]any{"x": "1"}))
	feedFramedGroup(connB, buildBatchGroupResponse(0, keyB, map[string]any{"x": "2"}))

	policy := api.DefaultBatchPolicy()
	exec := NewExecutor(policy, router, h.scheduler, h.timeouts, nil)

	listener := &batchListener{}
	exec.Get([]api.Key{keyA, keyB}, listener)

	if listener.failure != nil {
		t.Fatalf("unexpected failure: %v", listener.failure)
	}
	if !listener.success || !listener.allKeysOK {
		t.Fatalf("expected a fully successful batch, got success=%v allOK=%v", listener.success, listener.allKeysOK)
	}
	if listener.records[0] == nil || listener.records[0].Record.Bins["x"] != "1" {
		t.Fatalf("unexpected record[0]: %+v", listener.records[0])
	}
	if listener.records[1] == nil || listener.records[1].Record.Bins["x"] != "2" {
		t.Fatalf("unexpected record[1]: %+v", listener.records[1])
	}
	if h.pool.InPool() != h.pool.Capacity() {
		t.Fatalf("expected every segment released back to the pool, InPool=%d Capacity=%d", h.pool.InPool(), h.pool.Capacity())
	}
}

func TestExecutorGetFirstFailureNeverDeliversSuccess(t *testing.T) {
	h := newBatchHarness()
	defer h.timeouts.Stop()

	connA := fake.NewConn()
	connA.SetRecvError(netio.ErrClosedByPeer)
	connB := fake.NewConn() // never fed; Receive also errors on empty queue
	nodeA := newTestNode("a", func() netio.Connection { return connA })
	nodeB := newTestNode("b", func() netio.Connection { return connB })
	router := keyRouter(map[string]*cluster.Node{"A": nodeA, "B": nodeB})

	policy := api.DefaultBatchPolicy()
	policy.MaxRetries = 0
	policy.TotalTimeout = 0
	exec := NewExecutor(policy, router, h.scheduler, h.timeouts, nil)

	listener := &batchListener{}
	exec.Get([]api.Key{{Namespace: "ns", Set: "A"}, {Namespace: "ns", Set: "B"}}, listener)

	if listener.success {
		t.Fatal("expected no success once a sub-command failed")
	}
	if listener.failure == nil {
		t.Fatal("expected a failure callback")
	}
}

func TestRunOnSubDoneSucceedsOnlyAfterEveryUnitCompletes(t *testing.T) {
	listener := &batchListener{}
	r := &run{records: make([]*api.BatchRecord, 2), listener: listener, total: 2}

	r.onSubDone(nil)
	if listener.success {
		t.Fatal("must not succeed before every unit completes")
	}
	r.onSubDone(nil)
	if !listener.success {
		t.Fatal("expected success once completed reaches total")
	}
}

func TestRunOnSubDoneFirstFailureStopsSiblingsAndSuppressesSuccess(t *testing.T) {
	listener := &batchListener{}
	r := &run{records: make([]*api.BatchRecord, 1), listener: listener, total: 2}

	sib := newBatchSubCommand(nil, nil, nil, func(*api.CommandError) {})
	r.subs = append(r.subs, sib)

	r.onSubDone(&api.CommandError{Kind: api.KindConnection})
	r.onSubDone(nil) // a benign completion racing in after the failure

	if listener.success {
		t.Fatal("must never deliver success once a sibling failed first")
	}
	if listener.failure == nil {
		t.Fatal("expected a failure callback")
	}
	if sib.mc.ParseStream(&fakeReader{groups: [][]byte{{0, 0, 0, 0}}}) == nil {
		t.Fatal("expected the stopped sibling to observe query termination")
	}
}

func TestRunSplitRetryFailurePropagatesAsApplicationError(t *testing.T) {
	listener := &batchListener{}
	r := &run{keys: []api.Key{{Namespace: "ns", Set: "A"}}, records: make([]*api.BatchRecord, 1), listener: listener, total: 1}

	failingRouter := cluster.Router(func(api.Key) (*cluster.Node, error) { return nil, errNoRoute })
	r.exec = &Executor{router: failingRouter}

	r.splitRetry(dispatchUnit{node: newTestNode("a", nil), offsets: []int{0}})

	if listener.failure == nil {
		t.Fatal("expected split-retry failure to propagate")
	}
	if listener.failure.Kind != api.KindApplication {
		t.Fatalf("expected KindApplication, got %v", listener.failure.Kind)
	}
}
