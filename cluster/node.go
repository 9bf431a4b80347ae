// Package cluster implements the Node / Cluster adapter (C8, §4.8):
// connection pooling per node, error/timeout/latency counters, session
// token storage and an error-rate quarantine. Partition-map maintenance
// and node discovery are explicitly out of scope (§1 Non-goals) — Node
// here is a dumb, already-resolved target the command engine talks to.
package cluster

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/netio"
)

// Dialer constructs a fresh, unconnected Connection. Production code
// supplies netio.NewTCPConnection; tests supply a fake.Conn factory.
type Dialer func() netio.Connection

// Node supplies connections, counters and session state for one server
// (§4.8).
type Node struct {
	Name string
	Addr string

	dial Dialer

	mu        sync.Mutex
	idle      []netio.Connection
	maxIdle   int

	errCount       int32
	windowStart    int64
	maxErrorRate   int
	errorRateWindow time.Duration

	errors   int64
	timeouts int64
	keyBusy  int64
	bytesIn  int64
	bytesOut int64
	retries  int64

	sessionToken atomic.Value // string
	loginSignal  int32

	multiNamespaceBatch int32 // atomic bool, default true
}

// NewNode constructs a Node with a bounded idle-connection pool.
func NewNode(name, addr string, dial Dialer, maxIdle int, maxErrorRate int, errorRateWindow time.Duration) *Node {
	return &Node{
		Name:                name,
		Addr:                addr,
		dial:                dial,
		maxIdle:             maxIdle,
		maxErrorRate:        maxErrorRate,
		errorRateWindow:     errorRateWindow,
		windowStart:         time.Now().UnixNano(),
		multiNamespaceBatch: 1,
	}
}

// GetAsyncConnection returns a pooled idle connection, if any (§4.8).
func (n *Node) GetAsyncConnection() (netio.Connection, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.idle) == 0 {
		return nil, false
	}
	last := len(n.idle) - 1
	c := n.idle[last]
	n.idle = n.idle[:last]
	return c, true
}

// CreateAsyncConnection builds a fresh connection for this node (§4.8).
func (n *Node) CreateAsyncConnection() netio.Connection {
	return n.dial()
}

// PutAsyncConnection returns a clean connection to the node's idle pool
// (§4.8, §3 "returned to the pool exactly once"). Connections beyond
// maxIdle are closed rather than retained, matching the "eagerly closed
// on overflow rather than left to the GC" decision (SPEC_FULL.md §6).
func (n *Node) PutAsyncConnection(c netio.Connection) {
	c.Reset()
	n.mu.Lock()
	if n.maxIdle <= 0 || len(n.idle) < n.maxIdle {
		n.idle = append(n.idle, c)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()
	_ = c.Close()
}

// CloseAsyncConnOnError closes c unconditionally and never returns it to
// the pool (§4.8).
func (n *Node) CloseAsyncConnOnError(c netio.Connection) {
	_ = c.Close()
}

// AddError increments the node's error counter and error-rate window
// (§4.8).
func (n *Node) AddError() {
	atomic.AddInt64(&n.errors, 1)
	n.IncrErrorRate()
}

// AddTimeout increments the node's timeout counter (§4.8).
func (n *Node) AddTimeout() { atomic.AddInt64(&n.timeouts, 1) }

// AddKeyBusy records a KEY_BUSY observation. Counted in addition to
// AddError when the caller also calls it — intentional double-counting
// per §9 Open Question #3.
func (n *Node) AddKeyBusy() { atomic.AddInt64(&n.keyBusy, 1) }

// AddBytesIn/AddBytesOut track wire traffic (§4.8).
func (n *Node) AddBytesIn(v int64)  { atomic.AddInt64(&n.bytesIn, v) }
func (n *Node) AddBytesOut(v int64) { atomic.AddInt64(&n.bytesOut, v) }

// AddRetry increments the node's cluster-wide retry counter (§4.5
// "cluster retry counter is incremented").
func (n *Node) AddRetry() { atomic.AddInt64(&n.retries, 1) }

// AddLatency is a metrics hook; the core only needs it to exist as a
// collaborator (§1 "logging/metrics beyond latency/byte counters" is out
// of scope for the core itself, but the node must still expose a place
// to record it). No-op beyond the call boundary here.
func (n *Node) AddLatency(kind string, d time.Duration) {}

// IncrErrorRate advances the sliding error-rate window (§6 supplemented
// feature).
func (n *Node) IncrErrorRate() {
	now := time.Now().UnixNano()
	n.mu.Lock()
	defer n.mu.Unlock()
	if time.Duration(now-n.windowStart) > n.errorRateWindow {
		n.windowStart = now
		n.errCount = 0
	}
	n.errCount++
}

// ValidateErrorCount raises Backoff when the node's error-rate window is
// over budget (§4.8, §6).
func (n *Node) ValidateErrorCount() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.maxErrorRate <= 0 {
		return nil
	}
	if time.Duration(time.Now().UnixNano()-n.windowStart) > n.errorRateWindow {
		return nil
	}
	if int(n.errCount) >= n.maxErrorRate {
		return &api.CommandError{Kind: api.KindBackoff, Node: n.Name}
	}
	return nil
}

// SessionToken returns the current authentication session token, or ""
// if none is set.
func (n *Node) SessionToken() string {
	v, _ := n.sessionToken.Load().(string)
	return v
}

// SetSessionToken stores a freshly negotiated session token.
func (n *Node) SetSessionToken(tok string) { n.sessionToken.Store(tok) }

// SignalLogin requests out-of-band re-authentication (§4.8). The actual
// login round trip is a cluster-tending concern out of scope here; this
// only flips the flag a tending loop would observe.
func (n *Node) SignalLogin() { atomic.StoreInt32(&n.loginSignal, 1) }

// LoginSignaled reports and clears the pending re-authentication flag.
func (n *Node) LoginSignaled() bool {
	return atomic.CompareAndSwapInt32(&n.loginSignal, 1, 0)
}

// SupportsMultiNamespaceBatch reports whether this node accepts a batch
// request spanning more than one namespace (§4.7 step 1). Defaults to
// true; older server builds that require a per-namespace split can be
// marked via SetMultiNamespaceBatchSupport.
func (n *Node) SupportsMultiNamespaceBatch() bool {
	return atomic.LoadInt32(&n.multiNamespaceBatch) != 0
}

// SetMultiNamespaceBatchSupport overrides the default (§4.7 step 1).
func (n *Node) SetMultiNamespaceBatchSupport(supported bool) {
	v := int32(0)
	if supported {
		v = 1
	}
	atomic.StoreInt32(&n.multiNamespaceBatch, v)
}
