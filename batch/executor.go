package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/cluster"
	"github.com/kvasync/asyncore/command"
	"github.com/kvasync/asyncore/internal/scheduling"
)

// clusterStableKey is the info-protocol key name the optional
// stability-validation hook asks every node for (§4.7 item 4).
const clusterStableKey = "cluster-stable-key"

// Executor implements BatchExecutor (C7, §4.7): it plans per-node
// dispatch units, runs up to MaxConcurrentThreads of them concurrently,
// and joins results under AnySuccess/FirstFailure semantics with
// split-retry on a partition-migration hint.
type Executor struct {
	policy    api.BatchPolicy
	router    cluster.Router
	scheduler *scheduling.Scheduler
	timeouts  *scheduling.TimeoutQueue
	logger    api.Logger
}

// NewExecutor builds a batch executor sharing the scheduler/timeout
// queue the single-command engine uses — a batch sub-command is itself
// an AsyncCommand and obeys the same admission and timeout rules.
func NewExecutor(policy api.BatchPolicy, router cluster.Router, scheduler *scheduling.Scheduler, timeouts *scheduling.TimeoutQueue, logger api.Logger) *Executor {
	if logger == nil {
		logger = api.NoopLogger{}
	}
	return &Executor{policy: policy, router: router, scheduler: scheduler, timeouts: timeouts, logger: logger}
}

// Get runs a batch read (§4.7): group keys by owning node, fan out one
// MultiCommand sub-command per group, and deliver AnySuccess/FirstFailure
// semantics to listener.
func (e *Executor) Get(keys []api.Key, listener api.BatchListener) {
	units, err := planDispatch(e.router, keys)
	if err != nil {
		listener.OnFailure(&api.CommandError{Kind: api.KindBackoff, Cause: err})
		return
	}

	nodes := distinctNodes(units)
	var stableKey string
	if e.policy.ValidateClusterStability && len(nodes) > 0 {
		stableKey, err = validateClusterStability(nodes)
		if err != nil {
			listener.OnFailure(&api.CommandError{Kind: api.KindBackoff, Cause: err})
			return
		}
	}

	r := &run{exec: e, keys: keys, records: make([]*api.BatchRecord, len(keys)), listener: listener, nodes: nodes, stableKey: stableKey}
	if len(units) == 0 {
		listener.OnSuccess(r.records, true)
		return
	}

	r.total = int32(len(units))
	r.sem = make(chan struct{}, maxConcurrent(e.policy.MaxConcurrentThreads, len(units)))
	for _, u := range units {
		r.dispatch(u)
	}
	r.wg.Wait()
}

func distinctNodes(units []dispatchUnit) []*cluster.Node {
	seen := make(map[string]struct{}, len(units))
	nodes := make([]*cluster.Node, 0, len(units))
	for _, u := range units {
		if _, ok := seen[u.node.Name]; ok {
			continue
		}
		seen[u.node.Name] = struct{}{}
		nodes = append(nodes, u.node)
	}
	return nodes
}

// validateClusterStability implements the "before starting" half of §4.7
// item 4: ask every node for its cluster-stable key and require they all
// agree, returning the agreed key so the caller can re-validate once
// every sub-command has finished.
func validateClusterStability(nodes []*cluster.Node) (string, error) {
	ic := cluster.InfoCommand{Name: clusterStableKey}
	var key string
	for _, n := range nodes {
		value, err := ic.Request(context.Background(), n)
		if err != nil {
			return "", fmt.Errorf("batch: cluster stability check failed on %s: %w", n.Name, err)
		}
		if key == "" {
			key = value
		} else if value != key {
			return "", fmt.Errorf("batch: cluster not stable: %s reports %q, expected %q", n.Name, value, key)
		}
	}
	return key, nil
}

func maxConcurrent(configured, total int) int {
	if configured <= 0 || configured > total {
		return total
	}
	return configured
}

// run holds the fan-in state shared across one batch's sub-commands
// (§4.7 items 3-6): the atomic completedCount, the single-writer done
// transition, and the sibling list Stop() reaches on FirstFailure.
type run struct {
	exec     *Executor
	keys     []api.Key
	records  []*api.BatchRecord
	listener api.BatchListener

	// nodes and stableKey back the "re-validate at the end" half of §4.7
	// item 4; stableKey is empty when ValidateClusterStability is off.
	nodes     []*cluster.Node
	stableKey string

	mu   sync.Mutex
	subs []*batchSubCommand

	done      int32 // atomic bool, CAS-guarded single-writer (§4.7 "the executor's done transition is single-writer")
	completed int32 // atomic fan-in counter
	total     int32 // atomic; adjusted by splitRetry when a group is replaced by N>1 fresh units

	wg  sync.WaitGroup
	sem chan struct{}
}

// dispatch runs one unit's sub-command on its own goroutine, bounded by
// the run's semaphore (§4.7 item 3 "run up to maxConcurrentThreads
// sub-commands at a time"). Each sub-command's own I/O is synchronous
// (netio.Connection streams block the calling goroutine until a step
// completes), so true concurrency across nodes requires one goroutine
// per in-flight sub-command rather than relying on the scheduler alone.
func (r *run) dispatch(u dispatchUnit) {
	r.wg.Add(1)
	r.sem <- struct{}{}
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()
		r.runOne(u)
	}()
}

func (r *run) runOne(u dispatchUnit) {
	sub := newBatchSubCommand(r.keys, u.offsets, r.records, r.onSubDone)
	sub.retrySplit = func() { r.splitRetry(u) }

	node := u.node
	resolver := command.NodeResolver(func() (*cluster.Node, error) { return node, nil })
	cmd := command.NewAsyncCommand(r.exec.policy.CommandPolicy, resolver, r.exec.scheduler, r.exec.timeouts, sub, r.exec.logger)

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	if err := r.exec.scheduler.Schedule(cmd); err != nil {
		r.onSubDone(&api.CommandError{Kind: api.KindQueue, Node: node.Name, Cause: err})
	}
}

// onSubDone is the fan-in/cancellation callback every sub-command
// reaches exactly once (unless it instead calls RetryBatch and is
// replaced, §4.7 item 6).
func (r *run) onSubDone(err *api.CommandError) {
	if err != nil {
		if atomic.CompareAndSwapInt32(&r.done, 0, 1) {
			r.stopSiblings()
			r.listener.OnFailure(err)
		}
		return
	}
	atomic.AddInt32(&r.completed, 1)
	r.maybeComplete()
}

func (r *run) maybeComplete() {
	if atomic.LoadInt32(&r.completed) != atomic.LoadInt32(&r.total) {
		return
	}
	if !atomic.CompareAndSwapInt32(&r.done, 0, 1) {
		return
	}
	if r.stableKey != "" {
		key, err := validateClusterStability(r.nodes)
		if err != nil {
			r.listener.OnFailure(&api.CommandError{Kind: api.KindBackoff, Cause: fmt.Errorf("batch: cluster stability re-validation failed: %w", err)})
			return
		}
		if key != r.stableKey {
			r.listener.OnFailure(&api.CommandError{Kind: api.KindBackoff, Cause: fmt.Errorf("batch: cluster reshaped during batch (key changed from %q to %q)", r.stableKey, key)})
			return
		}
	}
	r.listener.OnSuccess(r.records, true)
}

func (r *run) stopSiblings() {
	r.mu.Lock()
	siblings := make([]*batchSubCommand, len(r.subs))
	copy(siblings, r.subs)
	r.mu.Unlock()
	for _, s := range siblings {
		s.Stop()
	}
}

// splitRetry implements §4.7 item 6: re-resolve the owning node for u's
// keys against the current partition map, and replace u with a fresh set
// of dispatch units. The original sub-command never calls onSubDone for
// itself on this path (AsyncCommand.retry's BatchRetryable branch returns
// without a terminal transition), so the run's outstanding total is
// adjusted by (new unit count - 1) to keep the fan-in count exact.
func (r *run) splitRetry(u dispatchUnit) {
	subKeys := make([]api.Key, len(u.offsets))
	for i, off := range u.offsets {
		subKeys[i] = r.keys[off]
	}

	fresh, err := planDispatch(r.exec.router, subKeys)
	if err != nil {
		r.onSubDone(&api.CommandError{
			Kind:  api.KindApplication,
			Node:  u.node.Name,
			Cause: fmt.Errorf("batch split retry failed: %w", err),
		})
		return
	}

	if len(fresh) == 0 {
		atomic.AddInt32(&r.total, -1)
		r.maybeComplete()
		return
	}

	remapped := make([]dispatchUnit, len(fresh))
	for i, fu := range fresh {
		orig := make([]int, len(fu.offsets))
		for j, localIdx := range fu.offsets {
			orig[j] = u.offsets[localIdx]
		}
		remapped[i] = dispatchUnit{node: fu.node, offsets: orig}
	}

	if delta := int32(len(remapped) - 1); delta != 0 {
		atomic.AddInt32(&r.total, delta)
	}
	for _, ru := range remapped {
		r.dispatch(ru)
	}
}
