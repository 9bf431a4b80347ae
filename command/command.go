package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/cluster"
	"github.com/kvasync/asyncore/internal/scheduling"
	"github.com/kvasync/asyncore/netio"
	"github.com/kvasync/asyncore/pool"
	"github.com/kvasync/asyncore/protocol"
)

// NodeResolver resolves the node a command's next attempt should target
// (§4.5 step 3, "GetNode(cluster); may throw Backoff or Connection").
// Keyed commands close over cluster.Cluster.GetNode(key); node-targeted
// commands (scans) close over a fixed node.
type NodeResolver func() (*cluster.Node, error)

func nowNanos() int64 { return time.Now().UnixNano() }

// AsyncCommand is the per-command state machine (§3, §4.5). It owns
// admission, timeouts, connection lifecycle, retries and in-doubt
// attribution; a Delegate owns request/response shape and user
// notification.
type AsyncCommand struct {
	policy    api.CommandPolicy
	resolve   NodeResolver
	scheduler *scheduling.Scheduler
	timeouts  *scheduling.TimeoutQueue
	segPool   *pool.Pool
	delegate  Delegate
	logger    api.Logger

	node *cluster.Node
	conn netio.Connection

	// segment is the original pool-owned handle (§4.1): the only handle
	// ever passed to scheduler.Release. workSegment is the buffer actually
	// read/written by this attempt; resize (§4.1 "resize") only ever
	// touches workSegment, so segment always stays releasable even after
	// an oversize body forces a resize.
	segment     pool.Segment
	workSegment pool.Segment

	iteration          int
	commandSentCounter int
	authBytesSent      int

	state int32 // atomic api.State

	totalWatchStart int64 // nanos, fixed at the first attempt
	totalDeadline   int64 // nanos, 0 disables
	socketDeadline  int64 // nanos, 0 disables

	eventReceived int32 // atomic, written on receive, read+cleared by the ticker

	inAuthenticate bool
}

// NewAsyncCommand builds a fresh command in StateInProgress, ready to be
// handed to scheduler.Schedule.
func NewAsyncCommand(policy api.CommandPolicy, resolve NodeResolver, scheduler *scheduling.Scheduler, timeouts *scheduling.TimeoutQueue, delegate Delegate, logger api.Logger) *AsyncCommand {
	if logger == nil {
		logger = api.NoopLogger{}
	}
	return &AsyncCommand{
		policy:    policy,
		resolve:   resolve,
		scheduler: scheduler,
		timeouts:  timeouts,
		segPool:   scheduler.Pool(),
		delegate:  delegate,
		logger:    logger,
		state:     int32(api.StateInProgress),
	}
}

// Iteration reports the zero-based attempt count so far (test/metrics
// use).
func (c *AsyncCommand) Iteration() int { return c.iteration }

// State reports the command's current state word.
func (c *AsyncCommand) State() api.State { return api.State(atomic.LoadInt32(&c.state)) }

// Start is the scheduling.Schedulable entry point: seg has just been
// bound by the Scheduler (§4.4). Per spec.md §4.5 step 1, a command that
// was resolved (by the ticker, while parked) before it was ever admitted
// must release the buffer it was just handed and do nothing else.
func (c *AsyncCommand) Start(seg pool.Segment) {
	if atomic.LoadInt32(&c.state) != int32(api.StateInProgress) {
		c.scheduler.Release(seg)
		return
	}
	c.segment = seg
	c.workSegment = seg

	now := nowNanos()
	if c.iteration == 0 {
		c.totalWatchStart = now
		if c.policy.TotalTimeout > 0 {
			c.totalDeadline = c.totalWatchStart + c.policy.TotalTimeout.Nanoseconds()
		}
	}
	if c.policy.SocketTimeout > 0 {
		c.socketDeadline = now + c.policy.SocketTimeout.Nanoseconds()
	} else {
		c.socketDeadline = 0
	}
	atomic.StoreInt32(&c.eventReceived, 0)
	if c.totalDeadline != 0 || c.socketDeadline != 0 {
		c.timeouts.Enroll(c)
	}

	c.runAttempt()
}

// CheckTotalTimeout implements scheduling.TimeoutTarget (§4.3, §9 Open
// Question #2: total timeout is authoritative and checked first).
func (c *AsyncCommand) CheckTotalTimeout(now int64) bool {
	if atomic.LoadInt32(&c.state) != int32(api.StateInProgress) {
		return true
	}
	if c.totalDeadline == 0 || now < c.totalDeadline {
		return false
	}
	if !atomic.CompareAndSwapInt32(&c.state, int32(api.StateInProgress), int32(api.StateFailTotalTimeout)) {
		return true
	}
	if c.conn != nil {
		_ = c.conn.Close() // abort whatever I/O the owning goroutine is blocked in
	}
	// Total timeout is authoritative (§4.3, §9 Open Question #2): the
	// ticker itself delivers the failure here. It must not touch the
	// connection or buffer though — whichever goroutine the abort above
	// unblocks reaches finish/forceFail/retry and releases those quietly,
	// since the user has already been told.
	c.notifyTimeoutFailure(api.KindTotalTimeout)
	return true
}

// CheckSocketTimeout implements scheduling.TimeoutTarget (§4.3). Unlike
// total timeout, socket timeout is a retry hint. Once the idle deadline
// has passed, the ticker decides here whether a retry is still allowed:
// if so it moves the state to StateRetry, closes the connection and
// starts a clone itself; if not it moves the state to
// StateFailSocketTimeout and closes the connection without notifying
// the user. The previous attempt's own I/O call, unblocked by that
// Close, finds the state already moved and takes the matching branch of
// onRaceLost or finish: under StateRetry it only drops its connection,
// under StateFailSocketTimeout it releases the buffer and delivers the
// outcome itself (§4.5 state diagram).
func (c *AsyncCommand) CheckSocketTimeout(now int64) bool {
	if atomic.LoadInt32(&c.state) != int32(api.StateInProgress) {
		return true
	}
	if c.socketDeadline == 0 {
		return false
	}
	if atomic.CompareAndSwapInt32(&c.eventReceived, 1, 0) {
		c.socketDeadline = now + c.policy.SocketTimeout.Nanoseconds()
		return false
	}
	if now < c.socketDeadline {
		return false
	}
	// Decide retry-or-finalize before transitioning state, so that once the
	// CAS below lands, the state word alone tells whichever goroutine loses
	// the race (§4.3) exactly what this goroutine is about to do with the
	// buffer: StateRetry means a clone already took it over, StateFailSocketTimeout
	// means it is still this attempt's to release.
	retrying := c.shouldRetry()
	target := api.StateFailSocketTimeout
	if retrying {
		target = api.StateRetry
	}
	if !atomic.CompareAndSwapInt32(&c.state, int32(api.StateInProgress), int32(target)) {
		return true
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if retrying {
		c.iteration++
		if c.node != nil {
			c.node.AddRetry()
		}
		clone := c.cloneForRetry()
		clone.Start(clone.segment)
		return true
	}
	// Socket timeout is collaborative, not authoritative (§4.3): the
	// ticker does not notify here. The blocked I/O this Close() unblocks
	// reaches finish (delivers success) or forceFail/retry's lost-race
	// branch (delivers failure and releases), whichever the outcome
	// actually is.
	return true
}

func (c *AsyncCommand) noteProgress() { atomic.StoreInt32(&c.eventReceived, 1) }

// shouldRetry implements §4.5's ShouldRetry(): iteration budget and, if
// configured, total-timeout budget.
func (c *AsyncCommand) shouldRetry() bool {
	if c.iteration+1 > c.policy.MaxRetries {
		return false
	}
	if c.policy.TotalTimeout == 0 {
		return true
	}
	elapsed := time.Duration(nowNanos() - c.totalWatchStart)
	return elapsed < c.policy.TotalTimeout
}

func (c *AsyncCommand) cloneForRetry() *AsyncCommand {
	return &AsyncCommand{
		policy:             c.policy,
		resolve:            c.resolve,
		scheduler:          c.scheduler,
		timeouts:           c.timeouts,
		segPool:            c.segPool,
		delegate:           c.delegate,
		logger:             c.logger,
		segment:            c.segment,
		iteration:          c.iteration,
		commandSentCounter: c.commandSentCounter,
		totalWatchStart:    c.totalWatchStart,
		totalDeadline:      c.totalDeadline,
		state:              int32(api.StateInProgress),
	}
}

func isInDoubtState(s api.State) bool {
	switch s {
	case api.StateFailNetworkError, api.StateFailTotalTimeout, api.StateFailSocketTimeout:
		return true
	}
	return false
}

func (c *AsyncCommand) nodeName() string {
	if c.node == nil {
		return ""
	}
	return c.node.Name
}

// onTerminalFailure runs exactly once per command lifetime, on the
// goroutine that both wins the CAS into a terminal failure state and owns
// its resources outright (no ticker involved in the race): it computes
// in-doubt (§4.5), releases connection and buffer, and notifies the
// delegate.
func (c *AsyncCommand) onTerminalFailure(finalState api.State, kind api.ErrorKind, code api.ResultCode, cause error) {
	inDoubt := c.delegate.IsWrite() && c.commandSentCounter > 0 && isInDoubtState(finalState)
	if inDoubt {
		c.delegate.OnInDoubt()
	}
	c.releaseConnectionOnFailure(kind, code)
	c.scheduler.Release(c.segment)
	c.scheduler.NoteOutcome(false)
	c.delegate.OnFailure(&api.CommandError{
		Kind:       kind,
		ResultCode: code,
		Node:       c.nodeName(),
		Iteration:  c.iteration,
		InDoubt:    inDoubt,
		Cause:      cause,
	})
}

// notifyTimeoutFailure is the total-timeout ticker's notification path
// (§4.3, §4.5): it delivers the user callback from the ticker thread but
// deliberately does not touch the connection or buffer. Release belongs
// to whichever later I/O completion the abort in CheckTotalTimeout
// unblocks (onRaceLost, or finish's quiet-release branch) — freeing it
// here too would double-release the same segment.
func (c *AsyncCommand) notifyTimeoutFailure(kind api.ErrorKind) {
	inDoubt := c.delegate.IsWrite() && c.commandSentCounter > 0
	if inDoubt {
		c.delegate.OnInDoubt()
	}
	c.scheduler.NoteOutcome(false)
	c.delegate.OnFailure(&api.CommandError{
		Kind:      kind,
		Node:      c.nodeName(),
		Iteration: c.iteration,
		InDoubt:   inDoubt,
	})
}

// onRaceLost runs when this attempt's own CAS into a terminal or retry
// state fails, meaning the ticker already moved the single state word
// first (§4.3, §9 Open Question #2). What is left to do depends entirely
// on which state won:
//   - StateRetry: the ticker's socket-timeout path already cloned and
//     started a retry carrying this command's buffer forward (§4.1); this
//     attempt owns nothing left to release.
//   - StateFailSocketTimeout: the ticker gave up without notifying the
//     user (it is not authoritative, unlike total timeout); this attempt
//     is the only one left standing, so it releases and notifies.
//   - anything else (StateFailTotalTimeout): the ticker already notified;
//     release quietly.
func (c *AsyncCommand) onRaceLost() {
	switch api.State(atomic.LoadInt32(&c.state)) {
	case api.StateRetry:
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
	case api.StateFailSocketTimeout:
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
		inDoubt := c.delegate.IsWrite() && c.commandSentCounter > 0
		if inDoubt {
			c.delegate.OnInDoubt()
		}
		c.scheduler.NoteOutcome(false)
		c.delegate.OnFailure(&api.CommandError{
			Kind:      api.KindSocketTimeout,
			Node:      c.nodeName(),
			Iteration: c.iteration,
			InDoubt:   inDoubt,
		})
	default:
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
	}
}

// releaseConnectionOnFailure applies §4.5/§7's connection-disposition
// rules for a terminal (non-retried) failure.
func (c *AsyncCommand) releaseConnectionOnFailure(kind api.ErrorKind, code api.ResultCode) {
	if c.conn == nil {
		return
	}
	switch kind {
	case api.KindServerTransient:
		c.node.PutAsyncConnection(c.conn)
	case api.KindApplication:
		if code.KeepConnection() {
			c.node.PutAsyncConnection(c.conn)
		} else {
			c.node.CloseAsyncConnOnError(c.conn)
		}
	default:
		c.node.CloseAsyncConnOnError(c.conn)
	}
	c.conn = nil
}

// forceFail finalizes immediately, bypassing ShouldRetry (used for
// classes that never retry: application errors, cooperative batch
// termination).
func (c *AsyncCommand) forceFail(kind api.ErrorKind, code api.ResultCode, cause error, terminalState api.State) {
	if !atomic.CompareAndSwapInt32(&c.state, int32(api.StateInProgress), int32(terminalState)) {
		c.onRaceLost()
		return
	}
	c.onTerminalFailure(terminalState, kind, code, cause)
}

// failOrRetry applies ShouldRetry() and either dispatches a retry or
// finalizes as a terminal failure (§4.5).
func (c *AsyncCommand) failOrRetry(kind api.ErrorKind, code api.ResultCode, cause error, keepConn bool, isTimeout bool, terminalState api.State) {
	if c.shouldRetry() {
		c.iteration++
		c.retry(code, keepConn, isTimeout)
		return
	}
	c.forceFail(kind, code, cause, terminalState)
}

// retry implements Retry(ae) (§4.5): consult PrepareRetry, either hand
// off to RetryBatch or clone-and-dispatch carrying iteration,
// commandSentCounter, totalWatch and the bound buffer forward.
func (c *AsyncCommand) retry(code api.ResultCode, keepConn bool, isTimeout bool) {
	if !atomic.CompareAndSwapInt32(&c.state, int32(api.StateInProgress), int32(api.StateRetry)) {
		c.onRaceLost()
		return
	}
	if c.conn != nil {
		if keepConn {
			c.node.PutAsyncConnection(c.conn)
		} else {
			c.node.CloseAsyncConnOnError(c.conn)
		}
		c.conn = nil
	}
	c.scheduler.NoteOutcome(false)
	if c.node != nil {
		c.node.AddRetry()
	}

	if !c.delegate.PrepareRetry(isTimeout, code) {
		if br, ok := c.delegate.(BatchRetryable); ok {
			br.RetryBatch()
			c.scheduler.Release(c.segment)
			return
		}
	}

	clone := c.cloneForRetry()
	clone.Start(clone.segment)
}

// runAttempt drives one full attempt: resolve node, acquire connection,
// authenticate, send, receive, parse (§4.5 steps 2-5).
func (c *AsyncCommand) runAttempt() {
	node, err := c.resolve()
	if err != nil {
		var ce *api.CommandError
		if errors.As(err, &ce) && ce.Kind == api.KindBackoff {
			c.failOrRetry(api.KindBackoff, 0, err, false, false, api.StateFailQueueError)
			return
		}
		c.failOrRetry(api.KindConnection, 0, err, false, false, api.StateFailNetworkInit)
		return
	}
	c.node = node

	if err := node.ValidateErrorCount(); err != nil {
		c.failOrRetry(api.KindBackoff, 0, err, false, false, api.StateFailQueueError)
		return
	}

	conn, fresh := c.acquireConnection()
	c.conn = conn

	if fresh {
		if err := conn.Connect(context.Background(), node.Addr); err != nil {
			node.CloseAsyncConnOnError(conn)
			c.conn = nil
			c.failOrRetry(api.KindConnection, 0, err, false, false, api.StateFailNetworkInit)
			return
		}
	}

	if tok := node.SessionToken(); tok != "" {
		if err := c.authenticate(tok); err != nil {
			node.CloseAsyncConnOnError(conn)
			c.conn = nil
			c.failOrRetry(api.KindConnection, 0, err, false, false, api.StateFailNetworkInit)
			return
		}
	}

	if err := c.sendRequest(); err != nil {
		c.failOrRetry(api.KindConnection, 0, err, false, false, api.StateFailNetworkError)
		return
	}
	c.commandSentCounter++

	if err := c.receiveAndParse(); err != nil {
		c.handleResponseError(err)
		return
	}

	c.finish()
}

func (c *AsyncCommand) acquireConnection() (netio.Connection, bool) {
	if conn, ok := c.node.GetAsyncConnection(); ok {
		return conn, false
	}
	return c.node.CreateAsyncConnection(), true
}

// authenticate performs the nested suspension point described in §5:
// one inline send/receive round trip with the node's session token,
// resumed into the command proper on success.
func (c *AsyncCommand) authenticate(token string) error {
	c.inAuthenticate = true
	defer func() { c.inAuthenticate = false }()

	segBytes := c.segPool.Bytes(c.workSegment)
	payload := []byte("AUTH " + token + "\n")
	if len(segBytes) < protocol.HeaderSize+len(payload) {
		return fmt.Errorf("command: auth payload exceeds segment capacity")
	}
	protocol.WriteHeader(segBytes, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeInfo, Length: int64(len(payload))})
	copy(segBytes[protocol.HeaderSize:], payload)
	total := protocol.HeaderSize + len(payload)
	if err := c.conn.Send(segBytes, 0, total); err != nil {
		return err
	}
	c.authBytesSent += total

	hdrBuf := make([]byte, protocol.HeaderSize)
	if err := c.conn.Receive(hdrBuf, 0, protocol.HeaderSize); err != nil {
		return err
	}
	c.noteProgress()
	hdr, err := protocol.ParseHeader(hdrBuf)
	if err != nil {
		return err
	}
	body := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if err := c.conn.Receive(body, 0, int(hdr.Length)); err != nil {
			return err
		}
	}
	c.noteProgress()
	if string(body) != "OK\n" {
		return fmt.Errorf("command: authentication rejected")
	}
	return nil
}

// serialize writes the delegate's request body past the 8-byte header
// reservation, upsizing the segment if the encoded body does not fit.
func (c *AsyncCommand) serialize() (int, error) {
	segBytes := c.segPool.Bytes(c.workSegment)
	if len(segBytes) <= protocol.HeaderSize {
		return 0, fmt.Errorf("command: segment too small for header")
	}
	n, err := c.delegate.WriteBuffer(segBytes[protocol.HeaderSize:])
	if err != nil {
		return 0, err
	}
	total := protocol.HeaderSize + n
	if total > len(segBytes) {
		// Resize synthesizes a fresh oversize segment (§4.1): only the
		// working handle moves, so the original pool segment stays intact
		// for scheduler.Release regardless of how this attempt ends.
		c.workSegment = c.segPool.Resize(c.workSegment, total)
		segBytes = c.segPool.Bytes(c.workSegment)
		n, err = c.delegate.WriteBuffer(segBytes[protocol.HeaderSize:])
		if err != nil {
			return 0, err
		}
		total = protocol.HeaderSize + n
	}
	protocol.WriteHeader(segBytes, protocol.Header{Version: protocol.DefaultVersion, Type: protocol.MsgTypeCommand, Length: int64(n)})
	return total, nil
}

func (c *AsyncCommand) sendRequest() error {
	total, err := c.serialize()
	if err != nil {
		return err
	}
	segBytes := c.segPool.Bytes(c.workSegment)
	if err := c.conn.Send(segBytes, 0, total); err != nil {
		return err
	}
	c.node.AddBytesOut(int64(total))
	return nil
}

// NextGroup implements ResponseReader (§4.6): one 8-byte header receive
// followed by its body, upsizing the segment with a one-shot oversize
// segment when the body exceeds the current one (§4.5 step 5).
func (c *AsyncCommand) NextGroup() ([]byte, error) {
	hdrBuf := make([]byte, protocol.HeaderSize)
	if err := c.conn.Receive(hdrBuf, 0, protocol.HeaderSize); err != nil {
		return nil, err
	}
	c.noteProgress()
	hdr, err := protocol.ParseHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	bodyLen := int(hdr.Length)
	segBytes := c.segPool.Bytes(c.workSegment)
	if bodyLen > len(segBytes) {
		// Same rule as serialize: resize the working handle only, keep
		// c.segment as the original pool-owned handle for release (§4.1,
		// §8 buffer conservation).
		c.workSegment = c.segPool.Resize(c.workSegment, bodyLen)
		segBytes = c.segPool.Bytes(c.workSegment)
	}
	if bodyLen > 0 {
		if err := c.conn.Receive(segBytes, 0, bodyLen); err != nil {
			return nil, err
		}
	}
	c.noteProgress()
	c.node.AddBytesIn(int64(protocol.HeaderSize + bodyLen))
	body := segBytes[:bodyLen]
	if hdr.Compressed() {
		body = decompress(body)
	}
	return body, nil
}

// decompress is a pass-through hook: the compression codec itself is
// opaque/out of scope (§1 Non-goals), so the framing layer only needs to
// recognize the flag, not decode it.
func decompress(body []byte) []byte { return body }

func (c *AsyncCommand) receiveAndParse() error {
	if sd, ok := c.delegate.(StreamingDelegate); ok {
		return sd.ParseStream(c)
	}
	body, err := c.NextGroup()
	if err != nil {
		return err
	}
	return c.delegate.ParseResponse(body)
}

func (c *AsyncCommand) handleResponseError(err error) {
	var sr *api.ServerResult
	if errors.As(err, &sr) {
		c.handleServerResult(sr.Code)
		return
	}
	if errors.Is(err, api.ErrQueryTerminated) {
		c.forceFail(api.KindApplication, 0, err, api.StateFailApplicationError)
		return
	}
	if errors.Is(err, api.ErrKeyMismatch) {
		c.failOrRetry(api.KindParse, 0, err, false, false, api.StateFailNetworkError)
		return
	}
	c.failOrRetry(api.KindConnection, 0, err, false, false, api.StateFailNetworkError)
}

// handleServerResult applies the server-retry and application retry
// classes (§4.5).
func (c *AsyncCommand) handleServerResult(code api.ResultCode) {
	if code == api.ResultClusterKeyMismatch {
		// Partition in motion: retry-eligible like a server-transient
		// result, but not a load signal, so it does not count against the
		// node's timeout stat. PrepareRetry(_, code) lets a batch
		// sub-command recognize this code and split-retry instead of
		// resending the stale plan (§4.7 item 6).
		c.failOrRetry(api.KindServerTransient, code, nil, true, false, api.StateFailApplicationError)
		return
	}
	if code.IsServerTransient() {
		c.node.AddTimeout()
		c.failOrRetry(api.KindServerTransient, code, nil, true, false, api.StateFailApplicationError)
		return
	}
	if code == api.ResultKeyBusy {
		c.node.AddError()
		c.node.AddKeyBusy()
	}
	c.forceFail(api.KindApplication, code, nil, api.StateFailApplicationError)
}

// finish implements Completion Finish() (§4.5), including its two
// documented races against the ticker.
func (c *AsyncCommand) finish() {
	if atomic.CompareAndSwapInt32(&c.state, int32(api.StateInProgress), int32(api.StateSuccess)) {
		if c.conn != nil {
			c.node.PutAsyncConnection(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
		c.scheduler.NoteOutcome(true)
		c.delegate.OnSuccess()
		return
	}

	switch api.State(atomic.LoadInt32(&c.state)) {
	case api.StateFailTotalTimeout:
		// User already notified by the ticker; release quietly.
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
	case api.StateFailSocketTimeout:
		// Ticker did not notify on this path; deliver success anyway.
		if c.conn != nil {
			c.node.PutAsyncConnection(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
		c.scheduler.NoteOutcome(true)
		c.delegate.OnSuccess()
	case api.StateRetry:
		// The ticker's socket-timeout path already cloned and started a
		// retry carrying this command's buffer forward (§4.1); this
		// response arrived too late to matter, and there is nothing left
		// of this attempt's to release but its own connection.
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
	default:
		c.logger.Warnf("command: finish observed unexpected state %s", api.State(atomic.LoadInt32(&c.state)))
		if c.conn != nil {
			c.node.CloseAsyncConnOnError(c.conn)
			c.conn = nil
		}
		c.scheduler.Release(c.segment)
	}
}
