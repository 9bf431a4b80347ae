// Package scheduling implements the TimeoutQueue (§4.3) and Scheduler
// (§4.4). Both use github.com/eapache/queue.Queue as their FIFO backing
// store (SPEC_FULL.md §5): a ring-buffer queue with O(1) Add/Remove and
// index access, which fits the "pop everything enrolled this tick,
// re-push the survivors" scan §4.3 describes and the "drain the delay
// queue, handing segments to the head first" fairness rule §4.4
// describes, without the pointer-chasing of container/list.
package scheduling

// TimeoutTarget is implemented by AsyncCommand so the TimeoutQueue can
// drive it without importing the command package (avoiding an import
// cycle: command imports scheduling to enroll itself).
type TimeoutTarget interface {
	// CheckTotalTimeout inspects the total-timeout deadline. It returns
	// drop=true when the entry must not be re-enqueued: either the total
	// timeout just fired (terminal, user already notified from this
	// call) or the command was already terminal for some other reason.
	CheckTotalTimeout(nowNanos int64) (drop bool)

	// CheckSocketTimeout inspects the idle-receive deadline. It returns
	// drop=true when the socket timeout just fired (terminal w.r.t.
	// I/O — the ticker closes the connection but does not notify the
	// user; §4.3) or the command is already terminal. A command with no
	// socket timeout configured returns drop=false, so it stays enrolled
	// for its total-timeout check.
	CheckSocketTimeout(nowNanos int64) (drop bool)
}
