// Package command implements AsyncCommand (§4.5): the per-command state
// machine, retry predicate, retry classes, Finish() races and in-doubt
// attribution, plus the unified streaming parser (§4.6) that replaces
// the "legacy dual parsing paths" REDESIGN FLAG. Grounded on
// _examples/momentics-hioload-ws/core/command.go's Command/Handler split
// (a thin engine driving a pluggable handler through explicit
// lifecycle hooks) and protocol/connection.go's callback-bound
// suspension points, adapted from one-shot frame handling to the
// multi-attempt, multi-group state machine this engine requires.
package command

import "github.com/kvasync/asyncore/api"

// Delegate is what a concrete command (ReadCommand, WriteCommand,
// ScanCommand, or a batch sub-command) supplies to AsyncCommand. It owns
// request encoding, response decoding and user notification; AsyncCommand
// owns scheduling, timeouts, retries, connection lifecycle and in-doubt
// attribution.
type Delegate interface {
	// IsWrite reports whether a sent-but-unacknowledged request must be
	// attributed in-doubt on failure (§4.5).
	IsWrite() bool

	// WriteBuffer encodes the request body into buf (the segment bytes
	// past the 8-byte wire header) and returns the number of bytes
	// written.
	WriteBuffer(buf []byte) (int, error)

	// ParseResponse decodes a single response body. Return
	// *api.ServerResult to signal a well-formed non-OK result code;
	// return any other error for a malformed response; return nil for
	// success. Never return *api.ServerResult{Code: api.ResultOK} —
	// a successful parse is nil.
	ParseResponse(body []byte) error

	// OnSuccess delivers the terminal success outcome to the user.
	OnSuccess()
	// OnFailure delivers the terminal failure outcome to the user.
	OnFailure(err *api.CommandError)
	// OnInDoubt is invoked before OnFailure when the failure meets the
	// in-doubt predicate (§4.5), so side effects (e.g. a transaction's
	// write-set bookkeeping) run before the user callback.
	OnInDoubt()

	// PrepareRetry is consulted before every retry dispatch triggered by a
	// received (non-timeout) response; code is the triggering server
	// result code, or api.ResultOK for a connection-class retry. Returning
	// false means the caller must not clone-and-resend as-is; batch
	// sub-commands use this to recognize a partition-migration hint
	// (ResultClusterKeyMismatch) and implement BatchRetryable instead
	// (§4.7 item 6).
	PrepareRetry(isTimeout bool, code api.ResultCode) bool
}

// BaseDelegate supplies the common no-op defaults (OnInDoubt, a retry-
// always PrepareRetry) so single-record delegates only implement the
// methods that differ.
type BaseDelegate struct{}

func (BaseDelegate) OnInDoubt() {}
func (BaseDelegate) PrepareRetry(isTimeout bool, code api.ResultCode) bool { return true }

// BatchRetryable is implemented by batch sub-command delegates whose
// PrepareRetry returned false: RetryBatch regenerates the sub-command
// plan against the current partition map instead of resending the
// original request (§4.7 item 6).
type BatchRetryable interface {
	RetryBatch()
}

// ResponseReader is the per-attempt receive surface AsyncCommand exposes
// to a StreamingDelegate: one 8-byte header plus body per call (§4.6
// "issue another 8-byte header receive to start the next group").
type ResponseReader interface {
	NextGroup() ([]byte, error)
}

// StreamingDelegate is implemented by multi-record delegates (scans,
// batch sub-commands) that must consume more than one header+body group
// per attempt (§4.6).
type StreamingDelegate interface {
	Delegate
	ParseStream(r ResponseReader) error
}
