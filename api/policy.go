package api

import "time"

// SchedulingMode selects one of the three admission policies (§4.4).
type SchedulingMode int

const (
	SchedulingReject SchedulingMode = iota
	SchedulingBlock
	SchedulingDelay
)

// ClientPolicy configures the buffer pool and admission scheduler
// (§6 Configuration options).
type ClientPolicy struct {
	// AsyncMaxCommands sizes the buffer pool; caps in-flight concurrency.
	AsyncMaxCommands int
	// AsyncMaxCommandsInQueue bounds the Delay-mode queue; 0 is unbounded.
	AsyncMaxCommandsInQueue int
	// SchedulingMode picks Reject, Block or Delay.
	SchedulingMode SchedulingMode
	// ErrorRateWindow is the sliding window used by a node's
	// ValidateErrorCount quarantine (§6 supplemented feature).
	ErrorRateWindow time.Duration
	// MaxErrorRate is the error count tolerated inside ErrorRateWindow
	// before ValidateErrorCount raises Backoff.
	MaxErrorRate int
}

// DefaultClientPolicy returns sane defaults, the way server.DefaultConfig
// does in the teacher repo.
func DefaultClientPolicy() *ClientPolicy {
	return &ClientPolicy{
		AsyncMaxCommands:        256,
		AsyncMaxCommandsInQueue: 0,
		SchedulingMode:          SchedulingBlock,
		ErrorRateWindow:         time.Second,
		MaxErrorRate:            100,
	}
}

// CommandPolicy is the per-command policy snapshot (§3): socket-timeout,
// total-timeout, max-retries.
type CommandPolicy struct {
	// SocketTimeout is the idle-receive timeout; 0 disables it.
	SocketTimeout time.Duration
	// TotalTimeout is the absolute wall-clock deadline; 0 disables it.
	TotalTimeout time.Duration
	// MaxRetries bounds additional attempts; 0 means one-shot.
	MaxRetries int
}

// DefaultCommandPolicy mirrors typical client defaults.
func DefaultCommandPolicy() CommandPolicy {
	return CommandPolicy{
		SocketTimeout: 30 * time.Second,
		TotalTimeout:  1 * time.Second,
		MaxRetries:    2,
	}
}

// BatchPolicy configures the batch executor (§6, §4.7).
type BatchPolicy struct {
	CommandPolicy
	// MaxConcurrentThreads bounds simultaneously dispatched sub-commands;
	// 0 means unlimited.
	MaxConcurrentThreads int
	// RespondAllKeys is carried in the policy but not read by
	// batch.Executor: a failed batch reports only OnFailure, with no
	// per-key BatchRecords.
	RespondAllKeys bool
	// AllowPartialRetry is carried in the policy but not read by
	// batch.Executor: split-retry always re-plans only the retried
	// sub-command's keys, whatever this is set to.
	AllowPartialRetry bool
	// ValidateClusterStability turns on the optional cluster-stability
	// validation hook (§4.7 item 4): query every node's stable-cluster
	// key before dispatch and again once every sub-command finishes,
	// failing the batch if the cluster reshaped underneath it.
	ValidateClusterStability bool
}

// DefaultBatchPolicy returns sane batch defaults.
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		CommandPolicy:        DefaultCommandPolicy(),
		MaxConcurrentThreads: 16,
		RespondAllKeys:       true,
		AllowPartialRetry:    true,
	}
}
