package scheduling

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/pool"
)

// Schedulable is the admitted-command contract the Scheduler drives once
// a buffer segment has been bound (§4.4).
type Schedulable interface {
	// Start begins the command's first (or next) attempt now that seg is
	// bound to it.
	Start(seg pool.Segment)
}

// Scheduler is the admission controller matching pending commands to
// buffer segments under one of three policies (§4.4): Reject, Block,
// Delay.
type Scheduler struct {
	mode          api.SchedulingMode
	pool          *pool.Pool
	maxQueueDepth int

	mu        sync.Mutex
	cond      *sync.Cond
	delayQ    *queue.Queue
	draining  int32

	consecutiveErrors int32
	inlineThreshold   int32
}

// NewScheduler builds a Scheduler over pool p. maxQueueDepth is only
// consulted in SchedulingDelay mode; 0 means unbounded.
func NewScheduler(mode api.SchedulingMode, p *pool.Pool, maxQueueDepth int) *Scheduler {
	s := &Scheduler{
		mode:            mode,
		pool:            p,
		maxQueueDepth:   maxQueueDepth,
		delayQ:          queue.New(),
		inlineThreshold: 16,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Schedule admits cmd under the configured policy (§4.4).
func (s *Scheduler) Schedule(cmd Schedulable) error {
	switch s.mode {
	case api.SchedulingReject:
		seg, ok := s.pool.Acquire()
		if !ok {
			return api.ErrCommandRejected
		}
		cmd.Start(seg)
		return nil

	case api.SchedulingBlock:
		s.mu.Lock()
		for {
			seg, ok := s.pool.Acquire()
			if ok {
				s.mu.Unlock()
				cmd.Start(seg)
				return nil
			}
			s.cond.Wait()
		}

	case api.SchedulingDelay:
		return s.scheduleDelay(cmd)

	default:
		return api.ErrCommandRejected
	}
}

func (s *Scheduler) scheduleDelay(cmd Schedulable) error {
	s.mu.Lock()
	if s.maxQueueDepth > 0 && s.delayQ.Length() >= s.maxQueueDepth {
		s.mu.Unlock()
		return api.ErrCommandRejected
	}
	s.delayQ.Add(cmd)
	s.mu.Unlock()
	s.drain()
	return nil
}

// drain exclusively processes the delay queue's head while segments are
// available (§4.4 "at most one worker drains at a time"; a CAS-guarded
// job flag enforces exclusivity).
func (s *Scheduler) drain() {
	if !atomic.CompareAndSwapInt32(&s.draining, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.draining, 0)

	for {
		s.mu.Lock()
		if s.delayQ.Length() == 0 {
			s.mu.Unlock()
			return
		}
		seg, ok := s.pool.Acquire()
		if !ok {
			s.mu.Unlock()
			return
		}
		head := s.delayQ.Remove().(Schedulable)
		s.mu.Unlock()
		s.delayStart(head, seg)
	}
}

// delayStart is the only place inline-vs-deferred execution is chosen
// (§4.4, §9): under a low consecutive-error count the command runs on
// the draining goroutine; once the threshold is crossed, every
// subsequent start is dispatched to a fresh goroutine so a run of
// failures can't recurse the draining goroutine's stack through
// Retry -> Schedule -> Retry.
func (s *Scheduler) delayStart(cmd Schedulable, seg pool.Segment) {
	if atomic.LoadInt32(&s.consecutiveErrors) < s.inlineThreshold {
		cmd.Start(seg)
		return
	}
	go cmd.Start(seg)
}

// Release returns seg, handing it directly to the delay queue's head
// first (§4.4 "every release attempts a handoff before pooling the
// segment back"), or to Block's waiters, or straight back to the pool.
func (s *Scheduler) Release(seg pool.Segment) {
	switch s.mode {
	case api.SchedulingBlock:
		s.pool.Release(seg)
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()

	case api.SchedulingDelay:
		s.mu.Lock()
		if s.delayQ.Length() > 0 {
			head := s.delayQ.Remove().(Schedulable)
			s.mu.Unlock()
			s.delayStart(head, seg)
			return
		}
		s.mu.Unlock()
		s.pool.Release(seg)

	default: // Reject
		s.pool.Release(seg)
	}
}

// NoteOutcome feeds the inline/deferred heuristic: a successful
// terminal attempt resets the consecutive-error counter, a failing one
// increments it.
func (s *Scheduler) NoteOutcome(success bool) {
	if success {
		atomic.StoreInt32(&s.consecutiveErrors, 0)
		return
	}
	atomic.AddInt32(&s.consecutiveErrors, 1)
}

// QueueDepth reports the number of commands currently parked in the
// delay queue (test/metrics use only).
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayQ.Length()
}

// Pool exposes the underlying buffer pool, e.g. for buffer-conservation
// assertions in tests (§8).
func (s *Scheduler) Pool() *pool.Pool { return s.pool }
