package scheduling

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// TimeoutQueue is the single long-lived ticker per client (§4.3, §9
// "Singleton timeout worker"). It never holds its internal lock across a
// user callback: CheckTotalTimeout/CheckSocketTimeout invoke the user's
// failure callback themselves, from inside the target's own CAS, after
// this queue has already released the entry from its internal list.
type TimeoutQueue struct {
	mu   sync.Mutex
	q    *queue.Queue
	tick time.Duration
	stop chan struct{}
	done chan struct{}

	now func() int64 // overridable for tests
}

// NewTimeoutQueue starts the ticker goroutine at the given tick
// interval.
func NewTimeoutQueue(tick time.Duration) *TimeoutQueue {
	t := &TimeoutQueue{
		q:    queue.New(),
		tick: tick,
		stop: make(chan struct{}),
		done: make(chan struct{}),
		now:  func() int64 { return time.Now().UnixNano() },
	}
	go t.run()
	return t
}

// Enroll registers target for periodic timeout checks. A target appears
// at most once; callers are responsible for not double-enrolling the
// same attempt (§3 TimeoutEntry invariant).
func (t *TimeoutQueue) Enroll(target TimeoutTarget) {
	t.mu.Lock()
	t.q.Add(target)
	t.mu.Unlock()
}

// Stop halts the ticker goroutine. Safe to call once.
func (t *TimeoutQueue) Stop() {
	close(t.stop)
	<-t.done
}

func (t *TimeoutQueue) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep is §4.3's per-tick scan: total timeout is checked before socket
// timeout for every entry (§9 Open Question #2, resolved normative).
func (t *TimeoutQueue) sweep() {
	now := t.now()

	t.mu.Lock()
	n := t.q.Length()
	entries := make([]TimeoutTarget, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, t.q.Remove().(TimeoutTarget))
	}
	t.mu.Unlock()

	survivors := entries[:0]
	for _, target := range entries {
		if target.CheckTotalTimeout(now) {
			continue
		}
		if target.CheckSocketTimeout(now) {
			continue
		}
		survivors = append(survivors, target)
	}

	t.mu.Lock()
	for _, s := range survivors {
		t.q.Add(s)
	}
	t.mu.Unlock()
}

// Len reports the number of currently enrolled entries (test/metrics
// use only).
func (t *TimeoutQueue) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.Length()
}
