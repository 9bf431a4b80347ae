// Package pool implements the fixed-slab buffer pool that backs command
// admission (§4.1). Grounded on the shape of
// _examples/momentics-hioload-ws/api/buffer.go (a Buffer wraps a []byte
// and hands itself back to a Releaser) and
// _examples/momentics-hioload-ws/pool/base_bufferpool.go (non-blocking
// Get/Put over a bounded store), adapted from a per-NUMA channel store to
// the single contiguous backing slab §4.1 specifies.
package pool

import "sync"

// Segment is a handle to a reusable buffer slot. Index >= 0 means the
// segment is owned by the pool's backing slab; Index < 0 marks a
// one-shot oversize segment synthesized by Resize, which is never
// returned to the pool (§3 BufferSegment invariant).
type Segment struct {
	Index  int
	Offset int
	Size   int
	bytes  []byte // only set for oversize segments; pool-owned segments read through Pool.Bytes
}

// Pool is a fixed array of segments pre-allocated at startup, each
// indexing into one contiguous backing block (§4.1).
type Pool struct {
	mu         sync.Mutex
	slab       []byte
	segSize    int
	free       []int // stack of free pool-owned indices
	totalCount int
}

// NewPool pre-allocates segmentCount segments of segmentSize bytes each,
// backed by one contiguous slab.
func NewPool(segmentCount, segmentSize int) *Pool {
	p := &Pool{
		slab:       make([]byte, segmentCount*segmentSize),
		segSize:    segmentSize,
		free:       make([]int, segmentCount),
		totalCount: segmentCount,
	}
	for i := 0; i < segmentCount; i++ {
		p.free[i] = segmentCount - 1 - i // fill stack so Acquire returns index 0 first
	}
	return p
}

// Acquire returns one free segment, or ok=false if the pool is
// exhausted. Never blocks (§4.1).
func (p *Pool) Acquire() (Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return Segment{}, false
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	return Segment{Index: idx, Offset: idx * p.segSize, Size: p.segSize}, true
}

// Release returns a pool-owned segment to the free stack. An oversize
// segment (Index < 0) is silently discarded (§4.1).
func (p *Pool) Release(seg Segment) {
	if seg.Index < 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, seg.Index)
	p.mu.Unlock()
}

// Resize grows seg to at least size bytes. If size already fits, seg is
// returned unchanged. Otherwise a fresh oversize segment (Index = -1) is
// synthesized and returned; the caller must still Release the *original*
// pool segment once it is done with it — Resize does not release it,
// matching §4.1's "on release, the original pool segment is returned,
// not the oversize" rule (the command keeps both handles until its own
// release step).
func (p *Pool) Resize(seg Segment, size int) Segment {
	if size <= seg.Size {
		return seg
	}
	return Segment{Index: -1, Size: size, bytes: make([]byte, size)}
}

// Bytes returns the byte slice backing seg.
func (p *Pool) Bytes(seg Segment) []byte {
	if seg.Index < 0 {
		return seg.bytes
	}
	return p.slab[seg.Offset : seg.Offset+seg.Size]
}

// Capacity returns the total number of pool-owned segments.
func (p *Pool) Capacity() int { return p.totalCount }

// InPool reports how many segments currently sit free in the pool, for
// buffer-conservation testing (§8): segments_in_pool +
// segments_held_by_in_flight_commands = asyncMaxCommands.
func (p *Pool) InPool() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
