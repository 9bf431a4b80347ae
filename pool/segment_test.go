package pool

import "testing"

func TestAcquireReleaseConservation(t *testing.T) {
	p := NewPool(4, 128)
	if got := p.InPool(); got != 4 {
		t.Fatalf("expected 4 free segments, got %d", got)
	}

	var held []Segment
	for i := 0; i < 4; i++ {
		seg, ok := p.Acquire()
		if !ok {
			t.Fatalf("expected segment %d to be available", i)
		}
		held = append(held, seg)
	}

	if _, ok := p.Acquire(); ok {
		t.Fatal("expected pool to be exhausted")
	}

	for _, seg := range held {
		p.Release(seg)
	}
	if got := p.InPool(); got != 4 {
		t.Fatalf("expected 4 free segments after release, got %d", got)
	}
}

func TestResizeProducesOversizeSegmentNeverPooled(t *testing.T) {
	p := NewPool(2, 64)
	seg, ok := p.Acquire()
	if !ok {
		t.Fatal("expected segment")
	}

	big := p.Resize(seg, 4096)
	if big.Index >= 0 {
		t.Fatalf("expected oversize segment to carry Index<0, got %d", big.Index)
	}
	if len(p.Bytes(big)) != 4096 {
		t.Fatalf("expected oversize buffer of 4096 bytes, got %d", len(p.Bytes(big)))
	}

	// Oversize release is a no-op; only the original pool segment comes back.
	p.Release(big)
	if got := p.InPool(); got != 1 {
		t.Fatalf("expected 1 free segment (oversize never pooled), got %d", got)
	}

	p.Release(seg)
	if got := p.InPool(); got != 2 {
		t.Fatalf("expected 2 free segments after releasing original, got %d", got)
	}
}

func TestResizeNoopWhenBigEnough(t *testing.T) {
	p := NewPool(1, 256)
	seg, _ := p.Acquire()
	same := p.Resize(seg, 100)
	if same.Index != seg.Index {
		t.Fatalf("expected unchanged segment when size already fits")
	}
}
