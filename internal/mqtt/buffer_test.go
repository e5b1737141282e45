package mqtt

import (
	"fmt"
	"testing"
)

func msg(i int) bufferedMsg {
	return bufferedMsg{topic: fmt.Sprintf("t/%d", i), payload: []byte{byte(i)}}
}

func TestRingBuffer_DrainReturnsOldestFirst(t *testing.T) {
	r := newRingBuffer(4)
	for i := 0; i < 3; i++ {
		r.push(msg(i))
	}
	if r.len() != 3 {
		t.Fatalf("expected len 3, got %d", r.len())
	}

	got := r.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, m := range got {
		if m.topic != fmt.Sprintf("t/%d", i) {
			t.Fatalf("position %d: expected t/%d, got %s", i, i, m.topic)
		}
	}

	// Drained buffer is empty and reusable.
	if r.len() != 0 {
		t.Fatalf("expected empty buffer after drain, got %d", r.len())
	}
	if r.drainAll() != nil {
		t.Fatalf("draining an empty buffer must return nil")
	}
}

func TestRingBuffer_OverflowDropsOldest(t *testing.T) {
	r := newRingBuffer(3)
	for i := 0; i < 5; i++ {
		r.push(msg(i))
	}

	if !r.dropped() {
		t.Fatalf("expected overflow flag after dropping messages")
	}
	got := r.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	// 0 and 1 were overwritten.
	for i, want := range []string{"t/2", "t/3", "t/4"} {
		if got[i].topic != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].topic)
		}
	}

	// Drain clears the overflow flag.
	if r.dropped() {
		t.Fatalf("drain must reset the overflow flag")
	}
}

func TestRingBuffer_WrapAroundKeepsOrder(t *testing.T) {
	r := newRingBuffer(3)
	r.push(msg(0))
	r.push(msg(1))
	_ = r.drainAll()

	// Head has moved; subsequent pushes must still drain in order.
	for i := 2; i < 5; i++ {
		r.push(msg(i))
	}
	got := r.drainAll()
	for i, want := range []string{"t/2", "t/3", "t/4"} {
		if got[i].topic != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].topic)
		}
	}
}
