package network

import (
	"errors"
	"testing"
)

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	q.Push(Unreliable, []byte{1})
	q.Push(Unreliable, []byte{2})
	q.Push(Unreliable, []byte{3})
	q.Push(ReliableOrdered, []byte{9})
	q.Push(ChannelKind(7), []byte{0})

	if q.Dropped() != 1 || q.Len(Unreliable) != 2 || q.Len(ReliableOrdered) != 1 {
		t.Fatalf("dropped %d, lens %d/%d", q.Dropped(), q.Len(Unreliable), q.Len(ReliableOrdered))
	}
	for _, want := range []byte{2, 3} {
		got, ok := q.Pop(Unreliable)
		if !ok || got[0] != want {
			t.Errorf("pop = %v, %v; want %d", got, ok, want)
		}
	}
	if _, ok := q.Pop(Unreliable); ok {
		t.Error("pop from empty queue")
	}
}

func TestLoopbackReliableKeepsOrder(t *testing.T) {
	link := NewLoopback(LinkConfig{Latency: 2, Jitter: 5, LossRate: 0.9, Seed: 3})
	for i := byte(0); i < 20; i++ {
		if err := link.A().Send(ReliableOrdered, []byte{i}); err != nil {
			t.Fatal(err)
		}
	}

	link.Advance()
	link.Advance()
	if _, ok := link.B().TryReceive(ReliableOrdered); ok {
		t.Fatal("delivered before latency elapsed")
	}
	link.Advance()
	for i := byte(0); i < 20; i++ {
		got, ok := link.B().TryReceive(ReliableOrdered)
		if !ok || got[0] != i {
			t.Fatalf("message %d: got %v, %v", i, got, ok)
		}
	}
}

func TestLoopbackUnreliableLossIsSeeded(t *testing.T) {
	run := func() []byte {
		link := NewLoopback(LinkConfig{Jitter: 3, LossRate: 0.3, Seed: 11})
		for i := byte(0); i < 100; i++ {
			_ = link.A().Send(Unreliable, []byte{i})
		}
		for i := 0; i < 5; i++ {
			link.Advance()
		}
		var got []byte
		for {
			p, ok := link.B().TryReceive(Unreliable)
			if !ok {
				return got
			}
			got = append(got, p[0])
		}
	}
	a, b := run(), run()
	if len(a) == 0 || len(a) == 100 {
		t.Fatalf("delivered %d of 100", len(a))
	}
	if string(a) != string(b) {
		t.Error("same seed produced different deliveries")
	}
}

func TestLoopbackCopiesPayload(t *testing.T) {
	link := NewLoopback(LinkConfig{})
	buf := []byte{1}
	_ = link.B().Send(Unreliable, buf)
	buf[0] = 2
	link.Advance()
	if got, _ := link.A().TryReceive(Unreliable); got[0] != 1 {
		t.Errorf("payload aliased sender buffer: %v", got)
	}
}

func TestLoopbackClosedEndpoint(t *testing.T) {
	link := NewLoopback(LinkConfig{})
	link.A().Close()
	if err := link.A().Send(Unreliable, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("send after close: %v", err)
	}
	_ = link.B().Send(Unreliable, []byte{1})
	link.Advance()
	if _, ok := link.A().TryReceive(Unreliable); ok {
		t.Error("closed endpoint received")
	}
	if err := link.B().Send(ChannelKind(9), nil); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("invalid kind: %v", err)
	}
}
