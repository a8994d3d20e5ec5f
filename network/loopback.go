package network

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"
)

// LinkConfig shapes the traffic of a Loopback. Reliable payloads only see
// Latency; unreliable payloads may also be delayed by Jitter steps, which
// reorders them, or dropped.
type LinkConfig struct {
	Latency  int
	Jitter   int
	LossRate float64
	Seed     uint64
}

// Loopback is an in-memory link between two endpoints with simulated
// latency, jitter and loss. Time only moves when Advance is called, so a
// seeded link replays identically.
type Loopback struct {
	mu       sync.Mutex
	cfg      LinkConfig
	rng      *rand.Rand
	now      int
	seq      uint64
	inflight []inflight
	ends     [2]*Endpoint
	dropped  int
}

type inflight struct {
	due     int
	seq     uint64
	to      int
	kind    ChannelKind
	payload []byte
}

// Endpoint is one side of a Loopback and implements Channel.
type Endpoint struct {
	link   *Loopback
	side   int
	inbox  *Queue
	closed bool
}

// NewLoopback creates a link. Its endpoints are A and B.
func NewLoopback(cfg LinkConfig) *Loopback {
	l := &Loopback{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for i := range l.ends {
		l.ends[i] = &Endpoint{link: l, side: i, inbox: NewQueue(0)}
	}
	return l
}

func (l *Loopback) A() *Endpoint { return l.ends[0] }
func (l *Loopback) B() *Endpoint { return l.ends[1] }

// Advance moves the link one step forward and delivers every payload that
// is due.
func (l *Loopback) Advance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now++

	var due []inflight
	kept := l.inflight[:0]
	for _, p := range l.inflight {
		if p.due <= l.now {
			due = append(due, p)
		} else {
			kept = append(kept, p)
		}
	}
	l.inflight = kept

	slices.SortFunc(due, func(a, b inflight) int {
		if c := cmp.Compare(a.due, b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, p := range due {
		if to := l.ends[p.to]; !to.closed {
			to.inbox.Push(p.kind, p.payload)
		}
	}
}

// Dropped returns how many unreliable payloads the link lost.
func (l *Loopback) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Send queues a copy of payload for the other endpoint.
func (e *Endpoint) Send(kind ChannelKind, payload []byte) error {
	if !kind.Valid() {
		return ErrInvalidChannel
	}
	l := e.link
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.closed {
		return ErrNotConnected
	}

	due := l.now + 1 + l.cfg.Latency
	if kind == Unreliable {
		if l.cfg.LossRate > 0 && l.rng.Float64() < l.cfg.LossRate {
			l.dropped++
			return nil
		}
		if l.cfg.Jitter > 0 {
			due += l.rng.IntN(l.cfg.Jitter + 1)
		}
	}

	l.seq++
	l.inflight = append(l.inflight, inflight{
		due:     due,
		seq:     l.seq,
		to:      1 - e.side,
		kind:    kind,
		payload: slices.Clone(payload),
	})
	return nil
}

// TryReceive pops the oldest delivered payload of a kind.
func (e *Endpoint) TryReceive(kind ChannelKind) ([]byte, bool) {
	return e.inbox.Pop(kind)
}

// Close stops the endpoint from sending or receiving.
func (e *Endpoint) Close() {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	e.closed = true
}
