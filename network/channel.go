package network

import (
	"errors"
	"sync"
)

// ChannelKind selects the delivery guarantees of a send.
type ChannelKind uint8

const (
	// Unreliable may drop or reorder; used for inputs and snapshot diffs.
	Unreliable ChannelKind = iota
	// ReliableOrdered delivers every message in order; used for lifecycle
	// notices.
	ReliableOrdered

	channelKinds
)

func (k ChannelKind) Valid() bool { return k < channelKinds }

func (k ChannelKind) String() string {
	switch k {
	case Unreliable:
		return "unreliable"
	case ReliableOrdered:
		return "reliable"
	}
	return "invalid"
}

var (
	ErrNotConnected   = errors.New("not connected")
	ErrInvalidChannel = errors.New("invalid channel kind")
)

// Channel is the byte transport between a client and the server. TryReceive
// never blocks.
type Channel interface {
	Send(kind ChannelKind, payload []byte) error
	TryReceive(kind ChannelKind) ([]byte, bool)
}

// Queue buffers inbound payloads per channel kind until the simulation polls
// them. Transport goroutines push; the tick pops. When a kind is full the
// oldest payload is dropped.
type Queue struct {
	mu      sync.Mutex
	items   [channelKinds][][]byte
	limit   int
	dropped int
}

// NewQueue creates a queue holding at most limit payloads per kind.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push appends a payload. Invalid kinds are dropped.
func (q *Queue) Push(kind ChannelKind, payload []byte) {
	if !kind.Valid() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[kind]
	if q.limit > 0 && len(items) >= q.limit {
		items = items[1:]
		q.dropped++
	}
	q.items[kind] = append(items, payload)
}

// Pop removes the oldest payload of a kind.
func (q *Queue) Pop(kind ChannelKind) ([]byte, bool) {
	if !kind.Valid() {
		return nil, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[kind]
	if len(items) == 0 {
		return nil, false
	}
	payload := items[0]
	items[0] = nil
	q.items[kind] = items[1:]
	return payload, true
}

// Len returns the number of queued payloads of a kind.
func (q *Queue) Len(kind ChannelKind) int {
	if !kind.Valid() {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[kind])
}

// Dropped returns how many payloads were discarded for overflow.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
