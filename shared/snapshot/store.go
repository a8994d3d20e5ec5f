package snapshot

import (
	"slices"

	"github.com/automoto/boxman/shared/messages"
)

// DefaultHistory is how many snapshots the server keeps for diffing.
const DefaultHistory = 64

// Store is the server's ring of recent snapshots. Ids start at 0 and grow by
// one per capture; slot i holds id i % size.
type Store struct {
	ring   []Snapshot
	nextID uint64
}

// NewStore creates a store keeping the last size snapshots.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultHistory
	}
	return &Store{ring: make([]Snapshot, size)}
}

// Capture records the world state of this tick under a fresh id. The
// characters slice is copied.
func (s *Store) Capture(characters []Character) *Snapshot {
	slot := &s.ring[s.nextID%uint64(len(s.ring))]
	*slot = Snapshot{ID: s.nextID, Characters: slices.Clone(characters)}
	s.nextID++
	return slot
}

// Len returns the number of retained snapshots.
func (s *Store) Len() int {
	return int(min(s.nextID, uint64(len(s.ring))))
}

// NextID returns the id of the next capture.
func (s *Store) NextID() uint64 {
	return s.nextID
}

// Get returns a retained snapshot.
func (s *Store) Get(id uint64) (*Snapshot, bool) {
	if id >= s.nextID || id < s.nextID-uint64(s.Len()) {
		return nil, false
	}
	return &s.ring[id%uint64(len(s.ring))], true
}

// Latest returns the newest snapshot.
func (s *Store) Latest() (*Snapshot, bool) {
	if s.nextID == 0 {
		return nil, false
	}
	return s.Get(s.nextID - 1)
}

// DiffFor builds the diff of the latest snapshot for a client that last
// acknowledged ackedSnapshot and whose newest consumed input is ackedInput.
// Without a retained baseline the full snapshot is sent. It returns false
// before the first capture.
func (s *Store) DiffFor(ackedSnapshot *uint64, ackedInput *uint32) (messages.SnapshotDiff, bool) {
	latest, ok := s.Latest()
	if !ok {
		return messages.SnapshotDiff{}, false
	}

	var diff messages.SnapshotDiff
	if base, ok := s.baseline(ackedSnapshot); ok {
		diff = latest.Diff(base)
	} else {
		diff = latest.Full()
	}
	if ackedInput != nil {
		ack := *ackedInput
		diff.AckedInputID = &ack
	}
	return diff, true
}

func (s *Store) baseline(acked *uint64) (*Snapshot, bool) {
	if acked == nil {
		return nil, false
	}
	return s.Get(*acked)
}
