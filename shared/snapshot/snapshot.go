// Package snapshot captures the authoritative world state once per server
// tick and builds the per-client diffs sent over the unreliable channel.
package snapshot

import (
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/go-gl/mathgl/mgl64"
)

// Character is the replicated state of one character.
type Character struct {
	ClientID uint64
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Grounded bool
}

// CharacterFromState captures a movement state.
func CharacterFromState(clientID uint64, s movement.State) Character {
	return Character{
		ClientID: clientID,
		Position: s.Position,
		Velocity: s.Velocity,
		Yaw:      s.Yaw,
		Pitch:    s.Pitch,
		Grounded: s.Grounded,
	}
}

// Snapshot is the world state of one tick. Stored snapshots are never
// modified.
type Snapshot struct {
	ID         uint64
	Characters []Character
}

// Find returns the character of a client.
func (s *Snapshot) Find(clientID uint64) (Character, bool) {
	for _, c := range s.Characters {
		if c.ClientID == clientID {
			return c, true
		}
	}
	return Character{}, false
}

// Full encodes every character with every field.
func (c Character) Full() messages.CharacterDiff {
	pos, vel := c.Position, c.Velocity
	yaw, pitch, grounded := c.Yaw, c.Pitch, c.Grounded
	return messages.CharacterDiff{
		ClientID: c.ClientID,
		Position: &pos,
		Velocity: &vel,
		Yaw:      &yaw,
		Pitch:    &pitch,
		Grounded: &grounded,
	}
}

// Diff encodes the fields of c that differ from older. Comparison is exact.
func (c Character) Diff(older Character) messages.CharacterDiff {
	d := messages.CharacterDiff{ClientID: c.ClientID}
	if c.Position != older.Position {
		pos := c.Position
		d.Position = &pos
	}
	if c.Velocity != older.Velocity {
		vel := c.Velocity
		d.Velocity = &vel
	}
	if c.Yaw != older.Yaw {
		yaw := c.Yaw
		d.Yaw = &yaw
	}
	if c.Pitch != older.Pitch {
		pitch := c.Pitch
		d.Pitch = &pitch
	}
	if c.Grounded != older.Grounded {
		grounded := c.Grounded
		d.Grounded = &grounded
	}
	return d
}

// Full builds a from-scratch diff of the snapshot.
func (s *Snapshot) Full() messages.SnapshotDiff {
	diff := messages.SnapshotDiff{ID: s.ID, Full: true}
	for _, c := range s.Characters {
		diff.Characters = append(diff.Characters, c.Full())
	}
	return diff
}

// Diff builds the changes from older to s. Characters absent from older are
// sent in full, unchanged ones are omitted and characters gone since older
// are listed as removed.
func (s *Snapshot) Diff(older *Snapshot) messages.SnapshotDiff {
	diff := messages.SnapshotDiff{ID: s.ID}
	for _, c := range s.Characters {
		prev, ok := older.Find(c.ClientID)
		if !ok {
			diff.Characters = append(diff.Characters, c.Full())
			continue
		}
		if d := c.Diff(prev); !d.Empty() {
			diff.Characters = append(diff.Characters, d)
		}
	}
	for _, prev := range older.Characters {
		if _, ok := s.Find(prev.ClientID); !ok {
			diff.Removed = append(diff.Removed, prev.ClientID)
		}
	}
	return diff
}
