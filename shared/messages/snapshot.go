package messages

import "github.com/go-gl/mathgl/mgl64"

// SnapshotDiff carries the world state of one server tick relative to the
// snapshot the receiving client last acknowledged. When Full is set the diff
// was built from scratch and every live character is present.
type SnapshotDiff struct {
	ID           uint64
	AckedInputID *uint32 `codec:",omitempty"` // newest input the server consumed for this client
	Full         bool
	Characters   []CharacterDiff
	Removed      []uint64
}

// CharacterDiff holds the fields of one character that changed. Nil fields
// are unchanged.
type CharacterDiff struct {
	ClientID uint64
	Position *mgl64.Vec3 `codec:",omitempty"`
	Velocity *mgl64.Vec3 `codec:",omitempty"`
	Yaw      *float64    `codec:",omitempty"`
	Pitch    *float64    `codec:",omitempty"`
	Grounded *bool       `codec:",omitempty"`
}

// Empty reports whether no field changed.
func (d *CharacterDiff) Empty() bool {
	return d.Position == nil && d.Velocity == nil && d.Yaw == nil && d.Pitch == nil && d.Grounded == nil
}

// Character returns the entry for a client, if present.
func (d *SnapshotDiff) Character(clientID uint64) (*CharacterDiff, bool) {
	for i := range d.Characters {
		if d.Characters[i].ClientID == clientID {
			return &d.Characters[i], true
		}
	}
	return nil, false
}
