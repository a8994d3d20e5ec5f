package messages

import (
	"github.com/automoto/boxman/shared/movement"
	"github.com/go-gl/mathgl/mgl64"
)

// PlayerInput is sent from client to server once per fixed tick with the
// player's movement intent. The client keeps a window of these for replay;
// fields tagged codec:"-" never leave the client.
type PlayerInput struct {
	ID         uint32     // strictly increasing, starts at 0
	SnapshotID *uint64    `codec:",omitempty"` // newest snapshot the client had processed
	Yaw        float64    // radians about +Y
	WishDir    mgl64.Vec2 // unit length or zero
	WishJump   bool
	Timestamp  float64 // client clock in seconds

	SendCount        uint32     `codec:"-"`
	PostMoveVelocity mgl64.Vec3 `codec:"-"`
	PostMovePosition mgl64.Vec3 `codec:"-"`
	PostMoveGrounded bool       `codec:"-"`
}

// NewPlayerInput creates a PlayerInput tagged with the last processed
// snapshot, or none.
func NewPlayerInput(id uint32, snapshotID *uint64) PlayerInput {
	in := PlayerInput{ID: id}
	if snapshotID != nil {
		ack := *snapshotID
		in.SnapshotID = &ack
	}
	return in
}

// Intent extracts the part of the input the velocity model reads.
func (in *PlayerInput) Intent() movement.Intent {
	return movement.Intent{Yaw: in.Yaw, WishDir: in.WishDir, WishJump: in.WishJump}
}

// RecordPostMove stores the predicted result of applying this input.
func (in *PlayerInput) RecordPostMove(s movement.State) {
	in.PostMovePosition = s.Position
	in.PostMoveVelocity = s.Velocity
	in.PostMoveGrounded = s.Grounded
}
