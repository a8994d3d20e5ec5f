// Package netcomponents holds the donburi components of networked
// characters. Client and server worlds share them.
package netcomponents

import (
	"github.com/automoto/boxman/shared/movement"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// CharacterData identifies the client that owns a character.
type CharacterData struct {
	ClientID uint64
	Name     string
}

var Character = donburi.NewComponentType[CharacterData]()

// BodyData is the simulated state of a character plus the pose it had at the
// start of the current tick, for render interpolation.
type BodyData struct {
	State        movement.State
	PrevPosition mgl64.Vec3
	PrevYaw      float64
	PrevPitch    float64
}

var Body = donburi.NewComponentType[BodyData]()

// BeginTick remembers the current pose as the previous one.
func (b *BodyData) BeginTick() {
	b.PrevPosition = b.State.Position
	b.PrevYaw = b.State.Yaw
	b.PrevPitch = b.State.Pitch
}

// Teleport moves the body without interpolating from the old pose.
func (b *BodyData) Teleport(pos mgl64.Vec3) {
	b.State.Position = pos
	b.PrevPosition = pos
}

// LerpPosition interpolates between the previous and current position.
func (b *BodyData) LerpPosition(t float64) mgl64.Vec3 {
	return LerpVec3(b.PrevPosition, b.State.Position, t)
}

// CorrectionData is attached while the rendered pose blends back onto the
// simulation after a reconciliation.
type CorrectionData struct {
	From     mgl64.Vec3 // rendered position when the correction started
	Started  bool       // Offset has been measured against the simulation
	Offset   mgl64.Vec3 // remaining visual offset from the simulated pose
	Initial  float64    // length of the offset when measured
	Progress float64    // share of the initial offset closed, 0..1
}

// VisualData is the rendered pose of a character.
type VisualData struct {
	Position   mgl64.Vec3
	Rotation   mgl64.Quat
	Correction *CorrectionData
}

var Visual = donburi.NewComponentType[VisualData]()

// LerpVec3 interpolates between two vectors. The endpoints are returned
// exactly for t of 0 and 1.
func LerpVec3(from, to mgl64.Vec3, t float64) mgl64.Vec3 {
	return from.Mul(1 - t).Add(to.Mul(t))
}
