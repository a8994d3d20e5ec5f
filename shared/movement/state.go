// Package movement is the deterministic character model shared by client
// prediction and the authoritative server: the velocity model and the swept
// collision integrator.
package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind tells the client which characters it predicts.
type Kind uint8

const (
	KindRemote Kind = iota
	KindLocal
)

func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

var (
	Up    = mgl64.Vec3{0, 1, 0}
	Right = mgl64.Vec3{1, 0, 0}
)

// Params are the collision shape and gravity of a body.
type Params struct {
	Gravity float64
	Radius  float64
	Height  float64
	// MaxSlopeDegrees enables ground classification when non-zero.
	MaxSlopeDegrees float64
}

// Shape returns the collision shape described by the params.
func (p Params) Shape() Shape {
	return Shape{Radius: p.Radius, Height: p.Height}
}

// State is the simulated state of one character.
type State struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Grounded bool
	Kind     Kind
	Params   Params
}

// Rotation returns the orientation as a quaternion, yaw about +Y then pitch.
func (s State) Rotation() mgl64.Quat {
	return Orientation(s.Yaw, s.Pitch)
}

// Orientation builds a quaternion from a yaw/pitch pair.
func Orientation(yaw, pitch float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up).Mul(mgl64.QuatRotate(pitch, Right))
}

// Intent is the movement request of one tick.
type Intent struct {
	Yaw      float64
	WishDir  mgl64.Vec2
	WishJump bool
}

// WishDirection rotates a 2D input by yaw into a world-space direction on the
// XZ plane. Input X maps to world X and input Y to world Z.
func WishDirection(yaw float64, wish mgl64.Vec2) mgl64.Vec3 {
	dir := mgl64.QuatRotate(yaw, Up).Rotate(mgl64.Vec3{wish.X(), 0, wish.Y()})
	return normalizeOrZero(dir)
}

// NormalizeWish clamps a raw 2D input to unit length, leaving zero as zero.
func NormalizeWish(wish mgl64.Vec2) mgl64.Vec2 {
	l := wish.Len()
	if l == 0 || math.IsNaN(l) {
		return mgl64.Vec2{}
	}
	return wish.Mul(1 / l)
}

func normalizeOrZero(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l <= 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}
