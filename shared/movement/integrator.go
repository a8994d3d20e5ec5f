package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxPasses bounds the slide iterations of one tick. Leftover motion is
	// dropped.
	MaxPasses = 4
	// SkinWidth is the nudge away from a hit surface after each pass.
	SkinWidth = 0.001
	// GroundMargin keeps a grounded body hovering just above the floor.
	GroundMargin = 0.001
)

// Integrate advances a body by one tick: gravity, then up to MaxPasses swept
// slides through sw. Only position, velocity and Grounded change. A nil
// sweeper is open space.
func Integrate(s State, dt float64, sw Sweeper, self uint64) State {
	s.Velocity[1] -= s.Params.Gravity * dt

	shape := s.Params.Shape()
	rot := mgl64.QuatIdent()
	velocity := s.Velocity
	remaining := velocity.Mul(dt)
	grounded := false

	for pass := 0; pass < MaxPasses; pass++ {
		dist := remaining.Len()
		dir := normalizeOrZero(remaining)
		if dir == (mgl64.Vec3{}) || sw == nil {
			s.Position = s.Position.Add(remaining)
			break
		}

		hit, ok := sw.Sweep(shape, s.Position, rot, dir, dist, self)
		if !ok {
			s.Position = s.Position.Add(remaining)
			break
		}

		travel := math.Max(0, math.Min(hit.Distance, dist))
		s.Position = s.Position.Add(dir.Mul(travel))
		s.Position = s.Position.Add(hit.Normal.Mul(SkinWidth))

		remaining = remaining.Sub(dir.Mul(travel))
		velocity = velocity.Sub(hit.Normal.Mul(velocity.Dot(hit.Normal)))
		remaining = remaining.Sub(hit.Normal.Mul(remaining.Dot(hit.Normal)))

		if !grounded && s.Params.MaxSlopeDegrees > 0 && Walkable(hit.Normal, s.Params.MaxSlopeDegrees) {
			s.Position[1] = hit.Point.Y() + shape.Height/2 + GroundMargin
			grounded = true
		}
	}

	s.Velocity = velocity
	s.Grounded = grounded
	return s
}

// Walkable reports whether a surface normal is within maxSlopeDegrees of up.
func Walkable(normal mgl64.Vec3, maxSlopeDegrees float64) bool {
	angle := math.Acos(mgl64.Clamp(normal.Dot(Up), -1, 1))
	return angle < mgl64.DegToRad(maxSlopeDegrees)
}
