package movement

import "github.com/go-gl/mathgl/mgl64"

// Shape is the collision volume of a character: an axis-aligned box with
// half extents (Radius, Height/2, Radius) around the body center.
type Shape struct {
	Radius float64
	Height float64
}

// HalfExtents returns the box half sizes on each axis.
func (s Shape) HalfExtents() mgl64.Vec3 {
	return mgl64.Vec3{s.Radius, s.Height / 2, s.Radius}
}

// Hit describes the first contact of a sweep. Point is the contact point on
// the swept shape and Normal the unit surface normal facing the shape.
type Hit struct {
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// Sweeper casts a shape through the world. dir must be unit length. Bodies
// registered under exclude are ignored.
type Sweeper interface {
	Sweep(shape Shape, origin mgl64.Vec3, rot mgl64.Quat, dir mgl64.Vec3, maxDist float64, exclude uint64) (Hit, bool)
}

// SweeperFunc adapts a function to the Sweeper interface.
type SweeperFunc func(shape Shape, origin mgl64.Vec3, rot mgl64.Quat, dir mgl64.Vec3, maxDist float64, exclude uint64) (Hit, bool)

func (f SweeperFunc) Sweep(shape Shape, origin mgl64.Vec3, rot mgl64.Quat, dir mgl64.Vec3, maxDist float64, exclude uint64) (Hit, bool) {
	return f(shape, origin, rot, dir, maxDist, exclude)
}
