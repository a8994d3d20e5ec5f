package collision

import (
	"math"

	"github.com/automoto/boxman/shared/leveldata"
	"github.com/go-gl/mathgl/mgl64"
)

// Box is a static axis-aligned solid.
type Box struct {
	Min, Max mgl64.Vec3
}

// BoxFromSolid converts level data into a box.
func BoxFromSolid(s leveldata.Solid) Box {
	return Box{
		Min: mgl64.Vec3{s.MinX, s.Bottom, s.MinZ},
		Max: mgl64.Vec3{s.MaxX, s.Top, s.MaxZ},
	}
}

// Ramp is a one-sided sloped surface clipped to an XZ footprint. Only its top
// face collides; the level is expected to close its sides.
type Ramp struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
	Low, High  float64
	Rise       leveldata.Direction
}

// RampFromData converts level data into a ramp.
func RampFromData(r leveldata.Ramp) Ramp {
	return Ramp(r)
}

// Plane returns the unit normal of the ramp surface and a point on it.
func (r Ramp) Plane() (normal, point mgl64.Vec3) {
	rise := r.High - r.Low
	switch r.Rise {
	case leveldata.RiseNegX:
		run := r.MaxX - r.MinX
		return mgl64.Vec3{rise, run, 0}.Normalize(), mgl64.Vec3{r.MaxX, r.Low, r.MinZ}
	case leveldata.RisePosZ:
		run := r.MaxZ - r.MinZ
		return mgl64.Vec3{0, run, -rise}.Normalize(), mgl64.Vec3{r.MinX, r.Low, r.MinZ}
	case leveldata.RiseNegZ:
		run := r.MaxZ - r.MinZ
		return mgl64.Vec3{0, run, rise}.Normalize(), mgl64.Vec3{r.MinX, r.Low, r.MaxZ}
	default:
		run := r.MaxX - r.MinX
		return mgl64.Vec3{-rise, run, 0}.Normalize(), mgl64.Vec3{r.MinX, r.Low, r.MinZ}
	}
}

func (r Ramp) bounds() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{r.MinX, r.Low, r.MinZ}, mgl64.Vec3{r.MaxX, r.High, r.MaxZ}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// supportOffset is the vertex of a box with half extents h that lies
// furthest against normal n.
func supportOffset(n, h mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{sign(n.X()) * h.X(), sign(n.Y()) * h.Y(), sign(n.Z()) * h.Z()}
}

// sweepAABB casts a point along dir against box [min,max] already grown by
// the moving shape. A start inside the box reports a zero-distance hit on the
// nearest face unless the motion leaves through it.
func sweepAABB(min, max, origin, dir mgl64.Vec3, maxDist float64) (float64, mgl64.Vec3, bool) {
	inside := true
	for i := 0; i < 3; i++ {
		if origin[i] <= min[i] || origin[i] >= max[i] {
			inside = false
			break
		}
	}
	if inside {
		return escapeFace(min, max, origin, dir)
	}

	tEnter, tExit := math.Inf(-1), math.Inf(1)
	var normal mgl64.Vec3
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < parallelEpsilon {
			if origin[i] <= min[i] || origin[i] >= max[i] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (min[i] - origin[i]) * inv
		t2 := (max[i] - origin[i]) * inv
		face := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			face = 1
		}
		if t1 > tEnter {
			tEnter = t1
			normal = mgl64.Vec3{}
			normal[i] = face
		}
		if t2 < tExit {
			tExit = t2
		}
	}

	if tEnter > tExit || tExit <= 0 || tEnter > maxDist || tEnter < 0 {
		return 0, mgl64.Vec3{}, false
	}
	return tEnter, normal, true
}

func escapeFace(min, max, origin, dir mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	best := math.Inf(1)
	var normal mgl64.Vec3
	for i := 0; i < 3; i++ {
		if d := origin[i] - min[i]; d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[i] = -1
		}
		if d := max[i] - origin[i]; d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[i] = 1
		}
	}
	if dir.Dot(normal) >= 0 {
		return 0, mgl64.Vec3{}, false
	}
	return 0, normal, true
}

// sweepRamp casts a box with half extents h against the ramp surface.
func sweepRamp(r Ramp, h, origin, dir mgl64.Vec3, maxDist float64) (float64, mgl64.Vec3, bool) {
	n, p := r.Plane()
	rate := n.Dot(dir)
	if rate >= 0 {
		return 0, mgl64.Vec3{}, false
	}
	// center below the surface: approaching from underneath
	height := n.Dot(origin.Sub(p))
	if height < 0 {
		return 0, mgl64.Vec3{}, false
	}
	reach := math.Abs(n.X())*h.X() + math.Abs(n.Y())*h.Y() + math.Abs(n.Z())*h.Z()
	t := math.Max(0, (height-reach)/-rate)
	if t > maxDist {
		return 0, mgl64.Vec3{}, false
	}

	contact := origin.Add(dir.Mul(t)).Sub(supportOffset(n, h))
	if contact.X() < r.MinX || contact.X() > r.MaxX || contact.Z() < r.MinZ || contact.Z() > r.MaxZ {
		return 0, mgl64.Vec3{}, false
	}
	return t, n, true
}

const parallelEpsilon = 1e-12
