// Package collision implements the sweep query used by the movement
// integrator. Static level geometry and character bodies are indexed in a
// resolv space over the XZ plane; exact hits are computed in 3D.
package collision

import (
	"cmp"
	"math"
	"slices"

	"github.com/automoto/boxman/shared/leveldata"
	"github.com/automoto/boxman/shared/movement"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
)

const (
	tagCollider = "collider"
	tagProbe    = "probe"

	// resolv works in integer cells; world meters are scaled up.
	unitsPerMeter = 4.0
	cellSize      = 8

	// margin added around the swept footprint before the broadphase query
	queryMargin = 0.05
)

type refKind uint8

const (
	refBox refKind = iota
	refRamp
	refBody
)

type ref struct {
	kind  refKind
	index int
	id    uint64
}

func compareRefs(a, b ref) int {
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.index, b.index); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

type body struct {
	center mgl64.Vec3
	half   mgl64.Vec3
	obj    *resolv.Object
}

// World is the collision scene of one simulation. It is not safe for
// concurrent use; each role owns its own world.
type World struct {
	minX, minZ float64
	maxX, maxZ float64

	space *resolv.Space
	probe *resolv.Object

	boxes  []Box
	ramps  []Ramp
	bodies map[uint64]*body

	scratch []ref
}

// NewWorld creates an empty world covering the XZ rectangle [min, max].
// Geometry outside it still collides but skips the broadphase.
func NewWorld(minX, minZ, maxX, maxZ float64) *World {
	w := &World{
		minX:   minX,
		minZ:   minZ,
		maxX:   maxX,
		maxZ:   maxZ,
		bodies: make(map[uint64]*body),
	}
	spaceW := int(math.Ceil((maxX-minX)*unitsPerMeter)) + cellSize
	spaceH := int(math.Ceil((maxZ-minZ)*unitsPerMeter)) + cellSize
	w.space = resolv.NewSpace(spaceW, spaceH, cellSize, cellSize)
	w.probe = resolv.NewObject(0, 0, 1, 1, tagProbe)
	w.space.Add(w.probe)
	return w
}

// FromLevel builds a world holding a level's static geometry.
func FromLevel(data *leveldata.CollisionData) *World {
	w := NewWorld(0, 0, data.Width, data.Depth)
	for _, s := range data.Solids {
		w.AddBox(BoxFromSolid(s))
	}
	for _, r := range data.Ramps {
		w.AddRamp(RampFromData(r))
	}
	return w
}

func (w *World) toSpace(x, z float64) (float64, float64) {
	return (x - w.minX) * unitsPerMeter, (z - w.minZ) * unitsPerMeter
}

func (w *World) newObject(min, max mgl64.Vec3, r ref) *resolv.Object {
	x, y := w.toSpace(min.X(), min.Z())
	obj := resolv.NewObject(x, y, (max.X()-min.X())*unitsPerMeter, (max.Z()-min.Z())*unitsPerMeter, tagCollider)
	obj.Data = r
	w.space.Add(obj)
	return obj
}

// AddBox registers a static box.
func (w *World) AddBox(b Box) {
	w.newObject(b.Min, b.Max, ref{kind: refBox, index: len(w.boxes)})
	w.boxes = append(w.boxes, b)
}

// AddRamp registers a static ramp.
func (w *World) AddRamp(r Ramp) {
	min, max := r.bounds()
	w.newObject(min, max, ref{kind: refRamp, index: len(w.ramps)})
	w.ramps = append(w.ramps, r)
}

// SetBody inserts or moves the dynamic body registered under id.
func (w *World) SetBody(id uint64, center mgl64.Vec3, shape movement.Shape) {
	half := shape.HalfExtents()
	b, ok := w.bodies[id]
	if !ok {
		b = &body{}
		b.obj = w.newObject(center.Sub(half), center.Add(half), ref{kind: refBody, id: id})
		w.bodies[id] = b
	}
	b.center = center
	b.half = half
	b.obj.X, b.obj.Y = w.toSpace(center.X()-half.X(), center.Z()-half.Z())
	b.obj.W = 2 * half.X() * unitsPerMeter
	b.obj.H = 2 * half.Z() * unitsPerMeter
	b.obj.Update()
}

// RemoveBody drops a dynamic body. Unknown ids are ignored.
func (w *World) RemoveBody(id uint64) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	w.space.Remove(b.obj)
	delete(w.bodies, id)
}

// HasBody reports whether id is registered.
func (w *World) HasBody(id uint64) bool {
	_, ok := w.bodies[id]
	return ok
}

// Sweep implements movement.Sweeper. The rotation is ignored; bodies are
// axis-aligned.
func (w *World) Sweep(shape movement.Shape, origin mgl64.Vec3, _ mgl64.Quat, dir mgl64.Vec3, maxDist float64, exclude uint64) (movement.Hit, bool) {
	half := shape.HalfExtents()
	end := origin.Add(dir.Mul(maxDist))
	lo := mgl64.Vec3{math.Min(origin.X(), end.X()), 0, math.Min(origin.Z(), end.Z())}
	hi := mgl64.Vec3{math.Max(origin.X(), end.X()), 0, math.Max(origin.Z(), end.Z())}
	lo = lo.Sub(half).Sub(mgl64.Vec3{queryMargin, 0, queryMargin})
	hi = hi.Add(half).Add(mgl64.Vec3{queryMargin, 0, queryMargin})

	best := movement.Hit{Distance: math.Inf(1)}
	found := false
	for _, r := range w.candidates(lo, hi) {
		var (
			t      float64
			normal mgl64.Vec3
			ok     bool
		)
		switch r.kind {
		case refBox:
			b := w.boxes[r.index]
			t, normal, ok = sweepAABB(b.Min.Sub(half), b.Max.Add(half), origin, dir, maxDist)
		case refRamp:
			t, normal, ok = sweepRamp(w.ramps[r.index], half, origin, dir, maxDist)
		case refBody:
			if r.id == exclude {
				continue
			}
			b := w.bodies[r.id]
			ext := b.half.Add(half)
			t, normal, ok = sweepAABB(b.center.Sub(ext), b.center.Add(ext), origin, dir, maxDist)
		}
		if !ok || t >= best.Distance {
			continue
		}
		center := origin.Add(dir.Mul(t))
		best = movement.Hit{
			Distance: t,
			Point:    center.Sub(supportOffset(normal, half)),
			Normal:   normal,
		}
		found = true
	}
	return best, found
}

// candidates returns colliders whose footprint overlaps [lo, hi] in XZ, in a
// stable order so client and server resolve ties identically.
func (w *World) candidates(lo, hi mgl64.Vec3) []ref {
	refs := w.scratch[:0]
	if lo.X() < w.minX || lo.Z() < w.minZ || hi.X() > w.maxX || hi.Z() > w.maxZ {
		refs = w.all(refs)
	} else {
		w.probe.X, w.probe.Y = w.toSpace(lo.X(), lo.Z())
		w.probe.W = (hi.X() - lo.X()) * unitsPerMeter
		w.probe.H = (hi.Z() - lo.Z()) * unitsPerMeter
		w.probe.Update()
		if check := w.probe.Check(0, 0, tagCollider); check != nil {
			for _, obj := range check.Objects {
				if r, ok := obj.Data.(ref); ok {
					refs = append(refs, r)
				}
			}
		}
	}
	slices.SortFunc(refs, compareRefs)
	refs = slices.Compact(refs)
	w.scratch = refs
	return refs
}

func (w *World) all(refs []ref) []ref {
	for i := range w.boxes {
		refs = append(refs, ref{kind: refBox, index: i})
	}
	for i := range w.ramps {
		refs = append(refs, ref{kind: refRamp, index: i})
	}
	for id := range w.bodies {
		refs = append(refs, ref{kind: refBody, id: id})
	}
	return refs
}
