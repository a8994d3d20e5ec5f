// Package leveldata provides TMX level parsing shared between client and server.
// The level types are plain data with no engine dependencies.
//
// Maps are authored top-down: the Tiled X axis is world X, the Tiled Y axis is
// world Z and one tile is one meter. Heights come from object properties.
package leveldata

// CollisionData holds all collision-relevant data parsed from a TMX level file.
type CollisionData struct {
	Name        string
	Solids      []Solid
	Ramps       []Ramp
	SpawnPoints []SpawnPoint
	Width       float64 // world X extent in meters
	Depth       float64 // world Z extent in meters
}

// Solid is an axis-aligned box.
type Solid struct {
	MinX, MinZ  float64
	MaxX, MaxZ  float64
	Bottom, Top float64
}

// Ramp is a sloped surface over a rectangular footprint, rising from Low to
// High along Rise.
type Ramp struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
	Low, High  float64
	Rise       Direction
}

// Direction is the axis a ramp climbs along.
type Direction string

const (
	RisePosX Direction = "+x"
	RiseNegX Direction = "-x"
	RisePosZ Direction = "+z"
	RiseNegZ Direction = "-z"
)

// Valid reports whether d names a known direction.
func (d Direction) Valid() bool {
	switch d {
	case RisePosX, RiseNegX, RisePosZ, RiseNegZ:
		return true
	}
	return false
}

// SpawnPoint represents a player spawn location.
type SpawnPoint struct {
	X, Y, Z float64
	Index   int
}
