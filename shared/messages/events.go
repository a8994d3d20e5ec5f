package messages

import "github.com/go-gl/mathgl/mgl64"

// Welcome is sent to a client right after it joins and names its character.
type Welcome struct {
	ClientID uint64
	TickRate int
}

// PlayerJoined is broadcast when a client joins.
type PlayerJoined struct {
	ID   uint64
	Name string
}

// SpawnEntity is broadcast when a character enters the world.
type SpawnEntity struct {
	ClientID uint64
	Position mgl64.Vec3
	Yaw      float64
}

// DespawnEntity is broadcast when a character is removed.
type DespawnEntity struct {
	ClientID uint64
}
