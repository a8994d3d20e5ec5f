package core

import (
	"fmt"
	"io/fs"

	"github.com/automoto/boxman/shared/collision"
	"github.com/automoto/boxman/shared/leveldata"
	"github.com/go-gl/mathgl/mgl64"
)

// ServerLevel holds the server's collision world and spawn data for a level.
type ServerLevel struct {
	Name        string
	Collision   *collision.World
	SpawnPoints []leveldata.SpawnPoint
	Width       float64
	Depth       float64
}

// NewServerLevel builds a collision world from parsed collision data.
func NewServerLevel(data *leveldata.CollisionData) *ServerLevel {
	logger.Info("loaded level",
		"name", data.Name,
		"solids", len(data.Solids),
		"ramps", len(data.Ramps),
		"spawns", len(data.SpawnPoints),
		"size", fmt.Sprintf("%gx%g", data.Width, data.Depth))

	return &ServerLevel{
		Name:        data.Name,
		Collision:   collision.FromLevel(data),
		SpawnPoints: data.SpawnPoints,
		Width:       data.Width,
		Depth:       data.Depth,
	}
}

// Spawn returns the spawn position for the n-th joining player. Spawn points
// are reused round-robin.
func (l *ServerLevel) Spawn(n uint64) mgl64.Vec3 {
	if len(l.SpawnPoints) == 0 {
		return mgl64.Vec3{0, 1, 0}
	}
	sp := l.SpawnPoints[n%uint64(len(l.SpawnPoints))]
	return mgl64.Vec3{sp.X, sp.Y, sp.Z}
}

// LoadAllServerLevels loads all .tmx levels under levels/ in fsys, returning
// a map of ServerLevel keyed by stem name plus a sorted name list.
func LoadAllServerLevels(fsys fs.FS) (map[string]*ServerLevel, []string, error) {
	collisionMap, names, err := leveldata.LoadAllLevels(fsys, "levels")
	if err != nil {
		return nil, nil, fmt.Errorf("load all levels: %w", err)
	}

	levels := make(map[string]*ServerLevel, len(names))
	for _, name := range names {
		levels[name] = NewServerLevel(collisionMap[name])
	}

	return levels, names, nil
}
