package core

import (
	"slices"
	"testing"
	"testing/fstest"

	"github.com/automoto/boxman/assets"
	"github.com/go-gl/mathgl/mgl64"
)

func TestLoadAllServerLevels(t *testing.T) {
	levels, names, err := LoadAllServerLevels(assets.FS())
	if err != nil {
		t.Fatalf("LoadAllServerLevels: %v", err)
	}
	if !slices.Contains(names, assets.DefaultLevel) {
		t.Fatalf("names = %v", names)
	}
	if len(levels) != len(names) {
		t.Errorf("%d levels for %d names", len(levels), len(names))
	}

	arena := levels[assets.DefaultLevel]
	if arena.Collision == nil || len(arena.SpawnPoints) == 0 {
		t.Fatalf("arena = %+v", arena)
	}
	n := uint64(len(arena.SpawnPoints))
	if arena.Spawn(0) != arena.Spawn(n) {
		t.Error("spawn points not reused round-robin")
	}
	sp := arena.SpawnPoints[1%n]
	if got := arena.Spawn(1); got != (mgl64.Vec3{sp.X, sp.Y, sp.Z}) {
		t.Errorf("Spawn(1) = %v", got)
	}
}

func TestLoadAllServerLevelsEmpty(t *testing.T) {
	if _, _, err := LoadAllServerLevels(fstest.MapFS{}); err == nil {
		t.Error("loaded levels from an empty filesystem")
	}
}
