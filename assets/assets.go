package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/automoto/boxman/shared/leveldata"
)

const levelsDir = "levels"

// DefaultLevel is loaded when no level is named.
const DefaultLevel = "arena"

var (
	//go:embed all:levels
	assetFS embed.FS
)

// FS exposes the embedded assets, rooted at the assets directory.
func FS() fs.FS {
	return assetFS
}

// LoadLevel parses the collision data of an embedded level by name.
func LoadLevel(name string) (*leveldata.CollisionData, error) {
	if name == "" {
		name = DefaultLevel
	}
	data, err := leveldata.LoadCollisionData(assetFS, path.Join(levelsDir, name+".tmx"))
	if err != nil {
		return nil, fmt.Errorf("level %q: %w", name, err)
	}
	return data, nil
}

// LevelNames lists the embedded levels in sorted order.
func LevelNames() ([]string, error) {
	_, names, err := leveldata.LoadAllLevels(assetFS, levelsDir)
	return names, err
}
