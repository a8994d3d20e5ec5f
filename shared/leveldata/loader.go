package leveldata

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lafriks/go-tiled"
)

// Object group names read from a map.
const (
	GroupSolids      = "Solids"
	GroupRamps       = "Ramps"
	GroupPlayerSpawn = "PlayerSpawn"
)

// DefaultSpawnHeight is used when a spawn point has no height property.
const DefaultSpawnHeight = 1.0

var (
	ErrNoSpawnPoints = errors.New("level has no spawn points")
	ErrBadSolid      = errors.New("solid top must be above bottom")
	ErrBadRamp       = errors.New("invalid ramp")
)

// LoadCollisionData parses a TMX file and returns its collision geometry and
// player spawn points. It takes an fs.FS so callers can pass embed.FS or
// os.DirFS.
func LoadCollisionData(fsys fs.FS, tmxPath string) (*CollisionData, error) {
	levelMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	// One tile is one meter.
	tileW := float64(levelMap.TileWidth)
	tileH := float64(levelMap.TileHeight)
	data := &CollisionData{
		Name:  strings.TrimSuffix(filepath.Base(tmxPath), ".tmx"),
		Width: float64(levelMap.Width),
		Depth: float64(levelMap.Height),
	}

	for _, og := range levelMap.ObjectGroups {
		switch og.Name {
		case GroupSolids:
			for _, o := range og.Objects {
				s := Solid{
					MinX:   o.X / tileW,
					MinZ:   o.Y / tileH,
					MaxX:   (o.X + o.Width) / tileW,
					MaxZ:   (o.Y + o.Height) / tileH,
					Bottom: o.Properties.GetFloat("bottom"),
					Top:    o.Properties.GetFloat("top"),
				}
				if s.Top <= s.Bottom {
					return nil, fmt.Errorf("%s object %d: %w", tmxPath, o.ID, ErrBadSolid)
				}
				data.Solids = append(data.Solids, s)
			}
		case GroupRamps:
			for _, o := range og.Objects {
				r := Ramp{
					MinX: o.X / tileW,
					MinZ: o.Y / tileH,
					MaxX: (o.X + o.Width) / tileW,
					MaxZ: (o.Y + o.Height) / tileH,
					Low:  o.Properties.GetFloat("low"),
					High: o.Properties.GetFloat("high"),
					Rise: Direction(o.Properties.GetString("rise")),
				}
				if !r.Rise.Valid() || r.High <= r.Low || r.MaxX <= r.MinX || r.MaxZ <= r.MinZ {
					return nil, fmt.Errorf("%s object %d: %w", tmxPath, o.ID, ErrBadRamp)
				}
				data.Ramps = append(data.Ramps, r)
			}
		case GroupPlayerSpawn:
			for _, o := range og.Objects {
				y := DefaultSpawnHeight
				if o.Properties.Get("height") != nil {
					y = o.Properties.GetFloat("height")
				}
				data.SpawnPoints = append(data.SpawnPoints, SpawnPoint{
					X:     o.X / tileW,
					Y:     y,
					Z:     o.Y / tileH,
					Index: o.Properties.GetInt("spawnIndex"),
				})
			}
		}
	}

	if len(data.SpawnPoints) == 0 {
		return nil, fmt.Errorf("%s: %w", tmxPath, ErrNoSpawnPoints)
	}

	// Sort spawns by index, then left-to-right, for consistent assignment
	sort.SliceStable(data.SpawnPoints, func(i, j int) bool {
		a, b := data.SpawnPoints[i], data.SpawnPoints[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.X < b.X
	})

	return data, nil
}

// LoadAllLevels discovers all .tmx files in levelsDir within fsys, loads collision
// data for each, and returns a map keyed by stem name plus a sorted list of names.
func LoadAllLevels(fsys fs.FS, levelsDir string) (map[string]*CollisionData, []string, error) {
	pattern := levelsDir + "/*.tmx"
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no .tmx files found in %s", levelsDir)
	}

	levels := make(map[string]*CollisionData, len(matches))
	names := make([]string, 0, len(matches))

	for _, path := range matches {
		data, err := LoadCollisionData(fsys, path)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", path, err)
		}
		levels[data.Name] = data
		names = append(names, data.Name)
	}

	sort.Strings(names)
	return levels, names, nil
}
