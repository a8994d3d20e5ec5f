package scenes

import (
	"fmt"
	"image/color"

	"github.com/automoto/boxman/shared/leveldata"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/systems"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	floorColor  = color.RGBA{0x20, 0x22, 0x28, 0xff}
	solidColor  = color.RGBA{0x5a, 0x5f, 0x6b, 0xff}
	rampColor   = color.RGBA{0x3d, 0x6b, 0x8c, 0xff}
	localColor  = color.RGBA{0x4c, 0xe0, 0x6a, 0xff}
	headingLine = color.RGBA{0xff, 0xff, 0xff, 0xff}
	simColor    = color.RGBA{0xff, 0x60, 0x60, 0xff}

	playerColors = []color.RGBA{
		{0xe0, 0x9a, 0x3a, 0xff},
		{0xd0, 0x4c, 0xd8, 0xff},
		{0x4c, 0xb8, 0xe0, 0xff},
		{0xe0, 0xd8, 0x4c, 0xff},
	}
)

// TopDown projects the XZ plane onto the screen. World Z grows downwards.
type TopDown struct {
	Scale float64 // pixels per meter
	Width float64
	Depth float64
}

// Project returns the screen position of a world point.
func (v TopDown) Project(p mgl64.Vec3) (float32, float32) {
	return float32(p.X() * v.Scale), float32(p.Z() * v.Scale)
}

// DrawLevel draws the floor, walls and ramps. Walls and ramps that stand
// above the floor are drawn lighter the higher they reach.
func DrawLevel(screen *ebiten.Image, view TopDown, level *leveldata.CollisionData) {
	vector.FillRect(screen, 0, 0, float32(view.Width*view.Scale), float32(view.Depth*view.Scale), floorColor, false)
	for _, s := range level.Solids {
		if s.Top <= 0 {
			continue
		}
		drawBox(screen, view, s.MinX, s.MinZ, s.MaxX, s.MaxZ, shade(solidColor, s.Top))
	}
	for _, r := range level.Ramps {
		drawBox(screen, view, r.MinX, r.MinZ, r.MaxX, r.MaxZ, shade(rampColor, r.High))
	}
}

func drawBox(screen *ebiten.Image, view TopDown, minX, minZ, maxX, maxZ float64, c color.RGBA) {
	x, y := view.Project(mgl64.Vec3{minX, 0, minZ})
	w := float32((maxX - minX) * view.Scale)
	h := float32((maxZ - minZ) * view.Scale)
	vector.FillRect(screen, x, y, w, h, c, false)
}

func shade(c color.RGBA, height float64) color.RGBA {
	boost := uint8(max(0, min(height*12, 60)))
	return color.RGBA{c.R + boost, c.G + boost, c.B + boost, c.A}
}

// DrawCharacters draws every character at its visual pose with a heading
// line. With debug set, the simulated position is outlined too.
func DrawCharacters(screen *ebiten.Image, view TopDown, sim *systems.ClientSim, debug bool) {
	colorIndex := 0
	sim.Characters(func(ch *netcomponents.CharacterData, body *netcomponents.BodyData, visual *netcomponents.VisualData) {
		var c color.RGBA
		if body.State.Kind == movement.KindLocal {
			c = localColor
		} else {
			c = playerColors[colorIndex%len(playerColors)]
			colorIndex++
		}

		size := float32(2 * body.State.Params.Radius * view.Scale)
		x, y := view.Project(visual.Position)
		vector.FillRect(screen, x-size/2, y-size/2, size, size, c, false)

		heading := visual.Rotation.Rotate(mgl64.Vec3{0, 0, -1}).Mul(body.State.Params.Radius * 1.5)
		hx, hy := view.Project(visual.Position.Add(heading))
		vector.StrokeLine(screen, x, y, hx, hy, 2, headingLine, false)

		if debug {
			sx, sy := view.Project(body.State.Position)
			vector.StrokeRect(screen, sx-size/2, sy-size/2, size, size, 1, simColor, false)
		}

		name := sim.Name(ch.ClientID)
		if name == "" {
			name = fmt.Sprintf("#%d", ch.ClientID)
		}
		ebitenutil.DebugPrintAt(screen, name, int(x)-len(name)*3, int(y-size/2)-16)
	})
}

// DrawNetworkHUD prints connection and reconciliation counters.
func DrawNetworkHUD(screen *ebiten.Image, status string, sim *systems.ClientSim) {
	info := fmt.Sprintf("%s  TPS %.0f  FPS %.0f", status, ebiten.ActualTPS(), ebiten.ActualFPS())
	if last := sim.LastSnapshot(); last != nil {
		info += fmt.Sprintf("\nsnapshot %d  pending inputs %d", *last, sim.History().Len())
	}
	st := sim.Stats
	info += fmt.Sprintf("\ncorrections %d  last divergence %.4f\nstale diffs %d  decode errors %d",
		st.Corrections, st.LastDivergent, st.StaleDiffs, st.DecodeErrors)
	if p, ok := sim.CorrectionProgress(); ok {
		info += fmt.Sprintf("\nsmoothing %3.0f%%", p*100)
	}
	ebitenutil.DebugPrintAt(screen, info, 4, 4)
}
