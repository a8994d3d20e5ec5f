package systems

import (
	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// Smoother moves rendered poses toward the simulation every render frame.
type Smoother struct {
	cfg  config.MultiplayerConfig
	ease ease.TweenFunc
}

// NewSmoother creates a smoother. The correction rate is eased between the
// factor bounds with an in-out quadratic curve.
func NewSmoother(cfg config.MultiplayerConfig) *Smoother {
	return &Smoother{cfg: cfg, ease: ease.InOutQuad}
}

// Update sets the visual pose of one character. overstep is the fraction of
// a fixed tick elapsed since the last simulation step and frameDt the render
// frame duration in seconds. A correcting visual keeps an offset from the
// interpolated simulation pose that shrinks every frame, so a moving
// character still converges.
func (s *Smoother) Update(body *netcomponents.BodyData, visual *netcomponents.VisualData, overstep, frameDt float64) {
	overstep = mgl64.Clamp(overstep, 0, 1)
	target := body.LerpPosition(overstep)

	if c := visual.Correction; c != nil {
		if !c.Started {
			c.Offset = c.From.Sub(target)
			c.Initial = c.Offset.Len()
			c.Started = true
		}
		c.Offset = c.Offset.Mul(1 - s.Alpha(c.Offset.Len(), frameDt))
		if residual := c.Offset.Len(); residual < s.cfg.SnapThreshold {
			visual.Position = target
			visual.Correction = nil
		} else {
			visual.Position = target.Add(c.Offset)
			if c.Initial > 0 {
				c.Progress = mgl64.Clamp(1-residual/c.Initial, 0, 1)
			}
		}
	} else {
		visual.Position = target
	}

	if s.cfg.InterpolateRotation {
		prev := movement.Orientation(body.PrevYaw, body.PrevPitch)
		visual.Rotation = mgl64.QuatSlerp(prev, body.State.Rotation(), overstep)
	} else {
		visual.Rotation = body.State.Rotation()
	}
}

// Alpha is the share of the remaining gap closed this frame. Small residuals
// retain more of the old pose (factor toward SmoothFactorMin); residuals past
// SmoothMinThreshold+SmoothRange close faster (toward SmoothFactorMax).
func (s *Smoother) Alpha(dist, frameDt float64) float64 {
	t := 0.0
	if s.cfg.SmoothRange > 0 {
		t = mgl64.Clamp((dist-s.cfg.SmoothMinThreshold)/s.cfg.SmoothRange, 0, 1)
	} else if dist > s.cfg.SmoothMinThreshold {
		t = 1
	}
	eased := float64(s.ease(float32(t), 0, 1, 1))
	factor := s.cfg.SmoothFactorMin + (s.cfg.SmoothFactorMax-s.cfg.SmoothFactorMin)*eased
	return mgl64.Clamp((1-factor)*s.cfg.SmoothSpeed*frameDt, 0, 1)
}
