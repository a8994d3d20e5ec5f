package scenes

import (
	"math"

	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/shared/movement"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
)

// InputReader turns keyboard and gamepad state into one movement intent per
// tick. It owns the view yaw, which only the local player turns.
type InputReader struct {
	Yaw       float64
	lookSpeed float64
	gamepads  []ebiten.GamepadID
}

func NewInputReader(yaw float64) *InputReader {
	return &InputReader{Yaw: yaw, lookSpeed: config.Movement.LookSpeed}
}

// Read polls the devices and returns the intent for a tick of length dt.
func (r *InputReader) Read(dt float64) movement.Intent {
	r.gamepads = ebiten.AppendGamepadIDs(r.gamepads[:0])
	stick := r.stick()
	return r.intent(actionPressed(r.gamepads), stick, dt)
}

func (r *InputReader) intent(pressed func(ActionID) bool, stick mgl64.Vec2, dt float64) movement.Intent {
	turn := axis(pressed(ActionTurnLeft), pressed(ActionTurnRight))
	r.Yaw = wrapAngle(r.Yaw - turn*r.lookSpeed*dt)

	wish := mgl64.Vec2{
		axis(pressed(ActionStrafeLeft), pressed(ActionStrafeRight)),
		axis(pressed(ActionForward), pressed(ActionBack)),
	}
	if wish == (mgl64.Vec2{}) {
		wish = stick
	}

	return movement.Intent{
		Yaw:      r.Yaw,
		WishDir:  movement.NormalizeWish(wish),
		WishJump: pressed(ActionJump),
	}
}

// stick returns the left analog stick of the first gamepad, zeroed inside the
// deadzone.
func (r *InputReader) stick() mgl64.Vec2 {
	if len(r.gamepads) == 0 {
		return mgl64.Vec2{}
	}
	id := r.gamepads[0]
	v := mgl64.Vec2{
		ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal),
		ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical),
	}
	if v.Len() < Input.AnalogDeadzone {
		return mgl64.Vec2{}
	}
	return v
}

// axis maps a pair of opposing buttons to -1, 0 or 1.
func axis(neg, pos bool) float64 {
	switch {
	case neg && !pos:
		return -1
	case pos && !neg:
		return 1
	}
	return 0
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func actionPressed(gamepads []ebiten.GamepadID) func(ActionID) bool {
	return func(action ActionID) bool {
		binding := Input.Bindings[action]
		if anyKeyPressed(binding.Keys) {
			return true
		}
		for _, id := range gamepads {
			for _, b := range binding.StandardGamepadButtons {
				if ebiten.IsStandardGamepadButtonPressed(id, b) {
					return true
				}
			}
		}
		return false
	}
}

func anyKeyPressed(keys []ebiten.Key) bool {
	for _, k := range keys {
		if ebiten.IsKeyPressed(k) {
			return true
		}
	}
	return false
}
