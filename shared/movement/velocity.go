package movement

import (
	"github.com/automoto/boxman/config"
	"github.com/go-gl/mathgl/mgl64"
)

// Tuning holds the velocity model constants.
type Tuning struct {
	Speed              float64
	JumpImpulse        float64
	GroundFriction     float64
	AirFriction        float64
	GroundAcceleration float64
	AirAcceleration    float64
}

// TuningFromConfig converts the movement config section.
func TuningFromConfig(c config.MovementConfig) Tuning {
	return Tuning{
		Speed:              c.Speed,
		JumpImpulse:        c.JumpImpulse,
		GroundFriction:     c.GroundFriction,
		AirFriction:        c.AirFriction,
		GroundAcceleration: c.GroundAcceleration,
		AirAcceleration:    c.AirAcceleration,
	}
}

// ParamsFromConfig converts the character config section.
func ParamsFromConfig(c config.CharacterConfig) Params {
	return Params{
		Gravity:         c.Gravity,
		Radius:          c.Radius,
		Height:          c.Height,
		MaxSlopeDegrees: c.MaxSlopeDegrees,
	}
}

// Apply returns the velocity after friction, acceleration toward the wish
// direction and an optional jump. It never touches position or orientation.
func (t Tuning) Apply(velocity mgl64.Vec3, grounded bool, in Intent, dt float64) mgl64.Vec3 {
	drag, accel := t.AirFriction, t.AirAcceleration
	if grounded {
		drag, accel = t.GroundFriction, t.GroundAcceleration
	}

	velocity = friction(velocity, drag, dt)

	wish := WishDirection(in.Yaw, in.WishDir)
	velocity = velocity.Add(accelerate(wish, t.Speed, velocity.Dot(wish), accel, dt))

	if in.WishJump && grounded {
		velocity[1] += t.JumpImpulse
	}
	return velocity
}

func friction(velocity mgl64.Vec3, drag, dt float64) mgl64.Vec3 {
	speed := velocity.Len()
	if speed == 0 {
		return velocity
	}
	newSpeed := speed - speed*drag*dt
	if newSpeed < 0 {
		newSpeed = 0
	}
	return velocity.Mul(newSpeed / speed)
}

func accelerate(wish mgl64.Vec3, wishSpeed, currentSpeed, accel, dt float64) mgl64.Vec3 {
	add := wishSpeed - currentSpeed
	if add <= 0 {
		return mgl64.Vec3{}
	}
	step := accel * dt * wishSpeed
	if step > add {
		step = add
	}
	return wish.Mul(step)
}
