package config

import "time"

// MovementConfig holds the character velocity model tuning. Client and server
// must agree on these values or prediction will diverge every tick.
type MovementConfig struct {
	Speed              float64 // target horizontal speed on the ground (m/s)
	JumpImpulse        float64 // vertical velocity set by a jump
	GroundFriction     float64 // drag coefficient while grounded
	AirFriction        float64 // drag coefficient while airborne
	GroundAcceleration float64
	AirAcceleration    float64
	LookSpeed          float64 // yaw change per second in the viewer (rad/s)
}

// CharacterConfig holds the body parameters every character spawns with.
type CharacterConfig struct {
	Gravity         float64
	Radius          float64
	Height          float64
	MaxSlopeDegrees float64 // 0 disables ground classification
}

// MultiplayerConfig holds reconciliation and visual smoothing tunables.
type MultiplayerConfig struct {
	// Divergence above which the client rewinds and resimulates.
	CorrectionThreshold float64

	SmoothMinThreshold float64 // residual where the blend starts to speed up
	SmoothRange        float64 // distance over which factor eases min -> max
	SmoothFactorMin    float64 // retention factor for small residuals
	SmoothFactorMax    float64 // retention factor for large residuals
	SmoothSpeed        float64 // frame-rate scale for the blend rate
	SnapThreshold      float64 // residual below which the visual snaps

	// Server-side views slerp rotation between ticks; clients apply it directly.
	InterpolateRotation bool
}

// ServerConfig holds dedicated server settings.
type ServerConfig struct {
	Port              int
	TickRate          int
	MaxPlayers        int
	JitterBufferDepth int     // queued inputs required before one is consumed
	InputQueueLimit   int     // oldest inputs are dropped past this
	InputRateLimit    float64 // inputs per second per client
	InputRateBurst    int
	SnapshotHistory   int
	ShutdownTimeout   time.Duration
}

// ClientConfig holds client settings. Address and Name are persisted.
type ClientConfig struct {
	Address      string
	Name         string
	TickRate     int
	InboxLimit   int // per-channel inbound queue size
	PixelsPerM   float64
	WindowWidth  int
	WindowHeight int
}

// Global configuration instances
var Movement MovementConfig
var Character CharacterConfig
var Multiplayer MultiplayerConfig
var Server ServerConfig
var Client ClientConfig

func init() {
	Movement = MovementConfig{
		Speed:              8.0,
		JumpImpulse:        3.8,
		GroundFriction:     14.0,
		AirFriction:        2.0,
		GroundAcceleration: 10.0,
		AirAcceleration:    2.0,
		LookSpeed:          2.5,
	}

	Character = CharacterConfig{
		Gravity:         9.81,
		Radius:          0.5,
		Height:          1.0,
		MaxSlopeDegrees: 44.0,
	}

	Multiplayer = MultiplayerConfig{
		CorrectionThreshold: 0.01,
		SmoothMinThreshold:  0.1,
		SmoothRange:         0.4,
		SmoothFactorMin:     0.8,
		SmoothFactorMax:     0.5,
		SmoothSpeed:         15.0,
		SnapThreshold:       0.005,
		InterpolateRotation: false,
	}

	Server = ServerConfig{
		Port:              7373,
		TickRate:          60,
		MaxPlayers:        16,
		JitterBufferDepth: 2,
		InputQueueLimit:   64,
		InputRateLimit:    120,
		InputRateBurst:    30,
		SnapshotHistory:   64,
		ShutdownTimeout:   2 * time.Second,
	}

	Client = ClientConfig{
		Address:      "localhost:7373",
		Name:         "",
		TickRate:     60,
		InboxLimit:   256,
		PixelsPerM:   16,
		WindowWidth:  960,
		WindowHeight: 720,
	}
}

// TickDuration returns the fixed timestep for a tick rate.
func TickDuration(rate int) time.Duration {
	return time.Second / time.Duration(rate)
}

// TickDelta returns the fixed timestep in seconds.
func TickDelta(rate int) float64 {
	return 1.0 / float64(rate)
}
