package systems

import (
	"math"
	"testing"

	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/collision"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/go-gl/mathgl/mgl64"
)

const tickDt = 1.0 / 60.0

func ptr[T any](v T) *T { return &v }

func floorWorld() *collision.World {
	w := collision.NewWorld(-20, -20, 20, 20)
	w.AddBox(collision.Box{Min: mgl64.Vec3{-20, -1, -20}, Max: mgl64.Vec3{20, 0, 20}})
	return w
}

func testReplay(sw movement.Sweeper, threshold float64) Replay {
	return Replay{
		Tuning:    movement.TuningFromConfig(config.Movement),
		DT:        tickDt,
		Sweeper:   sw,
		Self:      1,
		Threshold: threshold,
	}
}

func standingBody() *netcomponents.BodyData {
	return &netcomponents.BodyData{State: movement.State{
		Position: mgl64.Vec3{0, 0.5 + movement.GroundMargin, 0},
		Grounded: true,
		Kind:     movement.KindLocal,
		Params:   movement.ParamsFromConfig(config.Character),
	}}
}

// predictN runs the client prediction step for n ticks walking forward.
func predictN(h *network.InputHistory, body *netcomponents.BodyData, r Replay, n int) {
	for i := 0; i < n; i++ {
		in := h.Append(messages.NewPlayerInput(0, nil))
		in.WishDir = mgl64.Vec2{0, 1}
		in.Yaw = 0.1 * float64(i%3)
		body.State.Yaw = in.Yaw
		body.State.Velocity = r.Tuning.Apply(body.State.Velocity, body.State.Grounded, in.Intent(), r.DT)
		body.State = movement.Integrate(body.State, r.DT, r.Sweeper, r.Self)
		in.RecordPostMove(body.State)
	}
}

func vecNear(a, b mgl64.Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

func TestSnapshotCursor(t *testing.T) {
	var c SnapshotCursor
	if c.Last() != nil {
		t.Fatal("fresh cursor has a value")
	}
	if !c.Accept(0) {
		t.Error("first id rejected")
	}
	if c.Accept(0) {
		t.Error("repeated id accepted")
	}
	if !c.Accept(5) || c.Accept(3) {
		t.Error("cursor not monotonic")
	}
	if last := c.Last(); last == nil || *last != 5 {
		t.Errorf("last = %v", last)
	}
	*c.Last() = 99
	if *c.Last() != 5 {
		t.Error("Last exposes internal state")
	}
}

func TestReconcileThresholdIsStrict(t *testing.T) {
	r := testReplay(floorWorld(), 0.5)
	var h network.InputHistory
	body := standingBody()
	predictN(&h, body, r, 3)

	acked, _ := h.Get(1)
	acked.PostMovePosition = mgl64.Vec3{0, 0.501, 0}
	at := mgl64.Vec3{0.5, 0.501, 0}
	visual := &netcomponents.VisualData{}
	res := ReconcileLocal(body, visual, &messages.CharacterDiff{ClientID: 1, Position: &at}, ptr(uint32(1)), &h, r)
	if !res.Checked || res.Corrected || res.Divergence != 0.5 {
		t.Errorf("divergence equal to threshold: %+v", res)
	}
	if visual.Correction != nil {
		t.Error("correction flagged without a correction")
	}

	past := mgl64.Vec3{0.5 + 1e-9, 0.501, 0}
	res = ReconcileLocal(body, visual, &messages.CharacterDiff{ClientID: 1, Position: &past}, ptr(uint32(1)), &h, r)
	if !res.Corrected {
		t.Errorf("divergence above threshold not corrected: %+v", res)
	}
	if visual.Correction == nil {
		t.Error("visual correction not flagged")
	}
}

func TestReconcileReplaysNewerInputs(t *testing.T) {
	r := testReplay(floorWorld(), config.Multiplayer.CorrectionThreshold)
	var h network.InputHistory
	body := standingBody()
	predictN(&h, body, r, 10)
	yaw := body.State.Yaw

	const ack = uint32(4)
	acked, _ := h.Get(ack)
	server := acked.PostMovePosition.Add(mgl64.Vec3{1, 0, 0})
	serverVel := mgl64.Vec3{0, 0, -2}

	// expected: server state at the ack, then inputs 5..9 in order
	want := body.State
	want.Position = server
	want.Velocity = serverVel
	want.Grounded = true
	for id := ack + 1; id < h.NextID(); id++ {
		in, _ := h.Get(id)
		want.Velocity = r.Tuning.Apply(want.Velocity, want.Grounded, in.Intent(), r.DT)
		want = movement.Integrate(want, r.DT, r.Sweeper, r.Self)
	}

	visual := &netcomponents.VisualData{Position: body.State.Position}
	res := ReconcileLocal(body, visual, &messages.CharacterDiff{
		ClientID: 1,
		Position: &server,
		Velocity: &serverVel,
		Grounded: ptr(true),
	}, ptr(ack), &h, r)

	if !res.Corrected || res.Replayed != 5 {
		t.Fatalf("result = %+v", res)
	}
	if !vecNear(body.State.Position, want.Position, 1e-12) || !vecNear(body.State.Velocity, want.Velocity, 1e-12) {
		t.Errorf("state = %v %v, want %v %v", body.State.Position, body.State.Velocity, want.Position, want.Velocity)
	}
	if body.State.Yaw != yaw {
		t.Errorf("yaw changed to %f", body.State.Yaw)
	}
	if latest, _ := h.Latest(); latest.PostMovePosition != body.State.Position {
		t.Error("replayed input did not record its new outcome")
	}
	if acked.PostMovePosition != server || acked.PostMoveVelocity != serverVel {
		t.Error("acked input not overwritten with server state")
	}
	if visual.Correction == nil || visual.Correction.From != visual.Position {
		t.Errorf("correction = %+v", visual.Correction)
	}
}

func TestReconcileTwiceIsNoop(t *testing.T) {
	r := testReplay(floorWorld(), config.Multiplayer.CorrectionThreshold)
	var h network.InputHistory
	body := standingBody()
	predictN(&h, body, r, 6)

	acked, _ := h.Get(2)
	server := acked.PostMovePosition.Add(mgl64.Vec3{-0.3, 0, 0.2})
	diff := &messages.CharacterDiff{ClientID: 1, Position: &server}

	first := ReconcileLocal(body, &netcomponents.VisualData{}, diff, ptr(uint32(2)), &h, r)
	after := body.State
	second := ReconcileLocal(body, &netcomponents.VisualData{}, diff, ptr(uint32(2)), &h, r)

	if !first.Corrected {
		t.Fatal("first reconcile did not correct")
	}
	if second.Corrected || second.Divergence != 0 {
		t.Errorf("second reconcile = %+v", second)
	}
	if body.State != after {
		t.Error("second reconcile moved the body")
	}
}

func TestReconcileWithoutSample(t *testing.T) {
	r := testReplay(floorWorld(), config.Multiplayer.CorrectionThreshold)
	var h network.InputHistory
	body := standingBody()
	predictN(&h, body, r, network.HistorySize+10)
	before := body.State
	far := mgl64.Vec3{10, 10, 10}

	cases := []struct {
		name string
		diff messages.CharacterDiff
		ack  *uint32
	}{
		{"evicted ack", messages.CharacterDiff{Position: &far}, ptr(uint32(3))},
		{"future ack", messages.CharacterDiff{Position: &far}, ptr(uint32(500))},
		{"no ack", messages.CharacterDiff{Position: &far}, nil},
		{"no position", messages.CharacterDiff{Velocity: &far}, ptr(h.NextID() - 1)},
	}
	for _, tc := range cases {
		res := ReconcileLocal(body, nil, &tc.diff, tc.ack, &h, r)
		if res.Checked || res.Corrected {
			t.Errorf("%s: %+v", tc.name, res)
		}
		if body.State != before {
			t.Errorf("%s: body changed", tc.name)
		}
	}
}

func TestApplyRemoteOverwritesPresentFields(t *testing.T) {
	body := standingBody()
	body.State.Yaw = 1
	pos := mgl64.Vec3{4, 2, 4}
	ApplyRemote(body, &messages.CharacterDiff{Position: &pos, Grounded: ptr(false)})

	if body.State.Position != pos || body.State.Grounded {
		t.Errorf("state = %+v", body.State)
	}
	if body.State.Yaw != 1 || body.State.Velocity != (mgl64.Vec3{}) {
		t.Error("absent fields were touched")
	}
	if math.IsNaN(body.State.Pitch) {
		t.Error("pitch corrupted")
	}
}
