package systems

import (
	"testing"

	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/shared/protocol"
	"github.com/go-gl/mathgl/mgl64"
)

type clientHarness struct {
	t    *testing.T
	link *network.Loopback
	sim  *ClientSim
}

func newClientHarness(t *testing.T) *clientHarness {
	link := network.NewLoopback(network.LinkConfig{})
	return &clientHarness{
		t:    t,
		link: link,
		sim:  NewClientSim(link.A(), floorWorld(), DefaultClientOptions()),
	}
}

// serve sends messages from the server side and delivers them.
func (h *clientHarness) serve(kind network.ChannelKind, msgs ...any) {
	h.t.Helper()
	for _, m := range msgs {
		data, err := protocol.Encode(m)
		if err != nil {
			h.t.Fatalf("Encode %T: %v", m, err)
		}
		if err := h.link.B().Send(kind, data); err != nil {
			h.t.Fatalf("Send: %v", err)
		}
	}
	h.link.Advance()
}

func (h *clientHarness) tick(intent movement.Intent) {
	h.sim.ReceiveMessages()
	h.sim.FixedTick(intent)
}

// inputs returns what the server received since the last call.
func (h *clientHarness) inputs() []messages.PlayerInput {
	h.t.Helper()
	h.link.Advance()
	var out []messages.PlayerInput
	for {
		data, ok := h.link.B().TryReceive(network.Unreliable)
		if !ok {
			return out
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			h.t.Fatalf("Decode: %v", err)
		}
		out = append(out, msg.(messages.PlayerInput))
	}
}

var spawnPos = mgl64.Vec3{0, 0.5 + movement.GroundMargin, 0}

func (h *clientHarness) join() {
	h.serve(network.ReliableOrdered,
		messages.Welcome{ClientID: 1, TickRate: 60},
		messages.PlayerJoined{ID: 1, Name: "one"},
		messages.SpawnEntity{ClientID: 1, Position: spawnPos},
		messages.SpawnEntity{ClientID: 2, Position: mgl64.Vec3{5, 0.501, 5}, Yaw: 0.5},
	)
}

func TestClientWaitsForLocalCharacter(t *testing.T) {
	h := newClientHarness(t)
	h.tick(movement.Intent{WishDir: mgl64.Vec2{0, 1}})
	if h.sim.History().NextID() != 0 {
		t.Error("captured input before the local character existed")
	}
	if got := h.inputs(); len(got) != 0 {
		t.Errorf("sent %d inputs", len(got))
	}
}

func TestClientPredictsAndSends(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{Yaw: 0.25, WishDir: mgl64.Vec2{0, 2}})

	local, ok := h.sim.LocalEntry()
	if !ok {
		t.Fatal("no local character")
	}
	body := netcomponents.Body.Get(local)
	if body.State.Kind != movement.KindLocal || body.State.Position == spawnPos {
		t.Errorf("local body not predicted: %+v", body.State)
	}
	if h.sim.Collision.HasBody(1) || !h.sim.Collision.HasBody(2) {
		t.Error("only remote characters should be obstacles")
	}
	if h.sim.Name(1) != "one" {
		t.Errorf("name = %q", h.sim.Name(1))
	}
	remote, _ := h.sim.Entry(2)
	if yaw := netcomponents.Body.Get(remote).State.Yaw; yaw != 0.5 {
		t.Errorf("remote yaw = %f", yaw)
	}

	sent := h.inputs()
	if len(sent) != 1 {
		t.Fatalf("sent %d inputs", len(sent))
	}
	in := sent[0]
	if in.ID != 0 || in.SnapshotID != nil || in.Yaw != 0.25 || in.WishDir != (mgl64.Vec2{0, 1}) {
		t.Errorf("input = %+v", in)
	}
	if stored, _ := h.sim.History().Get(0); stored.SendCount != 1 || stored.PostMovePosition != body.State.Position {
		t.Errorf("stored input = %+v", stored)
	}

	h.tick(movement.Intent{})
	if sent := h.inputs(); len(sent) != 1 || sent[0].ID != 1 {
		t.Errorf("second tick sent %+v", sent)
	}
}

func TestClientTagsInputsWithNewestSnapshot(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{})
	h.inputs()

	predicted, _ := h.sim.History().Get(0)
	pos := predicted.PostMovePosition
	h.serve(network.Unreliable,
		messages.SnapshotDiff{ID: 6, AckedInputID: ptr(uint32(0)), Characters: []messages.CharacterDiff{{ClientID: 1, Position: &pos}}},
		messages.SnapshotDiff{ID: 7, AckedInputID: ptr(uint32(0)), Characters: []messages.CharacterDiff{{ClientID: 1, Position: &pos}}},
		messages.SnapshotDiff{ID: 3},
	)
	h.tick(movement.Intent{})

	if last := h.sim.LastSnapshot(); last == nil || *last != 7 {
		t.Fatalf("last snapshot = %v", last)
	}
	if h.sim.Stats.DiffsApplied != 1 || h.sim.Stats.Corrections != 0 {
		t.Errorf("stats = %+v", h.sim.Stats)
	}
	sent := h.inputs()
	if len(sent) != 1 || sent[0].SnapshotID == nil || *sent[0].SnapshotID != 7 {
		t.Errorf("sent %+v", sent)
	}

	h.sim.ApplySnapshot(messages.SnapshotDiff{ID: 7})
	h.sim.ApplySnapshot(messages.SnapshotDiff{ID: 5})
	if h.sim.Stats.StaleDiffs != 2 {
		t.Errorf("stale diffs = %d", h.sim.Stats.StaleDiffs)
	}
}

func TestClientCorrectsDivergentPrediction(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	for i := 0; i < 5; i++ {
		h.tick(movement.Intent{WishDir: mgl64.Vec2{1, 0}})
	}

	server := spawnPos
	h.sim.ApplySnapshot(messages.SnapshotDiff{
		ID:           1,
		AckedInputID: ptr(uint32(1)),
		Characters:   []messages.CharacterDiff{{ClientID: 1, Position: &server, Velocity: ptr(mgl64.Vec3{})}},
	})
	if h.sim.Stats.Corrections != 1 {
		t.Fatalf("stats = %+v", h.sim.Stats)
	}
	local, _ := h.sim.LocalEntry()
	if netcomponents.Visual.Get(local).Correction == nil {
		t.Error("visual correction not started")
	}
	acked, _ := h.sim.History().Get(1)
	if acked.PostMovePosition != server {
		t.Error("acked sample not rewritten")
	}
}

func TestClientRemovalsAreFinal(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{})

	h.sim.ApplySnapshot(messages.SnapshotDiff{ID: 1, Removed: []uint64{2}})
	if _, ok := h.sim.Entry(2); ok {
		t.Fatal("removed character still present")
	}
	if h.sim.Collision.HasBody(2) {
		t.Error("removed character still collides")
	}

	pos := mgl64.Vec3{3, 0.501, 3}
	h.sim.ApplySnapshot(messages.SnapshotDiff{ID: 2, Characters: []messages.CharacterDiff{{ClientID: 2, Position: &pos}}})
	if _, ok := h.sim.Entry(2); ok {
		t.Error("late diff resurrected a removed character")
	}

	h.serve(network.ReliableOrdered, messages.SpawnEntity{ClientID: 2, Position: pos})
	h.sim.ReceiveMessages()
	if _, ok := h.sim.Entry(2); !ok {
		t.Error("explicit spawn did not bring the character back")
	}
}

func TestClientFullDiffPrunesAndSpawns(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{})

	local := h.sim.History().At(0).PostMovePosition
	other := mgl64.Vec3{-4, 0.501, 2}
	h.sim.ApplySnapshot(messages.SnapshotDiff{
		ID:           4,
		Full:         true,
		AckedInputID: ptr(uint32(0)),
		Characters: []messages.CharacterDiff{
			{ClientID: 1, Position: &local},
			{ClientID: 3, Position: &other, Yaw: ptr(1.5)},
		},
	})

	if _, ok := h.sim.Entry(2); ok {
		t.Error("character missing from full diff was kept")
	}
	e3, ok := h.sim.Entry(3)
	if !ok {
		t.Fatal("character only known from diff was not spawned")
	}
	body := netcomponents.Body.Get(e3)
	if body.State.Position != other || body.State.Yaw != 1.5 || body.State.Kind != movement.KindRemote {
		t.Errorf("remote body = %+v", body.State)
	}
	if !h.sim.Collision.HasBody(3) {
		t.Error("new remote not registered as obstacle")
	}
	if _, ok := h.sim.LocalEntry(); !ok {
		t.Error("local character pruned")
	}
}

func TestClientLateFullDiffDoesNotHideNewPlayer(t *testing.T) {
	h := newClientHarness(t)
	h.serve(network.ReliableOrdered,
		messages.Welcome{ClientID: 1, TickRate: 60},
		messages.SpawnEntity{ClientID: 1, Position: spawnPos},
	)
	h.tick(movement.Intent{})

	local := spawnPos
	full := func(id uint64, chars ...messages.CharacterDiff) messages.SnapshotDiff {
		return messages.SnapshotDiff{ID: id, Full: true, Characters: append([]messages.CharacterDiff{{ClientID: 1, Position: &local}}, chars...)}
	}
	h.sim.ApplySnapshot(full(4))

	// player 2 joins; a diff captured before the join arrives after the spawn
	h.serve(network.ReliableOrdered, messages.SpawnEntity{ClientID: 2, Position: mgl64.Vec3{5, 0.501, 5}})
	h.sim.ReceiveMessages()
	h.sim.ApplySnapshot(full(5))
	if _, ok := h.sim.LocalEntry(); !ok {
		t.Fatal("stale full diff pruned the local character")
	}

	other := mgl64.Vec3{6, 0.501, 5}
	h.sim.ApplySnapshot(full(6, messages.CharacterDiff{ClientID: 2, Position: &other}))
	e, ok := h.sim.Entry(2)
	if !ok {
		t.Fatal("newer diff did not bring the player back")
	}
	if got := netcomponents.Body.Get(e).State.Position; got != other {
		t.Errorf("player 2 at %v, want %v", got, other)
	}
	if !h.sim.Collision.HasBody(2) {
		t.Error("player 2 not an obstacle")
	}
}

func TestClientRespawnMovesObstacle(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.sim.ReceiveMessages()

	moved := mgl64.Vec3{-5, 0.501, -5}
	h.serve(network.ReliableOrdered, messages.SpawnEntity{ClientID: 2, Position: moved})
	h.sim.ReceiveMessages()

	// a body at the old spot would stop this sweep; the new one must not
	shape := movement.Shape{Radius: 0.5, Height: 1}
	if _, hit := h.sim.Collision.Sweep(shape, mgl64.Vec3{3, 0.501, 5}, mgl64.QuatIdent(), mgl64.Vec3{1, 0, 0}, 4, 1); hit {
		t.Error("obstacle left at the old position")
	}
	if _, hit := h.sim.Collision.Sweep(shape, mgl64.Vec3{-7, 0.501, -5}, mgl64.QuatIdent(), mgl64.Vec3{1, 0, 0}, 4, 1); !hit {
		t.Error("obstacle not at the new position")
	}
}

func TestClientCorrectionProgress(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{})
	if _, ok := h.sim.CorrectionProgress(); ok {
		t.Fatal("correction reported before any divergence")
	}

	server := mgl64.Vec3{2, 0.501, 0}
	h.sim.ApplySnapshot(messages.SnapshotDiff{
		ID:           1,
		AckedInputID: ptr(uint32(0)),
		Characters:   []messages.CharacterDiff{{ClientID: 1, Position: &server}},
	})
	if p, ok := h.sim.CorrectionProgress(); !ok || p != 0 {
		t.Fatalf("progress = %v, %v", p, ok)
	}

	h.sim.Frame(1.0/60, 1)
	first, ok := h.sim.CorrectionProgress()
	if !ok || first <= 0 || first >= 1 {
		t.Fatalf("progress after one frame = %v, %v", first, ok)
	}
	for i := 0; i < 600; i++ {
		h.sim.Frame(1.0/60, 1)
	}
	if p, ok := h.sim.CorrectionProgress(); ok {
		t.Errorf("correction still running at %v", p)
	}
}

func TestClientDespawnMessage(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.sim.ReceiveMessages()
	h.serve(network.ReliableOrdered, messages.DespawnEntity{ClientID: 2})
	h.sim.ReceiveMessages()
	if _, ok := h.sim.Entry(2); ok {
		t.Error("despawned character still present")
	}

	count := 0
	h.sim.Characters(func(*netcomponents.CharacterData, *netcomponents.BodyData, *netcomponents.VisualData) { count++ })
	if count != 1 {
		t.Errorf("characters = %d", count)
	}
}

func TestClientFrameFollowsSimulation(t *testing.T) {
	h := newClientHarness(t)
	h.join()
	h.tick(movement.Intent{WishDir: mgl64.Vec2{0, 1}})
	h.sim.Frame(1.0/60, 1)

	h.sim.Characters(func(_ *netcomponents.CharacterData, body *netcomponents.BodyData, visual *netcomponents.VisualData) {
		if visual.Position != body.State.Position {
			t.Errorf("visual %v, body %v", visual.Position, body.State.Position)
		}
	})
}

func TestClientIgnoresGarbage(t *testing.T) {
	h := newClientHarness(t)
	h.link.B().Send(network.Unreliable, []byte{0xEE})
	h.link.B().Send(network.ReliableOrdered, nil)
	h.link.Advance()
	h.sim.ReceiveMessages()
	if h.sim.Stats.DecodeErrors != 2 {
		t.Errorf("decode errors = %d", h.sim.Stats.DecodeErrors)
	}
}
