package core

import (
	"errors"
	"testing"

	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/collision"
	"github.com/automoto/boxman/shared/leveldata"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/systems"
	"github.com/go-gl/mathgl/mgl64"
)

func testLevelData() *leveldata.CollisionData {
	return &leveldata.CollisionData{
		Name:  "test",
		Width: 30,
		Depth: 30,
		Solids: []leveldata.Solid{
			{MinX: 0, MinZ: 0, MaxX: 30, MaxZ: 30, Bottom: -1, Top: 0},
			{MinX: 0, MinZ: 29, MaxX: 30, MaxZ: 30, Bottom: 0, Top: 2},
		},
		SpawnPoints: []leveldata.SpawnPoint{
			{X: 5, Y: 1, Z: 5, Index: 0},
			{X: 10, Y: 1, Z: 5, Index: 1},
		},
	}
}

type session struct {
	link *network.Loopback
	sim  *systems.ClientSim
	id   uint64
}

type harness struct {
	t        *testing.T
	server   *Server
	sessions []*session
}

func newHarness(t *testing.T, opts Options) *harness {
	return &harness{t: t, server: NewServer(NewServerLevel(testLevelData()), opts)}
}

func (h *harness) connect(cfg network.LinkConfig) *session {
	h.t.Helper()
	link := network.NewLoopback(cfg)
	sim := systems.NewClientSim(link.A(), collision.FromLevel(testLevelData()), systems.DefaultClientOptions())
	id, err := h.server.Join(link.B(), "")
	if err != nil {
		h.t.Fatalf("Join: %v", err)
	}
	s := &session{link: link, sim: sim, id: id}
	h.sessions = append(h.sessions, s)
	return s
}

// step runs one tick of every client, then the server, then moves every link.
func (h *harness) step(intent func(*session) movement.Intent) {
	for _, s := range h.sessions {
		s.sim.ReceiveMessages()
		s.sim.FixedTick(intent(s))
	}
	h.server.Tick()
	for _, s := range h.sessions {
		s.link.Advance()
	}
}

func walk(dir mgl64.Vec2) func(*session) movement.Intent {
	return func(*session) movement.Intent { return movement.Intent{WishDir: dir} }
}

func idle(*session) movement.Intent { return movement.Intent{} }

func localBody(t *testing.T, s *session) *netcomponents.BodyData {
	t.Helper()
	entry, ok := s.sim.LocalEntry()
	if !ok {
		t.Fatal("no local character")
	}
	return netcomponents.Body.Get(entry)
}

func TestPredictionMatchesServerOnCleanLink(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	s := h.connect(network.LinkConfig{})

	var corrections int
	for tick := 0; tick < 180; tick++ {
		h.step(walk(mgl64.Vec2{0.6, 0.8}))
		if tick == 30 {
			corrections = s.sim.Stats.Corrections
		}
		if tick < 30 {
			continue
		}

		p, _ := h.server.Player(s.id)
		ack := p.AckedInput()
		if ack == nil {
			t.Fatalf("tick %d: server has not consumed any input", tick)
		}
		predicted, ok := s.sim.History().Get(*ack)
		if !ok {
			t.Fatalf("tick %d: acked input %d not in history", tick, *ack)
		}
		server, _ := h.server.Body(s.id)
		if d := predicted.PostMovePosition.Sub(server.State.Position).Len(); d > config.Multiplayer.CorrectionThreshold {
			t.Fatalf("tick %d: prediction off by %f", tick, d)
		}
	}
	if s.sim.Stats.Corrections != corrections {
		t.Errorf("corrections in steady state: %d -> %d", corrections, s.sim.Stats.Corrections)
	}

	p, _ := h.server.Player(s.id)
	if p.AckedSnapshot() == nil || p.Stats.Repeated > 5 {
		t.Errorf("player stats %+v", p.Stats)
	}
	if body := localBody(t, s); !body.State.Grounded {
		t.Error("local character airborne on flat ground")
	}
}

func TestLossyLinkConverges(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	s := h.connect(network.LinkConfig{Latency: 3, Jitter: 2, LossRate: 0.15, Seed: 11})

	for tick := 0; tick < 240; tick++ {
		h.step(walk(mgl64.Vec2{1, 0}))
	}
	if s.link.Dropped() == 0 {
		t.Fatal("link dropped nothing")
	}
	for tick := 0; tick < 180; tick++ {
		h.step(idle)
	}
	for frame := 0; frame < 240; frame++ {
		s.sim.Frame(1.0/60, 1)
	}

	body := localBody(t, s)
	server, _ := h.server.Body(s.id)
	if d := body.State.Position.Sub(server.State.Position).Len(); d > 1e-3 {
		t.Errorf("client %v server %v", body.State.Position, server.State.Position)
	}
	entry, _ := s.sim.LocalEntry()
	visual := netcomponents.Visual.Get(entry)
	if visual.Correction != nil || visual.Position != body.State.Position {
		t.Errorf("visual %+v not settled on %v", visual, body.State.Position)
	}
	if s.sim.Stats.DecodeErrors != 0 {
		t.Errorf("decode errors %d", s.sim.Stats.DecodeErrors)
	}
}

func TestClientsSeeEachOther(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	a := h.connect(network.LinkConfig{})
	b := h.connect(network.LinkConfig{Latency: 1})

	for tick := 0; tick < 60; tick++ {
		h.step(func(s *session) movement.Intent {
			if s == b {
				return movement.Intent{WishDir: mgl64.Vec2{0, 1}}
			}
			return movement.Intent{}
		})
	}

	remote, ok := a.sim.Entry(b.id)
	if !ok {
		t.Fatal("a does not know b")
	}
	server, _ := h.server.Body(b.id)
	got := netcomponents.Body.Get(remote).State.Position
	if d := got.Sub(server.State.Position).Len(); d > 1 {
		t.Errorf("remote b at %v, server %v", got, server.State.Position)
	}
	if !a.sim.Collision.HasBody(b.id) || a.sim.Collision.HasBody(a.id) {
		t.Error("obstacle registry wrong on a")
	}
	if a.sim.Name(b.id) == "" || b.sim.Name(a.id) == "" {
		t.Error("names not announced")
	}

	h.server.Leave(b.id)
	h.sessions = h.sessions[:1]
	for tick := 0; tick < 5; tick++ {
		h.step(idle)
	}
	if _, ok := a.sim.Entry(b.id); ok {
		t.Error("b still present after leaving")
	}
	if h.server.PlayerCount() != 1 {
		t.Errorf("player count %d", h.server.PlayerCount())
	}
	snap, _ := h.server.LatestSnapshot()
	if _, ok := snap.Find(b.id); ok {
		t.Error("b still in snapshots")
	}
}

func TestCharactersBlockEachOther(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	a := h.connect(network.LinkConfig{})
	b := h.connect(network.LinkConfig{})

	// a spawns at x=5 and walks +x into b standing at x=10
	for tick := 0; tick < 180; tick++ {
		h.step(func(s *session) movement.Intent {
			if s == a {
				return movement.Intent{WishDir: mgl64.Vec2{1, 0}}
			}
			return movement.Intent{}
		})
	}
	pa, _ := h.server.Body(a.id)
	pb, _ := h.server.Body(b.id)
	if gap := pb.State.Position.X() - pa.State.Position.X(); gap < 1-1e-6 {
		t.Errorf("characters overlap: a %v b %v", pa.State.Position, pb.State.Position)
	}
}

func TestJoinWhenFull(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPlayers = 1
	h := newHarness(t, opts)
	h.connect(network.LinkConfig{})

	link := network.NewLoopback(network.LinkConfig{})
	if _, err := h.server.Join(link.B(), "late"); !errors.Is(err, ErrServerFull) {
		t.Errorf("err = %v", err)
	}
	if h.server.PlayerCount() != 1 {
		t.Errorf("player count %d", h.server.PlayerCount())
	}
}

func TestServerDropsGarbageInput(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	s := h.connect(network.LinkConfig{})
	h.step(idle)

	s.link.A().Send(network.Unreliable, []byte{0xEE, 1, 2})
	s.link.A().Send(network.Unreliable, nil)
	s.link.Advance()
	h.step(idle)

	if h.server.Stats.DecodeErrors != 2 {
		t.Errorf("decode errors %d", h.server.Stats.DecodeErrors)
	}
}

func TestSnapshotsTrackAcks(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	s := h.connect(network.LinkConfig{})
	for tick := 0; tick < 20; tick++ {
		h.step(walk(mgl64.Vec2{0, 1}))
	}

	p, _ := h.server.Player(s.id)
	diff, ok := h.server.store.DiffFor(p.AckedSnapshot(), p.AckedInput())
	if !ok {
		t.Fatal("no diff")
	}
	if diff.Full {
		t.Error("client acks did not enable delta diffs")
	}
	if diff.AckedInputID == nil {
		t.Error("diff carries no input ack")
	}
	last := s.sim.LastSnapshot()
	if latest, _ := h.server.LatestSnapshot(); last == nil || *last+2 < latest.ID {
		t.Errorf("client snapshot cursor %v lags server %d", last, latest.ID)
	}
}
