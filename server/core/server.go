package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/shared/protocol"
	"github.com/automoto/boxman/shared/snapshot"
	"github.com/charmbracelet/log"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/yohamta/donburi"
)

var logger = log.WithPrefix("server")

var ErrServerFull = errors.New("server is full")

// Options configures a Server.
type Options struct {
	TickRate          int
	MaxPlayers        int
	JitterBufferDepth int
	InputQueueLimit   int
	InputRate         float64
	InputBurst        int
	SnapshotHistory   int
	Tuning            movement.Tuning
	Params            movement.Params
}

// DefaultOptions builds options from the package config.
func DefaultOptions() Options {
	return Options{
		TickRate:          config.Server.TickRate,
		MaxPlayers:        config.Server.MaxPlayers,
		JitterBufferDepth: config.Server.JitterBufferDepth,
		InputQueueLimit:   config.Server.InputQueueLimit,
		InputRate:         config.Server.InputRateLimit,
		InputBurst:        config.Server.InputRateBurst,
		SnapshotHistory:   config.Server.SnapshotHistory,
		Tuning:            movement.TuningFromConfig(config.Movement),
		Params:            movement.ParamsFromConfig(config.Character),
	}
}

type commandKind int

const (
	cmdJoin commandKind = iota
	cmdLeave
)

type command struct {
	kind commandKind
	id   uint64
	name string
	conn network.Channel
}

// ServerStats counts server-wide events.
type ServerStats struct {
	Ticks        uint64
	DecodeErrors int
	SendFailures int
}

// Server owns the authoritative simulation. Join and Leave may be called from
// any goroutine; everything else runs on the tick goroutine.
type Server struct {
	world   donburi.World
	level   *ServerLevel
	players *orderedmap.OrderedMap[uint64, *Player]
	store   *snapshot.Store
	opts    Options
	dt      float64
	clock   time.Time

	mu       sync.Mutex
	commands []command
	nextID   atomic.Uint64
	count    atomic.Int32
	joined   uint64

	Stats ServerStats
}

// NewServer creates a server simulating the given level.
func NewServer(level *ServerLevel, opts Options) *Server {
	if opts.TickRate <= 0 {
		opts.TickRate = 60
	}
	return &Server{
		world:   donburi.NewWorld(),
		level:   level,
		players: orderedmap.NewOrderedMap[uint64, *Player](),
		store:   snapshot.NewStore(opts.SnapshotHistory),
		opts:    opts,
		dt:      config.TickDelta(opts.TickRate),
		clock:   time.Unix(0, 0),
	}
}

// Join registers a connection. The player is spawned on the next tick; the
// returned id is final.
func (s *Server) Join(conn network.Channel, name string) (uint64, error) {
	if n := s.count.Add(1); s.opts.MaxPlayers > 0 && int(n) > s.opts.MaxPlayers {
		s.count.Add(-1)
		return 0, ErrServerFull
	}
	id := s.nextID.Add(1)
	if name == "" {
		name = fmt.Sprintf("Player %d", id)
	}
	s.enqueue(command{kind: cmdJoin, id: id, name: name, conn: conn})
	return id, nil
}

// Leave removes a player on the next tick. Unknown ids are ignored.
func (s *Server) Leave(id uint64) {
	s.enqueue(command{kind: cmdLeave, id: id})
}

func (s *Server) enqueue(c command) {
	s.mu.Lock()
	s.commands = append(s.commands, c)
	s.mu.Unlock()
}

// PlayerCount returns the number of joined or joining players.
func (s *Server) PlayerCount() int {
	return int(s.count.Load())
}

// World returns the ECS world.
func (s *Server) World() donburi.World {
	return s.world
}

// Level returns the simulated level.
func (s *Server) Level() *ServerLevel {
	return s.level
}

// Player returns a joined player.
func (s *Server) Player(id uint64) (*Player, bool) {
	return s.players.Get(id)
}

// Body returns the simulated body of a player.
func (s *Server) Body(id uint64) (*netcomponents.BodyData, bool) {
	p, ok := s.players.Get(id)
	if !ok || !s.world.Valid(p.Entity) {
		return nil, false
	}
	return netcomponents.Body.Get(s.world.Entry(p.Entity)), true
}

// LatestSnapshot returns the most recent captured snapshot.
func (s *Server) LatestSnapshot() (*snapshot.Snapshot, bool) {
	return s.store.Latest()
}

// Tick advances the simulation by one fixed step: joins and leaves, input
// receipt, simulation in join order, snapshot capture and per-client diffs.
func (s *Server) Tick() {
	s.Stats.Ticks++
	s.clock = s.clock.Add(config.TickDuration(s.opts.TickRate))

	s.ProcessCommands()
	s.receiveInputs()
	s.simulate()
	s.sendSnapshots()
}

// ProcessCommands applies queued joins and leaves in arrival order.
func (s *Server) ProcessCommands() {
	s.mu.Lock()
	cmds := s.commands
	s.commands = nil
	s.mu.Unlock()

	for _, c := range cmds {
		switch c.kind {
		case cmdJoin:
			s.addPlayer(c)
		case cmdLeave:
			s.removePlayer(c.id)
		}
	}
}

func (s *Server) addPlayer(c command) {
	pos := s.level.Spawn(s.joined)
	s.joined++

	entity := s.world.Create(netcomponents.Character, netcomponents.Body)
	entry := s.world.Entry(entity)
	netcomponents.Character.SetValue(entry, netcomponents.CharacterData{ClientID: c.id, Name: c.name})
	netcomponents.Body.SetValue(entry, netcomponents.BodyData{
		State: movement.State{
			Position: pos,
			Kind:     movement.KindRemote,
			Params:   s.opts.Params,
		},
		PrevPosition: pos,
	})
	s.level.Collision.SetBody(c.id, pos, s.opts.Params.Shape())

	p := newPlayer(c.id, c.name, c.conn, s.opts)
	p.Entity = entity

	s.sendReliable(p, messages.Welcome{ClientID: c.id, TickRate: s.opts.TickRate})
	for el := s.players.Front(); el != nil; el = el.Next() {
		other := el.Value
		body, _ := s.Body(other.ID)
		s.sendReliable(p, messages.PlayerJoined{ID: other.ID, Name: other.Name})
		s.sendReliable(p, messages.SpawnEntity{ClientID: other.ID, Position: body.State.Position, Yaw: body.State.Yaw})
	}
	s.players.Set(c.id, p)
	s.broadcastReliable(messages.PlayerJoined{ID: c.id, Name: c.name})
	s.broadcastReliable(messages.SpawnEntity{ClientID: c.id, Position: pos})

	logger.Info("player joined", "id", c.id, "name", c.name, "spawn", pos)
}

func (s *Server) removePlayer(id uint64) {
	p, ok := s.players.Get(id)
	if !ok {
		return
	}
	s.players.Delete(id)
	s.count.Add(-1)
	s.level.Collision.RemoveBody(id)
	if s.world.Valid(p.Entity) {
		s.world.Remove(p.Entity)
	}
	s.broadcastReliable(messages.DespawnEntity{ClientID: id})
	logger.Info("player left", "id", id, "name", p.Name)
}

func (s *Server) receiveInputs() {
	for el := s.players.Front(); el != nil; el = el.Next() {
		p := el.Value
		for {
			payload, ok := p.conn.TryReceive(network.Unreliable)
			if !ok {
				break
			}
			msg, err := protocol.Decode(payload)
			if err != nil {
				s.Stats.DecodeErrors++
				logger.Warn("dropping message", "player", p.ID, "err", err)
				continue
			}
			in, ok := msg.(messages.PlayerInput)
			if !ok {
				logger.Warn("unexpected message", "player", p.ID, "type", fmt.Sprintf("%T", msg))
				continue
			}
			p.Offer(in, s.clock)
		}
		// nothing reliable is expected from clients; drain it
		for {
			if _, ok := p.conn.TryReceive(network.ReliableOrdered); !ok {
				break
			}
		}
	}
}

func (s *Server) simulate() {
	for el := s.players.Front(); el != nil; el = el.Next() {
		p := el.Value
		if !s.world.Valid(p.Entity) {
			continue
		}
		body := netcomponents.Body.Get(s.world.Entry(p.Entity))
		body.BeginTick()

		intent, _ := p.Next(s.opts.JitterBufferDepth)
		body.State.Yaw = intent.Yaw
		body.State.Velocity = s.opts.Tuning.Apply(body.State.Velocity, body.State.Grounded, intent, s.dt)
		body.State = movement.Integrate(body.State, s.dt, s.level.Collision, p.ID)
		s.level.Collision.SetBody(p.ID, body.State.Position, body.State.Params.Shape())
	}
}

func (s *Server) sendSnapshots() {
	chars := make([]snapshot.Character, 0, s.players.Len())
	for el := s.players.Front(); el != nil; el = el.Next() {
		if body, ok := s.Body(el.Key); ok {
			chars = append(chars, snapshot.CharacterFromState(el.Key, body.State))
		}
	}
	s.store.Capture(chars)

	for el := s.players.Front(); el != nil; el = el.Next() {
		p := el.Value
		diff, ok := s.store.DiffFor(p.AckedSnapshot(), p.AckedInput())
		if !ok {
			continue
		}
		payload, err := protocol.Encode(diff)
		if err != nil {
			logger.Error("encode snapshot", "player", p.ID, "err", err)
			continue
		}
		if err := p.conn.Send(network.Unreliable, payload); err != nil {
			s.Stats.SendFailures++
			logger.Debug("send snapshot", "player", p.ID, "err", err)
		}
	}
}

func (s *Server) sendReliable(p *Player, msg any) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		logger.Error("encode", "type", fmt.Sprintf("%T", msg), "err", err)
		return
	}
	if err := p.conn.Send(network.ReliableOrdered, payload); err != nil {
		s.Stats.SendFailures++
		logger.Warn("send", "player", p.ID, "type", fmt.Sprintf("%T", msg), "err", err)
	}
}

func (s *Server) broadcastReliable(msg any) {
	for el := s.players.Front(); el != nil; el = el.Next() {
		s.sendReliable(el.Value, msg)
	}
}
