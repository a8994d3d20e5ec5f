package systems

import (
	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/collision"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/shared/protocol"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

var logger = log.WithPrefix("client")

// ClientOptions configures a ClientSim.
type ClientOptions struct {
	Tuning      movement.Tuning
	Params      movement.Params
	TickRate    int
	Multiplayer config.MultiplayerConfig
}

// DefaultClientOptions builds options from the package config.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Tuning:      movement.TuningFromConfig(config.Movement),
		Params:      movement.ParamsFromConfig(config.Character),
		TickRate:    config.Client.TickRate,
		Multiplayer: config.Multiplayer,
	}
}

// ClientStats counts what the client pipeline did.
type ClientStats struct {
	DecodeErrors  int
	DiffsApplied  int
	StaleDiffs    int
	Corrections   int
	InputsSent    int
	SendFailures  int
	LastDivergent float64
}

var characterQuery = donburi.NewQuery(filter.Contains(netcomponents.Character, netcomponents.Body))

// ClientSim is the client side of the movement core. Per fixed tick it
// applies the newest snapshot diff, predicts the local character and sends
// the new input; per render frame it smooths the visuals. Nothing in it is
// safe for concurrent use; the channel is the only boundary.
type ClientSim struct {
	World     donburi.World
	Collision *collision.World

	channel  network.Channel
	history  network.InputHistory
	cursor   SnapshotCursor
	smoother *Smoother
	opts     ClientOptions
	dt       float64

	localID  uint64
	welcomed bool
	entities map[uint64]donburi.Entity
	deleted  map[uint64]struct{}
	names    map[uint64]string
	pending  *messages.SnapshotDiff
	clock    float64

	// Rejected holds the reason of a refused join.
	Rejected string

	Stats ClientStats
}

// NewClientSim creates a client simulation over a channel. world holds the
// static level geometry; remote characters are added to it as obstacles.
func NewClientSim(ch network.Channel, world *collision.World, opts ClientOptions) *ClientSim {
	if opts.TickRate <= 0 {
		opts.TickRate = 60
	}
	return &ClientSim{
		World:     donburi.NewWorld(),
		Collision: world,
		channel:   ch,
		smoother:  NewSmoother(opts.Multiplayer),
		opts:      opts,
		dt:        config.TickDelta(opts.TickRate),
		entities:  make(map[uint64]donburi.Entity),
		deleted:   make(map[uint64]struct{}),
		names:     make(map[uint64]string),
	}
}

// LocalID returns the id of the local character once welcomed.
func (c *ClientSim) LocalID() (uint64, bool) {
	return c.localID, c.welcomed
}

// LastSnapshot returns the newest processed snapshot id.
func (c *ClientSim) LastSnapshot() *uint64 {
	return c.cursor.Last()
}

// History exposes the input window.
func (c *ClientSim) History() *network.InputHistory {
	return &c.history
}

// Name returns the display name of a client.
func (c *ClientSim) Name(id uint64) string {
	return c.names[id]
}

// Entry returns the character entry of a client.
func (c *ClientSim) Entry(clientID uint64) (*donburi.Entry, bool) {
	e, ok := c.entities[clientID]
	if !ok || !c.World.Valid(e) {
		return nil, false
	}
	return c.World.Entry(e), true
}

// LocalEntry returns the entry of the local character, if spawned.
func (c *ClientSim) LocalEntry() (*donburi.Entry, bool) {
	if !c.welcomed {
		return nil, false
	}
	return c.Entry(c.localID)
}

// CorrectionProgress reports the share of the last correction the local
// visual has blended away. ok is false when no correction is running.
func (c *ClientSim) CorrectionProgress() (progress float64, ok bool) {
	entry, found := c.LocalEntry()
	if !found {
		return 0, false
	}
	corr := netcomponents.Visual.Get(entry).Correction
	if corr == nil {
		return 0, false
	}
	return corr.Progress, true
}

// RequestJoin asks the server for a character.
func (c *ClientSim) RequestJoin(name, version string) error {
	payload, err := protocol.Encode(messages.JoinRequest{Version: version, PlayerName: name})
	if err != nil {
		return err
	}
	return c.channel.Send(network.ReliableOrdered, payload)
}

// ReceiveMessages drains the channel without blocking. Lifecycle messages are
// handled immediately; of the snapshot diffs only the newest is kept for the
// next tick.
func (c *ClientSim) ReceiveMessages() {
	for {
		payload, ok := c.channel.TryReceive(network.ReliableOrdered)
		if !ok {
			break
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			c.Stats.DecodeErrors++
			logger.Warn("dropping reliable message", "err", err)
			continue
		}
		c.handleReliable(msg)
	}

	for {
		payload, ok := c.channel.TryReceive(network.Unreliable)
		if !ok {
			break
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			c.Stats.DecodeErrors++
			logger.Warn("dropping unreliable message", "err", err)
			continue
		}
		diff, ok := msg.(messages.SnapshotDiff)
		if !ok {
			logger.Warn("unexpected unreliable message", "type", msg)
			continue
		}
		if c.pending == nil || diff.ID > c.pending.ID {
			c.pending = &diff
		}
	}
}

func (c *ClientSim) handleReliable(msg any) {
	switch m := msg.(type) {
	case messages.Welcome:
		if m.TickRate != 0 && m.TickRate != c.opts.TickRate {
			logger.Warn("server tick rate differs", "server", m.TickRate, "client", c.opts.TickRate)
		}
		c.localID = m.ClientID
		c.welcomed = true
		logger.Info("welcomed", "id", m.ClientID)
		if entry, ok := c.Entry(m.ClientID); ok {
			c.makeLocal(entry)
		}
	case messages.JoinRejected:
		c.Rejected = m.Reason
		logger.Warn("join rejected", "reason", m.Reason)
	case messages.PlayerJoined:
		c.names[m.ID] = m.Name
		logger.Info("player joined", "id", m.ID, "name", m.Name)
	case messages.SpawnEntity:
		delete(c.deleted, m.ClientID)
		entry := c.spawn(m.ClientID, m.Position)
		netcomponents.Body.Get(entry).State.Yaw = m.Yaw
	case messages.DespawnEntity:
		c.despawn(m.ClientID)
		logger.Info("player left", "id", m.ClientID)
	default:
		logger.Warn("unexpected reliable message", "type", msg)
	}
}

func (c *ClientSim) isLocal(clientID uint64) bool {
	return c.welcomed && clientID == c.localID
}

func (c *ClientSim) spawn(clientID uint64, pos mgl64.Vec3) *donburi.Entry {
	if entry, ok := c.Entry(clientID); ok {
		body := netcomponents.Body.Get(entry)
		body.Teleport(pos)
		if !c.isLocal(clientID) {
			c.Collision.SetBody(clientID, pos, body.State.Params.Shape())
		}
		return entry
	}

	e := c.World.Create(netcomponents.Character, netcomponents.Body, netcomponents.Visual)
	entry := c.World.Entry(e)
	netcomponents.Character.SetValue(entry, netcomponents.CharacterData{ClientID: clientID})

	state := movement.State{Position: pos, Kind: movement.KindRemote, Params: c.opts.Params}
	netcomponents.Body.SetValue(entry, netcomponents.BodyData{State: state, PrevPosition: pos})
	netcomponents.Visual.SetValue(entry, netcomponents.VisualData{Position: pos, Rotation: mgl64.QuatIdent()})
	c.entities[clientID] = e

	if c.isLocal(clientID) {
		c.makeLocal(entry)
	} else {
		c.Collision.SetBody(clientID, pos, c.opts.Params.Shape())
	}
	return entry
}

func (c *ClientSim) makeLocal(entry *donburi.Entry) {
	body := netcomponents.Body.Get(entry)
	body.State.Kind = movement.KindLocal
	c.Collision.RemoveBody(netcomponents.Character.Get(entry).ClientID)
}

// despawn removes a character for good. Only a SpawnEntity brings it back.
func (c *ClientSim) despawn(clientID uint64) {
	c.deleted[clientID] = struct{}{}
	c.remove(clientID)
}

// remove drops a character without remembering it, so any newer diff that
// carries its position spawns it again.
func (c *ClientSim) remove(clientID uint64) {
	c.Collision.RemoveBody(clientID)
	e, ok := c.entities[clientID]
	if !ok {
		return
	}
	delete(c.entities, clientID)
	if c.World.Valid(e) {
		c.World.Remove(e)
	}
}

// FixedTick runs one simulation step with the player's intent for this tick.
func (c *ClientSim) FixedTick(intent movement.Intent) {
	c.clock += c.dt

	characterQuery.Each(c.World, func(entry *donburi.Entry) {
		netcomponents.Body.Get(entry).BeginTick()
	})

	if c.pending != nil {
		diff := *c.pending
		c.pending = nil
		c.ApplySnapshot(diff)
	}

	c.predict(intent)
	c.sendInputs()
}

// ApplySnapshot processes a snapshot diff. Diffs at or below the last
// processed id are ignored, so applying one twice changes nothing.
func (c *ClientSim) ApplySnapshot(diff messages.SnapshotDiff) {
	if !c.cursor.Accept(diff.ID) {
		c.Stats.StaleDiffs++
		return
	}
	c.Stats.DiffsApplied++

	for _, id := range diff.Removed {
		c.despawn(id)
	}

	present := make(map[uint64]struct{}, len(diff.Characters))
	for i := range diff.Characters {
		cd := &diff.Characters[i]
		present[cd.ClientID] = struct{}{}

		if c.isLocal(cd.ClientID) {
			c.reconcileLocal(cd, diff.AckedInputID)
			continue
		}

		entry, ok := c.Entry(cd.ClientID)
		if !ok {
			if _, gone := c.deleted[cd.ClientID]; gone || cd.Position == nil {
				continue
			}
			entry = c.spawn(cd.ClientID, *cd.Position)
		}
		body := netcomponents.Body.Get(entry)
		ApplyRemote(body, cd)
		c.Collision.SetBody(cd.ClientID, body.State.Position, body.State.Params.Shape())
	}

	// A full diff may have been captured before a character announced on the
	// reliable channel joined; pruning must not hide it from later diffs.
	if diff.Full {
		for id := range c.entities {
			if _, ok := present[id]; !ok && !c.isLocal(id) {
				c.remove(id)
			}
		}
	}
}

func (c *ClientSim) reconcileLocal(cd *messages.CharacterDiff, ackedInput *uint32) {
	entry, ok := c.LocalEntry()
	if !ok {
		return
	}
	body := netcomponents.Body.Get(entry)
	visual := netcomponents.Visual.Get(entry)

	res := ReconcileLocal(body, visual, cd, ackedInput, &c.history, Replay{
		Tuning:    c.opts.Tuning,
		DT:        c.dt,
		Sweeper:   c.Collision,
		Self:      c.localID,
		Threshold: c.opts.Multiplayer.CorrectionThreshold,
	})
	if res.Corrected {
		c.Stats.Corrections++
		c.Stats.LastDivergent = res.Divergence
		logger.Debug("corrected local prediction", "divergence", res.Divergence, "replayed", res.Replayed)
	}
}

func (c *ClientSim) predict(intent movement.Intent) {
	entry, ok := c.LocalEntry()
	if !ok {
		return
	}
	body := netcomponents.Body.Get(entry)

	sample := c.history.Append(messages.NewPlayerInput(0, c.cursor.Last()))
	sample.Yaw = intent.Yaw
	sample.WishDir = movement.NormalizeWish(intent.WishDir)
	sample.WishJump = intent.WishJump
	sample.Timestamp = c.clock

	body.State.Yaw = sample.Yaw
	body.State.Velocity = c.opts.Tuning.Apply(body.State.Velocity, body.State.Grounded, sample.Intent(), c.dt)
	body.State = movement.Integrate(body.State, c.dt, c.Collision, c.localID)
	sample.RecordPostMove(body.State)
}

func (c *ClientSim) sendInputs() {
	for _, in := range c.history.Unsent() {
		payload, err := protocol.Encode(in)
		if err != nil {
			logger.Error("encode input", "id", in.ID, "err", err)
			continue
		}
		if err := c.channel.Send(network.Unreliable, payload); err != nil {
			c.Stats.SendFailures++
			logger.Debug("send input", "id", in.ID, "err", err)
			continue
		}
		in.SendCount++
		c.Stats.InputsSent++
	}
}

// Frame updates every visual pose. overstep is the fraction of a tick
// elapsed since the last FixedTick and frameDt the render frame duration.
func (c *ClientSim) Frame(frameDt, overstep float64) {
	characterQuery.Each(c.World, func(entry *donburi.Entry) {
		if !entry.HasComponent(netcomponents.Visual) {
			return
		}
		c.smoother.Update(netcomponents.Body.Get(entry), netcomponents.Visual.Get(entry), overstep, frameDt)
	})
}

// Characters calls fn for every character with its rendered pose.
func (c *ClientSim) Characters(fn func(ch *netcomponents.CharacterData, body *netcomponents.BodyData, visual *netcomponents.VisualData)) {
	characterQuery.Each(c.World, func(entry *donburi.Entry) {
		fn(netcomponents.Character.Get(entry), netcomponents.Body.Get(entry), netcomponents.Visual.Get(entry))
	})
}
