package core

import (
	"math"
	"slices"
	"time"

	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/yohamta/donburi"
	"golang.org/x/time/rate"
)

// PlayerStats counts what happened to a player's inputs.
type PlayerStats struct {
	Received    int
	Stale       int
	RateLimited int
	Overflowed  int
	Consumed    int
	Repeated    int
}

// Player is the server-side state of one connection. It is not a donburi
// component; it exists only on the server and is touched only by the tick.
type Player struct {
	ID     uint64
	Name   string
	Entity donburi.Entity
	conn   network.Channel

	// Inputs waiting to be simulated, sorted by id.
	queue      []messages.PlayerInput
	queueLimit int
	limiter    *rate.Limiter

	// Last processed input id (for client-side prediction reconciliation).
	lastInput    uint32
	hasLastInput bool
	lastIntent   movement.Intent

	ackedSnapshot    uint64
	hasAckedSnapshot bool

	Stats PlayerStats
}

func newPlayer(id uint64, name string, conn network.Channel, opts Options) *Player {
	return &Player{
		ID:         id,
		Name:       name,
		conn:       conn,
		queueLimit: opts.InputQueueLimit,
		limiter:    rate.NewLimiter(rate.Limit(opts.InputRate), opts.InputBurst),
	}
}

// Offer queues an input received at now. Inputs at or below the last
// processed id, duplicates and inputs over the rate limit are dropped. The
// snapshot ack it carries is kept even when the input itself is stale.
func (p *Player) Offer(in messages.PlayerInput, now time.Time) bool {
	p.Stats.Received++
	if in.SnapshotID != nil && (!p.hasAckedSnapshot || *in.SnapshotID > p.ackedSnapshot) {
		p.ackedSnapshot = *in.SnapshotID
		p.hasAckedSnapshot = true
	}

	if p.hasLastInput && in.ID <= p.lastInput {
		p.Stats.Stale++
		return false
	}
	if !p.limiter.AllowN(now, 1) {
		p.Stats.RateLimited++
		return false
	}

	i, found := slices.BinarySearchFunc(p.queue, in.ID, func(q messages.PlayerInput, id uint32) int {
		switch {
		case q.ID < id:
			return -1
		case q.ID > id:
			return 1
		}
		return 0
	})
	if found {
		p.Stats.Stale++
		return false
	}
	in.Yaw = sanitize(in.Yaw)
	in.WishDir = movement.NormalizeWish(in.WishDir)
	p.queue = slices.Insert(p.queue, i, in)

	if p.queueLimit > 0 && len(p.queue) > p.queueLimit {
		p.queue = p.queue[len(p.queue)-p.queueLimit:]
		p.Stats.Overflowed++
	}
	return true
}

// Next returns the intent to simulate this tick. Once depth inputs are
// queued the oldest is consumed and becomes the acked input; otherwise the
// last consumed intent is repeated without advancing the ack.
func (p *Player) Next(depth int) (movement.Intent, bool) {
	if len(p.queue) > 0 && len(p.queue) >= max(depth, 1) {
		in := p.queue[0]
		p.queue = p.queue[1:]
		p.lastInput = in.ID
		p.hasLastInput = true
		p.lastIntent = in.Intent()
		p.Stats.Consumed++
		return p.lastIntent, true
	}
	p.Stats.Repeated++
	// a repeated jump would fire again on landing
	repeat := p.lastIntent
	repeat.WishJump = false
	return repeat, false
}

// AckedInput is the id of the last simulated input, or nil before the first.
func (p *Player) AckedInput() *uint32 {
	if !p.hasLastInput {
		return nil
	}
	id := p.lastInput
	return &id
}

// AckedSnapshot is the newest snapshot id the client reported, or nil.
func (p *Player) AckedSnapshot() *uint64 {
	if !p.hasAckedSnapshot {
		return nil
	}
	id := p.ackedSnapshot
	return &id
}

// Queued returns the number of inputs waiting.
func (p *Player) Queued() int {
	return len(p.queue)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
