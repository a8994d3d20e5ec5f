package systems

import (
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/messages"
	"github.com/automoto/boxman/shared/movement"
	"github.com/automoto/boxman/shared/netcomponents"
)

// SnapshotCursor tracks the newest snapshot the client has processed. Its
// value is attached to every outgoing input as the snapshot ack.
type SnapshotCursor struct {
	id    uint64
	valid bool
}

// Last returns the newest processed snapshot id, or nil before the first.
func (c *SnapshotCursor) Last() *uint64 {
	if !c.valid {
		return nil
	}
	id := c.id
	return &id
}

// Accept advances the cursor. It returns false for ids at or below the
// current one, which must be ignored.
func (c *SnapshotCursor) Accept(id uint64) bool {
	if c.valid && id <= c.id {
		return false
	}
	c.id = id
	c.valid = true
	return true
}

// Replay holds what resimulating buffered inputs needs.
type Replay struct {
	Tuning    movement.Tuning
	DT        float64
	Sweeper   movement.Sweeper
	Self      uint64
	Threshold float64 // divergence that triggers a correction
}

// Reconciliation reports what ReconcileLocal did.
type Reconciliation struct {
	Checked    bool    // an acked sample was found and compared
	Divergence float64 // distance between server and predicted position
	Corrected  bool
	Replayed   int // inputs resimulated after the ack
}

// ReconcileLocal compares the authoritative state of the local character
// with the prediction recorded for the acked input. Above the threshold the
// body snaps to the server state and every newer input is replayed on top of
// it; the visual is flagged so the smoother can hide the jump.
func ReconcileLocal(body *netcomponents.BodyData, visual *netcomponents.VisualData, diff *messages.CharacterDiff, ackedInput *uint32, history *network.InputHistory, r Replay) Reconciliation {
	var res Reconciliation
	if diff.Position == nil || ackedInput == nil {
		return res
	}
	acked, ok := history.Get(*ackedInput)
	if !ok {
		return res
	}

	authoritative := *diff.Position
	res.Checked = true
	res.Divergence = authoritative.Sub(acked.PostMovePosition).Len()
	if res.Divergence <= r.Threshold {
		return res
	}
	res.Corrected = true

	if visual != nil {
		visual.Correction = &netcomponents.CorrectionData{From: visual.Position}
	}

	yaw, pitch := body.State.Yaw, body.State.Pitch

	state := body.State
	state.Position = authoritative
	state.Velocity = acked.PostMoveVelocity
	state.Grounded = acked.PostMoveGrounded
	if diff.Velocity != nil {
		state.Velocity = *diff.Velocity
	}
	if diff.Grounded != nil {
		state.Grounded = *diff.Grounded
	}
	acked.RecordPostMove(state)

	for _, in := range history.After(ackedInput) {
		state.Velocity = r.Tuning.Apply(state.Velocity, state.Grounded, in.Intent(), r.DT)
		state = movement.Integrate(state, r.DT, r.Sweeper, r.Self)
		in.RecordPostMove(state)
		res.Replayed++
	}

	state.Yaw, state.Pitch = yaw, pitch
	body.State = state
	return res
}

// ApplyRemote overwrites a remote character with the fields present in diff.
func ApplyRemote(body *netcomponents.BodyData, diff *messages.CharacterDiff) {
	if diff.Position != nil {
		body.State.Position = *diff.Position
	}
	if diff.Velocity != nil {
		body.State.Velocity = *diff.Velocity
	}
	if diff.Yaw != nil {
		body.State.Yaw = *diff.Yaw
	}
	if diff.Pitch != nil {
		body.State.Pitch = *diff.Pitch
	}
	if diff.Grounded != nil {
		body.State.Grounded = *diff.Grounded
	}
}
