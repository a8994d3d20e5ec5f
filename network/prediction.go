package network

import (
	"fmt"

	"github.com/automoto/boxman/shared/messages"
	"github.com/go-gl/mathgl/mgl64"
)

// HistorySize is the number of inputs kept for replay.
const HistorySize = 64

// InputHistory is a ring buffer of the most recent inputs and their
// predicted outcomes. Slot i holds the input with id i % HistorySize.
// Pointers it returns stay valid until that slot is overwritten by a later
// Append.
type InputHistory struct {
	history [HistorySize]messages.PlayerInput
	nextID  uint32
}

// Append stores an input under the next id and returns the stored copy.
// The id and send count of in are overwritten.
func (h *InputHistory) Append(in messages.PlayerInput) *messages.PlayerInput {
	in.ID = h.nextID
	in.SendCount = 0
	slot := &h.history[in.ID%HistorySize]
	*slot = in
	h.nextID++
	return slot
}

// NextID returns the id the next appended input will get.
func (h *InputHistory) NextID() uint32 {
	return h.nextID
}

// Len returns the number of inputs in the window.
func (h *InputHistory) Len() int {
	return int(min(h.nextID, HistorySize))
}

func (h *InputHistory) oldest() uint32 {
	return h.nextID - uint32(h.Len())
}

// Get retrieves a stored input by id. Returns false if the id was never
// appended or has been evicted.
func (h *InputHistory) Get(id uint32) (*messages.PlayerInput, bool) {
	if id >= h.nextID || id < h.oldest() {
		return nil, false
	}
	return &h.history[id%HistorySize], true
}

// Latest returns the most recently appended input.
func (h *InputHistory) Latest() (*messages.PlayerInput, bool) {
	if h.nextID == 0 {
		return nil, false
	}
	return h.Get(h.nextID - 1)
}

// At returns the i-th input of the window, oldest first. It panics when i is
// out of range.
func (h *InputHistory) At(i int) *messages.PlayerInput {
	if i < 0 || i >= h.Len() {
		panic(fmt.Sprintf("input history index %d out of range [0,%d)", i, h.Len()))
	}
	return &h.history[(h.oldest()+uint32(i))%HistorySize]
}

// After returns the stored inputs with ids greater than ack in increasing id
// order. A nil ack returns the whole window.
func (h *InputHistory) After(ack *uint32) []*messages.PlayerInput {
	start := h.oldest()
	if ack != nil && uint64(*ack)+1 > uint64(start) {
		if uint64(*ack)+1 >= uint64(h.nextID) {
			return nil
		}
		start = *ack + 1
	}
	out := make([]*messages.PlayerInput, 0, h.nextID-start)
	for id := start; id < h.nextID; id++ {
		out = append(out, &h.history[id%HistorySize])
	}
	return out
}

// Unsent returns the inputs that have not been sent yet, oldest first.
func (h *InputHistory) Unsent() []*messages.PlayerInput {
	var out []*messages.PlayerInput
	for i := 0; i < h.Len(); i++ {
		if in := h.At(i); in.SendCount == 0 {
			out = append(out, in)
		}
	}
	return out
}

// PredictionError returns the distance between the predicted position after
// input id and an authoritative position.
func (h *InputHistory) PredictionError(id uint32, authoritative mgl64.Vec3) (float64, bool) {
	in, ok := h.Get(id)
	if !ok {
		return 0, false
	}
	return in.PostMovePosition.Sub(authoritative).Len(), true
}
