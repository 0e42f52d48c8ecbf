package board

import "github.com/adwski/netboard/model"

// history is the bounded recent-message cache. Not safe for concurrent
// use on its own: Board guards it with the same mutex that guards the
// subscriber set, which is what makes replay atomic with fan-out.
type history struct {
	capacity int
	msgs     []model.Message
}

func newHistory(capacity int) *history {
	return &history{
		capacity: capacity,
		msgs:     make([]model.Message, 0, capacity),
	}
}

// push appends at the tail, evicting the head once capacity is exceeded.
func (h *history) push(msg model.Message) {
	h.msgs = append(h.msgs, msg)
	if len(h.msgs) > h.capacity {
		h.msgs = h.msgs[1:]
	}
}

// snapshot returns a copy, oldest first.
func (h *history) snapshot() []model.Message {
	out := make([]model.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}
