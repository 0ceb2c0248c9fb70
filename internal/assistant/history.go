package assistant

import "sync"

// History is an append-only, ordered conversation log. It has no size bound.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns a history seeded with turns, in order.
func NewHistory(turns ...Turn) *History {
	h := &History{}
	h.turns = append(h.turns, turns...)
	return h
}

func (h *History) Append(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Turns returns a copy of the log in chronological order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
