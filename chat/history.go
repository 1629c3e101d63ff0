package chat

import "sync"

// History is the ordered, append-only message log consumed by the UI.
// It only grows; messages are never mutated or removed once appended,
// except by Reset on logout.
type History struct {
	mu       sync.Mutex
	msgs     []Message
	onChange func()
}

func NewHistory() *History {
	return &History{}
}

// OnChange registers a callback fired after every append or reset.
// Must be set before concurrent use.
func (h *History) OnChange(fn func()) {
	h.onChange = fn
}

func (h *History) Append(m Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, m)
	h.mu.Unlock()
	h.notify()
}

// Messages returns a snapshot of the log in append order.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Reset discards the whole log. Only logout does this.
func (h *History) Reset() {
	h.mu.Lock()
	h.msgs = nil
	h.mu.Unlock()
	h.notify()
}

func (h *History) notify() {
	if h.onChange != nil {
		h.onChange()
	}
}
