package phase

import "github.com/san-kum/ufosim/internal/ufo"

// History is a fixed-capacity ring of snapshots, oldest first.
type History struct {
	buf   []ufo.State
	start int
	n     int
}

func NewHistory(capacity int) *History {
	return &History{buf: make([]ufo.State, capacity)}
}

func (h *History) Push(s ufo.State) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int { return h.n }
func (h *History) Cap() int { return len(h.buf) }

func (h *History) Reset() {
	h.start, h.n = 0, 0
}

// Last returns up to k most recent snapshots, oldest first, as a new slice.
func (h *History) Last(k int) []ufo.State {
	if k > h.n {
		k = h.n
	}
	out := make([]ufo.State, k)
	for i := 0; i < k; i++ {
		out[i] = h.buf[(h.start+h.n-k+i)%len(h.buf)]
	}
	return out
}
