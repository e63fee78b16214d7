package locked

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrReentrant is returned when a goroutine tries to enter a section it
// already holds.
var ErrReentrant = errors.New("locked: reentrant acquisition")

// holder tracks the goroutine inside a section. It is written only while
// the section's lock is held, so a reader can only ever see its own id if it
// is the holder.
type holder struct {
	id atomic.Int64
}

func (h *holder) check() (int64, error) {
	id := goid()
	if h.id.Load() == id {
		return id, ErrReentrant
	}
	return id, nil
}

// Mutex is an exclusive section around a value of type T.
type Mutex[T any] struct {
	mu     sync.Mutex
	holder holder
	v      T
}

func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{v: v}
}

// With runs fn with exclusive access to the value. The pointer must not be
// retained after fn returns.
func (m *Mutex[T]) With(fn func(v *T) error) error {
	id, err := m.holder.check()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.holder.id.Store(id)
	defer func() {
		m.holder.id.Store(0)
		m.mu.Unlock()
	}()
	return fn(&m.v)
}
