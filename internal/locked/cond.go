package locked

import (
	"sync"
	"time"
)

// Cond is an exclusive section around a value of type T paired with a
// condition variable. Every successful Mutate broadcasts to all waiters.
type Cond[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	holder holder
	v      T
}

func NewCond[T any](v T) *Cond[T] {
	c := &Cond[T]{v: v}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Cond[T]) acquire() (int64, error) {
	id, err := c.holder.check()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.holder.id.Store(id)
	return id, nil
}

func (c *Cond[T]) release() {
	c.holder.id.Store(0)
	c.mu.Unlock()
}

// Load returns a copy of the value.
func (c *Cond[T]) Load() (T, error) {
	if _, err := c.acquire(); err != nil {
		var zero T
		return zero, err
	}
	defer c.release()
	return c.v, nil
}

// Mutate is the only way to change the value. fn runs with the lock held;
// when it returns nil the change is kept and all waiters are woken, whether
// or not any are blocked. When fn returns an error the broadcast is skipped
// and the error returned. fn is responsible for leaving the value unchanged
// on error.
func (c *Cond[T]) Mutate(fn func(v *T) error) error {
	if _, err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	if err := fn(&c.v); err != nil {
		return err
	}
	c.cond.Broadcast()
	return nil
}

// WaitUntil blocks until pred holds for the value or timeout elapses, and
// reports which. pred is evaluated with the lock held, on the value current
// at that moment, after every wake-up. A timeout <= 0 waits forever.
func (c *Cond[T]) WaitUntil(pred func(v T) bool, timeout time.Duration) (bool, error) {
	id, err := c.acquire()
	if err != nil {
		return false, err
	}
	defer c.release()

	if pred(c.v) {
		return true, nil
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer timer.Stop()
	}

	for {
		c.holder.id.Store(0)
		c.cond.Wait()
		c.holder.id.Store(id)

		if pred(c.v) {
			return true, nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return false, nil
		}
	}
}
