// Package state owns the canonical simulation state.
//
// A [Manager] keeps the state behind a single [locked.Cond]. Every write
// funnels through [Manager.commit], which enters the slot's Mutate exactly
// once and queues the new state for delivery; observers are called with
// each queued state, in order, after the slot has been released.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/ufosim/internal/locked"
	"github.com/san-kum/ufosim/internal/ufo"
)

// ErrReentrantUpdate is returned by Update and Reset when called from inside
// a mutator on the same goroutine.
var ErrReentrantUpdate = ufo.ErrReentrantUpdate

// Token identifies a registered observer.
type Token uint64

type slot struct {
	state   ufo.State
	version uint64
}

type Manager struct {
	slot *locked.Cond[slot]
	log  zerolog.Logger

	obsMu     sync.RWMutex
	observers map[Token]func(ufo.State)
	nextToken Token

	// fanout holds the last delivered version. queued is a leaf lock taken
	// under the slot lock.
	fanout  *locked.Mutex[uint64]
	queueMu sync.Mutex
	queued  []delivery
}

func New(initial ufo.State, log zerolog.Logger) *Manager {
	return &Manager{
		slot:      locked.NewCond(slot{state: initial}),
		log:       log.With().Str("component", "state").Logger(),
		observers: make(map[Token]func(ufo.State)),
		fanout:    locked.NewMutex(uint64(0)),
	}
}

// Snapshot returns a copy of the current state. Calling it from inside a
// mutator is a programming error and panics.
func (m *Manager) Snapshot() ufo.State {
	s, err := m.slot.Load()
	if err != nil {
		panic(fmt.Errorf("%w: snapshot taken inside a mutator", ErrReentrantUpdate))
	}
	return s.state
}

// Version counts the states installed since construction.
func (m *Manager) Version() uint64 {
	s, err := m.slot.Load()
	if err != nil {
		panic(fmt.Errorf("%w: version read inside a mutator", ErrReentrantUpdate))
	}
	return s.version
}

// Update installs mutator(current) atomically and returns it. A result
// containing NaN or Inf is rejected and the current state kept.
func (m *Manager) Update(mutator func(ufo.State) ufo.State) (ufo.State, error) {
	return m.commit(mutator)
}

// Reset installs a fresh state.
func (m *Manager) Reset() (ufo.State, error) {
	return m.commit(func(ufo.State) ufo.State { return ufo.New() })
}

// commit is the single mutate-and-notify path of the manager.
func (m *Manager) commit(mutator func(ufo.State) ufo.State) (ufo.State, error) {
	var installed ufo.State
	err := m.slot.Mutate(func(s *slot) error {
		next := mutator(s.state)
		if !next.IsValid() {
			return ufo.ErrComputation
		}
		s.state = next
		s.version++
		installed = next
		m.enqueue(delivery{state: next, version: s.version})
		return nil
	})
	switch {
	case errors.Is(err, locked.ErrReentrant):
		m.log.Error().Msg("state update issued from inside a mutator")
		return ufo.State{}, fmt.Errorf("%w: update called from inside a mutator", ErrReentrantUpdate)
	case err != nil:
		return ufo.State{}, fmt.Errorf("state: update rejected: %w", err)
	}

	m.notify()
	return installed, nil
}

type delivery struct {
	state   ufo.State
	version uint64
}

// enqueue runs under the slot lock, so queued deliveries are in version
// order.
func (m *Manager) enqueue(d delivery) {
	m.queueMu.Lock()
	m.queued = append(m.queued, d)
	m.queueMu.Unlock()
}

func (m *Manager) dequeue() []delivery {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	batch := m.queued
	m.queued = nil
	return batch
}

// notify delivers every queued state to every observer, oldest first.
// Deliveries are serialized by the fanout section. A write issued by an
// observer lands here reentrantly; its state stays queued and the loop
// already running further up the same goroutine delivers it after the
// current round of callbacks.
func (m *Manager) notify() {
	err := m.fanout.With(func(last *uint64) error {
		for {
			batch := m.dequeue()
			if len(batch) == 0 {
				return nil
			}
			for _, d := range batch {
				*last = d.version
				for _, cb := range m.callbacks() {
					cb(d.state)
				}
			}
		}
	})
	if err != nil && !errors.Is(err, locked.ErrReentrant) {
		m.log.Error().Err(err).Msg("observer delivery failed")
	}
}

func (m *Manager) callbacks() []func(ufo.State) {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()

	tokens := make([]Token, 0, len(m.observers))
	for tok := range m.observers {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	cbs := make([]func(ufo.State), 0, len(tokens))
	for _, tok := range tokens {
		cbs = append(cbs, m.observers[tok])
	}
	return cbs
}

// Subscribe registers fn to be called with every newly installed state.
// fn runs on the writer's goroutine after the state lock is released, so it
// may read the manager freely. A slow observer delays the return of the
// Update that triggered it, not the installation of later states.
func (m *Manager) Subscribe(fn func(ufo.State)) Token {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextToken++
	m.observers[m.nextToken] = fn
	return m.nextToken
}

func (m *Manager) Unsubscribe(tok Token) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	delete(m.observers, tok)
}

// WaitFor blocks until pred holds for the current state or timeout elapses
// (timeout <= 0 waits forever), and reports whether pred was satisfied.
// pred runs with the state lock held and must not call back into m.
func (m *Manager) WaitFor(pred func(ufo.State) bool, timeout time.Duration) bool {
	ok, err := m.slot.WaitUntil(func(s slot) bool { return pred(s.state) }, timeout)
	if err != nil {
		panic(fmt.Errorf("%w: wait issued inside a mutator", ErrReentrantUpdate))
	}
	return ok
}
