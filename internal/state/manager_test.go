package state_test

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/ufosim/internal/state"
	"github.com/san-kum/ufosim/internal/ufo"
)

// uniform returns a state whose numeric fields all equal k, so a torn read
// shows up as a mix of values.
func uniform(k float64) ufo.State {
	f := make([]float64, len(ufo.FieldNames))
	for i := range f {
		f[i] = k
	}
	f[len(f)-1] = 0
	return ufo.FromFields(f)
}

func isUniform(s ufo.State) (float64, bool) {
	f := s.Fields()
	for _, v := range f[:len(f)-1] {
		if v != f[0] {
			return 0, false
		}
	}
	return f[0], true
}

var _ = Describe("Manager", func() {
	var m *state.Manager

	BeforeEach(func() {
		m = state.New(ufo.New(), zerolog.Nop())
	})

	It("installs and returns the mutated state", func() {
		s, err := m.Update(func(s ufo.State) ufo.State { return s.WithPosition(1, 2, 3) })
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Position()).To(Equal(ufo.Vec3{X: 1, Y: 2, Z: 3}))
		Expect(m.Snapshot()).To(Equal(s))
		Expect(m.Version()).To(Equal(uint64(1)))
	})

	It("resets to a fresh state", func() {
		_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(5, 5, 5) })
		s, err := m.Reset()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(ufo.New()))
		Expect(m.Snapshot()).To(Equal(ufo.New()))
	})

	It("rejects NaN results and keeps the previous state", func() {
		_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(1, 1, 1) })
		_, err := m.Update(func(s ufo.State) ufo.State { return s.WithPosition(math.NaN(), 0, 0) })
		Expect(err).To(MatchError(ufo.ErrComputation))
		Expect(m.Snapshot().X).To(Equal(1.0))
	})

	It("refuses a reentrant update instead of deadlocking", func() {
		var inner error
		_, err := m.Update(func(s ufo.State) ufo.State {
			_, inner = m.Update(func(s ufo.State) ufo.State { return s })
			return s.WithPosition(0, 0, 7)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(inner).To(MatchError(state.ErrReentrantUpdate))
		Expect(m.Snapshot().Z).To(Equal(7.0))
	})

	It("panics on a snapshot taken inside a mutator", func() {
		Expect(func() {
			_, _ = m.Update(func(s ufo.State) ufo.State {
				_ = m.Snapshot()
				return s
			})
		}).To(Panic())
		// and the slot is usable afterwards
		_, err := m.Update(func(s ufo.State) ufo.State { return s })
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("observers", func() {
		It("are notified with every new state outside the lock", func() {
			var seen []float64
			tok := m.Subscribe(func(s ufo.State) {
				// reading back must not deadlock
				seen = append(seen, m.Snapshot().Z)
			})
			_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 1) })
			_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 2) })
			Expect(seen).To(Equal([]float64{1, 2}))

			m.Unsubscribe(tok)
			_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 3) })
			Expect(seen).To(HaveLen(2))
		})

		It("see every state written by an observer, in order", func() {
			var seen []float64
			m.Subscribe(func(s ufo.State) {
				seen = append(seen, s.X)
				if s.X == 1 {
					_, err := m.Update(func(s ufo.State) ufo.State { return s.WithPosition(2, 0, 0) })
					Expect(err).NotTo(HaveOccurred())
					_, err = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(3, 0, 0) })
					Expect(err).NotTo(HaveOccurred())
				}
			})

			_, err := m.Update(func(s ufo.State) ufo.State { return s.WithPosition(1, 0, 0) })
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]float64{1, 2, 3}))
			Expect(m.Version()).To(Equal(uint64(3)))
		})

		It("never see states go backwards under concurrent writers", func() {
			var last atomic.Uint64
			var regressions, delivered atomic.Int32
			var mu sync.Mutex
			m.Subscribe(func(s ufo.State) {
				mu.Lock()
				defer mu.Unlock()
				delivered.Add(1)
				v := uint64(s.FlightTime)
				if v < last.Load() {
					regressions.Add(1)
				}
				last.Store(v)
			})

			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 200; i++ {
						_, _ = m.Update(func(s ufo.State) ufo.State {
							s.FlightTime++
							return s
						})
					}
				}()
			}
			wg.Wait()
			Expect(regressions.Load()).To(BeZero())
			Expect(delivered.Load()).To(Equal(int32(800)))
			Expect(m.Snapshot().FlightTime).To(Equal(800.0))
		})
	})

	Describe("concurrent readers", func() {
		It("never observe a torn state", func() {
			const writes = 2000
			stop := make(chan struct{})
			var torn, backwards atomic.Int32

			var readers sync.WaitGroup
			for r := 0; r < 8; r++ {
				readers.Add(1)
				go func() {
					defer readers.Done()
					prev := -1.0
					for {
						select {
						case <-stop:
							return
						default:
						}
						k, ok := isUniform(m.Snapshot())
						if !ok {
							torn.Add(1)
						}
						if k < prev {
							backwards.Add(1)
						}
						prev = k
					}
				}()
			}

			for i := 1; i <= writes; i++ {
				_, err := m.Update(func(ufo.State) ufo.State { return uniform(float64(i)) })
				Expect(err).NotTo(HaveOccurred())
			}
			close(stop)
			readers.Wait()

			Expect(torn.Load()).To(BeZero())
			Expect(backwards.Load()).To(BeZero())
		})
	})

	Describe("WaitFor", func() {
		It("returns true once an update satisfies the predicate", func() {
			for i := 0; i < 100; i++ {
				m := state.New(ufo.New(), zerolog.Nop())
				result := make(chan bool, 1)
				started := make(chan struct{})
				go func() {
					close(started)
					result <- m.WaitFor(func(s ufo.State) bool { return s.Z > 10 }, 2*time.Second)
				}()
				<-started
				_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 11) })
				Eventually(result).Should(Receive(BeTrue()))
			}
		})

		It("returns false on timeout", func() {
			start := time.Now()
			Expect(m.WaitFor(func(s ufo.State) bool { return s.Z > 10 }, 20*time.Millisecond)).To(BeFalse())
			Expect(time.Since(start)).To(BeNumerically(">=", 20*time.Millisecond))
		})

		It("is woken by a reset", func() {
			_, _ = m.Update(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 50) })
			result := make(chan bool, 1)
			go func() {
				result <- m.WaitFor(func(s ufo.State) bool { return s.Z == 0 }, 0)
			}()
			Consistently(result, 50*time.Millisecond).ShouldNot(Receive())
			_, _ = m.Reset()
			Eventually(result).Should(Receive(BeTrue()))
		})
	})

	Describe("concurrent writers", func() {
		It("are linearizable", func() {
			f := func(s ufo.State) ufo.State {
				s.X = s.X * 2
				s.Y = s.X
				return s
			}
			g := func(s ufo.State) ufo.State {
				s.X = s.X + 3
				s.Z = s.X
				return s
			}
			s0 := ufo.New().WithPosition(1, 0, 0)

			for i := 0; i < 200; i++ {
				m := state.New(s0, zerolog.Nop())
				var wg sync.WaitGroup
				wg.Add(2)
				go func() { defer wg.Done(); _, _ = m.Update(f) }()
				go func() { defer wg.Done(); _, _ = m.Update(g) }()
				wg.Wait()

				Expect(m.Snapshot()).To(Or(Equal(g(f(s0))), Equal(f(g(s0)))))
			}
		})
	})
})
