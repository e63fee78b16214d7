package sim_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/sim"
	"github.com/san-kum/ufosim/internal/ufo"
)

// unpaced returns a config that ticks as fast as the machine allows.
func unpaced() config.Config {
	cfg := config.DefaultConfig()
	cfg.SpeedFactor = 0
	cfg.AutopilotInterval = time.Millisecond
	return cfg
}

func climb(s ufo.State) ufo.State { return s.WithDeltas(10, 0, 45) }

func above(z float64) func(ufo.State) bool {
	return func(s ufo.State) bool { return s.Z > z }
}

var _ = Describe("Simulation", func() {
	It("rejects an invalid config", func() {
		cfg := config.DefaultConfig()
		cfg.Dt = -1
		_, err := sim.New(cfg)
		Expect(err).To(MatchError(ufo.ErrInvalidConfig))
	})

	It("rejects a non-finite initial state", func() {
		_, err := sim.New(config.DefaultConfig(), sim.WithInitialState(ufo.State{Z: math.NaN()}))
		Expect(err).To(MatchError(ufo.ErrComputation))
	})

	It("starts idle", func() {
		s, err := sim.New(config.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Phase()).To(Equal(phase.Idle))
		Expect(s.Snapshot()).To(Equal(ufo.New()))
		Expect(s.Ticks()).To(BeZero())
	})

	Describe("Tick", func() {
		var s *sim.Simulation

		BeforeEach(func() {
			var err error
			s, err = sim.New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
		})

		It("advances flight time and notifies observers", func() {
			var seen atomic.Int32
			tok := s.Subscribe(func(ufo.State) { seen.Add(1) })

			for i := 0; i < 4; i++ {
				outcome, err := s.Tick()
				Expect(err).NotTo(HaveOccurred())
				Expect(outcome).To(Equal(ufo.Continuing))
			}
			Expect(s.Snapshot().FlightTime).To(BeNumerically("~", 0.2, 1e-9))
			Expect(seen.Load()).To(Equal(int32(4)))

			s.Unsubscribe(tok)
			_, _ = s.Tick()
			Expect(seen.Load()).To(Equal(int32(4)))
		})

		It("runs a climb script to completion", func() {
			q := s.CreateCommandQueue().MustPush(
				command.SetState(climb),
				command.WaitCondition(above(10), 5*time.Second),
				command.Log("reached"),
			)
			Expect(s.ExecuteCommandQueue(q)).To(Succeed())

			for i := 0; i < 200 && !q.IsCompleted(); i++ {
				_, err := s.Tick()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(q.IsCompleted()).To(BeTrue())
			Expect(q.Err()).NotTo(HaveOccurred())
			Expect(s.Snapshot().Z).To(BeNumerically(">", 10))
			Expect(s.Phase()).To(Equal(phase.Takeoff))
			Expect(s.Maneuver().Ascending).To(BeTrue())
		})

		It("times a wait out on simulated time", func() {
			q := s.CreateCommandQueue().MustPush(command.WaitCondition(above(1000), time.Second))
			Expect(s.ExecuteCommandQueue(q)).To(Succeed())

			for i := 0; i < 19; i++ {
				_, _ = s.Tick()
			}
			Expect(q.Err()).NotTo(HaveOccurred())
			for i := 0; i < 2; i++ {
				_, _ = s.Tick()
			}
			Expect(q.Err()).To(MatchError(command.ErrWaitTimeout))
		})

		It("reports a computation error without installing it", func() {
			start := ufo.State{Z: 100, VX: -math.MaxFloat64}
			s, err := sim.New(config.DefaultConfig(), sim.WithInitialState(start))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Tick()
			Expect(err).To(MatchError(ufo.ErrComputation))
			var serr *ufo.StepError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Tick).To(Equal(uint64(1)))
			Expect(s.Snapshot()).To(Equal(start))
		})

		It("flags a vehicle that stops making progress", func() {
			cfg := config.DefaultConfig()
			cfg.StagnationTicks = 5
			s, err := sim.New(cfg, sim.WithInitialState(ufo.State{Z: 40, Dist: 10}))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 4; i++ {
				_, _ = s.Tick()
			}
			Expect(s.Stagnant()).To(BeFalse())
			_, _ = s.Tick()
			Expect(s.Stagnant()).To(BeTrue())
		})
	})

	It("resets and cancels pending queues", func() {
		s, err := sim.New(config.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		q := s.CreateCommandQueue().MustPush(command.SetState(climb), command.WaitCondition(above(1000), 0))
		Expect(s.ExecuteCommandQueue(q)).To(Succeed())
		for i := 0; i < 40; i++ {
			_, _ = s.Tick()
		}
		Expect(s.Snapshot().Z).To(BeNumerically(">", 0))

		fresh, err := s.Reset()
		Expect(err).NotTo(HaveOccurred())
		Expect(fresh).To(Equal(ufo.New()))
		Expect(s.Snapshot()).To(Equal(ufo.New()))
		Expect(s.Phase()).To(Equal(phase.Idle))
		Eventually(q.Done()).Should(BeClosed())
		Expect(q.Err()).To(MatchError(command.ErrCanceled))
	})

	Describe("Run", func() {
		It("stops at the flight time limit", func() {
			cfg := unpaced()
			cfg.MaxFlightTime = 2
			s, err := sim.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Run(context.Background())).To(Succeed())
			Expect(s.Snapshot().FlightTime).To(BeNumerically(">=", 2))
			Expect(s.Ticks()).To(BeNumerically("~", 40, 1))
		})

		It("stops when the vehicle crashes", func() {
			start := ufo.State{Z: 2, V: 20, I: -30, D: 90}
			s, err := sim.New(unpaced(), sim.WithInitialState(start))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Run(context.Background())).To(Succeed())
			Expect(s.Outcome()).To(Equal(ufo.Crashed))
			Expect(s.Phase()).To(Equal(phase.Crashed))
			Expect(s.Snapshot().Crashed).To(BeTrue())
			Expect(s.Snapshot().Z).To(BeZero())
		})

		It("returns a computation error as a step error", func() {
			s, err := sim.New(unpaced(), sim.WithInitialState(ufo.State{Z: 10, VX: -math.MaxFloat64}))
			Expect(err).NotTo(HaveOccurred())

			err = s.Run(context.Background())
			var serr *ufo.StepError
			Expect(errors.As(err, &serr)).To(BeTrue())
		})

		It("ends with the context", func() {
			cfg := config.DefaultConfig()
			cfg.SpeedFactor = 50
			s, err := sim.New(cfg)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			Expect(s.Run(ctx)).To(MatchError(context.DeadlineExceeded))
		})

		It("does not tick while paused", func() {
			cfg := config.DefaultConfig()
			cfg.SpeedFactor = 50
			s, err := sim.New(cfg)
			Expect(err).NotTo(HaveOccurred())
			s.Pause()
			Expect(s.Paused()).To(BeTrue())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			Consistently(s.Ticks, 100*time.Millisecond).Should(BeZero())
			s.Resume()
			Eventually(s.Ticks).Should(BeNumerically(">", 0))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("lets an autopilot fly the vehicle", func() {
			cfg := unpaced()
			cfg.MaxFlightTime = 300

			var calls atomic.Int32
			pilot := sim.AutopilotFunc(func(ctx context.Context, c sim.Cockpit) error {
				calls.Add(1)
				q := c.CreateCommandQueue().MustPush(
					command.SetState(climb),
					command.WaitCondition(above(20), 0),
					command.SetState(func(s ufo.State) ufo.State { return s.WithDeltas(2.5-s.V, 0, -90-s.I) }),
					command.WaitCondition(func(s ufo.State) bool { return s.Z == 0 }, 0),
				)
				if err := c.ExecuteCommandQueue(q); err != nil {
					return err
				}
				if err := q.Wait(ctx); err != nil {
					return err
				}
				return sim.ErrAutopilotDone
			})

			s, err := sim.New(cfg, sim.WithAutopilot(pilot))
			Expect(err).NotTo(HaveOccurred())

			moved := make(chan bool, 1)
			go func() {
				moved <- s.WaitFor(func(s ufo.State) bool { return s.Dist > 5 }, 5*time.Second)
			}()

			Expect(s.Run(context.Background())).To(Succeed())
			Eventually(moved).Should(Receive(BeTrue()))
			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(s.Snapshot().Z).To(BeZero())
			Expect(s.Snapshot().Crashed).To(BeFalse())
			Expect(s.Phase()).To(Equal(phase.Landed))
			Expect(s.Snapshot().FlightTime).To(BeNumerically("<", cfg.MaxFlightTime))
		})

		It("surfaces autopilot failures", func() {
			boom := errors.New("boom")
			s, err := sim.New(unpaced(), sim.WithAutopilot(sim.AutopilotFunc(
				func(context.Context, sim.Cockpit) error { return boom })))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Run(context.Background())).To(MatchError(boom))
		})
	})

	It("runs a fleet side by side", func() {
		cfg := unpaced()
		cfg.MaxFlightTime = 1

		var sims []*sim.Simulation
		for i := 0; i < 3; i++ {
			s, err := sim.New(cfg)
			Expect(err).NotTo(HaveOccurred())
			sims = append(sims, s)
		}
		results, err := sim.NewFleet(2, sims...).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for _, r := range results {
			Expect(r.Err).NotTo(HaveOccurred())
			Expect(r.Final.FlightTime).To(BeNumerically(">=", 1))
		}
	})
})
