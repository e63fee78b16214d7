package command_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/locked"
	"github.com/san-kum/ufosim/internal/physics"
	"github.com/san-kum/ufosim/internal/state"
	"github.com/san-kum/ufosim/internal/ufo"
)

type fakeClock struct{ now time.Duration }

func (c *fakeClock) Now() time.Duration { return c.now }

var _ = Describe("Queue", func() {
	It("rejects commands without their function", func() {
		q := command.NewQueue()
		Expect(q.Push(command.SetState(nil))).To(MatchError(command.ErrInvalidCommand))
		Expect(q.Push(command.WaitCondition(nil, time.Second))).To(MatchError(command.ErrInvalidCommand))
		Expect(q.Push(command.WaitCondition(func(ufo.State) bool { return true }, -time.Second))).
			To(MatchError(command.ErrInvalidCommand))
		Expect(q.Push(command.Execute(nil))).To(MatchError(command.ErrInvalidCommand))
		Expect(q.Push(command.Log("ok"))).To(Succeed())

		next, total := q.Progress()
		Expect(next).To(Equal(0))
		Expect(total).To(Equal(1))
	})

	It("counts an empty queue as completed", func() {
		Expect(command.NewQueue().IsCompleted()).To(BeTrue())
	})

	It("gives every queue its own id", func() {
		Expect(command.NewQueue().ID()).NotTo(Equal(command.NewQueue().ID()))
	})
})

var _ = Describe("Executor", func() {
	var (
		cfg   config.Config
		m     *state.Manager
		clock *fakeClock
		exec  *command.Executor
	)

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		m = state.New(ufo.New(), zerolog.Nop())
		clock = &fakeClock{}
		exec = command.NewExecutor(m, zerolog.Nop(),
			command.WithClock(clock.Now),
			command.WithDefaultTimeout(10*time.Second))
	})

	// tick advances the simulation by one step the way the loop does.
	tick := func() ufo.State {
		next, _, err := physics.Step(m.Snapshot(), cfg)
		Expect(err).NotTo(HaveOccurred())
		installed, err := m.Update(func(ufo.State) ufo.State { return next })
		Expect(err).NotTo(HaveOccurred())
		clock.now += cfg.TickDuration()
		return exec.Process(installed)
	}

	It("seals a queue once it is enqueued", func() {
		q := command.NewQueue().MustPush(command.Log("one"))
		Expect(exec.Enqueue(q)).To(Succeed())
		Expect(q.Push(command.Log("two"))).To(MatchError(command.ErrQueueSealed))
		Expect(exec.Enqueue(q)).To(MatchError(command.ErrQueueSealed))
	})

	It("leaves the state alone when a queue writes it back unchanged", func() {
		before := m.Snapshot()
		q := command.NewQueue().MustPush(command.SetState(func(s ufo.State) ufo.State { return s }))
		Expect(exec.Enqueue(q)).To(Succeed())

		after := exec.Process(before)
		Expect(after).To(Equal(before))
		Expect(m.Snapshot()).To(Equal(before))
		Expect(q.IsCompleted()).To(BeTrue())
	})

	It("climbs past ten meters and completes the script", func() {
		q := command.NewQueue().MustPush(
			command.SetState(func(s ufo.State) ufo.State { return s.WithDeltas(10, 0, 45) }),
			command.WaitCondition(func(s ufo.State) bool { return s.Z > 10 }, 5*time.Second),
			command.Log("reached"),
		)
		Expect(exec.Enqueue(q)).To(Succeed())

		exec.Process(m.Snapshot())
		Expect(m.Snapshot().DeltaV).To(Equal(10.0))

		for i := 0; i < 200 && !q.IsCompleted(); i++ {
			tick()
		}
		Expect(q.IsCompleted()).To(BeTrue())
		Expect(q.Err()).NotTo(HaveOccurred())
		Expect(m.Snapshot().Z).To(BeNumerically(">", 10))
		Expect(m.Snapshot().Crashed).To(BeFalse())
		Eventually(q.Done()).Should(BeClosed())
		Expect(exec.Pending()).To(Equal(0))
	})

	It("halts on an unmet wait without advancing", func() {
		q := command.NewQueue().MustPush(
			command.WaitCondition(func(s ufo.State) bool { return s.Z > 1000 }, time.Minute),
			command.Log("never"),
		)
		Expect(exec.Enqueue(q)).To(Succeed())

		exec.Process(m.Snapshot())
		exec.Process(m.Snapshot())
		next, _ := q.Progress()
		Expect(next).To(Equal(0))
		Expect(q.IsCompleted()).To(BeFalse())
		Expect(exec.Pending()).To(Equal(1))
	})

	It("fails a wait that outlives its timeout", func() {
		q := command.NewQueue().MustPush(
			command.WaitCondition(func(s ufo.State) bool { return false }, time.Second).Labeled("forever"),
			command.Log("never"),
		)
		Expect(exec.Enqueue(q)).To(Succeed())

		for i := 0; i < 25; i++ {
			tick()
		}
		Expect(q.Err()).To(MatchError(command.ErrWaitTimeout))

		var f *command.Failure
		Expect(errors.As(q.Err(), &f)).To(BeTrue())
		Expect(f.Index).To(Equal(0))
		Expect(f.Kind).To(Equal(command.KindWaitCondition))
		Expect(f.Label).To(Equal("forever"))
		Expect(q.IsCompleted()).To(BeFalse())
		Expect(exec.Pending()).To(Equal(0))
		Expect(q.Push(command.Log("late"))).To(MatchError(command.ErrQueueFailed))
	})

	It("falls back to the default timeout", func() {
		q := command.NewQueue().MustPush(command.WaitCondition(func(ufo.State) bool { return false }, 0))
		Expect(exec.Enqueue(q)).To(Succeed())

		exec.Process(m.Snapshot())
		clock.now += 9 * time.Second
		exec.Process(m.Snapshot())
		Expect(q.Err()).NotTo(HaveOccurred())

		clock.now += time.Second
		exec.Process(m.Snapshot())
		Expect(q.Err()).To(MatchError(command.ErrWaitTimeout))
	})

	It("fails waits once the vehicle has crashed", func() {
		_, err := m.Update(func(s ufo.State) ufo.State { return s.WithCrashed(true) })
		Expect(err).NotTo(HaveOccurred())

		q := command.NewQueue().MustPush(command.WaitCondition(func(s ufo.State) bool { return s.Z > 5 }, time.Minute))
		Expect(exec.Enqueue(q)).To(Succeed())
		exec.Process(m.Snapshot())
		Expect(q.Err()).To(MatchError(ufo.ErrCrashed))
	})

	It("turns execute errors and panics into failures", func() {
		boom := errors.New("boom")
		failing := command.NewQueue().MustPush(command.Execute(func(ufo.State) error { return boom }))
		panicking := command.NewQueue().MustPush(command.Execute(func(ufo.State) error { panic("gremlins") }))
		Expect(exec.Enqueue(failing)).To(Succeed())
		Expect(exec.Enqueue(panicking)).To(Succeed())

		Expect(func() { exec.Process(m.Snapshot()) }).NotTo(Panic())
		Expect(failing.Err()).To(MatchError(command.ErrCommandFailed))
		Expect(failing.Err()).To(MatchError(boom))
		Expect(panicking.Err()).To(MatchError(command.ErrCommandFailed))
		Expect(panicking.Err().Error()).To(ContainSubstring("gremlins"))
	})

	It("fails a command that reads its own queue", func() {
		var q *command.Queue
		q = command.NewQueue().MustPush(
			command.Log("first"),
			command.Execute(func(ufo.State) error {
				_, _ = q.Progress()
				return nil
			}),
		)
		Expect(exec.Enqueue(q)).To(Succeed())

		Expect(func() { exec.Process(m.Snapshot()) }).NotTo(Panic())
		Expect(q.Err()).To(MatchError(command.ErrCommandFailed))
		Expect(q.Err()).To(MatchError(locked.ErrReentrant))
		next, total := q.Progress()
		Expect(next).To(Equal(1))
		Expect(total).To(Equal(2))
	})

	It("fails a set whose observer reads the running queue", func() {
		var q *command.Queue
		m.Subscribe(func(ufo.State) { _ = q.IsCompleted() })
		q = command.NewQueue().MustPush(
			command.SetState(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 2) }),
			command.Log("unreached"),
		)
		Expect(exec.Enqueue(q)).To(Succeed())

		Expect(func() { exec.Process(m.Snapshot()) }).NotTo(Panic())
		Expect(q.Err()).To(MatchError(locked.ErrReentrant))
		Expect(q.IsCompleted()).To(BeFalse())
	})

	It("runs queues in the order they were enqueued", func() {
		var order []string
		record := func(name string) command.Command {
			return command.Execute(func(ufo.State) error {
				order = append(order, name)
				return nil
			})
		}
		gate := false
		first := command.NewQueue().MustPush(
			record("a1"),
			command.WaitCondition(func(ufo.State) bool { return gate }, time.Minute),
			record("a2"),
		)
		second := command.NewQueue().MustPush(record("b1"))
		Expect(exec.Enqueue(first)).To(Succeed())
		Expect(exec.Enqueue(second)).To(Succeed())

		exec.Process(m.Snapshot())
		Expect(order).To(Equal([]string{"a1"}))

		gate = true
		exec.Process(m.Snapshot())
		Expect(order).To(Equal([]string{"a1", "a2", "b1"}))
	})

	It("hands the result of a set to the commands after it", func() {
		var seen float64
		q := command.NewQueue().MustPush(
			command.SetState(func(s ufo.State) ufo.State { return s.WithPosition(0, 0, 3) }),
			command.Execute(func(s ufo.State) error {
				seen = s.Z
				return nil
			}),
		)
		Expect(exec.Enqueue(q)).To(Succeed())
		out := exec.Process(m.Snapshot())
		Expect(seen).To(Equal(3.0))
		Expect(out.Z).To(Equal(3.0))
	})

	It("fails a set whose result is not finite", func() {
		q := command.NewQueue().MustPush(command.SetState(func(s ufo.State) ufo.State {
			return s.WithPosition(0, 0, math.Inf(1))
		}))
		Expect(exec.Enqueue(q)).To(Succeed())
		exec.Process(m.Snapshot())
		Expect(q.Err()).To(MatchError(ufo.ErrComputation))
		Expect(m.Snapshot()).To(Equal(ufo.New()))
	})

	It("does not deadlock when a command re-enters the executor", func() {
		q := command.NewQueue().MustPush(command.Execute(func(s ufo.State) error {
			exec.Process(s)
			return nil
		}))
		Expect(exec.Enqueue(q)).To(Succeed())

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			exec.Process(m.Snapshot())
			close(done)
		}()
		Eventually(done).Should(BeClosed())
		Expect(q.IsCompleted()).To(BeTrue())
	})

	It("cancels pending queues", func() {
		q := command.NewQueue().MustPush(command.WaitCondition(func(ufo.State) bool { return false }, time.Minute))
		Expect(exec.Enqueue(q)).To(Succeed())

		exec.Cancel(errors.New("shutdown"))
		Expect(exec.Pending()).To(Equal(0))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(q.Wait(ctx)).To(MatchError(command.ErrCanceled))
	})

	It("returns the context error when a wait is abandoned", func() {
		q := command.NewQueue().MustPush(command.Log("pending"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(q.Wait(ctx)).To(MatchError(context.Canceled))
	})
})
