package autopilot

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/sim"
)

func TestPID(t *testing.T) {
	ctrl := NewPID(10.0, 0.1, 5.0, 0.0)
	if u := ctrl.Update(1.0, 0.0); u >= 0 {
		t.Error("PID should output negative control for positive error")
	}

	ctrl.Reset()
	if u := ctrl.Update(0, 0); u != 0 {
		t.Errorf("expected zero control at target, got %f", u)
	}
}

func TestPID_IntegralLimit(t *testing.T) {
	ctrl := NewPID(0, 1, 0, 10)
	ctrl.IntegralLimit = 2
	for i := 0; i <= 100; i++ {
		ctrl.Update(0, float64(i))
	}
	if u := ctrl.Update(0, 101); math.Abs(u-2) > 1e-9 {
		t.Errorf("expected output clamped to 2, got %f", u)
	}
}

func TestAltitudeHold(t *testing.T) {
	s, err := sim.New(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	hold := NewAltitudeHold(50, 15)
	hold.Heading = 90

	ctx := context.Background()
	for i := 0; i < 1200; i++ {
		if i%4 == 0 {
			if err := hold.Fly(ctx, s); err != nil {
				t.Fatalf("tick %d: %v", i, err)
			}
		}
		if _, err := s.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	final := s.Snapshot()
	if final.Crashed {
		t.Fatal("vehicle crashed")
	}
	if math.Abs(final.Z-50) > 3 {
		t.Errorf("altitude %.2f, want about 50", final.Z)
	}
	if math.Abs(final.D-90) > 1 {
		t.Errorf("heading %.2f, want 90", final.D)
	}
	if s.Phase() != phase.Flying {
		t.Errorf("phase %v, want flying", s.Phase())
	}
}

func TestAltitudeHold_Done(t *testing.T) {
	s, err := sim.New(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	hold := NewAltitudeHold(10, 5)
	hold.HoldFor = 0.5
	for i := 0; i < 12; i++ {
		_, _ = s.Tick()
	}
	if err := hold.Fly(context.Background(), s); err != sim.ErrAutopilotDone {
		t.Errorf("expected ErrAutopilotDone, got %v", err)
	}
}
