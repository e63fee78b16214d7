package autopilot

import (
	"context"
	"math"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/sim"
	"github.com/san-kum/ufosim/internal/ufo"
)

type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64
	// IntegralLimit bounds the accumulated error when positive.
	IntegralLimit float64

	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

// Update returns the control output for measurement x taken at time t.
func (p *PID) Update(x, t float64) float64 {
	err := p.Target - x

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return p.Kp * err
	}

	dt := t - p.prevT
	if dt <= 0 {
		return p.Kp*err + p.Ki*p.integral
	}
	p.integral += err * dt
	if p.IntegralLimit > 0 {
		p.integral = math.Max(-p.IntegralLimit, math.Min(p.IntegralLimit, p.integral))
	}
	derivative := (err - p.prevErr) / dt
	p.prevErr = err
	p.prevT = t
	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

func (p *PID) Reset() {
	p.integral, p.prevErr, p.prevT = 0, 0, 0
	p.first = true
}

// AltitudeHold climbs to and holds an altitude by commanding inclination at
// a fixed cruise speed and heading. It is done once HoldFor seconds of
// flight time have passed; zero holds forever.
type AltitudeHold struct {
	Altitude float64
	Speed    float64
	Heading  float64
	MaxPitch float64
	HoldFor  float64

	pid *PID
}

func NewAltitudeHold(altitude, speed float64) *AltitudeHold {
	pid := NewPID(4, 0.02, 2, altitude)
	pid.IntegralLimit = 50
	return &AltitudeHold{
		Altitude: altitude,
		Speed:    speed,
		MaxPitch: 30,
		pid:      pid,
	}
}

func (a *AltitudeHold) Fly(ctx context.Context, c sim.Cockpit) error {
	s := c.Snapshot()
	switch {
	case s.Crashed:
		return ufo.ErrCrashed
	case a.HoldFor > 0 && s.FlightTime >= a.HoldFor:
		return sim.ErrAutopilotDone
	}

	pitch := a.pid.Update(s.Z, s.FlightTime)
	pitch = math.Max(-a.MaxPitch, math.Min(a.MaxPitch, pitch))

	q := c.CreateCommandQueue()
	if err := q.Push(command.SetState(func(cur ufo.State) ufo.State {
		return cur.WithDeltas(a.Speed-cur.V, shortestTurn(cur.D, a.Heading), pitch-cur.I)
	}).Labeled("altitude hold")); err != nil {
		return err
	}
	return c.ExecuteCommandQueue(q)
}
