package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

const deg = math.Pi / 180

// Step advances s by one tick of cfg.Dt. It is pure: equal inputs give
// bit-identical outputs.
func Step(s ufo.State, cfg config.Config) (ufo.State, ufo.Outcome, error) {
	if s.Crashed {
		return s, ufo.Crashed, nil
	}

	dt := cfg.Dt
	n := s
	n.FlightTime += dt

	// Landing assistance: bleed speed toward a safe touchdown speed when
	// descending slowly close to the ground.
	touchdown := cfg.VelocityTolerance / 2
	if n.Z > 0 && n.Z < cfg.AssistAltitude && n.VZ < 0 && n.V < cfg.AssistSpeed && n.V > touchdown {
		n.V -= (n.V - touchdown) * cfg.AssistDamping * dt
	}

	applyControls(&n, cfg)

	rd, ri := n.D*deg, n.I*deg
	horizontal := n.V * math.Cos(ri)
	vx := horizontal * math.Cos(rd)
	vy := horizontal * math.Sin(rd)
	vz := n.V * math.Sin(ri)

	n.AX = (vx - s.VX) / dt
	n.AY = (vy - s.VY) / dt
	n.AZ = (vz - s.VZ) / dt
	n.VX, n.VY, n.VZ = vx, vy, vz

	n.X += vx * dt
	n.Y += vy * dt
	n.Z += vz * dt
	n.Dist += n.V * dt

	outcome := ufo.Continuing
	if n.Z <= 0 && n.VZ <= 0 {
		outcome = groundContact(s, &n, cfg)
	}

	if err := validate(n); err != nil {
		return s, ufo.Continuing, err
	}
	return n, outcome, nil
}

// applyControls moves the pending deltas into speed, heading and
// inclination, limited by the vehicle's rates.
func applyControls(n *ufo.State, cfg config.Config) {
	dt := cfg.Dt

	dv := clamp(n.DeltaV, cfg.Thrust*dt)
	n.V += dv
	n.DeltaV -= dv
	n.V -= cfg.Drag * n.V * dt
	if n.V < 0 {
		n.V = 0
		n.DeltaV = math.Max(n.DeltaV, 0)
	}
	if n.V > cfg.MaxVelocity {
		n.V = cfg.MaxVelocity
		n.DeltaV = math.Min(n.DeltaV, 0)
	}

	dd := clamp(n.DeltaD, cfg.TurnRate*dt)
	n.D = wrapHeading(n.D + dd)
	n.DeltaD -= dd

	di := clamp(n.DeltaI, cfg.PitchRate*dt)
	n.I += di
	n.DeltaI -= di
	if n.I > 90 {
		n.I = 90
		n.DeltaI = math.Min(n.DeltaI, 0)
	}
	if n.I < -90 {
		n.I = -90
		n.DeltaI = math.Max(n.DeltaI, 0)
	}
}

// groundContact resolves a tick that ends on or below the ground while not
// climbing. Reaching the ground at or above the velocity tolerance is a
// crash; equality counts as a crash. This includes rolling along the ground
// at zero inclination: a takeoff needs a positive inclination before the
// speed reaches the tolerance.
func groundContact(prev ufo.State, n *ufo.State, cfg config.Config) ufo.Outcome {
	airborne := prev.Z > 0

	if n.V >= cfg.VelocityTolerance {
		n.Z = 0
		n.V, n.VX, n.VY, n.VZ = 0, 0, 0, 0
		n.DeltaV, n.DeltaD, n.DeltaI = 0, 0, 0
		n.Crashed = true
		return ufo.Crashed
	}

	n.Z = 0
	n.V, n.VX, n.VY, n.VZ = 0, 0, 0, 0
	if n.I < 0 {
		n.I = 0
	}
	if airborne {
		n.DeltaV = 0
		return ufo.Landed
	}
	return ufo.Continuing
}

func validate(n ufo.State) error {
	for i, v := range n.Fields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("physics: %s = %v: %w", ufo.FieldNames[i], v, ufo.ErrComputation)
		}
	}
	return nil
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func wrapHeading(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d -= 360
	}
	return d
}
