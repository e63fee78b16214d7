package ufo

import "math"

// State is one instant of the vehicle's physical state.
//
// D is the heading in degrees, 0 pointing along +X and 90 along +Y.
// I is the inclination in degrees, positive when climbing.
// DeltaV, DeltaD and DeltaI are control changes requested but not yet
// applied by the physics step.
type State struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`

	VX float64 `json:"vx" msgpack:"vx"`
	VY float64 `json:"vy" msgpack:"vy"`
	VZ float64 `json:"vz" msgpack:"vz"`

	V float64 `json:"v" msgpack:"v"`
	D float64 `json:"d" msgpack:"d"`
	I float64 `json:"i" msgpack:"i"`

	AX float64 `json:"ax" msgpack:"ax"`
	AY float64 `json:"ay" msgpack:"ay"`
	AZ float64 `json:"az" msgpack:"az"`

	Dist       float64 `json:"dist" msgpack:"dist"`
	FlightTime float64 `json:"ftime" msgpack:"ftime"`

	DeltaV float64 `json:"delta_v" msgpack:"delta_v"`
	DeltaD float64 `json:"delta_d" msgpack:"delta_d"`
	DeltaI float64 `json:"delta_i" msgpack:"delta_i"`

	Crashed bool `json:"crashed" msgpack:"crashed"`
}

// New returns the state of a fresh vehicle resting at the origin.
func New() State {
	return State{}
}

// Evolve returns a copy of s changed by fn. fn only ever sees the copy.
func (s State) Evolve(fn func(*State)) State {
	fn(&s)
	return s
}

func (s State) WithPosition(x, y, z float64) State {
	s.X, s.Y, s.Z = x, y, z
	return s
}

// WithDeltas replaces the pending control deltas.
func (s State) WithDeltas(dv, dd, di float64) State {
	s.DeltaV, s.DeltaD, s.DeltaI = dv, dd, di
	return s
}

// AddDeltas adds to the pending control deltas.
func (s State) AddDeltas(dv, dd, di float64) State {
	s.DeltaV += dv
	s.DeltaD += dd
	s.DeltaI += di
	return s
}

func (s State) WithCrashed(crashed bool) State {
	s.Crashed = crashed
	return s
}

func (s State) Position() Vec3     { return Vec3{s.X, s.Y, s.Z} }
func (s State) Velocity() Vec3     { return Vec3{s.VX, s.VY, s.VZ} }
func (s State) Acceleration() Vec3 { return Vec3{s.AX, s.AY, s.AZ} }

// HasPendingDeltas reports whether any requested control change is still
// waiting to be applied.
func (s State) HasPendingDeltas() bool {
	return s.DeltaV != 0 || s.DeltaD != 0 || s.DeltaI != 0
}

// Fields returns the scalar fields in declaration order, Crashed as 0/1.
func (s State) Fields() []float64 {
	crashed := 0.0
	if s.Crashed {
		crashed = 1
	}
	return []float64{
		s.X, s.Y, s.Z,
		s.VX, s.VY, s.VZ,
		s.V, s.D, s.I,
		s.AX, s.AY, s.AZ,
		s.Dist, s.FlightTime,
		s.DeltaV, s.DeltaD, s.DeltaI,
		crashed,
	}
}

// FieldNames matches the order of Fields.
var FieldNames = []string{
	"x", "y", "z",
	"vx", "vy", "vz",
	"v", "d", "i",
	"ax", "ay", "az",
	"dist", "ftime",
	"delta_v", "delta_d", "delta_i",
	"crashed",
}

// FromFields is the inverse of Fields. Short slices leave trailing fields
// at zero.
func FromFields(f []float64) State {
	var v [18]float64
	copy(v[:], f)
	return State{
		X: v[0], Y: v[1], Z: v[2],
		VX: v[3], VY: v[4], VZ: v[5],
		V: v[6], D: v[7], I: v[8],
		AX: v[9], AY: v[10], AZ: v[11],
		Dist: v[12], FlightTime: v[13],
		DeltaV: v[14], DeltaD: v[15], DeltaI: v[16],
		Crashed: v[17] != 0,
	}
}

func (s State) IsValid() bool {
	for _, v := range s.Fields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
