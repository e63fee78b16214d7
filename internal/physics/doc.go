// Package physics integrates the vehicle one tick at a time.
//
// [Step] is a pure function of (state, config): it shares nothing, performs
// no I/O and returns an error instead of a state containing NaN or Inf.
// Speed, heading and inclination follow the pending control deltas at the
// rates the config allows; velocity components, accelerations, position and
// distance are derived from them.
//
// # Ground contact
//
// A tick that ends on the ground without climbing is a landing when the
// speed is below the velocity tolerance and a crash otherwise:
//
//	next, outcome, err := physics.Step(s, cfg)
//	if outcome == ufo.Crashed {
//	    // next.Crashed is set; further steps return it unchanged
//	}
//
// [Stagnation] watches consecutive steps for a lack of progress so the
// caller can report it instead of spinning.
package physics
