// Package ufo defines the value types shared by every part of the
// simulation core:
//
//   - [State]: one instant of the vehicle's physical state
//   - [Vec3]: 3-component vector used by the state accessors
//   - [Outcome]: landing classification returned by the physics step
//
// # Immutability
//
// A [State] is a plain value. There is no way to change a state in place
// through a shared reference: every "change" is a copy made with one of the
// With* methods or with [State.Evolve], which hands a private copy to the
// caller's function and returns it.
//
//	next := s.WithDeltas(10, 0, 45)
//	next = next.Evolve(func(n *ufo.State) { n.Z = 0 })
package ufo
