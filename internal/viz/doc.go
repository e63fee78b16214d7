// Package viz is the live cockpit: a Bubble Tea program that watches a
// running simulation and flies it by hand.
//
//   - [Cockpit]: the tea.Model; reads snapshots, phase and maneuver flags
//     and submits command queues for pilot input
//   - [Track]: Braille canvas drawing the ground track
//   - themes selectable with T
//
// # Key Bindings
//
//	Space   - Pause/Resume simulation
//	R       - Reset to a fresh vehicle
//	Up/Down - Speed +/- 5
//	Left/Right - Turn 15 degrees
//	W/S     - Pitch up/down 5 degrees
//	T       - Cycle color themes
//	?       - Show help overlay
//	Q       - Quit
package viz
