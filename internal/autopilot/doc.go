// Package autopilot provides producers that fly a simulation through its
// cockpit: scripted missions loaded from YAML and a PID altitude hold.
// Both only ever submit command queues; neither writes state directly.
package autopilot
