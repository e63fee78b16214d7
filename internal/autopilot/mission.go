package autopilot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ufosim/internal/command"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/phase"
	"github.com/san-kum/ufosim/internal/sim"
	"github.com/san-kum/ufosim/internal/ufo"
)

// ErrInvalidMission indicates a mission file that cannot be compiled.
var ErrInvalidMission = errors.New("autopilot: invalid mission")

// Mission is a scripted flight: a list of steps compiled into a single
// command queue.
type Mission struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step holds exactly one of Set, Wait or Log.
type Step struct {
	Set  *Set   `yaml:"set,omitempty"`
	Wait *Wait  `yaml:"wait,omitempty"`
	Log  string `yaml:"log,omitempty"`
}

// Set requests new control targets. Speed, heading and inclination are
// absolute; Turn is relative to the current heading.
type Set struct {
	Speed       *float64 `yaml:"speed,omitempty"`
	Heading     *float64 `yaml:"heading,omitempty"`
	Inclination *float64 `yaml:"inclination,omitempty"`
	Turn        float64  `yaml:"turn,omitempty"`
}

// Wait holds the mission until a condition is met. Value is compared
// against the field named by Until; Phase is used with until: phase.
type Wait struct {
	Until   string        `yaml:"until"`
	Value   float64       `yaml:"value,omitempty"`
	Phase   string        `yaml:"phase,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func LoadMission(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMission(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func ParseMission(data []byte) (*Mission, error) {
	var m Mission
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMission, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Mission) Validate() error {
	if len(m.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidMission)
	}
	for i, st := range m.Steps {
		n := 0
		if st.Set != nil {
			n++
		}
		if st.Wait != nil {
			n++
			if _, err := predicate(*st.Wait, config.DefaultConfig()); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		if st.Log != "" {
			n++
		}
		if n != 1 {
			return fmt.Errorf("%w: step %d must have exactly one of set, wait, log", ErrInvalidMission, i+1)
		}
	}
	return nil
}

// Queue compiles the mission into commands on q.
func (m *Mission) Queue(q *command.Queue, cfg config.Config) error {
	for i, st := range m.Steps {
		label := fmt.Sprintf("%s step %d", m.Name, i+1)
		var cmd command.Command
		switch {
		case st.Set != nil:
			cmd = command.SetState(st.Set.apply)
		case st.Wait != nil:
			pred, err := predicate(*st.Wait, cfg)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			cmd = command.WaitCondition(pred, st.Wait.Timeout)
		default:
			cmd = command.Log(st.Log)
		}
		if err := q.Push(cmd.Labeled(label)); err != nil {
			return err
		}
	}
	return nil
}

// Fly submits the whole mission once and waits for it to finish.
func (m *Mission) Fly(ctx context.Context, c sim.Cockpit) error {
	q := c.CreateCommandQueue()
	if err := m.Queue(q, c.Config()); err != nil {
		return err
	}
	if err := c.ExecuteCommandQueue(q); err != nil {
		return err
	}
	if err := q.Wait(ctx); err != nil {
		return fmt.Errorf("mission %q: %w", m.Name, err)
	}
	return sim.ErrAutopilotDone
}

func (s Set) apply(cur ufo.State) ufo.State {
	dv, dd, di := cur.DeltaV, cur.DeltaD+s.Turn, cur.DeltaI
	if s.Speed != nil {
		dv = *s.Speed - cur.V
	}
	if s.Heading != nil {
		dd = shortestTurn(cur.D, *s.Heading)
	}
	if s.Inclination != nil {
		di = *s.Inclination - cur.I
	}
	return cur.WithDeltas(dv, dd, di)
}

// shortestTurn returns the signed turn in (-180, 180] taking from to to.
func shortestTurn(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

func predicate(w Wait, cfg config.Config) (func(ufo.State) bool, error) {
	v := w.Value
	switch w.Until {
	case "altitude_above":
		return func(s ufo.State) bool { return s.Z > v }, nil
	case "altitude_below":
		return func(s ufo.State) bool { return s.Z < v }, nil
	case "speed_above":
		return func(s ufo.State) bool { return s.V > v }, nil
	case "speed_below":
		return func(s ufo.State) bool { return s.V < v }, nil
	case "distance_above":
		return func(s ufo.State) bool { return s.Dist > v }, nil
	case "time_above":
		return func(s ufo.State) bool { return s.FlightTime > v }, nil
	case "phase":
		p, ok := phase.Parse(w.Phase)
		if !ok {
			return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidMission, w.Phase)
		}
		return func(s ufo.State) bool { return phase.Compute(s, cfg) == p }, nil
	}
	return nil, fmt.Errorf("%w: unknown condition %q", ErrInvalidMission, w.Until)
}
