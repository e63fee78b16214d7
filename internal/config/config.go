package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/ufosim/internal/ufo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt                = 0.05
	DefaultMaxVelocity       = 100.0
	DefaultThrust            = 10.0
	DefaultTurnRate          = 90.0
	DefaultPitchRate         = 45.0
	DefaultAltitudeTolerance = 0.5
	DefaultVelocityTolerance = 0.2
	DefaultAssistAltitude    = 5.0
	DefaultAssistSpeed       = 3.0
	DefaultAssistDamping     = 2.0
	DefaultApproachAltitude  = 20.0
	DefaultTrendThreshold    = 0.05
	DefaultHistorySize       = 32
	DefaultAnalysisWindow    = 10
	DefaultStagnationTicks   = 200
	DefaultStagnationEpsilon = 1e-6
	DefaultAutopilotInterval = 100 * time.Millisecond
	DefaultSpeedFactor       = 1.0
)

// Config holds every tunable physical and timing constant. It is passed by
// value and never changed after the simulation is built.
type Config struct {
	Dt          float64 `yaml:"dt" mapstructure:"dt"`
	MaxVelocity float64 `yaml:"max_velocity" mapstructure:"max_velocity"`
	Thrust      float64 `yaml:"thrust" mapstructure:"thrust"`
	Drag        float64 `yaml:"drag" mapstructure:"drag"`
	TurnRate    float64 `yaml:"turn_rate" mapstructure:"turn_rate"`
	PitchRate   float64 `yaml:"pitch_rate" mapstructure:"pitch_rate"`

	AltitudeTolerance float64 `yaml:"altitude_tolerance" mapstructure:"altitude_tolerance"`
	VelocityTolerance float64 `yaml:"velocity_tolerance" mapstructure:"velocity_tolerance"`
	AssistAltitude    float64 `yaml:"assist_altitude" mapstructure:"assist_altitude"`
	AssistSpeed       float64 `yaml:"assist_speed" mapstructure:"assist_speed"`
	AssistDamping     float64 `yaml:"assist_damping" mapstructure:"assist_damping"`
	ApproachAltitude  float64 `yaml:"approach_altitude" mapstructure:"approach_altitude"`

	TrendThreshold    float64 `yaml:"trend_threshold" mapstructure:"trend_threshold"`
	HistorySize       int     `yaml:"history_size" mapstructure:"history_size"`
	AnalysisWindow    int     `yaml:"analysis_window" mapstructure:"analysis_window"`
	StagnationTicks   int     `yaml:"stagnation_ticks" mapstructure:"stagnation_ticks"`
	StagnationEpsilon float64 `yaml:"stagnation_epsilon" mapstructure:"stagnation_epsilon"`

	CommandTimeout    time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
	AutopilotInterval time.Duration `yaml:"autopilot_interval" mapstructure:"autopilot_interval"`
	SpeedFactor       float64       `yaml:"speed_factor" mapstructure:"speed_factor"`
	MaxFlightTime     float64       `yaml:"max_flight_time" mapstructure:"max_flight_time"`
}

func DefaultConfig() Config {
	return Config{
		Dt:                DefaultDt,
		MaxVelocity:       DefaultMaxVelocity,
		Thrust:            DefaultThrust,
		TurnRate:          DefaultTurnRate,
		PitchRate:         DefaultPitchRate,
		AltitudeTolerance: DefaultAltitudeTolerance,
		VelocityTolerance: DefaultVelocityTolerance,
		AssistAltitude:    DefaultAssistAltitude,
		AssistSpeed:       DefaultAssistSpeed,
		AssistDamping:     DefaultAssistDamping,
		ApproachAltitude:  DefaultApproachAltitude,
		TrendThreshold:    DefaultTrendThreshold,
		HistorySize:       DefaultHistorySize,
		AnalysisWindow:    DefaultAnalysisWindow,
		StagnationTicks:   DefaultStagnationTicks,
		StagnationEpsilon: DefaultStagnationEpsilon,
		AutopilotInterval: DefaultAutopilotInterval,
		SpeedFactor:       DefaultSpeedFactor,
	}
}

// Error reports a single rejected configuration field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error {
	return ufo.ErrInvalidConfig
}

// Validate returns the first inconsistency found, or nil.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"dt", c.Dt},
		{"max_velocity", c.MaxVelocity},
		{"thrust", c.Thrust},
		{"turn_rate", c.TurnRate},
		{"pitch_rate", c.PitchRate},
		{"altitude_tolerance", c.AltitudeTolerance},
		{"velocity_tolerance", c.VelocityTolerance},
		{"stagnation_epsilon", c.StagnationEpsilon},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return &Error{Field: p.name, Reason: fmt.Sprintf("must be positive, got %g", p.v)}
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"drag", c.Drag},
		{"assist_speed", c.AssistSpeed},
		{"assist_damping", c.AssistDamping},
		{"trend_threshold", c.TrendThreshold},
		{"speed_factor", c.SpeedFactor},
		{"max_flight_time", c.MaxFlightTime},
	}
	for _, p := range nonNegative {
		if !(p.v >= 0) {
			return &Error{Field: p.name, Reason: fmt.Sprintf("must not be negative, got %g", p.v)}
		}
	}

	switch {
	case c.VelocityTolerance >= c.MaxVelocity:
		return &Error{Field: "velocity_tolerance", Reason: "must be below max_velocity"}
	case c.AssistAltitude < c.AltitudeTolerance:
		return &Error{Field: "assist_altitude", Reason: "must not be below altitude_tolerance"}
	case c.ApproachAltitude <= c.AltitudeTolerance:
		return &Error{Field: "approach_altitude", Reason: "must be above altitude_tolerance"}
	case c.AssistDamping*c.Dt > 1:
		return &Error{Field: "assist_damping", Reason: "times dt must not exceed 1"}
	case c.HistorySize < 2:
		return &Error{Field: "history_size", Reason: fmt.Sprintf("must be at least 2, got %d", c.HistorySize)}
	case c.AnalysisWindow < 2 || c.AnalysisWindow > c.HistorySize:
		return &Error{Field: "analysis_window", Reason: fmt.Sprintf("must be within [2, history_size], got %d", c.AnalysisWindow)}
	case c.StagnationTicks < 1:
		return &Error{Field: "stagnation_ticks", Reason: fmt.Sprintf("must be at least 1, got %d", c.StagnationTicks)}
	case c.CommandTimeout < 0:
		return &Error{Field: "command_timeout", Reason: "must not be negative"}
	case c.AutopilotInterval <= 0:
		return &Error{Field: "autopilot_interval", Reason: "must be positive"}
	}
	return nil
}

// TickDuration is Dt as a time.Duration.
func (c Config) TickDuration() time.Duration {
	return time.Duration(c.Dt * float64(time.Second))
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
