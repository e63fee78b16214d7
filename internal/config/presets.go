package config

import "sort"

// Presets are vehicle variants built on top of DefaultConfig.
var Presets = map[string]func(Config) Config{
	"trainer": func(c Config) Config {
		c.MaxVelocity = 30
		c.Thrust = 5
		c.TurnRate = 45
		c.PitchRate = 30
		c.VelocityTolerance = 0.5
		c.AssistAltitude = 10
		c.AssistSpeed = 5
		return c
	},
	"sport": func(c Config) Config {
		c.MaxVelocity = 250
		c.Thrust = 25
		c.TurnRate = 180
		c.PitchRate = 90
		c.Drag = 0.01
		return c
	},
	"heavy": func(c Config) Config {
		c.MaxVelocity = 60
		c.Thrust = 3
		c.TurnRate = 20
		c.PitchRate = 15
		c.Drag = 0.02
		c.AssistDamping = 1
		return c
	},
}

// GetPreset returns the named preset applied to the defaults.
func GetPreset(name string) (Config, bool) {
	apply, ok := Presets[name]
	if !ok {
		return Config{}, false
	}
	return apply(DefaultConfig()), true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
