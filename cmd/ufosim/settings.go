package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ufosim/internal/config"
)

const envPrefix = "UFOSIM"

// flagKeys maps config keys to the command flags that may override them.
var flagKeys = map[string]string{
	"dt":              "dt",
	"max_flight_time": "max-time",
	"speed_factor":    "speed-factor",
	"command_timeout": "timeout",
}

// loadConfig layers, lowest first: the preset (or the defaults), the
// --config file, UFOSIM_* environment variables, then changed flags.
func loadConfig(cmd *cobra.Command, presetName string) (config.Config, error) {
	base := config.DefaultConfig()
	if presetName != "" {
		p, ok := config.GetPreset(presetName)
		if !ok {
			return config.Config{}, fmt.Errorf("unknown preset %q (available: %s)",
				presetName, strings.Join(config.ListPresets(), ", "))
		}
		base = p
	}

	v := viper.New()
	defaults, err := asMap(base)
	if err != nil {
		return config.Config{}, err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	for key, name := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, err
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// asMap flattens cfg into its yaml keys so viper can use it as defaults.
func asMap(cfg config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
