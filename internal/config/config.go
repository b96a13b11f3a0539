package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML config at path, applies defaults and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	cfg.normalizeKeys()
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeKeys restores the key case viper drops on Unmarshal (all map keys
// arrive lowercased). Symbol and phase keys are canonically uppercase; without
// this every lookup against them silently misses.
func (c *Config) normalizeKeys() {
	if len(c.Engine.Symbols) > 0 {
		symbols := make(map[string]SymbolMeta, len(c.Engine.Symbols))
		for k, v := range c.Engine.Symbols {
			symbols[strings.ToUpper(k)] = v
		}
		c.Engine.Symbols = symbols
	}
	c.Risk.PhaseWeights = upperKeys(c.Risk.PhaseWeights)
	c.Risk.PhaseSlack = upperKeys(c.Risk.PhaseSlack)
}

func upperKeys(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Default returns the built-in configuration, useful for tests and for
// embedding the engine without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}
