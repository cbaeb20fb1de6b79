package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/yamitzky/biffrec/biff"
)

// settings are the decoder knobs shared by the config file and the flags.
type settings struct {
	password             string
	strict               bool
	keepRegenerable      bool
	detachFormulaStrings bool
	capacityHint         int
	maxAggregateSize     int
}

type fileConfig struct {
	Password             string `toml:"password"`
	TrailingPolicy       string `toml:"trailing_policy"`
	KeepRegenerable      bool   `toml:"keep_regenerable"`
	DetachFormulaStrings bool   `toml:"detach_formula_strings"`
	CapacityHint         int    `toml:"capacity_hint"`
	MaxAggregateSize     int    `toml:"max_aggregate_size"`
}

func loadConfig(path string) (settings, error) {
	var cfg settings

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, errors.Wrap(err, "load config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, errors.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("password") {
		cfg.password = raw.Password
	}

	if meta.IsDefined("trailing_policy") {
		policy, err := biff.ParseTrailingPolicy(strings.TrimSpace(raw.TrailingPolicy))
		if err != nil {
			return settings{}, errors.Wrap(err, "parse trailing_policy")
		}
		cfg.strict = policy == biff.TrailingStrict
	}

	if meta.IsDefined("keep_regenerable") {
		cfg.keepRegenerable = raw.KeepRegenerable
	}

	if meta.IsDefined("detach_formula_strings") {
		cfg.detachFormulaStrings = raw.DetachFormulaStrings
	}

	if meta.IsDefined("capacity_hint") {
		if raw.CapacityHint < 0 {
			return settings{}, errors.Errorf("capacity_hint must not be negative, got %d", raw.CapacityHint)
		}
		cfg.capacityHint = raw.CapacityHint
	}

	if meta.IsDefined("max_aggregate_size") {
		if raw.MaxAggregateSize < 0 {
			return settings{}, errors.Errorf("max_aggregate_size must not be negative, got %d", raw.MaxAggregateSize)
		}
		cfg.maxAggregateSize = raw.MaxAggregateSize
	}

	return cfg, nil
}

func (s settings) options(logger *zerolog.Logger) *biff.Options {
	opts := &biff.Options{
		Password:             s.password,
		Logger:               logger,
		KeepRegenerable:      s.keepRegenerable,
		DetachFormulaStrings: s.detachFormulaStrings,
		CapacityHint:         s.capacityHint,
		MaxAggregateSize:     s.maxAggregateSize,
	}
	if s.strict {
		opts.TrailingPolicy = biff.TrailingStrict
	}
	return opts
}
