// Package config loads marcopolo settings from defaults, an optional YAML or
// JSON file and MARCOPOLO_ environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/marcopolo/internal/logging"
	"github.com/fyrsmithlabs/marcopolo/internal/match"
	"github.com/fyrsmithlabs/marcopolo/internal/telemetry"
	"github.com/fyrsmithlabs/marcopolo/internal/verify"
)

// DefaultDebounce is the watch-mode quiet period before re-verifying.
const DefaultDebounce = 200 * time.Millisecond

// Config holds the complete marcopolo configuration.
type Config struct {
	MatchMin         float64        `koanf:"match_min" json:"match_min"`
	AmbiguityEpsilon float64        `koanf:"ambiguity_epsilon" json:"ambiguity_epsilon"`
	TopK             int            `koanf:"top_k" json:"top_k"`
	Weights          verify.Weights `koanf:"weights" json:"weights"`
	Labels           []verify.Band  `koanf:"labels" json:"labels"`

	Airlock AirlockConfig  `koanf:"airlock" json:"airlock"`
	Draft   DraftConfig    `koanf:"draft" json:"draft"`
	Watch   WatchConfig    `koanf:"watch" json:"watch"`
	Metrics MetricsConfig  `koanf:"metrics" json:"metrics"`
	Logging logging.Config `koanf:"logging" json:"logging"`

	Telemetry telemetry.Config `koanf:"telemetry" json:"telemetry"`
}

// AirlockConfig controls the admission gate.
type AirlockConfig struct {
	RepairCommonPunct bool `koanf:"repair_common_punct" json:"repair_common_punct"`
}

// DraftConfig controls the draft generator.
type DraftConfig struct {
	// RulesPath is a TOML topic rules file; empty uses the built-in rules.
	RulesPath string `koanf:"rules_path" json:"rules_path"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce" json:"debounce"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile is a node_exporter textfile path written after each run.
	Textfile string `koanf:"textfile" json:"textfile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MatchMin:         match.DefaultMatchMin,
		AmbiguityEpsilon: verify.DefaultAmbiguityEpsilon,
		TopK:             match.DefaultTopK,
		Weights:          verify.DefaultWeights(),
		Labels:           verify.DefaultBands(),
		Watch:            WatchConfig{Debounce: Duration(DefaultDebounce)},
		Logging:          *logging.NewDefaultConfig(),
		Telemetry:        telemetry.NewDefaultConfig(),
	}
}

// VerifyParams returns the verification parameters.
func (c *Config) VerifyParams() verify.Params {
	labels := make([]verify.Band, len(c.Labels))
	copy(labels, c.Labels)
	return verify.Params{
		MatchMin:         c.MatchMin,
		AmbiguityEpsilon: c.AmbiguityEpsilon,
		Weights:          c.Weights,
		Labels:           labels,
	}
}

// MatchConfig returns the matcher configuration.
func (c *Config) MatchConfig() match.Config {
	return match.Config{MatchMin: c.MatchMin, TopK: c.TopK}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - match_min is outside [0, 1] or ambiguity_epsilon is negative
//   - top_k is less than 1
//   - any weight is negative, or all weights are zero
//   - labels are empty, unnamed, inverted or out of order
//   - logging or telemetry settings are invalid
func (c *Config) Validate() error {
	if c.MatchMin < 0 || c.MatchMin > 1 {
		return fmt.Errorf("match_min must be within [0, 1], got %v", c.MatchMin)
	}
	if c.AmbiguityEpsilon < 0 {
		return fmt.Errorf("ambiguity_epsilon must be >= 0, got %v", c.AmbiguityEpsilon)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	}

	w := c.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"coverage", w.Coverage},
		{"novelty", w.Novelty},
		{"ambiguity", w.Ambiguity},
		{"prop_ratio", w.PropRatio},
	} {
		if f.v < 0 {
			return fmt.Errorf("weights.%s must be >= 0, got %v", f.name, f.v)
		}
	}
	if w.Coverage+w.Novelty+w.Ambiguity+w.PropRatio == 0 {
		return errors.New("at least one weight must be positive")
	}

	if len(c.Labels) == 0 {
		return errors.New("labels must define at least one band")
	}
	for i, b := range c.Labels {
		if b.Label == "" {
			return fmt.Errorf("labels[%d] has no label", i)
		}
		if b.Min >= b.Max {
			return fmt.Errorf("labels[%d] (%s): min %v must be below max %v", i, b.Label, b.Min, b.Max)
		}
		if i > 0 && b.Min < c.Labels[i-1].Max {
			return fmt.Errorf("labels[%d] (%s) overlaps or precedes %s", i, b.Label, c.Labels[i-1].Label)
		}
	}

	if c.Watch.Debounce.Duration() <= 0 {
		return errors.New("watch.debounce must be positive")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return nil
}
