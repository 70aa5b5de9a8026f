package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MARCOPOLO_"
)

// ErrConfigTooLarge is returned for configuration files above 1MB.
var ErrConfigTooLarge = errors.New("config file too large")

// DefaultPath returns ~/.config/marcopolo/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "marcopolo", "config.yaml"), nil
}

// LoadWithFile loads configuration from a YAML (or JSON) file, then overrides
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MARCOPOLO_MATCH_MIN, MARCOPOLO_LOGGING__LEVEL, etc.)
//  2. Config file
//  3. Built-in defaults, per key
//
// An empty configPath loads DefaultPath when it exists; an explicit path
// must exist.
//
// # Environment Variable Mapping
//
// The prefix is stripped, the rest lowercased, and a double underscore
// separates nesting levels:
//
//	MARCOPOLO_MATCH_MIN           -> match_min
//	MARCOPOLO_WEIGHTS__COVERAGE   -> weights.coverage
//	MARCOPOLO_AIRLOCK__REPAIR_COMMON_PUNCT -> airlock.repair_common_punct
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	content, err := readConfigFile(configPath)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	// Slices are decoded element-wise into existing values, so bands start
	// empty and fall back to defaults only when absent.
	cfg.Labels = nil
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps MARCOPOLO_WEIGHTS__PROP_RATIO to weights.prop_ratio.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// readConfigFile reads a regular file of at most 1MB.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// applyDefaults fills keys the sources left unset.
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	if !k.Exists("labels") {
		cfg.Labels = Default().Labels
	}
}
