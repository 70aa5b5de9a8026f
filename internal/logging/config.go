package logging

import (
	"fmt"
)

// Config holds logging configuration.
type Config struct {
	Level  string            `koanf:"level" json:"level"`
	Format string            `koanf:"format" json:"format"`
	Caller bool              `koanf:"caller" json:"caller"`
	Fields map[string]string `koanf:"fields" json:"fields,omitempty"`
}

// NewDefaultConfig returns the default logging config.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
		Fields: map[string]string{
			"service": "marcopolo",
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if _, err := LevelFromString(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
