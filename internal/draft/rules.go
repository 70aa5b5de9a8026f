// Package draft synthesizes a POLO-shaped document from MARCO spans so the
// result can be checked by the same verification pipeline.
package draft

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRules indicates a rules file that cannot be parsed or fails
	// validation.
	ErrInvalidRules = errors.New("invalid draft rules")
)

// Topic is an ordered bucketing rule: a span belongs to the first topic with
// any keyword occurring in its text.
type Topic struct {
	Title    string   `toml:"title"`
	Keywords []string `toml:"keywords"`
}

// Rules configure the draft generator.
type Rules struct {
	Topics          []Topic  `toml:"topic"`
	QuestionMarkers []string `toml:"question_markers"`
}

// DefaultTopics returns the built-in topic rules.
func DefaultTopics() []Topic {
	return []Topic{
		{Title: "OpenCode output formatting", Keywords: []string{"opencode", "output", "format", "ugly", "render", "pretty"}},
		{Title: "Subsidiarity and tool boundaries", Keywords: []string{"subsidiarity", "boundary", "permission", "write", "kernel", "port"}},
		{Title: "Forking and observability", Keywords: []string{"fork", "upstream", "observability", "log", "diagnostic", "telemetry"}},
		{Title: "Model choice and cognition", Keywords: []string{"model", "gpt", "claude", "reason", "cognitive", "engagement"}},
		{Title: "Sequential pipelines and scaling", Keywords: []string{"sequential", "pipeline", "scale", "turns", "conversation"}},
		{Title: "Output templates and hygiene", Keywords: []string{"template", "format", "requirements", "output", "markdown"}},
		{Title: "Work-OS framing", Keywords: []string{"work-os", "atlas", "context", "kernel", "doctrine"}},
	}
}

// DefaultQuestionMarkers returns the substrings that make a span emit an
// OPEN line.
func DefaultQuestionMarkers() []string {
	return []string{"?", "unclear", "needs decision", "what determines", "how do", "is there any way"}
}

// DefaultRules returns the built-in rules.
func DefaultRules() Rules {
	return Rules{
		Topics:          DefaultTopics(),
		QuestionMarkers: DefaultQuestionMarkers(),
	}
}

// LoadRules reads topic rules from a TOML file. Question markers default to
// DefaultQuestionMarkers when the file omits them.
func LoadRules(path string) (Rules, error) {
	if _, err := os.Stat(path); err != nil {
		return Rules{}, err
	}

	var rules Rules
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return Rules{}, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}
	if rules.QuestionMarkers == nil {
		rules.QuestionMarkers = DefaultQuestionMarkers()
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Validate checks that every topic has a title and at least one keyword.
func (r Rules) Validate() error {
	if len(r.Topics) == 0 {
		return fmt.Errorf("%w: no topics defined", ErrInvalidRules)
	}
	for i, t := range r.Topics {
		if t.Title == "" {
			return fmt.Errorf("%w: topic %d has no title", ErrInvalidRules, i)
		}
		if len(t.Keywords) == 0 {
			return fmt.Errorf("%w: topic %q has no keywords", ErrInvalidRules, t.Title)
		}
		for _, kw := range t.Keywords {
			if kw == "" {
				return fmt.Errorf("%w: topic %q has an empty keyword", ErrInvalidRules, t.Title)
			}
		}
	}
	return nil
}
