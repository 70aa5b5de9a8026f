// Package verify aggregates extraction and matching results into a graded
// confidence report.
package verify

import "github.com/fyrsmithlabs/marcopolo/internal/match"

// DefaultAmbiguityEpsilon is the top-1/top-2 score gap at or below which a
// unit is ambiguous.
const DefaultAmbiguityEpsilon = 0.03

// Weights are the confidence factor weights.
type Weights struct {
	Coverage  float64 `json:"coverage" koanf:"coverage"`
	Novelty   float64 `json:"novelty" koanf:"novelty"`
	Ambiguity float64 `json:"ambiguity" koanf:"ambiguity"`
	PropRatio float64 `json:"prop_ratio" koanf:"prop_ratio"`
}

// Band maps a half-open confidence interval [Min, Max) to a label.
type Band struct {
	Label string  `json:"label" koanf:"label"`
	Min   float64 `json:"min" koanf:"min"`
	Max   float64 `json:"max" koanf:"max"`
}

// Params are the thresholds and weights used to compute a report.
type Params struct {
	MatchMin         float64 `json:"match_min"`
	AmbiguityEpsilon float64 `json:"ambiguity_epsilon"`
	Weights          Weights `json:"weights"`
	Labels           []Band  `json:"labels"`
}

// DefaultWeights returns the default factor weights.
func DefaultWeights() Weights {
	return Weights{
		Coverage:  0.55,
		Novelty:   0.25,
		Ambiguity: 0.15,
		PropRatio: 0.05,
	}
}

// DefaultBands returns the default low/medium/high bands.
func DefaultBands() []Band {
	return []Band{
		{Label: "low", Min: 0.0, Max: 0.5},
		{Label: "medium", Min: 0.5, Max: 0.8},
		{Label: "high", Min: 0.8, Max: 1.0},
	}
}

// DefaultParams returns the default verification parameters.
func DefaultParams() Params {
	return Params{
		MatchMin:         match.DefaultMatchMin,
		AmbiguityEpsilon: DefaultAmbiguityEpsilon,
		Weights:          DefaultWeights(),
		Labels:           DefaultBands(),
	}
}

// LabelFor returns the label of the band containing conf. A score at or
// above the last band's minimum falls back to the last band; a score below
// every band is "unknown".
func LabelFor(conf float64, bands []Band) string {
	for _, b := range bands {
		if conf >= b.Min && conf < b.Max {
			return b.Label
		}
	}
	if len(bands) > 0 && conf >= bands[len(bands)-1].Min {
		return bands[len(bands)-1].Label
	}
	return "unknown"
}
