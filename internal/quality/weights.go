// Package quality scores references on five dimensions and flags
// problematic ones.
package quality

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights combines the five dimension scores into the overall score.
// They must sum to 1.
type Weights struct {
	Credibility float64 `yaml:"credibility"`
	Recency     float64 `yaml:"recency"`
	Relevance   float64 `yaml:"relevance"`
	Impact      float64 `yaml:"impact"`
	Methodology float64 `yaml:"methodology"`
}

// DefaultWeights returns the standard dimension weighting.
func DefaultWeights() Weights {
	return Weights{
		Credibility: 0.30,
		Recency:     0.20,
		Relevance:   0.25,
		Impact:      0.15,
		Methodology: 0.10,
	}
}

// LoadWeights reads a weights file, validating the sum. An empty path
// returns the defaults.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "quality: read weights %s", path)
	}
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "quality: parse weights %s", path)
	}
	sum := w.Credibility + w.Recency + w.Relevance + w.Impact + w.Methodology
	if sum < 0.999 || sum > 1.001 {
		return Weights{}, eris.Errorf("quality: weights sum to %.3f, want 1.0", sum)
	}
	return w, nil
}
