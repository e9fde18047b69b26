package provenance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/rating"
)

// Config holds the tunable thresholds of the SDK. Configuration is explicit
// and injected; no component reads global state, so tests can pin
// deterministic values.
type Config struct {
	// Aggregation configures divergence and evidence thresholds.
	Aggregation aggregate.Config `yaml:"aggregation"`

	// PropagationFloor is the propagated confidence below which results
	// carry the uncertainty-explosion flag.
	PropagationFloor float64 `yaml:"propagation_floor"`

	// MinObservations is the invocation count below which tools rate
	// cannot_be_judged.
	MinObservations int `yaml:"min_observations"`

	// AssessorID is stamped on assessments produced by the tracker.
	AssessorID string `yaml:"assessor_id"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Aggregation:      aggregate.DefaultConfig(),
		PropagationFloor: 0.05,
		MinObservations:  rating.DefaultMinObservations,
		AssessorID:       "provenance-tracker",
	}
}

// LoadConfig reads a YAML config file over the defaults, so partial files
// only override what they mention.
//
// Example file:
//
//	aggregation:
//	  divergence_threshold: 0.4
//	  min_independent_components: 2
//	  min_reliability: fairly_reliable
//	propagation_floor: 0.05
//	min_observations: 5
//	assessor_id: pipeline-worker-3
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range thresholds.
func (c Config) Validate() error {
	if c.PropagationFloor < 0 || c.PropagationFloor > 1 {
		return fmt.Errorf("propagation_floor %v outside [0, 1]", c.PropagationFloor)
	}
	if c.Aggregation.DivergenceThreshold < 0 || c.Aggregation.DivergenceThreshold > 1 {
		return fmt.Errorf("aggregation.divergence_threshold %v outside [0, 1]", c.Aggregation.DivergenceThreshold)
	}
	if c.Aggregation.MinIndependentComponents < 1 {
		return fmt.Errorf("aggregation.min_independent_components %d must be at least 1", c.Aggregation.MinIndependentComponents)
	}
	if c.Aggregation.MinReliability != "" && !c.Aggregation.MinReliability.IsValid() {
		return fmt.Errorf("aggregation.min_reliability %q is not a valid reliability level", c.Aggregation.MinReliability)
	}
	if c.MinObservations < 1 {
		return fmt.Errorf("min_observations %d must be at least 1", c.MinObservations)
	}
	return nil
}
