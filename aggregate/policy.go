package aggregate

import (
	"context"
	"fmt"

	"github.com/chainscore-ai/provenance/assessment"
)

// WeightPolicy derives the aggregation weight of one component assessment.
// Policies must never weight by the component's confidence value itself:
// weighting by the quantity being averaged double-counts it.
//
// The default is the deterministic ReliabilityCredibilityPolicy. CEL-backed
// policies (NewCELWeightPolicy) and LLM-backed policies can be injected via
// WithWeightPolicy without changing the data model.
type WeightPolicy interface {
	// Name identifies the policy for audit reasoning.
	Name() string

	// Weight returns a non-negative weight for the component.
	Weight(ctx context.Context, a *assessment.Assessment) (float64, error)
}

// ReliabilityCredibilityPolicy weights each component by its source
// reliability weight times its information credibility weight. Both ordinal
// axes contribute; neither substitutes for the other.
type ReliabilityCredibilityPolicy struct{}

// Name returns the policy identifier.
func (ReliabilityCredibilityPolicy) Name() string {
	return "reliability_x_credibility"
}

// Weight returns reliability weight times credibility weight.
func (ReliabilityCredibilityPolicy) Weight(_ context.Context, a *assessment.Assessment) (float64, error) {
	return a.SourceReliability.Weight() * a.InformationCredibility.Weight(), nil
}

// Synthesizer produces the combined value for MethodSynthesized. The default
// RuleSynthesizer is deterministic for testability; production deployments
// may inject an LLM-backed implementation via WithSynthesizer.
type Synthesizer interface {
	// Name identifies the synthesizer for audit reasoning.
	Name() string

	// Synthesize returns the combined value in [0, 1] and a short note
	// explaining the judgment, appended to the result reasoning.
	Synthesize(ctx context.Context, components []*assessment.Assessment) (float64, string, error)
}

// RuleSynthesizer is the deterministic default Synthesizer: an even blend of
// the weakest component and the reliability-weighted mean, so a single
// failure depresses the result without fully determining it.
type RuleSynthesizer struct {
	// Weights supplies the mean weights. Defaults to
	// ReliabilityCredibilityPolicy when nil.
	Weights WeightPolicy
}

// Name returns the synthesizer identifier.
func (s *RuleSynthesizer) Name() string {
	return "rule_min_mean_blend"
}

// Synthesize blends min and weighted mean evenly.
func (s *RuleSynthesizer) Synthesize(ctx context.Context, components []*assessment.Assessment) (float64, string, error) {
	policy := s.Weights
	if policy == nil {
		policy = ReliabilityCredibilityPolicy{}
	}

	low := components[0].Value
	var weightedSum, weightTotal float64
	for _, c := range components {
		if c.Value < low {
			low = c.Value
		}
		w, err := policy.Weight(ctx, c)
		if err != nil {
			return 0, "", fmt.Errorf("weight policy %s: %w", policy.Name(), err)
		}
		if w < 0 {
			return 0, "", fmt.Errorf("weight policy %s produced negative weight %v", policy.Name(), w)
		}
		weightedSum += w * c.Value
		weightTotal += w
	}

	mean := low
	if weightTotal > 0 {
		mean = weightedSum / weightTotal
	}
	value := 0.5*low + 0.5*mean
	note := fmt.Sprintf("blend of weakest component (%.2f) and weighted mean (%.2f)", low, mean)
	return value, note, nil
}
