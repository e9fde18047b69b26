package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chainscore-ai/provenance/assessment"
)

// SchemaVersion tags serialized aggregated assessments.
const SchemaVersion = 1

// Sentinel errors for aggregation.
var (
	// ErrNoComponents indicates Aggregate was called with an empty component
	// list. At least one component is required.
	ErrNoComponents = errors.New("aggregate: at least one component assessment is required")

	// ErrInvalidMethod indicates an undefined aggregation method.
	ErrInvalidMethod = errors.New("aggregate: invalid aggregation method")
)

// Config holds the aggregation thresholds. Configuration is always passed in
// explicitly; there is no package-level mutable state, so tests can inject
// deterministic values.
type Config struct {
	// DivergenceThreshold is the component value spread (max - min) above
	// which reliable-but-disagreeing components flag a contradiction.
	DivergenceThreshold float64 `yaml:"divergence_threshold"`

	// MinIndependentComponents is the minimum number of independent
	// (non-sibling) high-reliability components below which the result is
	// flagged as insufficient evidence.
	MinIndependentComponents int `yaml:"min_independent_components"`

	// MinReliability is the reliability level at or above which a component
	// counts as high-reliability for the two detections above.
	MinReliability assessment.SourceReliability `yaml:"min_reliability"`
}

// DefaultConfig returns the standard thresholds: divergence 0.4, two
// independent components, fairly_reliable floor.
func DefaultConfig() Config {
	return Config{
		DivergenceThreshold:      0.4,
		MinIndependentComponents: 2,
		MinReliability:           assessment.ReliabilityFairly,
	}
}

// Aggregated is the result of combining multiple component assessments into
// one summary judgment. Aggregated results are created on demand and never
// mutated; recomputation after new evidence creates a new record so the
// audit trail stays intact.
type Aggregated struct {
	// ID uniquely identifies this aggregated assessment.
	ID string `json:"id"`

	// OverallValue is the combined confidence in [0, 1].
	OverallValue float64 `json:"overall_value"`

	// Method is the combination method that produced OverallValue.
	Method Method `json:"method"`

	// ComponentIDs lists the contributing assessment IDs, kept for audit.
	ComponentIDs []string `json:"component_assessment_ids"`

	// WeakestLinkID is the component with the lowest value, ties broken by
	// earliest assessment time. Computed, never chosen.
	WeakestLinkID string `json:"weakest_link_id"`

	// Reasoning explains the method choice and what the result implies,
	// including explicit contradiction and insufficient-evidence notices.
	Reasoning string `json:"reasoning"`

	// Contradiction is true when reliable components disagree beyond the
	// divergence threshold. A flag, never an error: the caller needs the
	// partial result.
	Contradiction bool `json:"contradiction,omitempty"`

	// InsufficientEvidence is true when fewer than the configured minimum of
	// independent high-reliability components exist.
	InsufficientEvidence bool `json:"insufficient_evidence,omitempty"`

	// CreatedAt is when the aggregation ran.
	CreatedAt time.Time `json:"created_at"`

	// Schema is the record schema version.
	Schema int `json:"schema_version"`
}

// Validate checks the aggregated record's invariants.
func (g *Aggregated) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: id is required", assessment.ErrValidation)
	}
	if !g.Method.IsValid() {
		return fmt.Errorf("%w: invalid aggregation method %q", assessment.ErrValidation, g.Method)
	}
	if g.OverallValue < 0 || g.OverallValue > 1 {
		return fmt.Errorf("%w: overall value %v outside [0, 1]", assessment.ErrValidation, g.OverallValue)
	}
	if len(g.ComponentIDs) == 0 {
		return fmt.Errorf("%w: component assessment ids are required", assessment.ErrValidation)
	}
	if g.WeakestLinkID == "" {
		return fmt.Errorf("%w: weakest link id is required", assessment.ErrValidation)
	}
	if g.Reasoning == "" {
		return fmt.Errorf("%w: reasoning is required", assessment.ErrValidation)
	}
	return nil
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithWeightPolicy injects the weight derivation strategy used by
// MethodWeightedMean.
func WithWeightPolicy(p WeightPolicy) AggregatorOption {
	return func(a *Aggregator) {
		a.weights = p
	}
}

// WithSynthesizer injects the strategy used by MethodSynthesized.
func WithSynthesizer(s Synthesizer) AggregatorOption {
	return func(a *Aggregator) {
		a.synth = s
	}
}

// Aggregator combines component assessments per its Config. Safe for
// concurrent use; it holds no mutable state.
type Aggregator struct {
	cfg     Config
	weights WeightPolicy
	synth   Synthesizer
}

// NewAggregator creates an aggregator with the given thresholds, the
// deterministic reliability-times-credibility weight policy, and the rule
// synthesizer, unless overridden by options.
func NewAggregator(cfg Config, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		cfg:     cfg,
		weights: ReliabilityCredibilityPolicy{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.synth == nil {
		a.synth = &RuleSynthesizer{Weights: a.weights}
	}
	return a
}

// Aggregate combines the component assessments using the given method.
//
// Contradiction and insufficient evidence surface as flags and reasoning
// text on the result, never as errors; errors are reserved for contract
// violations (no components, invalid method, broken weight policy).
func (a *Aggregator) Aggregate(ctx context.Context, method Method, components []*assessment.Assessment) (*Aggregated, error) {
	if len(components) == 0 {
		return nil, ErrNoComponents
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	weakest := WeakestLink(components)
	spread := valueSpread(components)
	contradiction := spread > a.cfg.DivergenceThreshold && a.allReliable(components)
	independent := a.countIndependent(components)
	insufficient := independent < a.cfg.MinIndependentComponents

	value, note, err := a.combine(ctx, method, components)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(components))
	for i, c := range components {
		ids[i] = c.ID
	}

	result := &Aggregated{
		ID:                   uuid.NewString(),
		OverallValue:         value,
		Method:               method,
		ComponentIDs:         ids,
		WeakestLinkID:        weakest.ID,
		Contradiction:        contradiction,
		InsufficientEvidence: insufficient,
		CreatedAt:            time.Now().UTC(),
		Schema:               SchemaVersion,
	}
	result.Reasoning = a.buildReasoning(method, note, components, spread, contradiction, independent, insufficient)
	return result, nil
}

// combine computes the overall value for the chosen method.
func (a *Aggregator) combine(ctx context.Context, method Method, components []*assessment.Assessment) (float64, string, error) {
	switch method {
	case MethodWeightedMean:
		var weightedSum, weightTotal float64
		for _, c := range components {
			w, err := a.weights.Weight(ctx, c)
			if err != nil {
				return 0, "", fmt.Errorf("weight policy %s: %w", a.weights.Name(), err)
			}
			if w < 0 {
				return 0, "", fmt.Errorf("weight policy %s produced negative weight %v for %s",
					a.weights.Name(), w, c.ID)
			}
			weightedSum += w * c.Value
			weightTotal += w
		}
		if weightTotal == 0 {
			return 0, "", fmt.Errorf("weight policy %s assigned zero total weight", a.weights.Name())
		}
		return weightedSum / weightTotal, fmt.Sprintf("weights from %s", a.weights.Name()), nil

	case MethodMinimum:
		low := components[0].Value
		for _, c := range components[1:] {
			if c.Value < low {
				low = c.Value
			}
		}
		return low, "any single weak component vetoes the claim", nil

	case MethodHarmonicMean:
		var reciprocalSum float64
		for _, c := range components {
			if c.Value == 0 {
				return 0, "a zero-confidence component forces the harmonic mean to zero", nil
			}
			reciprocalSum += 1 / c.Value
		}
		return float64(len(components)) / reciprocalSum, "harmonic mean penalizes low outliers", nil

	case MethodSynthesized:
		value, note, err := a.synth.Synthesize(ctx, components)
		if err != nil {
			return 0, "", fmt.Errorf("synthesizer %s: %w", a.synth.Name(), err)
		}
		if value < 0 || value > 1 {
			return 0, "", fmt.Errorf("synthesizer %s produced value %v outside [0, 1]", a.synth.Name(), value)
		}
		return value, note, nil

	default:
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
}

// buildReasoning composes the audit explanation, with mandated explicit
// notices for contradiction and insufficient evidence.
func (a *Aggregator) buildReasoning(method Method, note string, components []*assessment.Assessment, spread float64, contradiction bool, independent int, insufficient bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s over %d components (%s)", method, len(components), note)
	if contradiction {
		fmt.Fprintf(&b,
			"; contradiction: component values diverge by %.2f (threshold %.2f) across sources rated %s or better - do not read the aggregate as consensus",
			spread, a.cfg.DivergenceThreshold, a.cfg.MinReliability)
	}
	if insufficient {
		fmt.Fprintf(&b,
			"; insufficient evidence: only %d independent component(s) at or above %s (minimum %d)",
			independent, a.cfg.MinReliability, a.cfg.MinIndependentComponents)
	}
	return b.String()
}

// allReliable reports whether every component is at or above the configured
// reliability floor. Contradiction is only meaningful between sources that
// are individually trustworthy.
func (a *Aggregator) allReliable(components []*assessment.Assessment) bool {
	for _, c := range components {
		if !c.SourceReliability.AtLeast(a.cfg.MinReliability) {
			return false
		}
	}
	return true
}

// countIndependent counts high-reliability components that do not share a
// direct parent with an already-counted component. Siblings derived from the
// same upstream assessment corroborate nothing.
func (a *Aggregator) countIndependent(components []*assessment.Assessment) int {
	used := make(map[string]struct{})
	count := 0
	for _, c := range components {
		if !c.SourceReliability.AtLeast(a.cfg.MinReliability) {
			continue
		}
		shared := false
		for _, pid := range c.ParentIDs {
			if _, ok := used[pid]; ok {
				shared = true
				break
			}
		}
		if shared {
			continue
		}
		for _, pid := range c.ParentIDs {
			used[pid] = struct{}{}
		}
		count++
	}
	return count
}

// WeakestLink returns the component with the lowest value. Ties break by
// earliest assessment time, then lexicographically by ID for determinism.
// Panics on an empty slice; callers guarantee at least one component.
func WeakestLink(components []*assessment.Assessment) *assessment.Assessment {
	weakest := components[0]
	for _, c := range components[1:] {
		switch {
		case c.Value < weakest.Value:
			weakest = c
		case c.Value == weakest.Value:
			if c.AssessedAt.Before(weakest.AssessedAt) ||
				(c.AssessedAt.Equal(weakest.AssessedAt) && c.ID < weakest.ID) {
				weakest = c
			}
		}
	}
	return weakest
}

// valueSpread returns max - min over component values.
func valueSpread(components []*assessment.Assessment) float64 {
	low, high := components[0].Value, components[0].Value
	for _, c := range components[1:] {
		if c.Value < low {
			low = c.Value
		}
		if c.Value > high {
			high = c.Value
		}
	}
	return high - low
}
