package assessment

import "fmt"

// TransformationIntent classifies why a data-reshaping operation produced
// output that differs from its input. The classification changes how
// downstream confidence is computed, not just how it is annotated.
type TransformationIntent string

const (
	// IntentFullFidelity declares the transformation attempted a complete
	// copy. Any field the output lacks relative to the input is genuine
	// information loss.
	IntentFullFidelity TransformationIntent = "full_fidelity"

	// IntentAnalysisProjection declares the transformation deliberately
	// selected exactly the data needed for a stated downstream purpose.
	// A projection is never lossy by definition: information_preserved is
	// fixed at 1.0, and a projection that dropped data the purpose actually
	// required is a full-fidelity failure, not a projection.
	IntentAnalysisProjection TransformationIntent = "analysis_projection"

	// IntentSummaryAggregation declares the transformation condensed its
	// input into a summary, with a measured preservation fraction.
	IntentSummaryAggregation TransformationIntent = "summary_aggregation"

	// IntentUnknown marks unlabeled or legacy transformations. Downstream
	// consumers treat unknown intent as a mild explicit uncertainty factor,
	// never silently assume full fidelity or projection.
	IntentUnknown TransformationIntent = "unknown"
)

// IsValid returns true if the intent is one of the defined values.
func (t TransformationIntent) IsValid() bool {
	switch t {
	case IntentFullFidelity, IntentAnalysisProjection, IntentSummaryAggregation, IntentUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the intent.
func (t TransformationIntent) String() string {
	return string(t)
}

// ParseTransformationIntent parses a string into a TransformationIntent.
// Returns an error if the string is not a defined intent.
func ParseTransformationIntent(s string) (TransformationIntent, error) {
	t := TransformationIntent(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid transformation intent: %s", s)
	}
	return t, nil
}
