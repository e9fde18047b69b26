package aggregate

import "fmt"

// Method is the statistical method used to combine component assessments.
type Method string

const (
	// MethodWeightedMean averages component values weighted by source
	// reliability times information credibility.
	MethodWeightedMean Method = "weighted_mean"

	// MethodMinimum takes the lowest component value. Appropriate when any
	// single failure should veto the claim.
	MethodMinimum Method = "minimum"

	// MethodHarmonicMean takes the harmonic mean of component values,
	// penalizing low outliers harder than an arithmetic mean.
	MethodHarmonicMean Method = "harmonic_mean"

	// MethodSynthesized delegates the combined value to an injectable
	// Synthesizer implementation.
	MethodSynthesized Method = "synthesized_judgment"
)

// IsValid returns true if the method is one of the defined values.
func (m Method) IsValid() bool {
	switch m {
	case MethodWeightedMean, MethodMinimum, MethodHarmonicMean, MethodSynthesized:
		return true
	default:
		return false
	}
}

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// ParseMethod parses a string into a Method.
// Returns an error if the string is not a defined method.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid aggregation method: %s", s)
	}
	return m, nil
}
