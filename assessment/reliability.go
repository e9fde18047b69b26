package assessment

import "fmt"

// SourceReliability is the ordinal rating of the tool or algorithm that
// produced a result. It is a stable, tool-level property, independent of the
// credibility of any single output. The six levels follow the Admiralty
// grading convention, best to worst.
type SourceReliability string

const (
	// ReliabilityCompletely indicates a tool with no history of failure.
	ReliabilityCompletely SourceReliability = "completely_reliable"

	// ReliabilityUsually indicates minor doubt based on occasional failures.
	ReliabilityUsually SourceReliability = "usually_reliable"

	// ReliabilityFairly indicates a tool that has performed adequately but
	// fails on a meaningful fraction of inputs.
	ReliabilityFairly SourceReliability = "fairly_reliable"

	// ReliabilityNotUsually indicates significant doubt; the tool fails more
	// often than it succeeds on hard inputs.
	ReliabilityNotUsually SourceReliability = "not_usually_reliable"

	// ReliabilityUnreliable indicates a tool with a history of invalid output.
	ReliabilityUnreliable SourceReliability = "unreliable"

	// ReliabilityCannotBeJudged indicates insufficient observation history to
	// rate the tool at all.
	ReliabilityCannotBeJudged SourceReliability = "cannot_be_judged"
)

// reliabilityRanks orders reliability levels for comparison. Higher ranks
// indicate more reliable tools. CannotBeJudged ranks lowest: an unrated tool
// must never outrank a rated one.
var reliabilityRanks = map[SourceReliability]int{
	ReliabilityCompletely:     6,
	ReliabilityUsually:        5,
	ReliabilityFairly:         4,
	ReliabilityNotUsually:     3,
	ReliabilityUnreliable:     2,
	ReliabilityCannotBeJudged: 1,
}

// reliabilityWeights maps reliability levels to numeric weights for
// weighted aggregation.
var reliabilityWeights = map[SourceReliability]float64{
	ReliabilityCompletely:     1.0,
	ReliabilityUsually:        0.8,
	ReliabilityFairly:         0.6,
	ReliabilityNotUsually:     0.4,
	ReliabilityUnreliable:     0.2,
	ReliabilityCannotBeJudged: 0.1,
}

// IsValid returns true if the reliability level is one of the defined values.
func (r SourceReliability) IsValid() bool {
	_, ok := reliabilityRanks[r]
	return ok
}

// Weight returns the numeric aggregation weight for the reliability level.
// Returns 0.0 for invalid levels.
func (r SourceReliability) Weight() float64 {
	return reliabilityWeights[r]
}

// Rank returns the ordinal rank of the reliability level (6 best, 1 worst).
// Returns 0 for invalid levels.
func (r SourceReliability) Rank() int {
	return reliabilityRanks[r]
}

// AtLeast returns true if r ranks at or above other. Invalid levels never
// satisfy AtLeast.
func (r SourceReliability) AtLeast(other SourceReliability) bool {
	rr, ok := reliabilityRanks[r]
	if !ok {
		return false
	}
	return rr >= reliabilityRanks[other]
}

// String returns the string representation of the reliability level.
func (r SourceReliability) String() string {
	return string(r)
}

// ParseSourceReliability parses a string into a SourceReliability value.
// Returns an error if the string is not a defined level.
func ParseSourceReliability(s string) (SourceReliability, error) {
	r := SourceReliability(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid source reliability: %s", s)
	}
	return r, nil
}
