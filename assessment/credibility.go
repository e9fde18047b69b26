package assessment

import "fmt"

// Credibility is the ordinal rating of one specific output instance,
// independent of the general reliability of the tool that produced it.
// The six levels follow the Admiralty grading convention, best to worst.
type Credibility string

const (
	// CredibilityConfirmed indicates the output is corroborated by
	// independent sources.
	CredibilityConfirmed Credibility = "confirmed"

	// CredibilityProbablyTrue indicates the output is consistent with other
	// information but not independently confirmed.
	CredibilityProbablyTrue Credibility = "probably_true"

	// CredibilityPossiblyTrue indicates the output is plausible but only
	// weakly supported.
	CredibilityPossiblyTrue Credibility = "possibly_true"

	// CredibilityDoubtful indicates the output conflicts with some other
	// information.
	CredibilityDoubtful Credibility = "doubtful"

	// CredibilityImprobable indicates the output contradicts better-supported
	// information.
	CredibilityImprobable Credibility = "improbable"

	// CredibilityCannotBeJudged indicates no basis exists to evaluate the
	// output. This is also the mandated rating for failed operations.
	CredibilityCannotBeJudged Credibility = "cannot_be_judged"
)

var credibilityRanks = map[Credibility]int{
	CredibilityConfirmed:      6,
	CredibilityProbablyTrue:   5,
	CredibilityPossiblyTrue:   4,
	CredibilityDoubtful:       3,
	CredibilityImprobable:     2,
	CredibilityCannotBeJudged: 1,
}

// credibilityWeights maps credibility levels to numeric weights for
// weighted aggregation.
var credibilityWeights = map[Credibility]float64{
	CredibilityConfirmed:      1.0,
	CredibilityProbablyTrue:   0.8,
	CredibilityPossiblyTrue:   0.6,
	CredibilityDoubtful:       0.4,
	CredibilityImprobable:     0.2,
	CredibilityCannotBeJudged: 0.1,
}

// IsValid returns true if the credibility level is one of the defined values.
func (c Credibility) IsValid() bool {
	_, ok := credibilityRanks[c]
	return ok
}

// Weight returns the numeric aggregation weight for the credibility level.
// Returns 0.0 for invalid levels.
func (c Credibility) Weight() float64 {
	return credibilityWeights[c]
}

// Rank returns the ordinal rank of the credibility level (6 best, 1 worst).
// Returns 0 for invalid levels.
func (c Credibility) Rank() int {
	return credibilityRanks[c]
}

// AtLeast returns true if c ranks at or above other. Invalid levels never
// satisfy AtLeast.
func (c Credibility) AtLeast(other Credibility) bool {
	cr, ok := credibilityRanks[c]
	if !ok {
		return false
	}
	return cr >= credibilityRanks[other]
}

// String returns the string representation of the credibility level.
func (c Credibility) String() string {
	return string(c)
}

// ParseCredibility parses a string into a Credibility value.
// Returns an error if the string is not a defined level.
func ParseCredibility(s string) (Credibility, error) {
	c := Credibility(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid credibility: %s", s)
	}
	return c, nil
}
