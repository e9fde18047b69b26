// Package aggregate combines multiple, possibly-contradictory confidence
// assessments about the same conceptual claim into one AggregatedAssessment.
//
// The primary failure mode this package exists to prevent is averaging
// high-quality contradictory evidence into a false "medium confidence":
// when reliable components disagree beyond the divergence threshold, the
// result carries an explicit contradiction flag and the reasoning says so in
// plain language. Likewise, when fewer than the configured minimum of
// independent high-reliability components exist, the result is flagged as
// insufficient evidence instead of implying false certainty. Both conditions
// are data on the result, never errors: they are expected, common, and
// actionable outcomes.
//
// # Methods
//
//   - MethodWeightedMean: weights each component by source reliability times
//     information credibility (never by the value being averaged, which
//     would double-count).
//   - MethodMinimum: any single failure vetoes the claim; use when
//     corroboration is required.
//   - MethodHarmonicMean: balances many weak-but-consistent signals,
//     penalizing outliers harder than an arithmetic mean would.
//   - MethodSynthesized: delegates to an injectable Synthesizer; the default
//     is a deterministic rule, and LLM-backed implementations can plug in
//     without touching the data model.
//
// # Usage
//
//	agg := aggregate.NewAggregator(aggregate.DefaultConfig())
//	result, err := agg.Aggregate(ctx, aggregate.MethodWeightedMean, components)
//	if err != nil {
//	    return err
//	}
//	if result.Contradiction {
//	    log.Warn("components disagree", "reasoning", result.Reasoning)
//	}
//
// Configuration is passed in explicitly; there are no package-level weight
// tables, so tests can inject deterministic weights.
package aggregate
