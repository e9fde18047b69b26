// Package assessment defines the confidence assessment data model for the
// ChainScore provenance SDK.
//
// A ConfidenceAssessment is the fundamental unit of the system: one quality
// judgment for one atomic pipeline operation (a PDF extraction, an entity
// recognition pass, a graph build step). Every assessment carries a scalar
// confidence value, two independent ordinal ratings (how reliable the tool is
// in general, and how credible this specific output is), a factor
// decomposition explaining the value, and the IDs of the upstream assessments
// it depends on.
//
// # Two Independent Rating Axes
//
// SourceReliability rates the tool or algorithm that produced a result.
// Credibility rates the specific output instance. The axes are deliberately
// independent: a reliable tool can still produce a low-credibility output for
// a hard input. Consumers must consult both, never substitute one for the
// other.
//
// # Creating Assessments
//
// Use the fluent builder for direct construction:
//
//	a := assessment.New(assessment.OpEntityRecognition, "op-ner-0042").
//	    WithTool("spacy-ner").
//	    WithValue(0.72).
//	    WithReliability(assessment.ReliabilityUsually).
//	    WithCredibility(assessment.CredibilityProbablyTrue).
//	    WithReasoning("domain mismatch between model and corpus").
//	    WithFactor(assessment.FactorDomainMatch, -0.2, "biomedical model on legal text").
//	    WithParents(parentID)
//
//	if err := a.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// Or use an Assessor to score a raw ToolInvocationResult coming from an
// external extraction/NLP service:
//
//	assessor := assessment.NewAssessor("pipeline-worker-3")
//	a, err := assessor.Assess("op-extract-0001", result, assessment.Observation{
//	    Value:       0.95,
//	    Reliability: assessment.ReliabilityCompletely,
//	    Credibility: assessment.CredibilityConfirmed,
//	})
//
// Failed operations still produce an assessment (value 0.0, worst
// credibility, reasoning stating the failure cause) - scoring is never
// skipped on failure.
//
// # Validation
//
// Validate enforces the data-model invariants and never clamps:
//
//   - value and information_preserved stay in [0,1]
//   - factor impacts stay in [-1,1]
//   - reasoning and at least one factor are mandatory below value 0.9
//   - analysis_projection transformations always report
//     information_preserved == 1.0 (selecting exactly the data needed for a
//     declared purpose is not information loss)
//
// Violations are reported as errors wrapping ErrValidation.
package assessment
