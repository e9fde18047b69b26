package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chainscore-ai/provenance/assessment"
)

// unknownIntentPenalty is the mild uncertainty applied when a transformation
// carries no declared intent. Unknown intent must surface as an explicit
// factor, not be ignored and not be treated as a failure.
const unknownIntentPenalty = 0.1

// Request describes one data-reshaping operation to classify. Declared
// intent takes precedence when present; otherwise intent is inferred from
// the field sets.
type Request struct {
	// Declared is the intent the caller stated at call time, if known.
	// Leave empty for unlabeled or legacy transformations.
	Declared assessment.TransformationIntent

	// Purpose is the stated downstream purpose of the transformation
	// (e.g. "count edge types"). Informational, echoed into reasoning.
	Purpose string

	// SourceFields are the field names available in the input.
	SourceFields []string

	// OutputFields are the field names present in the output.
	OutputFields []string

	// RequiredFields are the fields the stated purpose actually needs.
	RequiredFields []string
}

// Result is the classification outcome: the resolved intent, the preserved
// fraction, a suggested confidence value for the transformation's own
// assessment, and the factors justifying both.
type Result struct {
	// Intent is the resolved transformation intent.
	Intent assessment.TransformationIntent

	// Preserved is the information preservation fraction in [0, 1].
	// Exactly 1.0 whenever Intent is analysis_projection.
	Preserved float64

	// SuggestedValue is the confidence value the classification supports for
	// the transformation's own assessment. Quality concerns with a
	// projection appear here, never in Preserved.
	SuggestedValue float64

	// Factors carry the signals behind the classification, including missing
	// fields and the unknown-intent penalty.
	Factors []assessment.Factor

	// Reasoning explains the classification in plain language.
	Reasoning string

	// MissingRequired lists required fields absent from the output, sorted.
	MissingRequired []string

	// MissingSource lists source fields absent from the output, sorted.
	// Only meaningful for full-fidelity transformations.
	MissingSource []string
}

// Classifier resolves transformation intent and preservation. It is
// stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify resolves the intent and preservation for one transformation.
//
// The returned Result always satisfies the projection invariant: when the
// resolved intent is analysis_projection, Preserved is 1.0 by construction.
// A declared projection that failed to deliver a required field is
// reclassified as a full_fidelity failure with the missing fields as
// factors.
func (c *Classifier) Classify(req Request) Result {
	declared := req.Declared
	if declared == "" {
		declared = c.infer(req)
	}

	switch declared {
	case assessment.IntentAnalysisProjection:
		missing := difference(req.RequiredFields, req.OutputFields)
		if len(missing) > 0 {
			// The projection did not deliver what the purpose required.
			// That is a fidelity failure, not a lossy projection.
			return c.fidelityFailure(req, missing)
		}
		return Result{
			Intent:         assessment.IntentAnalysisProjection,
			Preserved:      1.0,
			SuggestedValue: 1.0,
			Reasoning:      fmt.Sprintf("projection delivered all fields required for %q", purposeOr(req.Purpose)),
		}

	case assessment.IntentFullFidelity:
		missing := difference(req.SourceFields, req.OutputFields)
		preserved := coverage(req.SourceFields, req.OutputFields)
		if len(missing) == 0 {
			return Result{
				Intent:         assessment.IntentFullFidelity,
				Preserved:      preserved,
				SuggestedValue: 1.0,
				Reasoning:      "full-fidelity copy preserved every source field",
			}
		}
		return Result{
			Intent:         assessment.IntentFullFidelity,
			Preserved:      preserved,
			SuggestedValue: preserved,
			Factors: []assessment.Factor{{
				Name:        assessment.FactorFieldCoverage,
				Impact:      preserved - 1.0,
				Explanation: "missing fields: " + strings.Join(missing, ", "),
			}},
			Reasoning: fmt.Sprintf("full-fidelity copy lost %d of %d source fields (missing: %s)",
				len(missing), len(req.SourceFields), strings.Join(missing, ", ")),
			MissingSource: missing,
		}

	case assessment.IntentSummaryAggregation:
		preserved := coverage(req.SourceFields, req.OutputFields)
		res := Result{
			Intent:         assessment.IntentSummaryAggregation,
			Preserved:      preserved,
			SuggestedValue: 1.0,
			Reasoning:      fmt.Sprintf("summary retained %.0f%% of source fields by design", preserved*100),
		}
		if missing := difference(req.RequiredFields, req.OutputFields); len(missing) > 0 {
			// A summary may drop detail, but not the fields the purpose needs.
			res.SuggestedValue = coverage(req.RequiredFields, req.OutputFields)
			res.MissingRequired = missing
			res.Factors = append(res.Factors, assessment.Factor{
				Name:        assessment.FactorIntentAlignment,
				Impact:      res.SuggestedValue - 1.0,
				Explanation: "summary dropped required fields: " + strings.Join(missing, ", "),
			})
			res.Reasoning += "; dropped required fields: " + strings.Join(missing, ", ")
		}
		return res

	default:
		return Result{
			Intent:         assessment.IntentUnknown,
			Preserved:      coverage(req.SourceFields, req.OutputFields),
			SuggestedValue: 1.0 - unknownIntentPenalty,
			Factors: []assessment.Factor{{
				Name:        assessment.FactorIntentUnknown,
				Impact:      -unknownIntentPenalty,
				Explanation: "transformation intent was not declared and could not be inferred",
			}},
			Reasoning: "transformation intent unknown; treated as a mild explicit uncertainty",
		}
	}
}

// fidelityFailure builds the result for a declared projection that dropped
// fields the purpose actually required.
func (c *Classifier) fidelityFailure(req Request, missing []string) Result {
	preserved := coverage(req.RequiredFields, req.OutputFields)
	return Result{
		Intent:         assessment.IntentFullFidelity,
		Preserved:      preserved,
		SuggestedValue: preserved,
		Factors: []assessment.Factor{{
			Name:        assessment.FactorFieldCoverage,
			Impact:      preserved - 1.0,
			Explanation: "missing required fields: " + strings.Join(missing, ", "),
		}},
		Reasoning: fmt.Sprintf("declared projection for %q failed to deliver required fields %s; reclassified as a fidelity failure",
			purposeOr(req.Purpose), strings.Join(missing, ", ")),
		MissingRequired: missing,
	}
}

// infer derives an intent when the caller declared none. Inference is
// conservative: only exact full coverage or an exact required-field match
// resolves; everything else stays unknown.
func (c *Classifier) infer(req Request) assessment.TransformationIntent {
	if len(req.SourceFields) > 0 && len(difference(req.SourceFields, req.OutputFields)) == 0 {
		return assessment.IntentFullFidelity
	}
	if len(req.RequiredFields) > 0 &&
		len(difference(req.RequiredFields, req.OutputFields)) == 0 &&
		len(req.OutputFields) < len(req.SourceFields) {
		return assessment.IntentAnalysisProjection
	}
	return assessment.IntentUnknown
}

// coverage returns the fraction of want present in have, 1.0 when want is
// empty.
func coverage(want, have []string) float64 {
	if len(want) == 0 {
		return 1.0
	}
	missing := difference(want, have)
	return float64(len(want)-len(missing)) / float64(len(want))
}

// difference returns the elements of want absent from have, sorted.
func difference(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, f := range have {
		set[f] = struct{}{}
	}
	var missing []string
	for _, f := range want {
		if _, ok := set[f]; !ok {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

func purposeOr(p string) string {
	if p == "" {
		return "unspecified purpose"
	}
	return p
}
