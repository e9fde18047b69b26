package assessment

import (
	"fmt"
)

// ToolInvocationResult is the bundle an external extraction/NLP service
// reports for one operation. It is the exact input contract of the assessor;
// the SDK has no other coupling to the services that produce pipeline data.
type ToolInvocationResult struct {
	// ToolID identifies the tool that ran.
	ToolID string `json:"tool_id"`

	// OperationType classifies what the tool did.
	OperationType OperationType `json:"operation_type"`

	// RawOutput is the tool's output data. The assessor treats it as opaque.
	RawOutput any `json:"raw_output,omitempty"`

	// Success reports whether the operation produced usable output.
	Success bool `json:"success"`

	// ErrorMessage carries the failure cause when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Observation carries the caller's quality judgment of a successful
// operation: the scalar value, the two rating axes, and the factor
// decomposition justifying the value. For failed operations the observation
// is ignored; failure assessments are fully determined by the result.
type Observation struct {
	// Value is the scalar confidence in [0, 1].
	Value float64

	// Reliability rates the tool in general. Callers that track tool history
	// through a rating.Tracker should pass the tracker's current level.
	Reliability SourceReliability

	// Credibility rates this specific output.
	Credibility Credibility

	// Reasoning explains the value. Mandatory below HighConfidenceThreshold.
	Reasoning string

	// Factors decompose the value, drawn from the operation type's
	// vocabulary where possible.
	Factors []Factor

	// ParentIDs are the upstream assessment IDs the operation consumed.
	ParentIDs []string

	// Intent and Preserved carry transformation metadata for reshaping
	// operations. Leave Intent empty for non-transformations.
	Intent    TransformationIntent
	Preserved float64
}

// Assessor produces ConfidenceAssessments from ToolInvocationResults.
// An Assessor is stateless apart from its identifier and safe for concurrent
// use.
type Assessor struct {
	id string
}

// NewAssessor creates an assessor with the given identifier. The identifier
// is stamped on every assessment the assessor produces.
func NewAssessor(id string) *Assessor {
	return &Assessor{id: id}
}

// Assess produces one validated assessment for the operation instance
// identified by operationID.
//
// For successful operations the observation supplies value, ratings, and
// factors. For failed operations the observation is ignored: the assessment
// is still produced, with value 0.0, the worst credibility rating, and
// reasoning stating the failure cause. Confidence assessment is never
// skipped on failure.
func (a *Assessor) Assess(operationID string, res ToolInvocationResult, obs Observation) (*Assessment, error) {
	if operationID == "" {
		return nil, fmt.Errorf("%w: operation id is required", ErrValidation)
	}
	if !res.OperationType.IsValid() {
		return nil, fmt.Errorf("%w: invalid operation type %q", ErrValidation, res.OperationType)
	}

	out := New(res.OperationType, operationID).
		WithTool(res.ToolID).
		WithAssessor(a.id).
		WithParents(obs.ParentIDs...)

	if !res.Success {
		cause := res.ErrorMessage
		if cause == "" {
			cause = "operation reported failure without a cause"
		}
		out.WithValue(0.0).
			WithReliability(failureReliability(obs.Reliability)).
			WithCredibility(CredibilityCannotBeJudged).
			WithReasoning(fmt.Sprintf("operation failed: %s", cause)).
			WithFactor(FactorOperationFailed, -1.0, cause)
	} else {
		out.WithValue(obs.Value).
			WithReliability(obs.Reliability).
			WithCredibility(obs.Credibility).
			WithReasoning(obs.Reasoning)
		out.Factors = append(out.Factors, obs.Factors...)
		if obs.Intent != "" {
			out.WithIntent(obs.Intent, obs.Preserved)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// failureReliability keeps the caller's tool-level rating on failure
// assessments when one was supplied; tool reliability is a stable axis and a
// single failed output does not erase it. Without a rating the tool cannot
// be judged.
func failureReliability(r SourceReliability) SourceReliability {
	if r.IsValid() {
		return r
	}
	return ReliabilityCannotBeJudged
}
