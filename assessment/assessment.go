package assessment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion tags serialized assessments so records stay readable as the
// factor vocabulary evolves.
const SchemaVersion = 1

// HighConfidenceThreshold is the value at or above which an assessment is
// treated as routine success and needs no factor decomposition. Below it,
// reasoning and at least one factor are mandatory.
const HighConfidenceThreshold = 0.9

// Sentinel errors for assessment construction and validation.
var (
	// ErrValidation indicates a malformed assessment: out-of-range value,
	// invalid enum, or an illegal intent/preservation combination. Values are
	// never clamped; the violation is always surfaced to the caller.
	ErrValidation = errors.New("assessment: validation failed")

	// ErrPropagatedSet indicates an attempt to set propagated confidence on
	// an assessment that already has one. The field is late-bound exactly
	// once by the propagation engine and immutable afterwards.
	ErrPropagatedSet = errors.New("assessment: propagated confidence already set")
)

// Assessment is one confidence judgment for one atomic pipeline operation.
// Assessments are created once, when their producing operation completes,
// and are immutable afterwards except for the single late-bound
// PropagatedConfidence field owned by the propagation engine.
type Assessment struct {
	// ID uniquely identifies this assessment. Auto-generated if empty.
	ID string `json:"id"`

	// Value is the scalar confidence in [0, 1].
	Value float64 `json:"value"`

	// OperationType classifies the operation that was scored.
	OperationType OperationType `json:"operation_type"`

	// OperationID identifies the specific operation instance. Unique within
	// a ledger.
	OperationID string `json:"operation_id"`

	// ToolID identifies the tool or algorithm that ran the operation. Used
	// by the propagation engine to detect correlated parents.
	ToolID string `json:"tool_id,omitempty"`

	// SourceReliability rates the tool in general.
	SourceReliability SourceReliability `json:"source_reliability"`

	// InformationCredibility rates this specific output.
	InformationCredibility Credibility `json:"information_credibility"`

	// Reasoning is the human-readable explanation for Value. Mandatory when
	// Value is below HighConfidenceThreshold.
	Reasoning string `json:"reasoning,omitempty"`

	// Factors decompose the confidence value into named signed signals.
	Factors []Factor `json:"factors,omitempty"`

	// TransformationIntent is present only when OperationType reshapes data.
	TransformationIntent TransformationIntent `json:"transformation_intent,omitempty"`

	// InformationPreserved is the preserved fraction in [0, 1], meaningful
	// only alongside TransformationIntent. Fixed at 1.0 for
	// analysis_projection by the data-model invariant.
	InformationPreserved *float64 `json:"information_preserved,omitempty"`

	// ParentIDs are the upstream assessment IDs this one depends on.
	// Across a ledger the parent edges form a DAG; cycles are rejected at
	// append time.
	ParentIDs []string `json:"parent_assessment_ids,omitempty"`

	// PropagatedConfidence is populated once by the propagation engine,
	// never by the producer. Use SetPropagated.
	PropagatedConfidence *float64 `json:"propagated_confidence,omitempty"`

	// AssessedAt is when the assessment was produced.
	AssessedAt time.Time `json:"assessed_at"`

	// Assessor identifies who or what produced the assessment.
	Assessor string `json:"assessor_identifier,omitempty"`

	// Schema is the record schema version, SchemaVersion at write time.
	Schema int `json:"schema_version"`
}

// New creates an assessment for the given operation with a generated ID,
// current timestamp, and current schema version. The zero confidence value
// will fail validation until WithValue and the mandatory explanation fields
// are set.
func New(op OperationType, operationID string) *Assessment {
	return &Assessment{
		ID:            uuid.NewString(),
		OperationType: op,
		OperationID:   operationID,
		AssessedAt:    time.Now().UTC(),
		Schema:        SchemaVersion,
	}
}

// WithID sets the assessment ID and returns the assessment for chaining.
func (a *Assessment) WithID(id string) *Assessment {
	a.ID = id
	return a
}

// WithTool sets the producing tool identifier and returns the assessment.
func (a *Assessment) WithTool(toolID string) *Assessment {
	a.ToolID = toolID
	return a
}

// WithValue sets the scalar confidence and returns the assessment.
func (a *Assessment) WithValue(v float64) *Assessment {
	a.Value = v
	return a
}

// WithReliability sets the tool-level reliability rating and returns the
// assessment.
func (a *Assessment) WithReliability(r SourceReliability) *Assessment {
	a.SourceReliability = r
	return a
}

// WithCredibility sets the output-level credibility rating and returns the
// assessment.
func (a *Assessment) WithCredibility(c Credibility) *Assessment {
	a.InformationCredibility = c
	return a
}

// WithReasoning sets the explanation text and returns the assessment.
func (a *Assessment) WithReasoning(reasoning string) *Assessment {
	a.Reasoning = reasoning
	return a
}

// WithFactor appends one factor to the decomposition and returns the
// assessment.
func (a *Assessment) WithFactor(name string, impact float64, explanation string) *Assessment {
	a.Factors = append(a.Factors, Factor{Name: name, Impact: impact, Explanation: explanation})
	return a
}

// WithParents sets the upstream assessment IDs and returns the assessment.
func (a *Assessment) WithParents(ids ...string) *Assessment {
	a.ParentIDs = ids
	return a
}

// WithIntent sets the transformation intent and preserved fraction and
// returns the assessment. Pass the fraction the transformation actually
// preserved; for analysis_projection the invariant requires exactly 1.0.
func (a *Assessment) WithIntent(intent TransformationIntent, preserved float64) *Assessment {
	a.TransformationIntent = intent
	a.InformationPreserved = &preserved
	return a
}

// WithAssessor sets the assessor identifier and returns the assessment.
func (a *Assessment) WithAssessor(id string) *Assessment {
	a.Assessor = id
	return a
}

// WithAssessedAt sets the assessment timestamp and returns the assessment.
func (a *Assessment) WithAssessedAt(t time.Time) *Assessment {
	a.AssessedAt = t
	return a
}

// SetPropagated records the propagated confidence computed by the
// propagation engine. The field may be set exactly once; a second call
// returns ErrPropagatedSet. Out-of-range values fail with ErrValidation.
func (a *Assessment) SetPropagated(v float64) error {
	if a.PropagatedConfidence != nil {
		return ErrPropagatedSet
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: propagated confidence %v outside [0, 1]", ErrValidation, v)
	}
	a.PropagatedConfidence = &v
	return nil
}

// Validate checks all data-model invariants. It returns an error wrapping
// ErrValidation on the first violation found and never mutates or clamps the
// assessment.
func (a *Assessment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if a.OperationID == "" {
		return fmt.Errorf("%w: operation_id is required", ErrValidation)
	}
	if !a.OperationType.IsValid() {
		return fmt.Errorf("%w: invalid operation type %q", ErrValidation, a.OperationType)
	}
	if a.Value < 0 || a.Value > 1 {
		return fmt.Errorf("%w: value %v outside [0, 1]", ErrValidation, a.Value)
	}
	if !a.SourceReliability.IsValid() {
		return fmt.Errorf("%w: invalid source reliability %q", ErrValidation, a.SourceReliability)
	}
	if !a.InformationCredibility.IsValid() {
		return fmt.Errorf("%w: invalid information credibility %q", ErrValidation, a.InformationCredibility)
	}
	if a.Value < HighConfidenceThreshold {
		if a.Reasoning == "" {
			return fmt.Errorf("%w: reasoning is required when value %v is below %v",
				ErrValidation, a.Value, HighConfidenceThreshold)
		}
		if len(a.Factors) == 0 {
			return fmt.Errorf("%w: at least one factor is required when value %v is below %v",
				ErrValidation, a.Value, HighConfidenceThreshold)
		}
	}
	for i := range a.Factors {
		if err := a.Factors[i].Validate(); err != nil {
			return err
		}
	}
	if a.AssessedAt.IsZero() {
		return fmt.Errorf("%w: assessed_at is required", ErrValidation)
	}

	if a.TransformationIntent != "" {
		if !a.TransformationIntent.IsValid() {
			return fmt.Errorf("%w: invalid transformation intent %q", ErrValidation, a.TransformationIntent)
		}
		if !a.OperationType.IsTransformation() {
			return fmt.Errorf("%w: transformation intent set on non-transformation operation %q",
				ErrValidation, a.OperationType)
		}
	}
	if a.InformationPreserved != nil {
		if a.TransformationIntent == "" {
			return fmt.Errorf("%w: information_preserved set without transformation intent", ErrValidation)
		}
		p := *a.InformationPreserved
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: information_preserved %v outside [0, 1]", ErrValidation, p)
		}
		if a.TransformationIntent == IntentAnalysisProjection && p != 1.0 {
			return fmt.Errorf("%w: analysis_projection requires information_preserved == 1.0, got %v",
				ErrValidation, p)
		}
	}
	if a.PropagatedConfidence != nil {
		if pc := *a.PropagatedConfidence; pc < 0 || pc > 1 {
			return fmt.Errorf("%w: propagated_confidence %v outside [0, 1]", ErrValidation, pc)
		}
	}

	seen := make(map[string]struct{}, len(a.ParentIDs))
	for _, pid := range a.ParentIDs {
		if pid == "" {
			return fmt.Errorf("%w: empty parent assessment id", ErrValidation)
		}
		if pid == a.ID {
			return fmt.Errorf("%w: assessment %s lists itself as a parent", ErrValidation, a.ID)
		}
		if _, dup := seen[pid]; dup {
			return fmt.Errorf("%w: duplicate parent assessment id %s", ErrValidation, pid)
		}
		seen[pid] = struct{}{}
	}
	return nil
}

// IsRoot returns true if the assessment has no parents, i.e. it scores raw
// external input.
func (a *Assessment) IsRoot() bool {
	return len(a.ParentIDs) == 0
}

// Clone returns a deep copy of the assessment. Ledger implementations return
// clones so callers cannot mutate stored records.
func (a *Assessment) Clone() *Assessment {
	c := *a
	if a.Factors != nil {
		c.Factors = append([]Factor(nil), a.Factors...)
	}
	if a.ParentIDs != nil {
		c.ParentIDs = append([]string(nil), a.ParentIDs...)
	}
	if a.InformationPreserved != nil {
		p := *a.InformationPreserved
		c.InformationPreserved = &p
	}
	if a.PropagatedConfidence != nil {
		p := *a.PropagatedConfidence
		c.PropagatedConfidence = &p
	}
	return &c
}
