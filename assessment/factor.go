package assessment

import "fmt"

// Factor is one element of the decomposition that justifies an assessment's
// confidence value: a named signal, its signed impact, and an explanation.
type Factor struct {
	// Name identifies the signal, preferably from the operation type's
	// factor vocabulary (see Vocabulary).
	Name string `json:"name"`

	// Impact is the signed contribution of the signal in [-1, 1].
	// Negative impacts lowered confidence, positive impacts raised it.
	Impact float64 `json:"impact"`

	// Explanation describes what was observed in this specific instance.
	Explanation string `json:"explanation"`
}

// Validate checks the factor fields. Returns an error wrapping ErrValidation
// if the name is empty or the impact is outside [-1, 1].
func (f *Factor) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: factor name is required", ErrValidation)
	}
	if f.Impact < -1 || f.Impact > 1 {
		return fmt.Errorf("%w: factor %q impact %v outside [-1, 1]", ErrValidation, f.Name, f.Impact)
	}
	return nil
}

// Canonical factor names per operation type. Assessors should draw factor
// names from the vocabulary of the operation being scored so that bottleneck
// analysis can compare like with like across a pipeline.
const (
	// Extraction factors.
	FactorOCRQuality       = "ocr_quality"
	FactorFormatFidelity   = "format_fidelity"
	FactorSourceLegibility = "source_legibility"
	FactorParserCoverage   = "parser_coverage"

	// Recognition and relationship-extraction factors.
	FactorDomainMatch       = "domain_match"
	FactorAmbiguity         = "ambiguity"
	FactorContextWindow     = "context_window"
	FactorModelCalibration  = "model_calibration"
	FactorSyntacticEvidence = "syntactic_evidence"
	FactorCooccurrence      = "cooccurrence_strength"

	// Graph construction and analysis factors.
	FactorDedupAccuracy        = "dedup_accuracy"
	FactorSchemaConformance    = "schema_conformance"
	FactorMergeConflicts       = "merge_conflicts"
	FactorConvergence          = "convergence"
	FactorGraphCompleteness    = "graph_completeness"
	FactorParameterSensitivity = "parameter_sensitivity"

	// Transformation factors.
	FactorIntentAlignment = "intent_alignment"
	FactorFieldCoverage   = "field_coverage"
	FactorTypeFidelity    = "type_fidelity"
	FactorModalityGap     = "modality_gap"
	FactorIntentUnknown   = "intent_unknown"

	// Aggregation and inference factors.
	FactorComponentAgreement = "component_agreement"
	FactorEvidenceCount      = "evidence_count"
	FactorIndependence       = "independence"
	FactorPremiseSupport     = "premise_support"
	FactorChainLength        = "chain_length"
	FactorAssumptionCount    = "assumption_count"

	// FactorOperationFailed is used on assessments of failed operations.
	FactorOperationFailed = "operation_failed"
)

// vocabulary maps each operation type to its canonical factor names.
var vocabulary = map[OperationType][]string{
	OpExtraction:               {FactorOCRQuality, FactorFormatFidelity, FactorSourceLegibility, FactorParserCoverage},
	OpEntityRecognition:        {FactorDomainMatch, FactorAmbiguity, FactorContextWindow, FactorModelCalibration},
	OpRelationshipExtraction:   {FactorCooccurrence, FactorSyntacticEvidence, FactorDomainMatch, FactorAmbiguity},
	OpGraphConstruction:        {FactorDedupAccuracy, FactorSchemaConformance, FactorMergeConflicts},
	OpGraphAnalysis:            {FactorConvergence, FactorGraphCompleteness, FactorParameterSensitivity},
	OpFormatConversion:         {FactorIntentAlignment, FactorFieldCoverage, FactorTypeFidelity},
	OpCrossModalTransformation: {FactorIntentAlignment, FactorModalityGap, FactorFieldCoverage},
	OpAggregation:              {FactorComponentAgreement, FactorEvidenceCount, FactorIndependence},
	OpInference:                {FactorPremiseSupport, FactorChainLength, FactorAssumptionCount},
}

// Vocabulary returns the canonical factor names for an operation type.
// Returns nil for invalid operation types. The returned slice must not be
// modified.
func Vocabulary(op OperationType) []string {
	return vocabulary[op]
}

// InVocabulary returns true if name is a canonical factor for the operation
// type. FactorOperationFailed is accepted for every operation type.
func InVocabulary(op OperationType, name string) bool {
	if name == FactorOperationFailed {
		return true
	}
	for _, n := range vocabulary[op] {
		if n == name {
			return true
		}
	}
	return false
}
