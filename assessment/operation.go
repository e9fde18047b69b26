package assessment

import "fmt"

// OperationType classifies the pipeline operation an assessment scores.
type OperationType string

const (
	// OpExtraction indicates raw content extraction (PDF, OCR, HTML).
	OpExtraction OperationType = "extraction"

	// OpEntityRecognition indicates named-entity recognition over text.
	OpEntityRecognition OperationType = "entity_recognition"

	// OpRelationshipExtraction indicates relationship extraction between
	// recognized entities.
	OpRelationshipExtraction OperationType = "relationship_extraction"

	// OpGraphConstruction indicates knowledge-graph node/edge construction.
	OpGraphConstruction OperationType = "graph_construction"

	// OpGraphAnalysis indicates derived graph analytics (PageRank,
	// centrality, community detection).
	OpGraphAnalysis OperationType = "graph_analysis"

	// OpFormatConversion indicates a format or schema conversion step.
	OpFormatConversion OperationType = "format_conversion"

	// OpCrossModalTransformation indicates a transformation across
	// modalities (e.g., table to text, graph to summary).
	OpCrossModalTransformation OperationType = "cross_modal_transformation"

	// OpAggregation indicates combination of multiple upstream results.
	OpAggregation OperationType = "aggregation"

	// OpInference indicates a derived conclusion not directly observed.
	OpInference OperationType = "inference"
)

// IsValid returns true if the operation type is one of the defined values.
func (o OperationType) IsValid() bool {
	switch o {
	case OpExtraction,
		OpEntityRecognition,
		OpRelationshipExtraction,
		OpGraphConstruction,
		OpGraphAnalysis,
		OpFormatConversion,
		OpCrossModalTransformation,
		OpAggregation,
		OpInference:
		return true
	default:
		return false
	}
}

// IsTransformation returns true if the operation type reshapes data and
// therefore carries transformation intent metadata.
func (o OperationType) IsTransformation() bool {
	switch o {
	case OpFormatConversion, OpCrossModalTransformation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the operation type.
func (o OperationType) String() string {
	return string(o)
}

// ParseOperationType parses a string into an OperationType.
// Returns an error if the string is not a defined operation type.
func ParseOperationType(s string) (OperationType, error) {
	op := OperationType(s)
	if !op.IsValid() {
		return "", fmt.Errorf("invalid operation type: %s", s)
	}
	return op, nil
}
