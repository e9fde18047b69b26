// Package intent classifies data-reshaping operations so the propagation
// engine can interpret their confidence correctly.
//
// The central rule this package encodes: selecting exactly the data needed
// for a declared downstream purpose is NOT information loss, even when the
// output is a strict subset of the input. A projection only fails by not
// delivering what the purpose required, and that failure is expressed as a
// low confidence value on the transformation's own assessment, never as a
// reduced preservation fraction on a "projection".
//
// Concretely:
//
//   - analysis_projection with all required fields delivered classifies as a
//     projection with information_preserved fixed at 1.0 and no loss signals.
//   - a declared projection that dropped a required field is reclassified as
//     a full_fidelity failure: reduced preservation, reduced suggested value,
//     and factors naming the missing fields.
//   - full_fidelity transformations measure preservation as the fraction of
//     source fields present in the output.
//   - unlabeled transformations classify as unknown and carry a mild,
//     explicit uncertainty factor; unknown is never silently promoted to
//     either full_fidelity or projection.
//
// Usage:
//
//	c := intent.NewClassifier()
//	res := c.Classify(intent.Request{
//	    Declared:       assessment.IntentAnalysisProjection,
//	    Purpose:        "count edge types",
//	    SourceFields:   []string{"src", "dst", "type", "weight", "ts"},
//	    OutputFields:   []string{"type", "count"},
//	    RequiredFields: []string{"type"},
//	})
//	// res.Intent == assessment.IntentAnalysisProjection
//	// res.Preserved == 1.0, res.SuggestedValue == 1.0
package intent
