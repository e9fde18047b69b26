package provenance

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
	"github.com/chainscore-ai/provenance/intent"
	"github.com/chainscore-ai/provenance/ledger"
)

func newTrackerT(t *testing.T, opts ...Option) *Tracker {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	tracker, err := NewTracker(opts...)
	require.NoError(t, err)
	return tracker
}

func TestTrackerPipelineChain(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	extraction, err := tracker.Assess(ctx, "op-extract-1", assessment.ToolInvocationResult{
		ToolID:        "pdf-extractor",
		OperationType: assessment.OpExtraction,
		Success:       true,
	}, assessment.Observation{
		Value:       0.95,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	})
	require.NoError(t, err)

	ner, err := tracker.Assess(ctx, "op-ner-1", assessment.ToolInvocationResult{
		ToolID:        "spacy-lg",
		OperationType: assessment.OpEntityRecognition,
		Success:       true,
	}, assessment.Observation{
		Value:       0.45,
		Reliability: assessment.ReliabilityFairly,
		Credibility: assessment.CredibilityPossiblyTrue,
		Reasoning:   "domain mismatch between model and corpus",
		Factors: []assessment.Factor{
			{Name: assessment.FactorDomainMatch, Impact: -0.4, Explanation: "biomedical model on legal text"},
		},
		ParentIDs: []string{extraction.ID},
	})
	require.NoError(t, err)

	res, err := tracker.Propagate(ctx, ner.ID)
	require.NoError(t, err)

	want := 1 - math.Sqrt(0.55*0.55+0.05*0.05)
	require.InDelta(t, want, res.PropagatedConfidence, 1e-9)
	require.Equal(t, ner.ID, res.WeakestLinkID)

	// The propagated value is bound onto the ledger record.
	conf, err := tracker.GetConfidence(ctx, ner.ID)
	require.NoError(t, err)
	require.NotNil(t, conf.Assessment)
	require.NotNil(t, conf.Assessment.PropagatedConfidence)
	require.InDelta(t, want, *conf.Assessment.PropagatedConfidence, 1e-9)
	require.Equal(t, 0.45, conf.Value())

	lin, err := tracker.GetLineage(ctx, ner.ID, ledger.UnlimitedDepth)
	require.NoError(t, err)
	require.True(t, lin.Found)
	require.Len(t, lin.Ancestors, 1)
	require.Equal(t, 1, lin.Depth[extraction.ID])
}

func TestTrackerFillsReliabilityFromRatings(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	// Ten successful runs rate the tool usually-or-better before the
	// assessment that relies on the tracker-supplied level.
	for i := 0; i < 10; i++ {
		_, err := tracker.Ratings().Observe(ctx, "ocr-engine", i > 0)
		require.NoError(t, err)
	}

	a, err := tracker.Assess(ctx, "op-ocr-1", assessment.ToolInvocationResult{
		ToolID:        "ocr-engine",
		OperationType: assessment.OpExtraction,
		Success:       true,
	}, assessment.Observation{
		Value:       0.93,
		Credibility: assessment.CredibilityProbablyTrue,
	})
	require.NoError(t, err)
	require.Equal(t, assessment.ReliabilityUsually, a.SourceReliability)

	// The assessment's own outcome also feeds back into the rating.
	snap, err := tracker.Ratings().Rating(ctx, "ocr-engine")
	require.NoError(t, err)
	require.Equal(t, 11, snap.Observations)
}

func TestTrackerAssessFailureStillRecorded(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	a, err := tracker.Assess(ctx, "op-ocr-2", assessment.ToolInvocationResult{
		ToolID:        "ocr-engine",
		OperationType: assessment.OpExtraction,
		Success:       false,
		ErrorMessage:  "corrupt page stream",
	}, assessment.Observation{})
	require.NoError(t, err)
	require.Equal(t, 0.0, a.Value)
	require.Contains(t, a.Reasoning, "corrupt page stream")

	got, err := tracker.Ledger().Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, assessment.CredibilityCannotBeJudged, got.InformationCredibility)
}

func TestTrackerAssessTransformation(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	a, cls, err := tracker.AssessTransformation(ctx, "op-conv-1", assessment.ToolInvocationResult{
		ToolID:        "graph-to-csv",
		OperationType: assessment.OpFormatConversion,
		Success:       true,
	}, assessment.Observation{
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}, intent.Request{
		Declared:       assessment.IntentAnalysisProjection,
		Purpose:        "count edge types",
		SourceFields:   []string{"source", "target", "type", "weight"},
		OutputFields:   []string{"type"},
		RequiredFields: []string{"type"},
	})
	require.NoError(t, err)

	require.Equal(t, assessment.IntentAnalysisProjection, cls.Intent)
	require.Equal(t, 1.0, cls.Preserved)
	require.Equal(t, assessment.IntentAnalysisProjection, a.TransformationIntent)
	require.NotNil(t, a.InformationPreserved)
	require.Equal(t, 1.0, *a.InformationPreserved)
	require.Equal(t, 1.0, a.Value)
}

func TestTrackerAssessTransformationLossy(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	a, cls, err := tracker.AssessTransformation(ctx, "op-conv-2", assessment.ToolInvocationResult{
		ToolID:        "graph-to-csv",
		OperationType: assessment.OpFormatConversion,
		Success:       true,
	}, assessment.Observation{
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}, intent.Request{
		Declared:     assessment.IntentFullFidelity,
		SourceFields: []string{"a", "b", "c", "d"},
		OutputFields: []string{"a"},
	})
	require.NoError(t, err)

	require.Equal(t, assessment.IntentFullFidelity, cls.Intent)
	require.InDelta(t, 0.25, a.Value, 1e-9)
	require.NotEmpty(t, a.Factors)
	require.Equal(t, assessment.FactorFieldCoverage, a.Factors[0].Name)
}

func TestTrackerAssessTransformationValueSemantics(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	req := intent.Request{
		Declared:     assessment.IntentFullFidelity,
		SourceFields: []string{"a", "b", "c", "d"},
		OutputFields: []string{"a"},
	}

	// A zero value means "derive from the classifier", not "pin at zero".
	a, cls, err := tracker.AssessTransformation(ctx, "op-conv-3", assessment.ToolInvocationResult{
		ToolID:        "graph-to-csv",
		OperationType: assessment.OpFormatConversion,
		Success:       true,
	}, assessment.Observation{
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}, req)
	require.NoError(t, err)
	require.Equal(t, cls.SuggestedValue, a.Value)

	// A caller-supplied value survives when the classifier agrees, and is
	// lowered when the classifier scores the transformation worse.
	b, cls, err := tracker.AssessTransformation(ctx, "op-conv-4", assessment.ToolInvocationResult{
		ToolID:        "graph-to-csv",
		OperationType: assessment.OpFormatConversion,
		Success:       true,
	}, assessment.Observation{
		Value:       0.9,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}, req)
	require.NoError(t, err)
	require.Less(t, cls.SuggestedValue, 0.9)
	require.Equal(t, cls.SuggestedValue, b.Value)

	c, cls, err := tracker.AssessTransformation(ctx, "op-conv-5", assessment.ToolInvocationResult{
		ToolID:        "graph-to-csv",
		OperationType: assessment.OpFormatConversion,
		Success:       true,
	}, assessment.Observation{
		Value:       0.1,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}, req)
	require.NoError(t, err)
	require.Greater(t, cls.SuggestedValue, 0.1)
	require.InDelta(t, 0.1, c.Value, 1e-9)
}

func TestTrackerAggregate(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	ids := make([]string, 0, 2)
	for _, c := range []struct {
		op    string
		value float64
	}{
		{"op-rel-1", 0.9},
		{"op-rel-2", 0.3},
	} {
		a, err := tracker.Assess(ctx, c.op, assessment.ToolInvocationResult{
			ToolID:        "rel-extractor",
			OperationType: assessment.OpRelationshipExtraction,
			Success:       true,
		}, assessment.Observation{
			Value:       c.value,
			Reliability: assessment.ReliabilityUsually,
			Credibility: assessment.CredibilityProbablyTrue,
			Reasoning:   "corpus evidence varies",
			Factors: []assessment.Factor{
				{Name: assessment.FactorCooccurrence, Impact: -0.2, Explanation: "sparse mentions"},
			},
		})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	g, err := tracker.Aggregate(ctx, aggregate.MethodWeightedMean, ids...)
	require.NoError(t, err)
	require.True(t, g.Contradiction, "spread 0.6 across reliable sources")
	require.Contains(t, g.Reasoning, "contradiction:")

	conf, err := tracker.GetConfidence(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, conf.Aggregate)
	require.Equal(t, g.OverallValue, conf.Value())
}

func TestTrackerGetConfidenceUnknown(t *testing.T) {
	tracker := newTrackerT(t)
	_, err := tracker.GetConfidence(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownArtifact)
}

func TestExplainAssessment(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	extraction, err := tracker.Assess(ctx, "op-extract-1", assessment.ToolInvocationResult{
		OperationType: assessment.OpExtraction,
		Success:       true,
	}, assessment.Observation{
		Value:       0.5,
		Reliability: assessment.ReliabilityFairly,
		Credibility: assessment.CredibilityPossiblyTrue,
		Reasoning:   "scanned document with heavy noise",
		Factors: []assessment.Factor{
			{Name: assessment.FactorOCRQuality, Impact: -0.4, Explanation: "smudged scan"},
		},
	})
	require.NoError(t, err)

	ner, err := tracker.Assess(ctx, "op-ner-1", assessment.ToolInvocationResult{
		OperationType: assessment.OpEntityRecognition,
		Success:       true,
	}, assessment.Observation{
		Value:       0.92,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
		ParentIDs:   []string{extraction.ID},
	})
	require.NoError(t, err)

	text, err := tracker.Explain(ctx, ner.ID)
	require.NoError(t, err)

	require.Contains(t, text, "Weakest link")
	require.Contains(t, text, "op-extract-1")
	require.Contains(t, text, "scanned document with heavy noise")
	require.Contains(t, text, "1. extraction")
	require.Contains(t, text, "2. entity_recognition")
}

func TestExplainUncertaintyExplosion(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	low := func(op string, parents ...string) string {
		a, err := tracker.Assess(ctx, op, assessment.ToolInvocationResult{
			OperationType: assessment.OpInference,
			Success:       true,
		}, assessment.Observation{
			Value:       0.3,
			Reliability: assessment.ReliabilityNotUsually,
			Credibility: assessment.CredibilityDoubtful,
			Reasoning:   "speculative inference",
			Factors: []assessment.Factor{
				{Name: assessment.FactorPremiseSupport, Impact: -0.6, Explanation: "weak premises"},
			},
			ParentIDs: parents,
		})
		require.NoError(t, err)
		return a.ID
	}

	id := low("op-inf-1")
	id = low("op-inf-2", id)

	text, err := tracker.Explain(ctx, id)
	require.NoError(t, err)
	require.Contains(t, text, "uncertainty explosion")
}

func TestExplainAggregate(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	a, err := tracker.Assess(ctx, "op-1", assessment.ToolInvocationResult{
		OperationType: assessment.OpGraphAnalysis,
		Success:       true,
	}, assessment.Observation{
		Value:       0.75,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
		Reasoning:   "pagerank converged slowly",
		Factors: []assessment.Factor{
			{Name: assessment.FactorConvergence, Impact: -0.15, Explanation: "slow convergence"},
		},
	})
	require.NoError(t, err)

	g, err := tracker.Aggregate(ctx, aggregate.MethodMinimum, a.ID)
	require.NoError(t, err)

	text, err := tracker.Explain(ctx, g.ID)
	require.NoError(t, err)
	require.Contains(t, text, "Aggregated confidence")
	require.Contains(t, text, "insufficient evidence")
	require.Contains(t, text, "Weakest component")
}

func TestTrackerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tracker := newTrackerT(t, WithMeterProvider(provider))
	ctx := context.Background()

	_, err := tracker.Assess(ctx, "op-1", assessment.ToolInvocationResult{
		ToolID:        "pdf-extractor",
		OperationType: assessment.OpExtraction,
		Success:       true,
	}, assessment.Observation{
		Value:       0.95,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	require.True(t, names["provenance.assessment.value"], "histogram missing, have %v", names)
	require.True(t, names["provenance.assessment.count"], "counter missing, have %v", names)
}

func TestTrackerDuplicateOperation(t *testing.T) {
	tracker := newTrackerT(t)
	ctx := context.Background()

	obs := assessment.Observation{
		Value:       0.95,
		Reliability: assessment.ReliabilityUsually,
		Credibility: assessment.CredibilityProbablyTrue,
	}
	res := assessment.ToolInvocationResult{OperationType: assessment.OpExtraction, Success: true}

	_, err := tracker.Assess(ctx, "op-1", res, obs)
	require.NoError(t, err)
	_, err = tracker.Assess(ctx, "op-1", res, obs)
	require.ErrorIs(t, err, ledger.ErrDuplicateID)
}

func TestConfidenceAccessors(t *testing.T) {
	c := Confidence{}
	require.Equal(t, 0.0, c.Value())
	require.Equal(t, "", c.Reasoning())

	c = Confidence{Aggregate: &aggregate.Aggregated{OverallValue: 0.7, Reasoning: "minimum over 2"}}
	require.Equal(t, 0.7, c.Value())
	require.True(t, strings.HasPrefix(c.Reasoning(), "minimum"))
}

func TestNewTrackerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PropagationFloor = 2.0
	_, err := NewTracker(WithConfig(cfg))
	require.Error(t, err)
}
