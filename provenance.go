package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
	"github.com/chainscore-ai/provenance/intent"
	"github.com/chainscore-ai/provenance/ledger"
	"github.com/chainscore-ai/provenance/propagation"
	"github.com/chainscore-ai/provenance/rating"
)

// ErrUnknownArtifact is returned by GetConfidence when neither an assessment
// nor an aggregated assessment exists under the given ID.
var ErrUnknownArtifact = errors.New("provenance: unknown artifact")

// Confidence is the combined view returned by GetConfidence: exactly one of
// Assessment or Aggregate is set.
type Confidence struct {
	// Assessment is set when the artifact is a single-operation assessment.
	Assessment *assessment.Assessment `json:"assessment,omitempty"`

	// Aggregate is set when the artifact is an aggregated assessment.
	Aggregate *aggregate.Aggregated `json:"aggregate,omitempty"`
}

// Value returns the scalar confidence of whichever record is present.
func (c Confidence) Value() float64 {
	if c.Assessment != nil {
		return c.Assessment.Value
	}
	if c.Aggregate != nil {
		return c.Aggregate.OverallValue
	}
	return 0
}

// Reasoning returns the explanation of whichever record is present.
func (c Confidence) Reasoning() string {
	if c.Assessment != nil {
		return c.Assessment.Reasoning
	}
	if c.Aggregate != nil {
		return c.Aggregate.Reasoning
	}
	return ""
}

// Tracker is the facade wiring the assessor, ledger, rating tracker,
// propagation engine, and aggregator together behind the entry points a
// pipeline calls. Safe for concurrent use.
type Tracker struct {
	cfg        Config
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *otelMetrics
	ledger     ledger.Ledger
	engine     *propagation.Engine
	aggregator *aggregate.Aggregator
	ratings    *rating.Tracker
	assessor   *assessment.Assessor
	classifier *intent.Classifier
}

// NewTracker assembles a tracker. Without options it uses the default
// thresholds, an in-memory ledger, an in-process rating tracker, and a JSON
// logger on stdout.
func NewTracker(opts ...Option) (*Tracker, error) {
	tc := &trackerConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(tc)
	}

	if tc.cfgPath != "" {
		cfg, err := LoadConfig(tc.cfgPath)
		if err != nil {
			return nil, err
		}
		tc.cfg = cfg
	}
	if err := tc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("provenance: invalid config: %w", err)
	}

	if tc.logger == nil {
		tc.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if tc.ledger == nil {
		tc.ledger = ledger.NewMemory()
	}
	if tc.ratings == nil {
		tc.ratings = rating.NewTracker(rating.WithMinObservations(tc.cfg.MinObservations))
	}

	var aggOpts []aggregate.AggregatorOption
	if tc.weights != nil {
		aggOpts = append(aggOpts, aggregate.WithWeightPolicy(tc.weights))
	}
	if tc.synth != nil {
		aggOpts = append(aggOpts, aggregate.WithSynthesizer(tc.synth))
	}

	metrics, err := initOTelMetrics(tc.meter)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		cfg:        tc.cfg,
		logger:     tc.logger,
		tracer:     tc.tracer,
		metrics:    metrics,
		ledger:     tc.ledger,
		engine:     propagation.New(tc.ledger, propagation.WithFloor(tc.cfg.PropagationFloor)),
		aggregator: aggregate.NewAggregator(tc.cfg.Aggregation, aggOpts...),
		ratings:    tc.ratings,
		assessor:   assessment.NewAssessor(tc.cfg.AssessorID),
		classifier: intent.NewClassifier(),
	}, nil
}

// Ledger exposes the underlying ledger for direct lineage queries.
func (t *Tracker) Ledger() ledger.Ledger {
	return t.ledger
}

// Ratings exposes the rating tracker.
func (t *Tracker) Ratings() *rating.Tracker {
	return t.ratings
}

// Assess scores one operation reported by an external service, appends the
// assessment to the ledger, and feeds the outcome into the tool's
// reliability rating.
//
// When the observation carries no reliability level, the tool's current
// rating fills it in, so callers do not hand-maintain the tool axis.
func (t *Tracker) Assess(ctx context.Context, operationID string, res assessment.ToolInvocationResult, obs assessment.Observation) (*assessment.Assessment, error) {
	ctx, span := t.startSpan(ctx, "provenance.assess",
		attribute.String("operation_id", operationID),
		attribute.String("tool_id", res.ToolID))
	defer span.End()

	if !obs.Reliability.IsValid() && res.ToolID != "" {
		snap, err := t.ratings.Rating(ctx, res.ToolID)
		if err != nil {
			return nil, err
		}
		obs.Reliability = snap.Level
	}

	a, err := t.assessor.Assess(operationID, res, obs)
	if err != nil {
		return nil, err
	}
	if err := t.ledger.Append(ctx, a); err != nil {
		return nil, err
	}

	if res.ToolID != "" {
		if _, err := t.ratings.Observe(ctx, res.ToolID, res.Success); err != nil {
			// Rating updates must not fail an already-recorded assessment.
			t.logger.WarnContext(ctx, "rating update failed",
				"tool_id", res.ToolID, "error", err)
		}
	}

	t.metrics.recordAssessment(ctx, a)
	t.logger.DebugContext(ctx, "assessment appended",
		"assessment_id", a.ID,
		"operation_id", a.OperationID,
		"operation_type", a.OperationType.String(),
		"value", a.Value)
	return a, nil
}

// AssessTransformation scores a data-reshaping operation. The intent
// classifier resolves the transformation intent and preservation; its factors
// (missing fields, unknown-intent penalty) join the assessment's
// decomposition. An observation value of zero means "derive the value from
// the classifier"; a non-zero value is the caller's ceiling and is lowered to
// the classifier's suggestion when the classifier scores the transformation
// worse. There is no way to pin an exact zero value through this path; use
// Assess directly for that.
func (t *Tracker) AssessTransformation(ctx context.Context, operationID string, res assessment.ToolInvocationResult, obs assessment.Observation, req intent.Request) (*assessment.Assessment, *intent.Result, error) {
	cls := t.classifier.Classify(req)

	obs.Intent = cls.Intent
	obs.Preserved = cls.Preserved
	obs.Factors = append(obs.Factors, cls.Factors...)
	if obs.Value == 0 || cls.SuggestedValue < obs.Value {
		obs.Value = cls.SuggestedValue
	}
	if obs.Reasoning == "" {
		obs.Reasoning = cls.Reasoning
	} else {
		obs.Reasoning += "; " + cls.Reasoning
	}

	a, err := t.Assess(ctx, operationID, res, obs)
	if err != nil {
		return nil, nil, err
	}
	return a, &cls, nil
}

// Propagate computes the propagated confidence for an assessment and
// late-binds it onto the ledger record.
func (t *Tracker) Propagate(ctx context.Context, id string) (propagation.Result, error) {
	ctx, span := t.startSpan(ctx, "provenance.propagate",
		attribute.String("assessment_id", id))
	defer span.End()

	r, err := t.engine.Propagate(ctx, id)
	if err != nil {
		return propagation.Result{}, err
	}
	if err := t.ledger.BindPropagated(ctx, id, r.PropagatedConfidence); err != nil {
		return propagation.Result{}, err
	}

	t.metrics.recordPropagation(ctx, r)
	if r.UncertaintyExplosion {
		t.logger.WarnContext(ctx, "uncertainty explosion",
			"assessment_id", id,
			"propagated_confidence", r.PropagatedConfidence,
			"weakest_link_id", r.WeakestLinkID)
	}
	return r, nil
}

// Aggregate combines the named assessments into one aggregated assessment
// and appends it to the ledger.
func (t *Tracker) Aggregate(ctx context.Context, method aggregate.Method, ids ...string) (*aggregate.Aggregated, error) {
	ctx, span := t.startSpan(ctx, "provenance.aggregate",
		attribute.String("method", method.String()),
		attribute.Int("components", len(ids)))
	defer span.End()

	components := make([]*assessment.Assessment, 0, len(ids))
	for _, id := range ids {
		a, err := t.ledger.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		components = append(components, a)
	}

	g, err := t.aggregator.Aggregate(ctx, method, components)
	if err != nil {
		return nil, err
	}
	if err := t.ledger.AppendAggregate(ctx, g); err != nil {
		return nil, err
	}

	t.metrics.recordAggregate(ctx, g)
	if g.Contradiction {
		t.logger.WarnContext(ctx, "contradictory evidence aggregated",
			"aggregate_id", g.ID, "reasoning", g.Reasoning)
	}
	return g, nil
}

// GetConfidence returns the confidence record stored under the given ID,
// whether it is a single assessment or an aggregated one.
func (t *Tracker) GetConfidence(ctx context.Context, id string) (Confidence, error) {
	a, err := t.ledger.Get(ctx, id)
	if err == nil {
		return Confidence{Assessment: a}, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return Confidence{}, err
	}
	g, err := t.ledger.GetAggregate(ctx, id)
	if err == nil {
		return Confidence{Aggregate: g}, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return Confidence{}, err
	}
	return Confidence{}, fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
}

// GetLineage returns the ancestor subgraph of an assessment up to maxDepth
// generations. Unknown IDs yield Found == false, not an error.
func (t *Tracker) GetLineage(ctx context.Context, id string, maxDepth int) (*ledger.Lineage, error) {
	return t.ledger.Lineage(ctx, id, maxDepth)
}

// startSpan opens a tracing span when a tracer is configured; otherwise it
// returns a no-op span.
func (t *Tracker) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := t.tracer.Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}
