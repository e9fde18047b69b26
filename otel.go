package provenance

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
	"github.com/chainscore-ai/provenance/propagation"
)

// otelMetrics holds the OpenTelemetry metric instruments for the tracker.
// Created once when WithMeterProvider is configured and reused for every
// call.
type otelMetrics struct {
	// assessmentValue records assessment confidence values (0.0 to 1.0).
	assessmentValue metric.Float64Histogram

	// propagatedValue records propagated confidence values.
	propagatedValue metric.Float64Histogram

	// assessmentCount increments per appended assessment.
	assessmentCount metric.Int64Counter

	// flagCount increments per quality flag raised (uncertainty_explosion,
	// contradiction, insufficient_evidence).
	flagCount metric.Int64Counter
}

// initOTelMetrics creates the metric instruments. Returns nil when no meter
// is configured.
func initOTelMetrics(meter metric.Meter) (*otelMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	m := &otelMetrics{}
	var err error

	m.assessmentValue, err = meter.Float64Histogram(
		"provenance.assessment.value",
		metric.WithDescription("Confidence value of appended assessments, 0.0 (worst) to 1.0 (best)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create assessment value histogram: %w", err)
	}

	m.propagatedValue, err = meter.Float64Histogram(
		"provenance.propagated.value",
		metric.WithDescription("Propagated confidence after combining upstream uncertainty"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create propagated value histogram: %w", err)
	}

	m.assessmentCount, err = meter.Int64Counter(
		"provenance.assessment.count",
		metric.WithDescription("Number of assessments appended to the ledger"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create assessment counter: %w", err)
	}

	m.flagCount, err = meter.Int64Counter(
		"provenance.flag.count",
		metric.WithDescription("Number of quality flags raised (contradiction, insufficient evidence, uncertainty explosion)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flag counter: %w", err)
	}

	return m, nil
}

// recordAssessment captures metrics for one appended assessment.
func (m *otelMetrics) recordAssessment(ctx context.Context, a *assessment.Assessment) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", a.OperationType.String()),
		attribute.String("tool_id", a.ToolID),
	)
	m.assessmentValue.Record(ctx, a.Value, attrs)
	m.assessmentCount.Add(ctx, 1, attrs)
}

// recordPropagation captures metrics for one propagation result.
func (m *otelMetrics) recordPropagation(ctx context.Context, r propagation.Result) {
	if m == nil {
		return
	}
	m.propagatedValue.Record(ctx, r.PropagatedConfidence)
	if r.UncertaintyExplosion {
		m.flagCount.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", "uncertainty_explosion")))
	}
}

// recordAggregate captures metrics for one aggregation result.
func (m *otelMetrics) recordAggregate(ctx context.Context, g *aggregate.Aggregated) {
	if m == nil {
		return
	}
	if g.Contradiction {
		m.flagCount.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", "contradiction")))
	}
	if g.InsufficientEvidence {
		m.flagCount.Add(ctx, 1, metric.WithAttributes(attribute.String("flag", "insufficient_evidence")))
	}
}
