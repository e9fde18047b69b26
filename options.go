package provenance

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/ledger"
	"github.com/chainscore-ai/provenance/rating"
)

// Option configures the Tracker.
type Option func(*trackerConfig)

// trackerConfig holds configuration gathered from options before the
// Tracker is assembled.
type trackerConfig struct {
	cfg        Config
	cfgPath    string
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	ledger     ledger.Ledger
	ratings    *rating.Tracker
	weights    aggregate.WeightPolicy
	synth      aggregate.Synthesizer
}

// WithConfig sets the thresholds directly, replacing the defaults.
func WithConfig(cfg Config) Option {
	return func(c *trackerConfig) {
		c.cfg = cfg
	}
}

// WithConfigFile loads thresholds from a YAML file at construction time.
// Takes precedence over WithConfig.
func WithConfigFile(path string) Option {
	return func(c *trackerConfig) {
		c.cfgPath = path
	}
}

// WithLogger sets a custom logger. If not provided, a default JSON logger
// writing to stdout is created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *trackerConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for spans around assess,
// propagate, and aggregate calls.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *trackerConfig) {
		c.tracer = tracer
	}
}

// WithMeterProvider enables OpenTelemetry metrics (assessment value
// histograms, flag counters) using the given provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *trackerConfig) {
		c.meter = mp.Meter("github.com/chainscore-ai/provenance")
	}
}

// WithLedger backs the tracker with a custom ledger (e.g. the Redis ledger
// for shared pipelines). Defaults to the in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(c *trackerConfig) {
		c.ledger = l
	}
}

// WithRatingTracker injects a pre-configured rating tracker (e.g. one
// backed by the etcd store). Defaults to an in-process tracker honoring the
// configured minimum observation count.
func WithRatingTracker(t *rating.Tracker) Option {
	return func(c *trackerConfig) {
		c.ratings = t
	}
}

// WithWeightPolicy injects the aggregation weight strategy, such as a CEL
// policy built with aggregate.NewCELWeightPolicy.
func WithWeightPolicy(p aggregate.WeightPolicy) Option {
	return func(c *trackerConfig) {
		c.weights = p
	}
}

// WithSynthesizer injects the strategy behind the synthesized_judgment
// aggregation method.
func WithSynthesizer(s aggregate.Synthesizer) Option {
	return func(c *trackerConfig) {
		c.synth = s
	}
}
