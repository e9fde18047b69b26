package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainscore-ai/provenance/assessment"
)

// DefaultMinObservations is the observation count below which a tool is
// rated cannot_be_judged regardless of apparent performance.
const DefaultMinObservations = 5

// ErrUnknownTool is returned when a tool has no recorded observations.
var ErrUnknownTool = errors.New("rating: unknown tool")

// Counters are the raw per-tool outcome counts held by a Store.
type Counters struct {
	// Observations is the total number of recorded invocations.
	Observations int `json:"observations"`

	// Successes is the number of successful invocations.
	Successes int `json:"successes"`

	// UpdatedAt is when the counters last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a consistent view of one tool's rating at a point in time.
type Snapshot struct {
	// ToolID identifies the tool.
	ToolID string `json:"tool_id"`

	// Level is the derived ordinal reliability level.
	Level assessment.SourceReliability `json:"level"`

	// Observations is the invocation count the level is based on.
	Observations int `json:"observations"`

	// Successes is the successful invocation count.
	Successes int `json:"successes"`

	// UpdatedAt is when the underlying counters last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// SuccessRate returns successes over observations, 0 with no observations.
func (s Snapshot) SuccessRate() float64 {
	if s.Observations == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Observations)
}

// Store persists per-tool counters. Implementations must serialize Observe
// calls per tool and return consistent snapshots from Counters.
type Store interface {
	// Observe atomically records one outcome and returns the updated
	// counters.
	Observe(ctx context.Context, toolID string, success bool) (Counters, error)

	// Counters returns the current counters for a tool, or ErrUnknownTool.
	Counters(ctx context.Context, toolID string) (Counters, error)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithStore backs the tracker with a custom Store (e.g. the etcd store for
// shared deployments). Defaults to the in-process store.
func WithStore(s Store) TrackerOption {
	return func(t *Tracker) {
		t.store = s
	}
}

// WithMinObservations overrides the minimum observation count below which
// tools are rated cannot_be_judged.
func WithMinObservations(n int) TrackerOption {
	return func(t *Tracker) {
		t.minObservations = n
	}
}

// Tracker derives ordinal reliability levels from observed tool outcomes.
// Safe for concurrent use.
type Tracker struct {
	store           Store
	minObservations int
}

// NewTracker creates a tracker with an in-process store and the default
// minimum observation count, unless overridden by options.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:           NewMemoryStore(),
		minObservations: DefaultMinObservations,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records one invocation outcome for a tool and returns the updated
// rating snapshot.
func (t *Tracker) Observe(ctx context.Context, toolID string, success bool) (Snapshot, error) {
	if toolID == "" {
		return Snapshot{}, fmt.Errorf("%w: empty tool id", ErrUnknownTool)
	}
	c, err := t.store.Observe(ctx, toolID, success)
	if err != nil {
		return Snapshot{}, err
	}
	return t.snapshot(toolID, c), nil
}

// Rating returns the current rating snapshot for a tool. Tools with no
// recorded observations rate cannot_be_judged with a zero count rather than
// erroring; callers routinely rate tools they have never run.
func (t *Tracker) Rating(ctx context.Context, toolID string) (Snapshot, error) {
	c, err := t.store.Counters(ctx, toolID)
	if err != nil {
		if errors.Is(err, ErrUnknownTool) {
			return Snapshot{ToolID: toolID, Level: assessment.ReliabilityCannotBeJudged}, nil
		}
		return Snapshot{}, err
	}
	return t.snapshot(toolID, c), nil
}

// snapshot derives the ordinal level from raw counters.
func (t *Tracker) snapshot(toolID string, c Counters) Snapshot {
	return Snapshot{
		ToolID:       toolID,
		Level:        t.level(c),
		Observations: c.Observations,
		Successes:    c.Successes,
		UpdatedAt:    c.UpdatedAt,
	}
}

// level maps a success rate onto the six-point ordinal scale. Below the
// minimum observation count the tool cannot be judged, full stop.
func (t *Tracker) level(c Counters) assessment.SourceReliability {
	if c.Observations < t.minObservations {
		return assessment.ReliabilityCannotBeJudged
	}
	rate := float64(c.Successes) / float64(c.Observations)
	switch {
	case rate >= 0.98:
		return assessment.ReliabilityCompletely
	case rate >= 0.90:
		return assessment.ReliabilityUsually
	case rate >= 0.75:
		return assessment.ReliabilityFairly
	case rate >= 0.50:
		return assessment.ReliabilityNotUsually
	default:
		return assessment.ReliabilityUnreliable
	}
}

// MemoryStore is the in-process Store implementation. A single RWMutex
// serializes writers and gives readers consistent snapshots.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]Counters
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counters)}
}

// Observe atomically records one outcome.
func (s *MemoryStore) Observe(_ context.Context, toolID string, success bool) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[toolID]
	c.Observations++
	if success {
		c.Successes++
	}
	c.UpdatedAt = time.Now().UTC()
	s.counters[toolID] = c
	return c, nil
}

// Counters returns the current counters for a tool.
func (s *MemoryStore) Counters(_ context.Context, toolID string) (Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[toolID]
	if !ok {
		return Counters{}, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}
	return c, nil
}
