package propagation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainscore-ai/provenance/assessment"
)

// DefaultFloor is the propagated confidence below which the engine raises
// the uncertainty-explosion flag.
const DefaultFloor = 0.05

// minDominance is the blend weight of the weakest parent in the multi-parent
// combination. The remainder is spread over the other parents' mean.
const minDominance = 0.7

// ErrCycle indicates the engine encountered a parent cycle while traversing.
// The ledger rejects cycles at append time, so this only trips on a
// corrupted or misbehaving backend.
var ErrCycle = errors.New("propagation: cycle in parent graph")

// Ledger is the read access the engine needs. *ledger.MemoryLedger and
// *ledger.RedisLedger satisfy it.
type Ledger interface {
	Get(ctx context.Context, id string) (*assessment.Assessment, error)
}

// Result is the outcome of propagating one assessment.
type Result struct {
	// AssessmentID identifies the propagated assessment.
	AssessmentID string `json:"assessment_id"`

	// PropagatedConfidence is the confidence adjusted for all upstream
	// uncertainty. Never exceeds the assessment's own value.
	PropagatedConfidence float64 `json:"propagated_confidence"`

	// WeakestLinkID is the lowest-value assessment on the paths from the
	// roots to this assessment, inclusive.
	WeakestLinkID string `json:"weakest_link_id"`

	// WeakestLinkValue is the weakest link's own confidence value.
	WeakestLinkValue float64 `json:"weakest_link_value"`

	// UncertaintyExplosion is true when PropagatedConfidence fell below the
	// engine's floor. A flag, never an error: the caller gets the number
	// and decides whether to abandon the branch.
	UncertaintyExplosion bool `json:"uncertainty_explosion,omitempty"`
}

// memo is the cached per-assessment computation, including the tie-break
// metadata for weakest-link merging.
type memo struct {
	result    Result
	weakestAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFloor overrides the uncertainty-explosion floor.
func WithFloor(floor float64) Option {
	return func(e *Engine) {
		e.floor = floor
	}
}

// Engine computes propagated confidence over a ledger. Safe for concurrent
// use: the memoization cache is a read-mostly sync.Map whose entries may be
// recomputed redundantly under race (recomputation is pure and idempotent,
// so last-write-wins is sufficient). The cache is held behind an atomic
// pointer so Invalidate can swap in a fresh map while Propagate calls are in
// flight; in-flight calls finish against the old map and simply repopulate
// the new one on their next run.
type Engine struct {
	ledger Ledger
	floor  float64
	cache  atomic.Pointer[sync.Map] // assessment ID -> *memo
}

// New creates an engine over the given ledger.
func New(l Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		floor:  DefaultFloor,
	}
	e.cache.Store(&sync.Map{})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invalidate discards the memoization cache. Call after appending new
// assessments whose ancestors were already propagated; the cache is always
// safe to rebuild.
func (e *Engine) Invalidate() {
	e.cache.Store(&sync.Map{})
}

// Propagate computes the propagated confidence for the given assessment,
// combining its own value with the full upstream DAG.
func (e *Engine) Propagate(ctx context.Context, id string) (Result, error) {
	m, err := e.propagate(ctx, id, make(map[string]bool))
	if err != nil {
		return Result{}, err
	}
	return m.result, nil
}

// propagate is the memoized recursive traversal. visiting tracks the current
// recursion stack to fail fast on corrupted (cyclic) backends.
func (e *Engine) propagate(ctx context.Context, id string, visiting map[string]bool) (*memo, error) {
	cache := e.cache.Load()
	if cached, ok := cache.Load(id); ok {
		return cached.(*memo), nil
	}
	if visiting[id] {
		return nil, fmt.Errorf("%w: %s", ErrCycle, id)
	}
	visiting[id] = true
	defer delete(visiting, id)

	a, err := e.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Deterministic traversal order keeps recomputation bit-identical.
	parentIDs := append([]string(nil), a.ParentIDs...)
	sort.Strings(parentIDs)

	parents := make([]*assessment.Assessment, 0, len(parentIDs))
	parentMemos := make([]*memo, 0, len(parentIDs))
	for _, pid := range parentIDs {
		pm, err := e.propagate(ctx, pid, visiting)
		if err != nil {
			return nil, err
		}
		pa, err := e.ledger.Get(ctx, pid)
		if err != nil {
			return nil, err
		}
		parents = append(parents, pa)
		parentMemos = append(parentMemos, pm)
	}

	propagated := e.combine(a, parents, parentMemos)

	m := &memo{
		result: Result{
			AssessmentID:         a.ID,
			PropagatedConfidence: propagated,
			WeakestLinkID:        a.ID,
			WeakestLinkValue:     a.Value,
			UncertaintyExplosion: propagated < e.floor,
		},
		weakestAt: a.AssessedAt,
	}
	// Weakest link merges over ALL parents' paths, independent of the
	// numeric de-correlation below.
	for _, pm := range parentMemos {
		if pm.result.WeakestLinkValue < m.result.WeakestLinkValue ||
			(pm.result.WeakestLinkValue == m.result.WeakestLinkValue &&
				(pm.weakestAt.Before(m.weakestAt) ||
					(pm.weakestAt.Equal(m.weakestAt) && pm.result.WeakestLinkID < m.result.WeakestLinkID))) {
			m.result.WeakestLinkID = pm.result.WeakestLinkID
			m.result.WeakestLinkValue = pm.result.WeakestLinkValue
			m.weakestAt = pm.weakestAt
		}
	}

	cache.Store(id, m)
	return m, nil
}

// combine applies the root-sum-square uncertainty combination between the
// assessment's own value and its (de-correlated, weakest-dominant blended)
// parent confidences.
func (e *Engine) combine(a *assessment.Assessment, parents []*assessment.Assessment, parentMemos []*memo) float64 {
	if len(parents) == 0 {
		return a.Value
	}

	confidences := blendInputs(parents, parentMemos)

	var parentConfidence float64
	if len(confidences) == 1 {
		parentConfidence = confidences[0]
	} else {
		// Weakest-dominant blend: the minimum carries most of the weight,
		// the remaining parents temper it through their mean.
		low := confidences[0]
		lowIdx := 0
		for i, c := range confidences {
			if c < low {
				low = c
				lowIdx = i
			}
		}
		var rest float64
		for i, c := range confidences {
			if i != lowIdx {
				rest += c
			}
		}
		mean := rest / float64(len(confidences)-1)
		parentConfidence = minDominance*low + (1-minDominance)*mean
	}

	uOwn := 1 - a.Value
	uParent := 1 - parentConfidence
	u := math.Min(1, math.Sqrt(uOwn*uOwn+uParent*uParent))
	return 1 - u
}

// blendInputs collapses correlated parents before the numeric blend.
// Parents sharing a tool, or sharing an identical input lineage, are not
// independent evidence: the strongest representative of each correlation
// group stands in for the group.
func blendInputs(parents []*assessment.Assessment, parentMemos []*memo) []float64 {
	best := make(map[string]float64)
	var order []string
	for i, p := range parents {
		key := correlationKey(p)
		conf := parentMemos[i].result.PropagatedConfidence
		if prev, ok := best[key]; ok {
			if conf > prev {
				best[key] = conf
			}
			continue
		}
		best[key] = conf
		order = append(order, key)
	}
	out := make([]float64, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// correlationKey groups parents that cannot be treated as independent.
// Parents produced by the same tool over the same input lineage fall into
// one group; parents without a tool identity are grouped by lineage alone
// only when they share one, otherwise each stands alone.
func correlationKey(a *assessment.Assessment) string {
	lineage := append([]string(nil), a.ParentIDs...)
	sort.Strings(lineage)
	if a.ToolID == "" && len(lineage) == 0 {
		return "id:" + a.ID
	}
	return a.ToolID + "|" + strings.Join(lineage, ",")
}

// WeakestPath returns the assessment IDs on the path from the target down
// to its weakest link, target first, weakest link last. For a target that is
// itself the weakest link the path has length one.
func (e *Engine) WeakestPath(ctx context.Context, id string) ([]string, error) {
	m, err := e.propagate(ctx, id, make(map[string]bool))
	if err != nil {
		return nil, err
	}

	path := []string{id}
	current := id
	for current != m.result.WeakestLinkID {
		a, err := e.ledger.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		parentIDs := append([]string(nil), a.ParentIDs...)
		sort.Strings(parentIDs)

		advanced := false
		for _, pid := range parentIDs {
			pm, err := e.propagate(ctx, pid, make(map[string]bool))
			if err != nil {
				return nil, err
			}
			if pm.result.WeakestLinkID == m.result.WeakestLinkID {
				path = append(path, pid)
				current = pid
				advanced = true
				break
			}
		}
		if !advanced {
			return nil, fmt.Errorf("propagation: weakest link %s unreachable from %s", m.result.WeakestLinkID, current)
		}
	}
	return path, nil
}
