package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
)

// MemoryLedger is the in-process Ledger implementation. Records are cloned
// on the way in and out, so callers can never mutate stored state. Safe for
// concurrent use; independent lineages append concurrently under a single
// RWMutex.
type MemoryLedger struct {
	mu          sync.RWMutex
	assessments map[string]*assessment.Assessment
	byOperation map[string]string
	children    map[string][]string
	aggregates  map[string]*aggregate.Aggregated
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{
		assessments: make(map[string]*assessment.Assessment),
		byOperation: make(map[string]string),
		children:    make(map[string][]string),
		aggregates:  make(map[string]*aggregate.Aggregated),
	}
}

// Append records an assessment. All integrity checks run before any
// mutation; a failed append leaves the ledger untouched.
func (l *MemoryLedger) Append(_ context.Context, a *assessment.Assessment) error {
	if a == nil {
		return fmt.Errorf("%w: nil assessment", assessment.ErrValidation)
	}
	if err := a.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assessments[a.ID]; ok {
		return fmt.Errorf("%w: assessment %s", ErrDuplicateID, a.ID)
	}
	if _, ok := l.aggregates[a.ID]; ok {
		return fmt.Errorf("%w: %s already names an aggregate", ErrDuplicateID, a.ID)
	}
	if prev, ok := l.byOperation[a.OperationID]; ok {
		return fmt.Errorf("%w: operation %s already assessed by %s", ErrDuplicateID, a.OperationID, prev)
	}
	for _, pid := range a.ParentIDs {
		if _, ok := l.assessments[pid]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParent, pid)
		}
	}
	if err := l.checkAcyclicLocked(a); err != nil {
		return err
	}

	stored := a.Clone()
	l.assessments[stored.ID] = stored
	l.byOperation[stored.OperationID] = stored.ID
	for _, pid := range stored.ParentIDs {
		l.children[pid] = append(l.children[pid], stored.ID)
	}
	return nil
}

// checkAcyclicLocked walks the ancestor graph of the new assessment's
// parents looking for a path back to the new ID. With parents required to
// pre-exist this can only trip on corrupted state, but the check is cheap
// and catching a cycle at insert time beats discovering it during
// propagation.
func (l *MemoryLedger) checkAcyclicLocked(a *assessment.Assessment) error {
	visited := make(map[string]struct{})
	stack := append([]string(nil), a.ParentIDs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == a.ID {
			return fmt.Errorf("%w: assessment %s is its own ancestor", ErrCyclicDependency, a.ID)
		}
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		if ancestor, ok := l.assessments[id]; ok {
			stack = append(stack, ancestor.ParentIDs...)
		}
	}
	return nil
}

// AppendAggregate records an aggregated assessment. IDs share one namespace
// with plain assessments so that GetConfidence-style lookups can never see a
// record shadowed by its namesake.
func (l *MemoryLedger) AppendAggregate(_ context.Context, g *aggregate.Aggregated) error {
	if g == nil {
		return fmt.Errorf("%w: nil aggregated assessment", assessment.ErrValidation)
	}
	if err := g.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.aggregates[g.ID]; ok {
		return fmt.Errorf("%w: aggregate %s", ErrDuplicateID, g.ID)
	}
	if _, ok := l.assessments[g.ID]; ok {
		return fmt.Errorf("%w: %s already names an assessment", ErrDuplicateID, g.ID)
	}
	clone := *g
	clone.ComponentIDs = append([]string(nil), g.ComponentIDs...)
	l.aggregates[g.ID] = &clone
	return nil
}

// Get returns the assessment with the given ID.
func (l *MemoryLedger) Get(_ context.Context, id string) (*assessment.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.assessments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.Clone(), nil
}

// GetAggregate returns the aggregated assessment with the given ID.
func (l *MemoryLedger) GetAggregate(_ context.Context, id string) (*aggregate.Aggregated, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.aggregates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	clone := *g
	clone.ComponentIDs = append([]string(nil), g.ComponentIDs...)
	return &clone, nil
}

// GetByOperation returns the assessment produced by the operation instance.
func (l *MemoryLedger) GetByOperation(_ context.Context, operationID string) (*assessment.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byOperation[operationID]
	if !ok {
		return nil, fmt.Errorf("%w: operation %s", ErrNotFound, operationID)
	}
	return l.assessments[id].Clone(), nil
}

// GetChildren returns the assessments that depend directly on the given ID,
// ordered by assessment time.
func (l *MemoryLedger) GetChildren(_ context.Context, id string) ([]*assessment.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.children[id]
	out := make([]*assessment.Assessment, 0, len(ids))
	for _, cid := range ids {
		out = append(out, l.assessments[cid].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssessedAt.Equal(out[j].AssessedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssessedAt.Before(out[j].AssessedAt)
	})
	return out, nil
}

// Lineage returns the bounded ancestor subgraph of the given assessment.
func (l *MemoryLedger) Lineage(ctx context.Context, id string, maxDepth int) (*Lineage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	target, ok := l.assessments[id]
	if !ok {
		return &Lineage{Found: false}, nil
	}
	return walkAncestors(ctx, target.Clone(), maxDepth, func(_ context.Context, pid string) (*assessment.Assessment, error) {
		a, ok := l.assessments[pid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pid)
		}
		return a.Clone(), nil
	})
}

// BindPropagated late-binds the propagated confidence onto an assessment.
func (l *MemoryLedger) BindPropagated(_ context.Context, id string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assessments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.PropagatedConfidence != nil {
		if *a.PropagatedConfidence == value {
			return nil
		}
		return fmt.Errorf("%w: %s has %v, refusing %v",
			assessment.ErrPropagatedSet, id, *a.PropagatedConfidence, value)
	}
	return a.SetPropagated(value)
}

// Len returns the number of assessments in the ledger.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.assessments)
}
