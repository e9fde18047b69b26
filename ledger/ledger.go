package ledger

import (
	"context"
	"errors"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
)

// UnlimitedDepth disables the depth bound on Lineage walks.
const UnlimitedDepth = -1

// Sentinel errors for ledger operations. All integrity errors are fatal to
// the specific append and are never retried automatically; they indicate a
// bug in the caller or a corrupted ledger.
var (
	// ErrDuplicateID indicates the assessment ID or operation ID is already
	// present in the ledger.
	ErrDuplicateID = errors.New("ledger: duplicate id")

	// ErrUnknownParent indicates a declared parent assessment is not yet in
	// the ledger. Parents must be appended before their descendants.
	ErrUnknownParent = errors.New("ledger: unknown parent assessment")

	// ErrCyclicDependency indicates the append would create a cycle in the
	// parent DAG. The ledger is not mutated.
	ErrCyclicDependency = errors.New("ledger: cyclic dependency")

	// ErrNotFound indicates the requested assessment does not exist.
	ErrNotFound = errors.New("ledger: assessment not found")

	// ErrStorageFailed indicates the storage backend failed. The underlying
	// cause is wrapped.
	ErrStorageFailed = errors.New("ledger: storage operation failed")
)

// Ledger is the append-only store of confidence assessments and aggregated
// assessments. Implementations must be safe for concurrent use.
type Ledger interface {
	// Append records an assessment. Fails with ErrDuplicateID,
	// ErrUnknownParent, or ErrCyclicDependency without mutating the ledger;
	// validation failures wrap assessment.ErrValidation.
	Append(ctx context.Context, a *assessment.Assessment) error

	// AppendAggregate records an aggregated assessment. Fails with
	// ErrDuplicateID if the ID is already present.
	AppendAggregate(ctx context.Context, g *aggregate.Aggregated) error

	// Get returns the assessment with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*assessment.Assessment, error)

	// GetAggregate returns the aggregated assessment with the given ID, or
	// ErrNotFound.
	GetAggregate(ctx context.Context, id string) (*aggregate.Aggregated, error)

	// GetByOperation returns the assessment produced by the given operation
	// instance, or ErrNotFound.
	GetByOperation(ctx context.Context, operationID string) (*assessment.Assessment, error)

	// GetChildren returns the assessments that list the given ID as a
	// parent, ordered by assessment time. An unknown ID yields an empty
	// slice, not an error.
	GetChildren(ctx context.Context, id string) ([]*assessment.Assessment, error)

	// Lineage returns the ancestor subgraph of the given assessment up to
	// maxDepth generations (UnlimitedDepth for no bound; 0 returns only the
	// target). An unknown ID yields Found == false, not an error.
	Lineage(ctx context.Context, id string, maxDepth int) (*Lineage, error)

	// BindPropagated late-binds the propagation engine's output onto the
	// assessment. The value may be bound once; rebinding the identical value
	// is a no-op (propagation is idempotent), any other rebind fails with
	// assessment.ErrPropagatedSet.
	BindPropagated(ctx context.Context, id string, value float64) error
}

// Lineage is the ancestor subgraph returned by Ledger.Lineage.
type Lineage struct {
	// Found reports whether the queried assessment exists. When false all
	// other fields are zero; an unknown ID is an expected outcome, not an
	// error.
	Found bool `json:"found"`

	// Target is the queried assessment.
	Target *assessment.Assessment `json:"target,omitempty"`

	// Ancestors maps assessment ID to record for every ancestor within the
	// depth bound. The target itself is not included.
	Ancestors map[string]*assessment.Assessment `json:"ancestors,omitempty"`

	// Depth maps each ancestor ID to its generation distance from the
	// target (direct parents are 1). When an ancestor is reachable via
	// multiple paths the shortest distance wins.
	Depth map[string]int `json:"depth,omitempty"`

	// Truncated is true when ancestors beyond the depth bound exist.
	Truncated bool `json:"truncated,omitempty"`
}

// walkAncestors performs the bounded breadth-first ancestor walk shared by
// ledger implementations. fetch resolves an assessment by ID; missing
// ancestors are tolerated (the backend may be mid-replication) and simply
// terminate that path.
func walkAncestors(ctx context.Context, target *assessment.Assessment, maxDepth int, fetch func(context.Context, string) (*assessment.Assessment, error)) (*Lineage, error) {
	lin := &Lineage{
		Found:     true,
		Target:    target,
		Ancestors: make(map[string]*assessment.Assessment),
		Depth:     make(map[string]int),
	}

	unseen := func(ids []string) []string {
		var out []string
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, visited := lin.Depth[id]; !visited {
				out = append(out, id)
			}
		}
		return out
	}

	frontier := unseen(target.ParentIDs)
	depth := 0
	for len(frontier) > 0 {
		if maxDepth != UnlimitedDepth && depth >= maxDepth {
			lin.Truncated = true
			break
		}
		depth++
		var next []string
		for _, pid := range frontier {
			parent, err := fetch(ctx, pid)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			lin.Ancestors[pid] = parent
			lin.Depth[pid] = depth
			next = append(next, parent.ParentIDs...)
		}
		frontier = unseen(next)
	}
	return lin, nil
}
