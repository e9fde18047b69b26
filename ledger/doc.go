// Package ledger provides the append-only provenance ledger: every
// confidence assessment (and aggregated assessment) produced during a
// pipeline session is recorded here, indexed for lineage queries.
//
// Immutability is enforced at the interface level, not by convention: the
// Ledger exposes no update or delete operations. The single exception is
// BindPropagated, which late-binds the propagation engine's output onto an
// assessment exactly once.
//
// # Integrity at Insert Time
//
// Append validates the record and enforces three integrity rules before any
// mutation, so a failed append leaves the ledger untouched:
//
//   - ErrDuplicateID when the assessment ID or operation ID already exists
//   - ErrUnknownParent when a declared parent is not yet present; this
//     naturally serializes writes along any one lineage while leaving
//     independent lineages fully concurrent
//   - ErrCyclicDependency when the parent edges would form a cycle
//
// # Backends
//
// NewMemory returns the in-process implementation (RWMutex, cloned records
// in and out). NewRedis returns a Redis-backed implementation for pipelines
// whose workers share a ledger; it uses optimistic transactions (WATCH) so
// concurrent appends to the same lineage cannot interleave half-written
// records.
//
// # Lineage Queries
//
// Lineage returns the ancestor subgraph of an assessment up to maxDepth
// hops. An unknown ID yields an explicit empty result (Found == false), not
// an error. The depth bound exists so pathological DAGs cannot cause
// unbounded work; pass UnlimitedDepth to walk the full ancestry.
package ledger
