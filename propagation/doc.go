// Package propagation computes propagated confidence: the confidence of an
// assessment adjusted for the uncertainty of every upstream operation that
// contributed to it.
//
// Propagation is a pure function of the immutable ledger state at call time.
// The engine holds no mutable state beyond a memoization cache that is safe
// to discard or rebuild at any moment; recomputing on an unchanged ledger
// returns bit-identical values (traversal order is deterministic).
//
// # Combination Rule
//
// Confidence converts to an uncertainty measure (u = 1 - confidence) and
// combines root-sum-square, the independent-uncertainty rule:
//
//	u_child = min(1, sqrt(u_own^2 + u_parents^2))
//
// Multiple parents blend weakest-dominant before combining: the lowest
// parent confidence carries most of the weight, the remaining parents temper
// it. A single very weak parent substantially depresses the child without
// being the sole determinant. Parents that are correlated (same tool, or
// identical input lineage) are collapsed to their strongest representative
// instead of being double-counted as independent evidence.
//
// Two properties hold by construction and are verified by property tests:
// propagated confidence never exceeds the assessment's own value, and it is
// monotone in every parent's confidence.
//
// # Flags, Not Errors
//
// When the propagated confidence falls below the configured floor the result
// carries UncertaintyExplosion = true instead of silently returning a
// near-zero number; the pipeline decides for itself whether to abandon the
// branch.
//
// # Weakest Link
//
// Each result identifies the weakest link: the lowest-value assessment on
// the paths from the roots to the target (inclusive), ties broken by
// earliest assessment time. This is computed by path traversal, never as a
// global minimum over unrelated branches. WeakestPath reconstructs the full
// chain from the target to that ancestor for explanation rendering.
package propagation
