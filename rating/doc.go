// Package rating maintains the stable, tool-level reliability rating that is
// kept separate from the credibility of any single output.
//
// The tracker is the only mutable aggregate state in the SDK (everything
// else is append-only). Updates to a given tool's counters are serialized;
// reads always observe a consistent snapshot, never a half-applied update.
//
// A tool with fewer than the minimum observation count is rated
// cannot_be_judged regardless of its apparent win rate - five perfect runs
// are not evidence of a completely reliable tool.
//
// Ratings never decay automatically: Observe is the only mutation path, and
// any drift policy (re-baselining, windowing) is the caller's cadence
// decision, not a commitment of this package.
//
// # Usage
//
//	tracker := rating.NewTracker()
//	tracker.Observe(ctx, "spacy-ner", true)
//	snap, _ := tracker.Rating(ctx, "spacy-ner")
//	// snap.Level == assessment.ReliabilityCannotBeJudged until five
//	// outcomes have been observed.
//
// For pipelines whose workers share rating state, back the tracker with
// etcd:
//
//	store, err := rating.NewEtcdStore(rating.EtcdConfig{
//	    Endpoints: []string{"localhost:2379"},
//	    Namespace: "provenance",
//	})
//	tracker := rating.NewTracker(rating.WithStore(store))
//
// The etcd store applies counter updates with compare-and-swap transactions,
// so two workers observing outcomes for the same tool never lose an update.
package rating
