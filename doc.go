// Package provenance is the confidence-propagation and provenance-tracking
// core of the ChainScore GraphRAG pipeline.
//
// As documents flow through a multi-stage pipeline (extraction, entity
// recognition, relationship extraction, graph construction, analysis), each
// stage produces uncertain, partially-reliable output. This SDK attaches a
// confidence assessment to every atomic operation, records it in an
// append-only provenance ledger, propagates confidence along the dependency
// DAG, aggregates converging evidence chains, and explains the result in
// plain language - including the weakest link responsible for bounding
// downstream confidence.
//
// # Packages
//
//   - assessment: the ConfidenceAssessment data model and assessor
//   - rating: per-tool reliability ratings (in-memory or etcd-backed)
//   - intent: transformation-intent classification (projection vs loss)
//   - ledger: the append-only provenance ledger (in-memory or Redis-backed)
//   - propagation: the pure confidence-propagation engine
//   - aggregate: multi-source aggregation with contradiction detection
//
// # The Tracker Facade
//
// Tracker wires the pieces together behind the entry points a pipeline
// needs:
//
//	tracker, err := provenance.NewTracker(
//	    provenance.WithLogger(logger),
//	    provenance.WithConfigFile("/etc/chainscore/provenance.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Score an operation reported by an external NLP service.
//	a, err := tracker.Assess(ctx, "op-ner-0042", result, assessment.Observation{
//	    Value:       0.72,
//	    Credibility: assessment.CredibilityProbablyTrue,
//	    Reasoning:   "domain mismatch between model and corpus",
//	    Factors: []assessment.Factor{
//	        {Name: assessment.FactorDomainMatch, Impact: -0.2,
//	            Explanation: "biomedical model on legal text"},
//	    },
//	    ParentIDs: []string{extractionID},
//	})
//
//	// Propagate upstream uncertainty and inspect the weakest link.
//	res, err := tracker.Propagate(ctx, a.ID)
//
//	// Explain the confidence chain to a human.
//	text, err := tracker.Explain(ctx, a.ID)
//
// Quality concerns - contradictions between sources, insufficient evidence,
// uncertainty explosions - are always represented as data on results, never
// as errors. Errors are reserved for contract violations: malformed
// assessments, ledger integrity breaches, broken policies.
package provenance
