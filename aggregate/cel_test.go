package aggregate

import (
	"context"
	"math"
	"testing"

	"github.com/chainscore-ai/provenance/assessment"
)

func TestCELWeightPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("matches the default policy", func(t *testing.T) {
		policy, err := NewCELWeightPolicy("reliability_weight * credibility_weight")
		if err != nil {
			t.Fatal(err)
		}
		a := component("c-1", 0.7, assessment.ReliabilityUsually)

		got, err := policy.Weight(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := ReliabilityCredibilityPolicy{}.Weight(ctx, a)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("weight = %v, want %v", got, want)
		}
	})

	t.Run("uses component metadata", func(t *testing.T) {
		policy, err := NewCELWeightPolicy(`is_root ? 2.0 : 1.0`)
		if err != nil {
			t.Fatal(err)
		}

		root := component("root", 0.8, assessment.ReliabilityUsually)
		derived := component("derived", 0.8, assessment.ReliabilityUsually, "root")

		w1, err := policy.Weight(ctx, root)
		if err != nil {
			t.Fatal(err)
		}
		w2, err := policy.Weight(ctx, derived)
		if err != nil {
			t.Fatal(err)
		}
		if w1 != 2.0 || w2 != 1.0 {
			t.Errorf("weights = %v / %v, want 2.0 / 1.0", w1, w2)
		}
	})

	t.Run("drives an aggregation", func(t *testing.T) {
		policy, err := NewCELWeightPolicy(`operation_type == "extraction" ? 0.5 : 1.0`)
		if err != nil {
			t.Fatal(err)
		}
		agg := NewAggregator(DefaultConfig(), WithWeightPolicy(policy))

		extraction := component("ex", 0.2, assessment.ReliabilityUsually, "p-1")
		extraction.OperationType = assessment.OpExtraction
		ner := component("ner", 0.8, assessment.ReliabilityUsually, "p-2")

		g, err := agg.Aggregate(ctx, MethodWeightedMean, []*assessment.Assessment{extraction, ner})
		if err != nil {
			t.Fatal(err)
		}
		want := (0.5*0.2 + 1.0*0.8) / 1.5
		if math.Abs(g.OverallValue-want) > 1e-9 {
			t.Errorf("value = %v, want %v", g.OverallValue, want)
		}
	})

	t.Run("compile errors surface at construction", func(t *testing.T) {
		if _, err := NewCELWeightPolicy("reliability_weight *"); err == nil {
			t.Error("expected a compile error")
		}
		if _, err := NewCELWeightPolicy(`"not a number"`); err == nil {
			t.Error("expected a type error for a non-double expression")
		}
	})

	t.Run("negative weights rejected", func(t *testing.T) {
		policy, err := NewCELWeightPolicy("-1.0")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := policy.Weight(ctx, component("c-1", 0.7, assessment.ReliabilityUsually)); err == nil {
			t.Error("expected an error for a negative weight")
		}
	})
}
