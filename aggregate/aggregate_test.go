package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/chainscore-ai/provenance/assessment"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func component(id string, value float64, r assessment.SourceReliability, parents ...string) *assessment.Assessment {
	a := assessment.New(assessment.OpEntityRecognition, "op-"+id).
		WithID(id).
		WithValue(value).
		WithReliability(r).
		WithCredibility(assessment.CredibilityProbablyTrue).
		WithParents(parents...).
		WithAssessedAt(testBase)
	if value < assessment.HighConfidenceThreshold {
		a.WithReasoning("weak signal").
			WithFactor(assessment.FactorAmbiguity, -0.2, "ambiguous mentions")
	}
	return a
}

func TestAggregateMethods(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(DefaultConfig())

	// Equal reliability and credibility, so the weighted mean degenerates to
	// the arithmetic mean.
	components := []*assessment.Assessment{
		component("c-1", 0.5, assessment.ReliabilityUsually, "p-1"),
		component("c-2", 1.0, assessment.ReliabilityUsually, "p-2"),
	}

	tests := []struct {
		method Method
		want   float64
	}{
		{MethodWeightedMean, 0.75},
		{MethodMinimum, 0.5},
		{MethodHarmonicMean, 2.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			g, err := agg.Aggregate(ctx, tt.method, components)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(g.OverallValue-tt.want) > 1e-9 {
				t.Errorf("value = %v, want %v", g.OverallValue, tt.want)
			}
			if g.WeakestLinkID != "c-1" {
				t.Errorf("weakest link = %s", g.WeakestLinkID)
			}
			if g.Method != tt.method {
				t.Errorf("method = %s", g.Method)
			}
			if len(g.ComponentIDs) != 2 {
				t.Errorf("component ids = %v", g.ComponentIDs)
			}
			if err := g.Validate(); err != nil {
				t.Errorf("result does not validate: %v", err)
			}
		})
	}
}

func TestAggregateWeightedMeanFavorsReliableComponents(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	components := []*assessment.Assessment{
		component("strong", 0.9, assessment.ReliabilityCompletely, "p-1"),
		component("weak", 0.3, assessment.ReliabilityUnreliable, "p-2"),
	}

	g, err := agg.Aggregate(context.Background(), MethodWeightedMean, components)
	if err != nil {
		t.Fatal(err)
	}
	// 1.0*0.8 weight vs 0.2*0.8: the reliable component dominates.
	if g.OverallValue <= 0.6 {
		t.Errorf("value = %v, the reliable component should dominate", g.OverallValue)
	}
}

func TestAggregateHarmonicMeanZeroComponent(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	components := []*assessment.Assessment{
		component("ok", 0.8, assessment.ReliabilityUsually, "p-1"),
		component("dead", 0.0, assessment.ReliabilityUsually, "p-2"),
	}

	g, err := agg.Aggregate(context.Background(), MethodHarmonicMean, components)
	if err != nil {
		t.Fatal(err)
	}
	if g.OverallValue != 0 {
		t.Errorf("value = %v, a zero component forces the harmonic mean to zero", g.OverallValue)
	}
}

func TestAggregateSynthesized(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	components := []*assessment.Assessment{
		component("c-1", 0.4, assessment.ReliabilityUsually, "p-1"),
		component("c-2", 0.8, assessment.ReliabilityUsually, "p-2"),
	}

	g, err := agg.Aggregate(context.Background(), MethodSynthesized, components)
	if err != nil {
		t.Fatal(err)
	}
	// Rule synthesizer: 0.5*min + 0.5*mean = 0.5*0.4 + 0.5*0.6 = 0.5.
	if math.Abs(g.OverallValue-0.5) > 1e-9 {
		t.Errorf("value = %v, want 0.5", g.OverallValue)
	}
}

func TestAggregateContradiction(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(DefaultConfig())

	t.Run("reliable sources diverging flags", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodWeightedMean, []*assessment.Assessment{
			component("c-1", 0.9, assessment.ReliabilityUsually, "p-1"),
			component("c-2", 0.3, assessment.ReliabilityFairly, "p-2"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !g.Contradiction {
			t.Error("spread 0.6 across reliable sources must flag a contradiction")
		}
		if !strings.Contains(g.Reasoning, "contradiction:") {
			t.Errorf("reasoning %q missing the contradiction notice", g.Reasoning)
		}
	})

	t.Run("two agreeing and one dissenting", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodWeightedMean, []*assessment.Assessment{
			component("c-1", 0.9, assessment.ReliabilityUsually, "p-1"),
			component("c-2", 0.85, assessment.ReliabilityFairly, "p-2"),
			component("c-3", 0.2, assessment.ReliabilityFairly, "p-3"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !g.Contradiction {
			t.Error("spread 0.7 must flag a contradiction")
		}
		if !strings.Contains(g.Reasoning, "contradiction:") {
			t.Errorf("reasoning %q missing the contradiction notice", g.Reasoning)
		}
		if g.WeakestLinkID != "c-3" {
			t.Errorf("weakest link = %s", g.WeakestLinkID)
		}
	})

	t.Run("unreliable source divergence does not flag", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodWeightedMean, []*assessment.Assessment{
			component("c-1", 0.9, assessment.ReliabilityUsually, "p-1"),
			component("c-2", 0.3, assessment.ReliabilityUnreliable, "p-2"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if g.Contradiction {
			t.Error("an unreliable source disagreeing is noise, not a contradiction")
		}
	})

	t.Run("agreement does not flag", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodWeightedMean, []*assessment.Assessment{
			component("c-1", 0.8, assessment.ReliabilityUsually, "p-1"),
			component("c-2", 0.7, assessment.ReliabilityUsually, "p-2"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if g.Contradiction {
			t.Error("spread 0.1 is agreement")
		}
	})
}

func TestAggregateInsufficientEvidence(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(DefaultConfig())

	t.Run("single component", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodMinimum, []*assessment.Assessment{
			component("c-1", 0.8, assessment.ReliabilityUsually, "p-1"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !g.InsufficientEvidence {
			t.Error("one component cannot corroborate itself")
		}
		if !strings.Contains(g.Reasoning, "insufficient evidence:") {
			t.Errorf("reasoning %q missing the insufficient-evidence notice", g.Reasoning)
		}
	})

	t.Run("siblings do not corroborate", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodMinimum, []*assessment.Assessment{
			component("c-1", 0.8, assessment.ReliabilityUsually, "shared-parent"),
			component("c-2", 0.7, assessment.ReliabilityUsually, "shared-parent"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !g.InsufficientEvidence {
			t.Error("components derived from the same upstream assessment are not independent")
		}
	})

	t.Run("low reliability components do not count", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodMinimum, []*assessment.Assessment{
			component("c-1", 0.8, assessment.ReliabilityUnreliable, "p-1"),
			component("c-2", 0.7, assessment.ReliabilityUnreliable, "p-2"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !g.InsufficientEvidence {
			t.Error("unreliable components cannot establish evidence")
		}
	})

	t.Run("two independent reliable components suffice", func(t *testing.T) {
		g, err := agg.Aggregate(ctx, MethodMinimum, []*assessment.Assessment{
			component("c-1", 0.8, assessment.ReliabilityUsually, "p-1"),
			component("c-2", 0.7, assessment.ReliabilityUsually, "p-2"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if g.InsufficientEvidence {
			t.Error("two independent reliable components are enough")
		}
	})
}

func TestAggregateErrors(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(DefaultConfig())

	if _, err := agg.Aggregate(ctx, MethodMinimum, nil); !errors.Is(err, ErrNoComponents) {
		t.Errorf("no components: got %v", err)
	}

	components := []*assessment.Assessment{component("c-1", 0.8, assessment.ReliabilityUsually)}
	if _, err := agg.Aggregate(ctx, "vibes", components); !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("invalid method: got %v", err)
	}
}

func TestWeakestLinkTieBreak(t *testing.T) {
	early := component("z-early", 0.5, assessment.ReliabilityUsually)
	late := component("a-late", 0.5, assessment.ReliabilityUsually)
	late.AssessedAt = testBase.Add(time.Minute)

	if got := WeakestLink([]*assessment.Assessment{late, early}); got.ID != "z-early" {
		t.Errorf("weakest = %s, ties must break by earliest assessment time", got.ID)
	}

	sameTime := component("b", 0.5, assessment.ReliabilityUsually)
	if got := WeakestLink([]*assessment.Assessment{sameTime, early.Clone().WithID("a")}); got.ID != "a" {
		t.Errorf("weakest = %s, equal times must break by id", got.ID)
	}
}

func TestWeakestLinkProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		components := make([]*assessment.Assessment, n)
		low := 2.0
		for i := range components {
			v := rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("v%d", i))
			components[i] = component(fmt.Sprintf("c-%d", i), v, assessment.ReliabilityUsually)
			if v < low {
				low = v
			}
		}

		weakest := WeakestLink(components)
		if weakest.Value != low {
			t.Fatalf("weakest value = %v, want minimum %v", weakest.Value, low)
		}

		// The choice is a function of the inputs, not their order.
		reversed := make([]*assessment.Assessment, n)
		for i := range components {
			reversed[n-1-i] = components[i]
		}
		if again := WeakestLink(reversed); again.ID != weakest.ID {
			t.Fatalf("order changed the weakest link: %s vs %s", weakest.ID, again.ID)
		}
	})
}

func TestAggregatedValidate(t *testing.T) {
	valid := &Aggregated{
		ID:            "agg-1",
		OverallValue:  0.7,
		Method:        MethodWeightedMean,
		ComponentIDs:  []string{"c-1"},
		WeakestLinkID: "c-1",
		Reasoning:     "weighted_mean over 1 component",
		CreatedAt:     testBase,
		Schema:        SchemaVersion,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mutations := map[string]func(*Aggregated){
		"missing id":         func(g *Aggregated) { g.ID = "" },
		"invalid method":     func(g *Aggregated) { g.Method = "vibes" },
		"value out of range": func(g *Aggregated) { g.OverallValue = 1.2 },
		"no components":      func(g *Aggregated) { g.ComponentIDs = nil },
		"missing weakest":    func(g *Aggregated) { g.WeakestLinkID = "" },
		"missing reasoning":  func(g *Aggregated) { g.Reasoning = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			g := *valid
			g.ComponentIDs = append([]string(nil), valid.ComponentIDs...)
			mutate(&g)
			if err := g.Validate(); !errors.Is(err, assessment.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
