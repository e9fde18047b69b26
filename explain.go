package provenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainscore-ai/provenance/aggregate"
	"github.com/chainscore-ai/provenance/assessment"
	"github.com/chainscore-ai/provenance/ledger"
)

// Explain renders the confidence chain of an artifact as plain language: a
// numbered step per assessment from the weakest link down to the target, the
// weakest link called out explicitly, and a warning line per quality flag.
// Works for both single assessments and aggregated assessments.
func (t *Tracker) Explain(ctx context.Context, id string) (string, error) {
	a, err := t.ledger.Get(ctx, id)
	if err == nil {
		return t.explainAssessment(ctx, a)
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return "", err
	}
	g, err := t.ledger.GetAggregate(ctx, id)
	if err == nil {
		return t.explainAggregate(ctx, g)
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return "", err
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
}

func (t *Tracker) explainAssessment(ctx context.Context, a *assessment.Assessment) (string, error) {
	res, err := t.engine.Propagate(ctx, a.ID)
	if err != nil {
		return "", err
	}
	path, err := t.engine.WeakestPath(ctx, a.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Confidence %.2f for %s operation %s", res.PropagatedConfidence,
		a.OperationType, a.OperationID)
	if len(a.ParentIDs) > 0 {
		fmt.Fprintf(&b, " (own assessment %.2f, adjusted for upstream uncertainty)", a.Value)
	}
	b.WriteString(".\n")

	// Walk the weakest path root-first so the narrative reads in pipeline
	// order.
	for i := len(path) - 1; i >= 0; i-- {
		step, err := t.ledger.Get(ctx, path[i])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d. %s %s scored %.2f", len(path)-i,
			step.OperationType, step.OperationID, step.Value)
		if step.Reasoning != "" {
			fmt.Fprintf(&b, ": %s", step.Reasoning)
		}
		b.WriteString("\n")
	}

	weakest, err := t.ledger.Get(ctx, res.WeakestLinkID)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Weakest link: %s operation %s at %.2f",
		weakest.OperationType, weakest.OperationID, res.WeakestLinkValue)
	if weakest.Reasoning != "" {
		fmt.Fprintf(&b, " (%s)", weakest.Reasoning)
	}
	b.WriteString(". Improving it raises everything downstream.\n")

	if res.UncertaintyExplosion {
		fmt.Fprintf(&b,
			"Warning: uncertainty explosion. Propagated confidence %.3f fell below the floor %.2f; this result is effectively noise and the branch should be re-derived from stronger sources.\n",
			res.PropagatedConfidence, t.cfg.PropagationFloor)
	}
	return b.String(), nil
}

func (t *Tracker) explainAggregate(ctx context.Context, g *aggregate.Aggregated) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Aggregated confidence %.2f via %s over %d components.\n",
		g.OverallValue, g.Method, len(g.ComponentIDs))
	fmt.Fprintf(&b, "%s\n", g.Reasoning)

	weakest, err := t.ledger.Get(ctx, g.WeakestLinkID)
	if err == nil {
		fmt.Fprintf(&b, "Weakest component: %s operation %s at %.2f",
			weakest.OperationType, weakest.OperationID, weakest.Value)
		if weakest.Reasoning != "" {
			fmt.Fprintf(&b, " (%s)", weakest.Reasoning)
		}
		b.WriteString(".\n")
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return "", err
	}

	if g.Contradiction {
		b.WriteString("Warning: contradiction. Reliable sources disagree; treat the aggregate value as disputed, not as consensus.\n")
	}
	if g.InsufficientEvidence {
		b.WriteString("Warning: insufficient evidence. Too few independent reliable components support this judgment; corroborate before acting on it.\n")
	}
	return b.String(), nil
}
