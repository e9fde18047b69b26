package aggregate

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/chainscore-ai/provenance/assessment"
)

// CELWeightPolicy derives aggregation weights from a CEL expression,
// letting deployments tune weighting without recompiling. The expression is
// compiled once at construction and evaluated per component.
//
// Available variables:
//
//	value              double - the component's confidence value (read-only;
//	                   returning it as the weight would double-count)
//	reliability_weight double - numeric weight of the source reliability level
//	credibility_weight double - numeric weight of the credibility level
//	operation_type     string - the component's operation type
//	is_root            bool   - true when the component has no parents
//
// Example:
//
//	policy, err := aggregate.NewCELWeightPolicy(
//	    "reliability_weight * credibility_weight * (is_root ? 1.2 : 1.0)")
//	agg := aggregate.NewAggregator(cfg, aggregate.WithWeightPolicy(policy))
type CELWeightPolicy struct {
	expr string
	prg  cel.Program
}

// NewCELWeightPolicy compiles the expression. The expression must evaluate
// to a double; compilation or type errors are returned immediately rather
// than at aggregation time.
func NewCELWeightPolicy(expr string) (*CELWeightPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DoubleType),
		cel.Variable("reliability_weight", cel.DoubleType),
		cel.Variable("credibility_weight", cel.DoubleType),
		cel.Variable("operation_type", cel.StringType),
		cel.Variable("is_root", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile weight expression: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("weight expression must evaluate to double, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build weight program: %w", err)
	}

	return &CELWeightPolicy{expr: expr, prg: prg}, nil
}

// Name returns the policy identifier including the expression for audit.
func (p *CELWeightPolicy) Name() string {
	return "cel(" + p.expr + ")"
}

// Weight evaluates the expression for one component.
func (p *CELWeightPolicy) Weight(_ context.Context, a *assessment.Assessment) (float64, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"value":              a.Value,
		"reliability_weight": a.SourceReliability.Weight(),
		"credibility_weight": a.InformationCredibility.Weight(),
		"operation_type":     a.OperationType.String(),
		"is_root":            a.IsRoot(),
	})
	if err != nil {
		return 0, fmt.Errorf("evaluate weight expression: %w", err)
	}
	w, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("weight expression produced %T, want float64", out.Value())
	}
	if w < 0 {
		return 0, fmt.Errorf("weight expression produced negative weight %v", w)
	}
	return w, nil
}
