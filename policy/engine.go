package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

// Engine is the OPA engine backing the autonomy predicate. The rego policy
// is data, so the autonomy boundary can be tightened or loosened without
// touching pipeline code.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the given rego content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.autonomy.decision"),
		rego.Module("autonomy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for the input: "allow" or "escalate".
func (e *Engine) Evaluate(ctx context.Context, in AutonomyInput) (string, error) {
	input := map[string]interface{}{
		"kind":          string(in.Kind),
		"amount":        in.Amount,
		"approval_rate": in.ApprovalRate,
		"spend_limit":   in.SpendLimit,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default.
		return "escalate", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "escalate", nil
}

// Predicate wraps Evaluate as an autonomy predicate. Evaluation errors are
// logged and treated as "escalate".
func (e *Engine) Predicate(logger *zap.Logger) Predicate {
	return func(ctx context.Context, in AutonomyInput) bool {
		decision, err := e.Evaluate(ctx, in)
		if err != nil {
			logger.Warn("autonomy policy evaluation failed, escalating",
				zap.String("kind", string(in.Kind)),
				zap.Error(err))
			return false
		}
		return decision == "allow"
	}
}

// DefaultPolicy is the default autonomy policy: routine spend under the
// configured limit may proceed, as may events whose historical escalations
// were almost always approved; cash-flow warnings always go to a human.
const DefaultPolicy = `
package autonomy

default decision := "escalate"

high_risk if input.kind == "cash_flow_warning"

decision := "allow" if {
	not high_risk
	input.amount <= input.spend_limit
}

decision := "allow" if {
	not high_risk
	input.approval_rate >= 0.9
}
`
