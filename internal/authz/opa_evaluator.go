package authz

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.loginus.authz.allow"

// Default Rego policy: a caller may act when it holds the exact
// resource.action permission or the resource's blanket manage permission.
const defaultRegoPolicy = `package loginus.authz

default allow = false

allow if {
	some p in input.permissions
	p == sprintf("%s.%s", [input.resource, input.action])
}

allow if {
	some p in input.permissions
	p == sprintf("%s.manage", [input.resource])
}
`

// OPAEvaluator evaluates authorization questions with an in-process OPA
// Rego engine. The policy is compiled once at construction.
type OPAEvaluator struct {
	prepared rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the given Rego modules and returns an evaluator.
// With no modules the built-in default policy is used.
func NewOPAEvaluator(ctx context.Context, policies ...string) (*OPAEvaluator, error) {
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}
	modules := make(map[string]string, len(policies))
	for i, p := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = p
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	prepared, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare authz query: %w", err)
	}
	return &OPAEvaluator{prepared: prepared}, nil
}

// Allow evaluates the policy for the input. A missing or non-boolean result
// denies.
func (e *OPAEvaluator) Allow(ctx context.Context, input Input) (bool, error) {
	rs, err := e.prepared.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"permissions": input.Permissions,
		"resource":    input.Resource,
		"action":      input.Action,
	}))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}
