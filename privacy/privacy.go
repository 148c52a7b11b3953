// Package privacy provides sets of types and helpers for writing privacy
// rules over the reads and writes of a query graph, and deal with their
// evaluation at runtime.
package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from policy rules to indicate
// how the policy evaluation should proceed. Use errors.Is() to check
// for these values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("veloxq/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("veloxq/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("veloxq/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a query/mutation rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule defines the interface deciding whether a
	// read is allowed and optionally modify it.
	QueryRule interface {
		EvalQuery(context.Context, queryast.ReadQuery) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule defines the interface deciding whether a
	// write is allowed and optionally modify it.
	MutationRule interface {
		EvalMutation(context.Context, queryast.WriteQuery) error
	}

	// MutationPolicy combines multiple mutation rules into a single policy.
	MutationPolicy []MutationRule

	// QueryMutationRule is an interface which groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// QueryRuleFunc type is an adapter which allows the use of
// ordinary functions as query rules.
type QueryRuleFunc func(context.Context, queryast.ReadQuery) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	return f(ctx, q)
}

// MutationRuleFunc type is an adapter which allows the use of
// ordinary functions as mutation rules.
type MutationRuleFunc func(context.Context, queryast.WriteQuery) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	return f(ctx, m)
}

// OnMutationOperation evaluates the given rule only on a given mutation operation.
func OnMutationOperation(rule MutationRule, op queryast.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m queryast.WriteQuery) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying specified mutation operation.
func DenyMutationOperationRule(op queryast.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m queryast.WriteQuery) error {
		return Denyf("veloxq/privacy: operation %s is not allowed", m.Op())
	})
	return OnMutationOperation(rule, op)
}

// Policy groups query and mutation policies.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards evaluation to query a policy.
func (p Policy) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation forwards evaluation to mutate a policy.
func (p Policy) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// Policies combines multiple policies into a single policy.
type Policies []QueryMutationRule

// EvalQuery evaluates the query policies. If the Allow error is returned
// from one of the policies, it stops the evaluation with a nil error.
func (policies Policies) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	return policies.eval(ctx, func(policy QueryMutationRule) error {
		return policy.EvalQuery(ctx, q)
	})
}

// EvalMutation evaluates the mutation policies. If the Allow error is returned
// from one of the policies, it stops the evaluation with a nil error.
func (policies Policies) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	return policies.eval(ctx, func(policy QueryMutationRule) error {
		return policy.EvalMutation(ctx, m)
	})
}

func (policies Policies) eval(ctx context.Context, eval func(QueryMutationRule) error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := eval(policy); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// ModelPolicies maps model names to the policy guarding their records.
// Models without a policy are not restricted.
type ModelPolicies map[string]QueryMutationRule

// EvalQuery evaluates the policy of the model read by q.
func (p ModelPolicies) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	policy, ok := p[q.Model().Name]
	if !ok {
		return nil
	}
	return Policies{policy}.EvalQuery(ctx, q)
}

// EvalMutation evaluates the policy of the model written by m.
func (p ModelPolicies) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	policy, ok := p[m.Model().Name]
	if !ok {
		return nil
	}
	return Policies{policy}.EvalMutation(ctx, m)
}

// EvalQuery evaluates a query against a query policy.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	for _, policy := range policies {
		switch decision := policy.EvalQuery(ctx, q); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// EvalMutation evaluates a mutation against a mutation policy.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attach to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, queryast.ReadQuery) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, queryast.WriteQuery) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ queryast.ReadQuery) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ queryast.WriteQuery) error {
	return c.eval(ctx)
}

// Filter is implemented by the reads and bulk writes that can be restricted
// by a filter: ReadManyRecords, ReadRelatedRecords, CountRecords,
// UpdateManyRecords and DeleteManyRecords.
type Filter interface {
	// Where adds f to the filter of the query.
	Where(f ql.Filter)
}

// FilterFunc is an adapter that allows using ordinary functions as
// query/mutation rules that restrict the records a query touches.
//
// Example usage:
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.Where(ql.Equals(workspace, workspaceID))
//	    return privacy.Skip
//	})
type FilterFunc func(context.Context, Filter) error

// EvalQuery calls f(ctx, q) if the query supports filtering.
func (f FilterFunc) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	fr, ok := q.(Filter)
	if !ok {
		return Denyf("veloxq/privacy: query type %T does not support filtering", q)
	}
	return f(ctx, fr)
}

// EvalMutation calls f(ctx, m) if the mutation supports filtering.
func (f FilterFunc) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	fr, ok := m.(Filter)
	if !ok {
		return Denyf("veloxq/privacy: mutation type %T does not support filtering", m)
	}
	return f(ctx, fr)
}

var _ QueryMutationRule = FilterFunc(nil)
