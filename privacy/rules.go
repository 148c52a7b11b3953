package privacy

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

// viewerCtxKey is the context key for storing the viewer.
type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
// Use this for testing or simple use cases.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present in the context.
// This is typically used as the first rule in a policy to require authentication.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the specified role.
// Skips if the viewer doesn't have the role (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasRole(role string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.Contains(viewer.GetRoles(), role) {
			return Allow
		}
		return Skip
	})
}

// HasAnyRole returns a rule that allows access if the viewer has any of the specified roles.
// Skips if the viewer doesn't have any of the roles (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasAnyRole("admin", "moderator"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a mutation rule that allows access if the viewer owns the record.
// The rule checks if the value written to field by a create or an update
// matches the viewer's ID.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("user_id"),
//	    privacy.AlwaysDenyRule(),
//	)
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m queryast.WriteQuery) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := MutationField(m, field)
		if !ok {
			return Skip
		}
		var fieldID string
		switch v := value.(type) {
		case string:
			fieldID = v
		case int64:
			fieldID = fmt.Sprintf("%d", v)
		case int:
			fieldID = fmt.Sprintf("%d", v)
		default:
			fieldID = fmt.Sprintf("%v", v)
		}
		if fieldID == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerQueryRule returns a query rule that denies reads without a viewer.
// It only checks the context; use OwnerFilterRule to restrict the records.
//
// Example:
//
//	policy.Query(
//	    privacy.OwnerQueryRule(),
//	)
func OwnerQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ queryast.ReadQuery) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required for owner-filtered query")
		}
		return Skip
	})
}

// TenantRule returns a mutation rule that allows access if the viewer's tenant
// matches the entity's tenant. Used for multi-tenant isolation.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.TenantRule("tenant_id"),
//	    privacy.AlwaysDenyRule(),
//	)
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m queryast.WriteQuery) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerTenant := viewer.GetTenantID()
		if viewerTenant == "" {
			return Skip
		}
		value, ok := MutationField(m, field)
		if !ok {
			return Skip
		}
		var fieldTenant string
		switch v := value.(type) {
		case string:
			fieldTenant = v
		default:
			fieldTenant = fmt.Sprintf("%v", v)
		}
		if fieldTenant == viewerTenant {
			return Allow
		}
		return Denyf("privacy: tenant mismatch")
	})
}

// TenantQueryRule returns a query rule that denies queries if no viewer
// or tenant is present. Use this as a guard for tenant-filtered queries.
//
// Example:
//
//	policy.Query(
//	    privacy.TenantQueryRule(),
//	)
func TenantQueryRule() QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ queryast.ReadQuery) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("privacy: tenant required")
		}
		return Skip
	})
}

// AllowMutationOperationRule returns a rule allowing specified mutation operation.
func AllowMutationOperationRule(op queryast.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, _ queryast.WriteQuery) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// OwnerFilterRule returns a rule restricting reads and bulk writes to the
// records whose field holds the viewer's ID. Queries of models without the
// field are skipped, and queries that cannot be filtered are denied.
//
// Example:
//
//	privacy.ModelPolicies{
//	    "Post": privacy.Policies{privacy.DenyIfNoViewer(), privacy.OwnerFilterRule("authorId")},
//	}
func OwnerFilterRule(field string) QueryMutationRule {
	return ownerFilter(field)
}

type ownerFilter string

func (o ownerFilter) EvalQuery(ctx context.Context, q queryast.ReadQuery) error {
	return o.eval(ctx, q.Model(), q)
}

func (o ownerFilter) EvalMutation(ctx context.Context, m queryast.WriteQuery) error {
	return o.eval(ctx, m.Model(), m)
}

func (o ownerFilter) eval(ctx context.Context, m *schema.Model, q any) error {
	viewer := ViewerFromContext(ctx)
	if viewer == nil {
		return Denyf("privacy: viewer required for owner-filtered query")
	}
	f := m.Field(string(o))
	if f == nil {
		return Skip
	}
	fr, ok := q.(Filter)
	if !ok {
		// Single record queries are checked by the rules of the model.
		return Skip
	}
	var v any = viewer.GetID()
	if f.Type == schema.TypeInt {
		n, err := strconv.ParseInt(viewer.GetID(), 10, 64)
		if err != nil {
			return Denyf("privacy: viewer id %q is not an integer", viewer.GetID())
		}
		v = n
	}
	fr.Where(ql.Equals(f, v))
	return Skip
}

// MutationField returns the value a create or an update writes to a field.
func MutationField(m queryast.WriteQuery, field string) (any, bool) {
	var args queryast.Args
	switch m := m.(type) {
	case *queryast.CreateRecord:
		args = m.Args
	case *queryast.UpdateRecord:
		args = m.Args
	case *queryast.UpdateManyRecords:
		args = m.Args
	}
	v, ok := args[field]
	return v, ok
}
