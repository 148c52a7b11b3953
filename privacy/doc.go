// Package privacy provides the authorization layer of the query graph
// executor. Policies are evaluated before every read and write of a graph
// reaches the database; a denial aborts the whole graph.
//
// # Core Concepts
//
//   - Policy: query rules and mutation rules guarding a model
//   - Rule: a function that returns Allow, Deny, or Skip decisions
//   - Viewer: an interface representing the current user
//
// # Defining Policies
//
// Policies are attached to models by name:
//
//	policies := privacy.ModelPolicies{
//	    "User": privacy.Policy{
//	        Mutation: privacy.MutationPolicy{
//	            privacy.DenyIfNoViewer(),
//	            privacy.HasRole("admin"),
//	            privacy.DenyMutationOperationRule(queryast.OpDelete | queryast.OpDeleteMany),
//	        },
//	    },
//	    "Post": privacy.Policies{privacy.OwnerFilterRule("ownerId")},
//	}
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// If all rules return Skip, access is granted.
//
// # Filtering
//
// Reads of many records, counts and bulk writes implement Filter. Rules can
// narrow the records they touch instead of denying them:
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.Where(ql.Equals(tenant, tenantID))
//	    return privacy.Skip
//	})
//
// # Context Integration
//
// The viewer is stored in context and retrieved during policy evaluation:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
package privacy
