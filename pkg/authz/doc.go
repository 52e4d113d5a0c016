// Package authz decides whether a project member may perform an action.
//
// Decide is a pure function of a member row, an action and the trade division
// the action targets. It applies, in order: membership, read-only members on
// mutating actions, admin-only actions, and trade scope. Admins are never
// scope-restricted.
//
// Engine wraps Decide with a member lookup against the team registry and an
// optional expiring cache of active memberships:
//
//	engine := authz.NewEngine(registry, authz.WithCache(4096, 30*time.Second))
//	decision, err := engine.Authorize(ctx, projectID, userID, authz.ActionEditSubmittal, "22")
//	if err != nil {
//		return err
//	}
//	if !decision.Allowed {
//		return decision.Err("submittals.update")
//	}
package authz
