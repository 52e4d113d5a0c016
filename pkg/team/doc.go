// Package team is the registry of project memberships.
//
// A Member row records who belongs to a project, at which access level and
// with which trade scope. Rows are deactivated on removal and reactivated when
// the same user rejoins, so a project's history stays intact. At most one
// active row exists per (project, user).
//
// Every mutation runs in a single transaction that also writes its audit
// entry. Checks on the number of remaining admins run under a project-scoped
// lock so two concurrent demotions cannot leave a project without an admin.
package team
