package team

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

// Invalidator is notified after a membership changes so cached
// authorization state for the user can be dropped
type Invalidator interface {
	Invalidate(projectID, userID string)
}

// Registry is the single write path to team_members. Every mutation runs in
// one transaction together with its audit entry.
type Registry struct {
	db           *sqldb.DB
	audit        audit.Recorder
	logger       *observability.Logger
	metrics      *observability.Metrics
	invalidators []Invalidator
	now          func() time.Time
	newID        func() string
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = metrics }
}

// WithInvalidator registers a cache to notify on membership changes
func WithInvalidator(inv Invalidator) Option {
	return func(r *Registry) { r.invalidators = append(r.invalidators, inv) }
}

// NewRegistry creates a registry over db
func NewRegistry(db *sqldb.DB, recorder audit.Recorder, opts ...Option) *Registry {
	r := &Registry{
		db:     db,
		audit:  recorder,
		logger: observability.Discard(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.audit == nil {
		r.audit = audit.NopRecorder{}
	}
	return r
}

func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// AddInvalidator registers inv after construction, for caches that are
// themselves built on the registry. Call it before serving requests.
func (r *Registry) AddInvalidator(inv Invalidator) {
	r.invalidators = append(r.invalidators, inv)
}

// Invalidate tells every registered cache that userID's membership in
// projectID changed
func (r *Registry) Invalidate(projectID, userID string) {
	for _, inv := range r.invalidators {
		inv.Invalidate(projectID, userID)
	}
}

// Get returns a member by id, active or not
func (r *Registry) Get(ctx context.Context, memberID string) (*Member, error) {
	return r.memberByID(ctx, r.db.SQL(), "team.get", memberID, false)
}

// GetActive returns the active membership of userID in projectID, or a
// KindNotAMember error
func (r *Registry) GetActive(ctx context.Context, projectID, userID string) (*Member, error) {
	m, err := activeMember(ctx, r.db.SQL(), "team.get_active", projectID, userID)
	if access.KindOf(err) == access.KindNotFound {
		return nil, access.New(access.KindNotAMember, "team.get_active", "user is not an active member of the project")
	}
	return m, err
}

// List returns the project's members ordered by join time
func (r *Registry) List(ctx context.Context, projectID string, activeOnly bool) ([]*Member, error) {
	return listMembers(ctx, r.db.SQL(), projectID, activeOnly)
}

// MemberTx loads a member inside the caller's transaction
func (r *Registry) MemberTx(ctx context.Context, q sqldb.Querier, memberID string) (*Member, error) {
	return r.memberByID(ctx, q, "team.get", memberID, false)
}

// ActiveByEmailTx finds an active member whose contact email matches
func (r *Registry) ActiveByEmailTx(ctx context.Context, q sqldb.Querier, projectID, email string) (*Member, error) {
	return queryMember(ctx, q, "team.get_by_email",
		`project_id = $1 AND contact_email = $2 AND is_active`,
		projectID, strings.ToLower(strings.TrimSpace(email)))
}

// ActivateTx creates a membership, or reactivates the user's most recent
// inactive row, inside the caller's transaction. An existing active
// membership fails with KindAlreadyMember. Callers must call Invalidate
// after their transaction commits.
func (r *Registry) ActivateTx(ctx context.Context, q sqldb.Querier, req ActivateRequest) (*Member, error) {
	const op = "team.activate"

	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, access.New(access.KindInvalidArgument, op, "project id and user id are required")
	}
	if !req.Role.Valid() {
		return nil, access.Errorf(access.KindInvalidArgument, op, "unknown role %q", req.Role)
	}
	if !req.AccessLevel.Valid() {
		return nil, access.Errorf(access.KindInvalidArgument, op, "unknown access level %q", req.AccessLevel)
	}
	scope, err := req.Scope.Normalize()
	if err != nil {
		return nil, access.Wrap(access.KindInvalidArgument, op, err)
	}

	if _, err := activeMember(ctx, q, op, req.ProjectID, req.UserID); err == nil {
		return nil, access.New(access.KindAlreadyMember, op, "user is already an active member of the project")
	} else if access.KindOf(err) != access.KindNotFound {
		return nil, err
	}

	now := r.timestamp()
	m := &Member{
		ProjectID:       req.ProjectID,
		UserID:          req.UserID,
		Role:            req.Role,
		AccessLevel:     req.AccessLevel,
		CompanyName:     strings.TrimSpace(req.Profile.CompanyName),
		ContactName:     strings.TrimSpace(req.Profile.ContactName),
		ContactEmail:    strings.ToLower(strings.TrimSpace(req.Profile.ContactEmail)),
		ContactPhone:    strings.TrimSpace(req.Profile.ContactPhone),
		CanInviteOthers: req.CanInviteOthers,
		CSIDivision:     scope.CSIDivision,
		DivisionName:    scope.DivisionName,
		ScopeOfWork:     scope.ScopeOfWork,
		IsActive:        true,
		InvitedBy:       req.InvitedBy,
		JoinedAt:        now,
		UpdatedAt:       now,
	}

	prev, err := latestInactive(ctx, q, op, req.ProjectID, req.UserID)
	switch {
	case err == nil:
		m.ID = prev.ID
		if err := updateMember(ctx, q, m); err != nil {
			return nil, err
		}
	case access.KindOf(err) == access.KindNotFound:
		m.ID = r.newID()
		if err := insertMember(ctx, q, m); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return m, nil
}

// Add creates or reactivates a membership directly. The caller must be an
// active admin of the project.
func (r *Registry) Add(ctx context.Context, req AddRequest) (*Member, error) {
	const op = "team.add"
	var member *Member
	var actor string

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.LockProject(ctx, tx, req.ProjectID); err != nil {
			return err
		}
		caller, err := r.requireAdmin(ctx, tx, op, req.ByMemberID, req.ProjectID)
		if caller != nil {
			actor = caller.UserID
		}
		if err != nil {
			return err
		}

		member, err = r.ActivateTx(ctx, tx, ActivateRequest{
			ProjectID:       req.ProjectID,
			UserID:          req.UserID,
			Role:            req.Role,
			AccessLevel:     req.AccessLevel,
			Profile:         req.Profile,
			Scope:           req.Scope,
			CanInviteOthers: req.CanInviteOthers,
			InvitedBy:       caller.ID,
		})
		if err != nil {
			return err
		}
		return r.audit.RecordTx(ctx, tx, &audit.Entry{
			ProjectID:   req.ProjectID,
			ActorUserID: actor,
			Action:      audit.ActionMemberAdd,
			TargetType:  audit.TargetTeamMember,
			TargetID:    member.ID,
			Outcome:     audit.OutcomeSuccess,
			AfterState:  audit.StateOf(member),
		})
	})
	if err != nil {
		r.recordFailure(ctx, audit.ActionMemberAdd, req.ProjectID, actor, req.UserID, err)
		return nil, err
	}

	r.Invalidate(member.ProjectID, member.UserID)
	r.metrics.RecordTeamMutation("add", "success")
	return member, nil
}

// Bootstrap makes userID the first admin of a project that has never had
// members. It fails with KindForbidden once any membership row exists.
func (r *Registry) Bootstrap(ctx context.Context, projectID, userID string, profile catalog.Profile) (*Member, error) {
	var member *Member

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.LockProject(ctx, tx, projectID); err != nil {
			return err
		}
		n, err := countMembers(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if n > 0 {
			return access.New(access.KindForbidden, "team.bootstrap", "project already has members")
		}

		member, err = r.ActivateTx(ctx, tx, ActivateRequest{
			ProjectID:       projectID,
			UserID:          userID,
			Role:            catalog.RoleOwner,
			AccessLevel:     catalog.AccessAdmin,
			Profile:         profile,
			CanInviteOthers: true,
		})
		if err != nil {
			return err
		}
		return r.audit.RecordTx(ctx, tx, &audit.Entry{
			ProjectID:   projectID,
			ActorUserID: userID,
			Action:      audit.ActionMemberBootstrap,
			TargetType:  audit.TargetTeamMember,
			TargetID:    member.ID,
			Outcome:     audit.OutcomeSuccess,
			AfterState:  audit.StateOf(member),
		})
	})
	if err != nil {
		r.recordFailure(ctx, audit.ActionMemberBootstrap, projectID, userID, userID, err)
		return nil, err
	}

	r.Invalidate(projectID, userID)
	r.metrics.RecordTeamMutation("bootstrap", "success")
	r.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"member_id":  member.ID,
	}).Info("Project bootstrapped with first admin")
	return member, nil
}

// Update applies patch to a member. The caller must be an active admin of the
// same project, may not raise their own access level, and may not demote the
// last active admin.
func (r *Registry) Update(ctx context.Context, memberID string, patch Patch, byMemberID string) (*Member, error) {
	const op = "team.update"
	var before, after *Member
	var actor, projectID string

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		target, err := r.memberByID(ctx, tx, op, memberID, false)
		if err != nil {
			return err
		}
		projectID = target.ProjectID
		if err := r.db.LockProject(ctx, tx, projectID); err != nil {
			return err
		}
		caller, err := r.requireAdmin(ctx, tx, op, byMemberID, projectID)
		if caller != nil {
			actor = caller.UserID
		}
		if err != nil {
			return err
		}

		if target, err = r.memberByID(ctx, tx, op, memberID, true); err != nil {
			return err
		}
		if !target.IsActive {
			return access.New(access.KindNotFound, op, "member is not active")
		}
		before = target.clone()

		updated, err := applyPatch(op, target, patch)
		if err != nil {
			return err
		}
		if caller.ID == before.ID && updated.AccessLevel.Rank() > before.AccessLevel.Rank() {
			return access.New(access.KindForbidden, op, "members may not raise their own access level")
		}
		if before.AccessLevel == catalog.AccessAdmin && updated.AccessLevel != catalog.AccessAdmin {
			if err := requireAnotherAdmin(ctx, tx, op, projectID); err != nil {
				return err
			}
		}

		updated.UpdatedAt = r.timestamp()
		if err := updateMember(ctx, tx, updated); err != nil {
			return err
		}
		after = updated

		return r.audit.RecordTx(ctx, tx, &audit.Entry{
			ProjectID:   projectID,
			ActorUserID: actor,
			Action:      audit.ActionMemberUpdate,
			TargetType:  audit.TargetTeamMember,
			TargetID:    memberID,
			Outcome:     audit.OutcomeSuccess,
			BeforeState: audit.StateOf(before),
			AfterState:  audit.StateOf(after),
		})
	})
	if err != nil {
		r.recordFailure(ctx, audit.ActionMemberUpdate, projectID, actor, memberID, err)
		return nil, err
	}

	r.Invalidate(after.ProjectID, after.UserID)
	r.metrics.RecordTeamMutation("update", "success")
	return after, nil
}

// Remove deactivates a member. The caller must be an active admin of the same
// project; removing the last active admin fails with KindLastAdmin.
func (r *Registry) Remove(ctx context.Context, memberID, byMemberID string) (*Member, error) {
	const op = "team.remove"
	var removed *Member
	var actor, projectID string

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		target, err := r.memberByID(ctx, tx, op, memberID, false)
		if err != nil {
			return err
		}
		projectID = target.ProjectID
		if err := r.db.LockProject(ctx, tx, projectID); err != nil {
			return err
		}
		caller, err := r.requireAdmin(ctx, tx, op, byMemberID, projectID)
		if caller != nil {
			actor = caller.UserID
		}
		if err != nil {
			return err
		}

		if target, err = r.memberByID(ctx, tx, op, memberID, true); err != nil {
			return err
		}
		if !target.IsActive {
			return access.New(access.KindNotFound, op, "member is not active")
		}
		if target.AccessLevel == catalog.AccessAdmin {
			if err := requireAnotherAdmin(ctx, tx, op, projectID); err != nil {
				return err
			}
		}

		before := target.clone()
		now := r.timestamp()
		target.IsActive = false
		target.RemovedAt = &now
		target.UpdatedAt = now
		if err := updateMember(ctx, tx, target); err != nil {
			return err
		}
		removed = target

		return r.audit.RecordTx(ctx, tx, &audit.Entry{
			ProjectID:   projectID,
			ActorUserID: actor,
			Action:      audit.ActionMemberRemove,
			TargetType:  audit.TargetTeamMember,
			TargetID:    memberID,
			Outcome:     audit.OutcomeSuccess,
			BeforeState: audit.StateOf(before),
			AfterState:  audit.StateOf(removed),
		})
	})
	if err != nil {
		r.recordFailure(ctx, audit.ActionMemberRemove, projectID, actor, memberID, err)
		return nil, err
	}

	r.Invalidate(removed.ProjectID, removed.UserID)
	r.metrics.RecordTeamMutation("remove", "success")
	r.logger.WithFields(map[string]interface{}{
		"project_id": removed.ProjectID,
		"member_id":  removed.ID,
		"actor":      actor,
	}).Info("Team member removed")
	return removed, nil
}

// requireAdmin loads the caller and checks it is an active admin of projectID.
// The caller is returned even on denial so the denial can be attributed.
func (r *Registry) requireAdmin(ctx context.Context, q sqldb.Querier, op, callerID, projectID string) (*Member, error) {
	caller, err := r.memberByID(ctx, q, op, callerID, false)
	if access.KindOf(err) == access.KindNotFound {
		return nil, access.New(access.KindForbidden, op, "caller is not a member of the project")
	}
	if err != nil {
		return nil, err
	}
	if caller.ProjectID != projectID || !caller.IsActive {
		return caller, access.New(access.KindForbidden, op, "caller is not an active member of the project")
	}
	if caller.AccessLevel != catalog.AccessAdmin {
		return caller, access.New(access.KindForbidden, op, "admin access level required")
	}
	return caller, nil
}

// requireAnotherAdmin fails with KindLastAdmin when at most one active admin
// remains. Callers hold the project lock.
func requireAnotherAdmin(ctx context.Context, q sqldb.Querier, op, projectID string) error {
	n, err := countActiveAdmins(ctx, q, projectID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return access.New(access.KindLastAdmin, op, "project must keep at least one active admin")
	}
	return nil
}

func applyPatch(op string, m *Member, p Patch) (*Member, error) {
	if p.Empty() {
		return nil, access.New(access.KindInvalidArgument, op, "patch changes nothing")
	}
	out := m.clone()
	if p.Role != nil {
		if !p.Role.Valid() {
			return nil, access.Errorf(access.KindInvalidArgument, op, "unknown role %q", *p.Role)
		}
		out.Role = *p.Role
	}
	if p.AccessLevel != nil {
		if !p.AccessLevel.Valid() {
			return nil, access.Errorf(access.KindInvalidArgument, op, "unknown access level %q", *p.AccessLevel)
		}
		out.AccessLevel = *p.AccessLevel
	}
	if p.touchesScope() {
		scope := m.Scope()
		if p.CSIDivision != nil {
			scope.CSIDivision = *p.CSIDivision
			scope.DivisionName = ""
		}
		if p.DivisionName != nil {
			scope.DivisionName = *p.DivisionName
		}
		if p.ScopeOfWork != nil {
			scope.ScopeOfWork = *p.ScopeOfWork
		}
		scope, err := scope.Normalize()
		if err != nil {
			return nil, access.Wrap(access.KindInvalidArgument, op, err)
		}
		out.CSIDivision = scope.CSIDivision
		out.DivisionName = scope.DivisionName
		out.ScopeOfWork = scope.ScopeOfWork
	}
	if p.CanInviteOthers != nil {
		out.CanInviteOthers = *p.CanInviteOthers
	}
	if p.ContactName != nil {
		out.ContactName = strings.TrimSpace(*p.ContactName)
	}
	if p.ContactPhone != nil {
		out.ContactPhone = strings.TrimSpace(*p.ContactPhone)
	}
	return out, nil
}

// recordFailure audits a rolled-back mutation. Audit write failures are
// logged; they never replace the original error.
func (r *Registry) recordFailure(ctx context.Context, action audit.Action, projectID, actor, targetID string, cause error) {
	outcome := audit.OutcomeFailure
	if access.IsDenial(cause) {
		outcome = audit.OutcomeDenied
	}
	kind := access.KindOf(cause)
	r.metrics.RecordTeamMutation(strings.TrimPrefix(string(action), "team."), string(kind))

	if projectID == "" {
		return
	}
	err := r.audit.Record(ctx, &audit.Entry{
		ProjectID:   projectID,
		ActorUserID: actor,
		Action:      action,
		TargetType:  audit.TargetTeamMember,
		TargetID:    targetID,
		Outcome:     outcome,
		Message:     cause.Error(),
	})
	if err != nil {
		r.logger.WithError(err).WithField("action", string(action)).Error("Failed to record audit entry")
	}
}
