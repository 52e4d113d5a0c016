package invitations

import (
	"context"
	"database/sql"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/events"
	"github.com/platinummonkey/sitepass/pkg/observability"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// DefaultTTL is how long an invitation stays open without a response
const DefaultTTL = 7 * 24 * time.Hour

const sweepBatchSize = 100

// Service runs the invitation ledger and the access approval workflow
type Service struct {
	db        *sqldb.DB
	team      *team.Registry
	audit     audit.Recorder
	publisher events.Publisher
	logger    *observability.Logger
	metrics   *observability.Metrics
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets the response window of new invitations
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets where lifecycle events are sent after commit
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// NewService creates the invitation service. Memberships are created through
// registry so the registry stays the only writer of team_members.
func NewService(db *sqldb.DB, registry *team.Registry, recorder audit.Recorder, opts ...Option) *Service {
	s := &Service{
		db:        db,
		team:      registry,
		audit:     recorder,
		publisher: events.NopPublisher{},
		logger:    observability.Discard(),
		ttl:       DefaultTTL,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NopRecorder{}
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create issues an invitation on behalf of a member who may invite
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Invitation, error) {
	const op = "invitations.create"

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, access.Wrap(access.KindInvalidArgument, op, err)
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, access.New(access.KindInvalidArgument, op, "project id is required")
	}
	if !req.Role.Valid() {
		return nil, access.Errorf(access.KindInvalidArgument, op, "unknown role %q", req.Role)
	}
	scope, err := req.Scope.Normalize()
	if err != nil {
		return nil, access.Wrap(access.KindInvalidArgument, op, err)
	}

	var inv *Invitation
	var actor string
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		inviter, err := s.team.MemberTx(ctx, tx, req.InviterMemberID)
		if access.KindOf(err) == access.KindNotFound {
			return access.New(access.KindForbidden, op, "inviter is not a member of the project")
		}
		if err != nil {
			return err
		}
		actor = inviter.UserID
		if inviter.ProjectID != req.ProjectID || !inviter.CanInvite() {
			return access.New(access.KindForbidden, op, "inviter may not invite others to this project")
		}

		if _, err := s.team.ActiveByEmailTx(ctx, tx, req.ProjectID, email); err == nil {
			return access.New(access.KindAlreadyMember, op, "an active member already uses this email")
		} else if access.KindOf(err) != access.KindNotFound {
			return err
		}

		n, err := countOpen(ctx, tx, req.ProjectID, email)
		if err != nil {
			return err
		}
		if n > 0 {
			return access.New(access.KindDuplicateInvitation, op, "an open invitation already exists for this email")
		}

		now := s.timestamp()
		inv = &Invitation{
			ID:           s.newID(),
			ProjectID:    req.ProjectID,
			Email:        email,
			CompanyName:  strings.TrimSpace(req.CompanyName),
			Role:         req.Role,
			CSIDivision:  scope.CSIDivision,
			DivisionName: scope.DivisionName,
			ScopeOfWork:  scope.ScopeOfWork,
			Message:      strings.TrimSpace(req.Message),
			InvitedBy:    inviter.ID,
			InvitedAt:    now,
			ExpiresAt:    now.Add(s.ttl),
			Status:       StatusPending,
			UpdatedAt:    now,
		}
		if err := insertInvitation(ctx, tx, inv); err != nil {
			return err
		}
		return s.recordTx(ctx, tx, audit.ActionInvitationCreate, actor, nil, inv)
	})
	if err != nil {
		s.recordFailure(ctx, audit.ActionInvitationCreate, req.ProjectID, actor, "", err)
		return nil, err
	}

	s.committed(ctx, events.InvitationCreated, inv, actor)
	return inv, nil
}

// Accept records that the invitee has accepted. An invitation whose response
// window has closed is expired instead and the call fails.
func (s *Service) Accept(ctx context.Context, invitationID string, invitee Invitee) (*Invitation, error) {
	const op = "invitations.accept"
	if strings.TrimSpace(invitee.UserID) == "" {
		return nil, access.New(access.KindInvalidArgument, op, "user id is required")
	}

	return s.advance(ctx, op, audit.ActionInvitationAccept, events.InvitationAccepted, invitationID, invitee.UserID,
		func(inv *Invitation, now time.Time) error {
			if inv.Status != StatusPending {
				return invalidTransition(op, inv.Status, StatusAccepted)
			}
			if email := strings.TrimSpace(invitee.Email); email != "" && !strings.EqualFold(email, inv.Email) {
				return access.New(access.KindForbidden, op, "invitation was sent to a different email address")
			}
			inv.Status = StatusAccepted
			inv.AcceptedByUserID = invitee.UserID
			inv.AcceptedAt = &now
			inv.ContactName = strings.TrimSpace(invitee.ContactName)
			inv.ContactPhone = strings.TrimSpace(invitee.ContactPhone)
			return nil
		})
}

// RequestAccess signals approvers that the accepting user wants working access
func (s *Service) RequestAccess(ctx context.Context, invitationID, userID string) (*Invitation, error) {
	const op = "invitations.request_access"

	return s.advance(ctx, op, audit.ActionInvitationRequestAccess, events.InvitationAccessRequested, invitationID, userID,
		func(inv *Invitation, now time.Time) error {
			if inv.Status != StatusAccepted {
				return invalidTransition(op, inv.Status, StatusAccessRequested)
			}
			if inv.AcceptedByUserID != userID {
				return access.New(access.KindForbidden, op, "only the user who accepted may request access")
			}
			inv.Status = StatusAccessRequested
			inv.AccessRequested = true
			inv.AccessRequestedAt = &now
			return nil
		})
}

// advance runs an invitee-driven transition. Invitations past their expiry
// are moved to expired in their own commit and the transition fails.
func (s *Service) advance(ctx context.Context, op string, action audit.Action, eventType events.Type,
	invitationID, actor string, mutate func(inv *Invitation, now time.Time) error) (*Invitation, error) {
	var inv *Invitation
	var projectID string
	expiredNow := false

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, op, invitationID, true)
		if err != nil {
			return err
		}
		projectID = current.ProjectID
		now := s.timestamp()

		if (current.Status == StatusPending || current.Status == StatusAccepted) && current.Expired(now) {
			inv, err = s.expireTx(ctx, tx, current, now)
			expiredNow = err == nil
			return err
		}

		before := current.clone()
		if err := mutate(current, now); err != nil {
			return err
		}
		current.UpdatedAt = now
		if err := saveInvitation(ctx, tx, op, current, before.Status); err != nil {
			return err
		}
		inv = current
		return s.recordTx(ctx, tx, action, actor, before, inv)
	})
	if err != nil {
		s.recordFailure(ctx, action, projectID, actor, invitationID, err)
		return nil, err
	}

	if expiredNow {
		s.committed(ctx, events.InvitationExpired, inv, audit.SystemActor)
		err := access.New(access.KindInvalidTransition, op, "invitation has expired")
		s.recordFailure(ctx, action, projectID, actor, invitationID, err)
		return nil, err
	}
	s.committed(ctx, eventType, inv, actor)
	return inv, nil
}

// Expire closes a non-terminal invitation. Terminal invitations are returned
// unchanged.
func (s *Service) Expire(ctx context.Context, invitationID string) (*Invitation, error) {
	inv, _, err := s.expire(ctx, invitationID, time.Time{})
	return inv, err
}

// ExpireStale expires every pending or accepted invitation whose response
// window closed at or before now and returns how many it expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	expired := 0
	for {
		ids, err := staleIDs(ctx, s.db.SQL(), now, sweepBatchSize)
		if err != nil {
			return expired, err
		}
		changedInBatch := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return expired, sqldb.Classify("invitations.expire_stale", err)
			}
			_, changed, err := s.expire(ctx, id, now)
			if err != nil {
				return expired, err
			}
			if changed {
				expired++
				changedInBatch++
			}
		}
		if len(ids) < sweepBatchSize || changedInBatch == 0 {
			return expired, nil
		}
	}
}

// expire moves one invitation to expired. A non-zero staleAt restricts it to
// pending or accepted invitations that had expired by staleAt.
func (s *Service) expire(ctx context.Context, invitationID string, staleAt time.Time) (*Invitation, bool, error) {
	const op = "invitations.expire"
	var inv *Invitation
	changed := false

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, op, invitationID, true)
		if err != nil {
			return err
		}
		inv = current
		if current.Status.Terminal() {
			return nil
		}
		if !staleAt.IsZero() {
			sweepable := current.Status == StatusPending || current.Status == StatusAccepted
			if !sweepable || !current.Expired(staleAt) {
				return nil
			}
		}
		inv, err = s.expireTx(ctx, tx, current, s.timestamp())
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.committed(ctx, events.InvitationExpired, inv, audit.SystemActor)
	}
	return inv, changed, nil
}

func (s *Service) expireTx(ctx context.Context, tx *sql.Tx, inv *Invitation, now time.Time) (*Invitation, error) {
	before := inv.clone()
	inv.Status = StatusExpired
	inv.UpdatedAt = now
	if err := saveInvitation(ctx, tx, "invitations.expire", inv, before.Status); err != nil {
		return nil, err
	}
	if err := s.recordTx(ctx, tx, audit.ActionInvitationExpire, audit.SystemActor, before, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Revoke withdraws a non-terminal invitation. The caller must be an active
// admin of the invitation's project.
func (s *Service) Revoke(ctx context.Context, invitationID, byMemberID string) (*Invitation, error) {
	const op = "invitations.revoke"
	var inv *Invitation
	var actor, projectID string

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.load(ctx, tx, op, invitationID, true)
		if err != nil {
			return err
		}
		projectID = current.ProjectID
		admin, err := s.requireAdmin(ctx, tx, op, byMemberID, projectID)
		if admin != nil {
			actor = admin.UserID
		}
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(StatusRevoked) {
			return invalidTransition(op, current.Status, StatusRevoked)
		}

		before := current.clone()
		now := s.timestamp()
		current.Status = StatusRevoked
		current.DecidedBy = admin.ID
		current.DecidedAt = &now
		current.UpdatedAt = now
		if err := saveInvitation(ctx, tx, op, current, before.Status); err != nil {
			return err
		}
		inv = current
		return s.recordTx(ctx, tx, audit.ActionInvitationRevoke, actor, before, inv)
	})
	if err != nil {
		s.recordFailure(ctx, audit.ActionInvitationRevoke, projectID, actor, invitationID, err)
		return nil, err
	}

	s.committed(ctx, events.InvitationRevoked, inv, actor)
	return inv, nil
}

// Get returns one invitation
func (s *Service) Get(ctx context.Context, invitationID string) (*Invitation, error) {
	return s.load(ctx, s.db.SQL(), "invitations.get", invitationID, false)
}

// List returns the project's invitations matching filter, oldest first
func (s *Service) List(ctx context.Context, projectID string, filter ListFilter) ([]*Invitation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, access.Errorf(access.KindInvalidArgument, "invitations.list", "unknown status %q", filter.Status)
	}
	return listInvitations(ctx, s.db.SQL(), projectID, filter)
}

// requireAdmin loads the caller and checks it is an active admin of
// projectID. The caller is returned even on denial.
func (s *Service) requireAdmin(ctx context.Context, q sqldb.Querier, op, memberID, projectID string) (*team.Member, error) {
	m, err := s.team.MemberTx(ctx, q, memberID)
	if access.KindOf(err) == access.KindNotFound {
		return nil, access.New(access.KindForbidden, op, "caller is not a member of the project")
	}
	if err != nil {
		return nil, err
	}
	if m.ProjectID != projectID || !m.IsAdmin() {
		return m, access.New(access.KindForbidden, op, "admin access level required")
	}
	return m, nil
}

func (s *Service) recordTx(ctx context.Context, q sqldb.Querier, action audit.Action, actor string, before, after *Invitation) error {
	entry := &audit.Entry{
		ProjectID:   after.ProjectID,
		ActorUserID: actor,
		Action:      action,
		TargetType:  audit.TargetInvitation,
		TargetID:    after.ID,
		Outcome:     audit.OutcomeSuccess,
		AfterState:  audit.StateOf(after),
	}
	if before != nil {
		entry.BeforeState = audit.StateOf(before)
	}
	return s.audit.RecordTx(ctx, q, entry)
}

// recordFailure audits a rejected or failed operation after its transaction
// rolled back. Audit failures are logged and never replace cause.
func (s *Service) recordFailure(ctx context.Context, action audit.Action, projectID, actor, targetID string, cause error) {
	if projectID == "" {
		return
	}
	outcome := audit.OutcomeFailure
	if access.IsDenial(cause) {
		outcome = audit.OutcomeDenied
	}
	err := s.audit.Record(ctx, &audit.Entry{
		ProjectID:   projectID,
		ActorUserID: actor,
		Action:      action,
		TargetType:  audit.TargetInvitation,
		TargetID:    targetID,
		Outcome:     outcome,
		Message:     cause.Error(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("action", string(action)).Error("Failed to record audit entry")
	}
}

// committed runs the post-commit side effects of a transition
func (s *Service) committed(ctx context.Context, eventType events.Type, inv *Invitation, actor string) {
	s.metrics.RecordInvitationTransition(string(inv.Status))
	event := events.Event{
		Type:         eventType,
		ProjectID:    inv.ProjectID,
		InvitationID: inv.ID,
		MemberID:     inv.MemberID,
		Email:        inv.Email,
		ActorUserID:  actor,
		OccurredAt:   inv.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"event":         string(eventType),
			"invitation_id": inv.ID,
		}).Warn("Failed to publish invitation event")
	}
}

func invalidTransition(op string, from, to Status) error {
	return access.Errorf(access.KindInvalidTransition, op, "invitation cannot move from %s to %s", from, to)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}
