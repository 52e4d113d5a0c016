package invitations

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/audit"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/events"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb/sqldbtest"
	"github.com/platinummonkey/sitepass/pkg/team"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *Service
	registry  *team.Registry
	recorder  *audit.DBRecorder
	clock     *testClock
	publisher *recordingPublisher
	owner     *team.Member
	admin2    *team.Member
	standard  *team.Member
	delegate  *team.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := sqldbtest.NewSQLite(t)
	recorder := audit.NewDBRecorder(db)
	clock := &testClock{now: time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)}
	registry := team.NewRegistry(db, recorder, team.WithClock(clock.Now))
	publisher := &recordingPublisher{}
	svc := NewService(db, registry, recorder, WithClock(clock.Now), WithPublisher(publisher), WithTTL(72*time.Hour))

	owner, err := registry.Bootstrap(ctx, "p1", "u-owner", catalog.Profile{ContactEmail: "owner@gc.test"})
	require.NoError(t, err)

	add := func(userID string, level catalog.AccessLevel, canInvite bool) *team.Member {
		m, err := registry.Add(ctx, team.AddRequest{
			ProjectID:       "p1",
			ByMemberID:      owner.ID,
			UserID:          userID,
			Role:            catalog.RoleGeneralContractor,
			AccessLevel:     level,
			Profile:         catalog.Profile{ContactEmail: userID + "@gc.test"},
			CanInviteOthers: canInvite,
		})
		require.NoError(t, err)
		return m
	}

	return &fixture{
		svc:       svc,
		registry:  registry,
		recorder:  recorder,
		clock:     clock,
		publisher: publisher,
		owner:     owner,
		admin2:    add("u-admin2", catalog.AccessAdmin, false),
		standard:  add("u-standard", catalog.AccessStandard, false),
		delegate:  add("u-delegate", catalog.AccessStandard, true),
	}
}

func (f *fixture) create(t *testing.T, email string) *Invitation {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), CreateRequest{
		ProjectID:       "p1",
		InviterMemberID: f.delegate.ID,
		Email:           email,
		CompanyName:     "Pipe Works",
		Role:            catalog.RoleSubcontractor,
		Scope:           catalog.Scope{CSIDivision: "22", ScopeOfWork: "Domestic water"},
		Message:         "Join us",
	})
	require.NoError(t, err)
	return inv
}

// requested drives a new invitation to access_requested for userID
func (f *fixture) requested(t *testing.T, email, userID string) *Invitation {
	t.Helper()
	ctx := context.Background()
	inv := f.create(t, email)
	_, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: userID, ContactName: "Pat Plumber", ContactPhone: "555-0100"})
	require.NoError(t, err)
	inv, err = f.svc.RequestAccess(ctx, inv.ID, userID)
	require.NoError(t, err)
	return inv
}

func (f *fixture) audit(t *testing.T, filter audit.Filter) []*audit.Entry {
	t.Helper()
	var out []*audit.Entry
	for e, err := range f.recorder.Query(context.Background(), "p1", filter) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	inv := f.create(t, "  Plumber@PipeWorks.test ")
	assert.Equal(t, "plumber@pipeworks.test", inv.Email)
	assert.Equal(t, StatusPending, inv.Status)
	assert.Equal(t, catalog.Division("22"), inv.CSIDivision)
	assert.Equal(t, "Plumbing", inv.DivisionName)
	assert.Equal(t, f.delegate.ID, inv.InvitedBy)
	assert.Equal(t, 72*time.Hour, inv.ExpiresAt.Sub(inv.InvitedAt))

	got, err := f.svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Email, got.Email)
	assert.True(t, inv.InvitedAt.Equal(got.InvitedAt))

	entries := f.audit(t, audit.Filter{Actions: []audit.Action{audit.ActionInvitationCreate}})
	require.Len(t, entries, 1)
	assert.Equal(t, "u-delegate", entries[0].ActorUserID)
	assert.Equal(t, []events.Type{events.InvitationCreated}, f.publisher.types())
}

func TestCreateWithoutInviteRightsIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRequest{
		ProjectID: "p1", InviterMemberID: f.standard.ID,
		Email: "sub@acme.test", Role: catalog.RoleSubcontractor,
	})
	assert.True(t, errors.Is(err, access.ErrForbidden))

	_, err = f.svc.Create(ctx, CreateRequest{
		ProjectID: "p2", InviterMemberID: f.owner.ID,
		Email: "sub@acme.test", Role: catalog.RoleSubcontractor,
	})
	assert.True(t, errors.Is(err, access.ErrForbidden))

	denied := f.audit(t, audit.Filter{Outcome: audit.OutcomeDenied})
	require.Len(t, denied, 1)
	assert.Equal(t, audit.ActionInvitationCreate, denied[0].Action)
	assert.Equal(t, "u-standard", denied[0].ActorUserID)

	list, err := f.svc.List(ctx, "p1", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []CreateRequest{
		{ProjectID: "p1", InviterMemberID: f.owner.ID, Email: "not-an-email", Role: catalog.RoleSupplier},
		{ProjectID: "p1", InviterMemberID: f.owner.ID, Email: "a@b.test", Role: "plumber"},
		{ProjectID: "p1", InviterMemberID: f.owner.ID, Email: "a@b.test", Role: catalog.RoleSupplier, Scope: catalog.Scope{CSIDivision: "77"}},
	}
	for _, req := range cases {
		_, err := f.svc.Create(ctx, req)
		assert.Equal(t, access.KindInvalidArgument, access.KindOf(err), req)
	}
}

func TestCreateDuplicateAndAlreadyMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "sub@acme.test")
	_, err := f.svc.Create(ctx, CreateRequest{
		ProjectID: "p1", InviterMemberID: f.owner.ID,
		Email: "SUB@acme.test", Role: catalog.RoleSupplier,
	})
	assert.True(t, errors.Is(err, access.ErrDuplicateInvitation))

	_, err = f.svc.Revoke(ctx, first.ID, f.owner.ID)
	require.NoError(t, err)
	second := f.create(t, "sub@acme.test")
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.svc.Create(ctx, CreateRequest{
		ProjectID: "p1", InviterMemberID: f.owner.ID,
		Email: "u-standard@gc.test", Role: catalog.RoleSupplier,
	})
	assert.Equal(t, access.KindAlreadyMember, access.KindOf(err))
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")
	assert.Equal(t, StatusAccessRequested, inv.Status)
	assert.True(t, inv.AccessRequested)
	assert.False(t, inv.AccessApproved)
	require.NotNil(t, inv.AccessRequestedAt)

	pending, err := f.svc.ListPending(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, inv.ID, pending[0].ID)

	member, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, "u-plumber", member.UserID)
	assert.Equal(t, catalog.RoleSubcontractor, member.Role)
	assert.Equal(t, catalog.AccessStandard, member.AccessLevel)
	assert.Equal(t, inv.Scope(), member.Scope())
	assert.Equal(t, "plumber@pipeworks.test", member.ContactEmail)
	assert.Equal(t, "Pat Plumber", member.ContactName)
	assert.Equal(t, f.delegate.ID, member.InvitedBy)
	assert.False(t, member.CanInviteOthers)

	approved, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.True(t, approved.AccessApproved)
	assert.Equal(t, member.ID, approved.MemberID)
	assert.Equal(t, f.owner.ID, approved.DecidedBy)

	active, err := f.registry.GetActive(ctx, "p1", "u-plumber")
	require.NoError(t, err)
	assert.Equal(t, member.ID, active.ID)

	members, err := f.registry.List(ctx, "p1", true)
	require.NoError(t, err)
	count := 0
	for _, m := range members {
		if m.UserID == "u-plumber" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	pending, err = f.svc.ListPending(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	entries := f.audit(t, audit.Filter{Actions: []audit.Action{audit.ActionInvitationApprove}})
	require.Len(t, entries, 1)
	assert.Equal(t, "u-owner", entries[0].ActorUserID)
	assert.Equal(t, "access_requested", entries[0].BeforeState["status"])
	assert.Equal(t, "approved", entries[0].AfterState["status"])

	assert.Equal(t, []events.Type{
		events.InvitationCreated,
		events.InvitationAccepted,
		events.InvitationAccessRequested,
		events.InvitationApproved,
	}, f.publisher.types())
}

func TestApproveReplayReturnsExistingMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")

	first, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	require.NoError(t, err)
	again, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.admin2.ID})
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))

	all, err := f.registry.List(ctx, "p1", false)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestConcurrentApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")

	approvers := []string{f.owner.ID, f.admin2.ID}
	members := make([]*team.Member, len(approvers))
	errs := make([]error, len(approvers))

	var wg sync.WaitGroup
	for i, approver := range approvers {
		wg.Add(1)
		go func(i int, approver string) {
			defer wg.Done()
			members[i], errs[i] = f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: approver})
		}(i, approver)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for i := range approvers {
		switch {
		case errs[i] == nil:
			succeeded++
			assert.Equal(t, "u-plumber", members[i].UserID)
		case errors.Is(errs[i], access.ErrInvalidTransition):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
}

func TestConcurrentApproveBySameApprover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")

	const attempts = 2
	members := make([]*team.Member, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			members[i], errs[i] = f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
		}(i)
	}
	wg.Wait()

	// a double submit resolves to one membership; the later call replays it
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, members[0].ID, members[1].ID)

	all, err := f.registry.List(ctx, "p1", false)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	approved := 0
	for _, typ := range f.publisher.types() {
		if typ == events.InvitationApproved {
			approved++
		}
	}
	assert.Equal(t, 1, approved)

	entries := f.audit(t, audit.Filter{
		Actions:  []audit.Action{audit.ActionInvitationApprove},
		TargetID: inv.ID,
		Outcome:  audit.OutcomeSuccess,
	})
	require.Len(t, entries, 2)
	replays := 0
	for _, e := range entries {
		if e.Message == "replayed" {
			replays++
		}
	}
	assert.Equal(t, 1, replays)
}

func TestApproveAndRejectRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")

	_, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.delegate.ID})
	assert.True(t, errors.Is(err, access.ErrForbidden))
	_, err = f.svc.Reject(ctx, inv.ID, f.standard.ID, "no")
	assert.True(t, errors.Is(err, access.ErrForbidden))

	_, err = f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID, AccessLevel: "superuser"})
	assert.Equal(t, access.KindInvalidArgument, access.KindOf(err))

	denied := f.audit(t, audit.Filter{Outcome: audit.OutcomeDenied})
	require.Len(t, denied, 2)
	assert.Equal(t, audit.ActionInvitationApprove, denied[0].Action)
	assert.Equal(t, "u-delegate", denied[0].ActorUserID)
	assert.Equal(t, audit.ActionInvitationReject, denied[1].Action)

	current, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccessRequested, current.Status)
}

func TestApproveWithAdminLevel(t *testing.T) {
	f := newFixture(t)
	inv := f.requested(t, "pm@gc.test", "u-pm")

	member, err := f.svc.Approve(context.Background(), ApproveRequest{
		InvitationID: inv.ID, ApproverMemberID: f.admin2.ID, AccessLevel: catalog.AccessAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.AccessAdmin, member.AccessLevel)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")

	rejected, err := f.svc.Reject(ctx, inv.ID, f.owner.ID, "  scope already awarded ")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "scope already awarded", rejected.RejectionReason)
	assert.False(t, rejected.AccessApproved)

	_, err = f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))

	_, err = f.registry.GetActive(ctx, "p1", "u-plumber")
	assert.Equal(t, access.KindNotAMember, access.KindOf(err))

	failures := f.audit(t, audit.Filter{Actions: []audit.Action{audit.ActionInvitationApprove}, Outcome: audit.OutcomeFailure})
	assert.Len(t, failures, 1)
}

func TestApproveReactivatesRemovedMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.requested(t, "plumber@pipeworks.test", "u-plumber")
	first, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	require.NoError(t, err)
	_, err = f.registry.Remove(ctx, first.ID, f.owner.ID)
	require.NoError(t, err)

	inv = f.requested(t, "plumber@pipeworks.test", "u-plumber")
	second, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
}

func TestAcceptAndRequestAccessTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "sub@acme.test")

	_, err := f.svc.RequestAccess(ctx, inv.ID, "u-sub")
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))

	_, err = f.svc.Accept(ctx, inv.ID, Invitee{})
	assert.Equal(t, access.KindInvalidArgument, access.KindOf(err))

	accepted, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-sub"})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, "u-sub", accepted.AcceptedByUserID)
	require.NotNil(t, accepted.AcceptedAt)

	_, err = f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-sub"})
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))

	_, err = f.svc.RequestAccess(ctx, inv.ID, "u-someone-else")
	assert.True(t, errors.Is(err, access.ErrForbidden))

	_, err = f.svc.Accept(ctx, "missing", Invitee{UserID: "u-sub"})
	assert.Equal(t, access.KindNotFound, access.KindOf(err))
}

func TestAcceptRequiresInvitedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "pat@pipeworks.test")

	_, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-stranger", Email: "someone@else.test"})
	assert.True(t, errors.Is(err, access.ErrForbidden))

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.AcceptedByUserID)

	denied := f.audit(t, audit.Filter{TargetID: inv.ID, Outcome: audit.OutcomeDenied})
	require.Len(t, denied, 1)
	assert.Equal(t, audit.ActionInvitationAccept, denied[0].Action)
	assert.Equal(t, "u-stranger", denied[0].ActorUserID)

	accepted, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-pat", Email: " Pat@PipeWorks.test "})
	require.NoError(t, err)
	assert.Equal(t, "u-pat", accepted.AcceptedByUserID)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "sub@acme.test")

	_, err := f.svc.Revoke(ctx, inv.ID, f.delegate.ID)
	assert.True(t, errors.Is(err, access.ErrForbidden))

	revoked, err := f.svc.Revoke(ctx, inv.ID, f.admin2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)
	assert.Equal(t, f.admin2.ID, revoked.DecidedBy)

	_, err = f.svc.Revoke(ctx, inv.ID, f.admin2.ID)
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))
	_, err = f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-sub"})
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))
}

func TestLazyExpiryOnAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, "late@acme.test")

	f.clock.Advance(73 * time.Hour)
	_, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-late"})
	assert.True(t, errors.Is(err, access.ErrInvalidTransition))

	current, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, current.Status)

	entries := f.audit(t, audit.Filter{Actions: []audit.Action{audit.ActionInvitationExpire}})
	require.Len(t, entries, 1)
	assert.Equal(t, audit.SystemActor, entries[0].ActorUserID)
}

func TestExpireIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.requested(t, "sub@acme.test", "u-sub")

	expired, err := f.svc.Expire(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)

	again, err := f.svc.Expire(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, again.Status)

	entries := f.audit(t, audit.Filter{Actions: []audit.Action{audit.ActionInvitationExpire}})
	assert.Len(t, entries, 1)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.create(t, "a@acme.test")
	accepted := f.create(t, "b@acme.test")
	_, err := f.svc.Accept(ctx, accepted.ID, Invitee{UserID: "u-b"})
	require.NoError(t, err)
	requested := f.requested(t, "c@acme.test", "u-c")

	count, err := f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, count)

	f.clock.Advance(80 * time.Hour)
	fresh := f.create(t, "d@acme.test")

	count, err = f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for id, want := range map[string]Status{
		pending.ID:   StatusExpired,
		accepted.ID:  StatusExpired,
		requested.ID: StatusAccessRequested,
		fresh.ID:     StatusPending,
	} {
		got, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}

	count, err = f.svc.ExpireStale(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "a@acme.test")
	f.requested(t, "b@acme.test", "u-b")
	f.create(t, "c@acme.test")

	all, err := f.svc.List(ctx, "p1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first.ID, all[0].ID)

	yes := true
	requested, err := f.svc.List(ctx, "p1", ListFilter{AccessRequested: &yes})
	require.NoError(t, err)
	require.Len(t, requested, 1)
	assert.Equal(t, "b@acme.test", requested[0].Email)

	pending, err := f.svc.List(ctx, "p1", ListFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.svc.List(ctx, "p1", ListFilter{Status: "bogus"})
	assert.Equal(t, access.KindInvalidArgument, access.KindOf(err))
}

func TestStatusOnlyMovesForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	rank := map[Status]int{
		StatusPending: 0, StatusAccepted: 1, StatusAccessRequested: 2,
		StatusApproved: 3, StatusRejected: 3, StatusRevoked: 3, StatusExpired: 3,
	}

	ops := []func(inv *Invitation) error{
		func(inv *Invitation) error { _, err := f.svc.Accept(ctx, inv.ID, Invitee{UserID: "u-" + inv.ID}); return err },
		func(inv *Invitation) error { _, err := f.svc.RequestAccess(ctx, inv.ID, "u-"+inv.ID); return err },
		func(inv *Invitation) error {
			_, err := f.svc.Approve(ctx, ApproveRequest{InvitationID: inv.ID, ApproverMemberID: f.owner.ID})
			return err
		},
		func(inv *Invitation) error { _, err := f.svc.Reject(ctx, inv.ID, f.owner.ID, ""); return err },
		func(inv *Invitation) error { _, err := f.svc.Revoke(ctx, inv.ID, f.owner.ID); return err },
		func(inv *Invitation) error { _, err := f.svc.Expire(ctx, inv.ID); return err },
	}

	for i := 0; i < 8; i++ {
		inv := f.create(t, "prop"+string(rune('a'+i))+"@acme.test")
		prev := inv.Status
		for step := 0; step < 12; step++ {
			_ = ops[rng.Intn(len(ops))](inv)
			cur, err := f.svc.Get(ctx, inv.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, rank[cur.Status], rank[prev])
			if prev.Terminal() {
				assert.Equal(t, prev, cur.Status)
			}
			if cur.AccessApproved {
				assert.Equal(t, StatusApproved, cur.Status)
			}
			prev = cur.Status
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusApproved.Terminal())
	assert.False(t, StatusAccessRequested.Terminal())
	assert.True(t, StatusPending.CanTransition(StatusRevoked))
	assert.False(t, StatusAccepted.CanTransition(StatusPending))
	assert.False(t, StatusApproved.CanTransition(StatusRevoked))

	s, err := ParseStatus("Access_Requested")
	require.NoError(t, err)
	assert.Equal(t, StatusAccessRequested, s)
	_, err = ParseStatus("done")
	assert.Error(t, err)
}
