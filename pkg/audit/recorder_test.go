package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb/sqldbtest"
)

func newTestRecorder(t *testing.T) *DBRecorder {
	t.Helper()
	r := NewDBRecorder(sqldbtest.NewSQLite(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return r
}

func collect(t *testing.T, r *DBRecorder, projectID string, f Filter) []*Entry {
	t.Helper()
	var out []*Entry
	for e, err := range r.Query(context.Background(), projectID, f) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestRecordAndQuery(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	entry := &Entry{
		ProjectID:   "p1",
		ActorUserID: "u-admin",
		Action:      ActionInvitationApprove,
		TargetType:  TargetInvitation,
		TargetID:    "inv-1",
		Outcome:     OutcomeSuccess,
		BeforeState: State{"status": "access_requested"},
		AfterState:  State{"status": "approved", "access_approved": true},
	}
	require.NoError(t, r.Record(ctx, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	require.NoError(t, r.Record(ctx, &Entry{ProjectID: "p2", Action: ActionMemberAdd, TargetType: TargetTeamMember, Outcome: OutcomeSuccess}))

	got := collect(t, r, "p1", Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, entry.ID, got[0].ID)
	assert.Equal(t, "u-admin", got[0].ActorUserID)
	assert.Equal(t, ActionInvitationApprove, got[0].Action)
	assert.Equal(t, "access_requested", got[0].BeforeState["status"])
	assert.Equal(t, true, got[0].AfterState["access_approved"])
	assert.True(t, entry.Timestamp.Equal(got[0].Timestamp))
}

func TestQueryPaginatesInOrderAndRestarts(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, r.Record(ctx, &Entry{
			ProjectID:  "p1",
			Action:     ActionMemberUpdate,
			TargetType: TargetTeamMember,
			TargetID:   string(rune('a' + i)),
			Outcome:    OutcomeSuccess,
		}))
	}

	seq := r.Query(ctx, "p1", Filter{PageSize: 3})

	var first []string
	for e, err := range seq {
		require.NoError(t, err)
		first = append(first, e.TargetID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, first)

	var second []string
	for e, err := range seq {
		require.NoError(t, err)
		second = append(second, e.TargetID)
	}
	assert.Equal(t, first, second)

	var partial []string
	for e, err := range seq {
		require.NoError(t, err)
		partial = append(partial, e.TargetID)
		if len(partial) == 4 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, partial)
}

func TestQuerySameTimestampOrdersByID(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, r.Record(ctx, &Entry{
			ProjectID: "p1", Action: ActionAuthorize, TargetType: TargetAuthorization,
			TargetID: id, Outcome: OutcomeDenied, Timestamp: at,
		}))
	}

	got := collect(t, r, "p1", Filter{PageSize: 1})
	require.Len(t, got, 3)
	assert.Equal(t, "x", got[0].TargetID)
	assert.Equal(t, "y", got[1].TargetID)
	assert.Equal(t, "z", got[2].TargetID)
}

func TestQueryFilters(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	records := []*Entry{
		{ProjectID: "p1", ActorUserID: "alice", Action: ActionMemberRemove, TargetType: TargetTeamMember, TargetID: "m1", Outcome: OutcomeSuccess},
		{ProjectID: "p1", ActorUserID: "bob", Action: ActionMemberRemove, TargetType: TargetTeamMember, TargetID: "m2", Outcome: OutcomeFailure},
		{ProjectID: "p1", ActorUserID: "alice", Action: ActionInvitationReject, TargetType: TargetInvitation, TargetID: "i1", Outcome: OutcomeSuccess},
		{ProjectID: "p1", ActorUserID: "carol", Action: ActionInvitationCreate, TargetType: TargetInvitation, TargetID: "i2", Outcome: OutcomeDenied},
	}
	for _, e := range records {
		require.NoError(t, r.Record(ctx, e))
	}

	assert.Len(t, collect(t, r, "p1", Filter{Actions: []Action{ActionMemberRemove}}), 2)
	assert.Len(t, collect(t, r, "p1", Filter{Actions: []Action{ActionMemberRemove, ActionInvitationCreate}}), 3)
	assert.Len(t, collect(t, r, "p1", Filter{ActorUserID: "alice"}), 2)
	assert.Len(t, collect(t, r, "p1", Filter{TargetType: TargetInvitation}), 2)
	assert.Len(t, collect(t, r, "p1", Filter{TargetID: "m2"}), 1)
	assert.Len(t, collect(t, r, "p1", Filter{Outcome: OutcomeDenied}), 1)

	since := records[1].Timestamp
	until := records[3].Timestamp
	got := collect(t, r, "p1", Filter{Since: since, Until: until})
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].TargetID)
	assert.Equal(t, "i1", got[1].TargetID)
}

func TestRecordTxRollsBackWithTransaction(t *testing.T) {
	db := sqldbtest.NewSQLite(t)
	r := NewDBRecorder(db)
	ctx := context.Background()

	boom := errors.New("transition failed")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		require.NoError(t, r.RecordTx(ctx, tx, &Entry{ProjectID: "p1", Action: ActionMemberAdd, TargetType: TargetTeamMember, Outcome: OutcomeSuccess}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, collect(t, r, "p1", Filter{}))
}

func TestQueryErrorIsYieldedOnce(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	r := NewDBRecorder(sqldb.New(mockDB, sqldb.DialectPostgres, 0))
	mock.ExpectQuery("SELECT id, project_id").WillReturnError(errors.New("connection reset"))

	var errs []error
	for e, err := range r.Query(context.Background(), "p1", Filter{}) {
		assert.Nil(t, e)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Equal(t, access.KindUnavailable, access.KindOf(errs[0]))
}

func TestRecordInsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	r := NewDBRecorder(sqldb.New(mockDB, sqldb.DialectPostgres, 0))
	mock.ExpectQuery("INSERT INTO audit_entries").WillReturnError(errors.New("disk full"))

	err = r.Record(context.Background(), &Entry{ProjectID: "p1", Action: ActionMemberAdd, TargetType: TargetTeamMember, Outcome: OutcomeSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert audit entry")
	assert.Equal(t, access.KindUnavailable, access.KindOf(err))
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NoError(t, r.Record(context.Background(), &Entry{}))
	assert.NoError(t, r.RecordTx(context.Background(), nil, &Entry{}))
}

func TestStateOf(t *testing.T) {
	type sample struct {
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	s := StateOf(sample{Name: "n", Active: true})
	assert.Equal(t, State{"name": "n", "active": true}, s)
	assert.Nil(t, StateOf(nil))
}
