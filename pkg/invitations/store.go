package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

const invitationColumns = `id, project_id, email, company_name, role, csi_division,
	division_name, scope_of_work, message, invited_by, invited_at, expires_at,
	status, access_requested, access_approved, rejection_reason,
	accepted_by_user_id, accepted_at, contact_name, contact_phone,
	access_requested_at, decided_by, decided_at, member_id, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func scanInvitation(row scanner) (*Invitation, error) {
	inv := &Invitation{}
	var role, division, status string
	var acceptedAt, requestedAt, decidedAt sql.NullTime
	if err := row.Scan(
		&inv.ID, &inv.ProjectID, &inv.Email, &inv.CompanyName, &role, &division,
		&inv.DivisionName, &inv.ScopeOfWork, &inv.Message, &inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt,
		&status, &inv.AccessRequested, &inv.AccessApproved, &inv.RejectionReason,
		&inv.AcceptedByUserID, &acceptedAt, &inv.ContactName, &inv.ContactPhone,
		&requestedAt, &inv.DecidedBy, &decidedAt, &inv.MemberID, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Role = catalog.Role(role)
	inv.CSIDivision = catalog.Division(division)
	inv.Status = Status(status)
	inv.InvitedAt = inv.InvitedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	inv.AcceptedAt = nullTime(acceptedAt)
	inv.AccessRequestedAt = nullTime(requestedAt)
	inv.DecidedAt = nullTime(decidedAt)
	return inv, nil
}

func (s *Service) load(ctx context.Context, q sqldb.Querier, op, id string, forUpdate bool) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM project_invitations WHERE id = $1`
	if forUpdate {
		query += s.db.ForUpdate()
	}
	inv, err := scanInvitation(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.New(access.KindNotFound, op, "invitation not found")
	}
	if err != nil {
		return nil, sqldb.Classify(op, fmt.Errorf("failed to get invitation: %w", err))
	}
	return inv, nil
}

func countOpen(ctx context.Context, q sqldb.Querier, projectID, email string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM project_invitations
		WHERE project_id = $1 AND email = $2 AND status IN ($3, $4, $5)`,
		projectID, email, string(StatusPending), string(StatusAccepted), string(StatusAccessRequested),
	).Scan(&n)
	if err != nil {
		return 0, sqldb.Classify("invitations.count_open", fmt.Errorf("failed to count open invitations: %w", err))
	}
	return n, nil
}

func insertInvitation(ctx context.Context, q sqldb.Querier, inv *Invitation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO project_invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		inv.ID, inv.ProjectID, inv.Email, inv.CompanyName, string(inv.Role), string(inv.CSIDivision),
		inv.DivisionName, inv.ScopeOfWork, inv.Message, inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt,
		string(inv.Status), inv.AccessRequested, inv.AccessApproved, inv.RejectionReason,
		inv.AcceptedByUserID, inv.AcceptedAt, inv.ContactName, inv.ContactPhone,
		inv.AccessRequestedAt, inv.DecidedBy, inv.DecidedAt, inv.MemberID, inv.UpdatedAt,
	)
	if sqldb.IsUniqueViolation(err) {
		return access.New(access.KindDuplicateInvitation, "invitations.create", "an open invitation already exists for this email")
	}
	if err != nil {
		return sqldb.Classify("invitations.create", fmt.Errorf("failed to insert invitation: %w", err))
	}
	return nil
}

// saveInvitation writes the mutable lifecycle columns. The WHERE clause pins
// the previous status so a write can never skip past a concurrent transition.
func saveInvitation(ctx context.Context, q sqldb.Querier, op string, inv *Invitation, from Status) error {
	res, err := q.ExecContext(ctx, `
		UPDATE project_invitations SET
			status = $1, access_requested = $2, access_approved = $3,
			rejection_reason = $4, accepted_by_user_id = $5, accepted_at = $6,
			contact_name = $7, contact_phone = $8, access_requested_at = $9,
			decided_by = $10, decided_at = $11, member_id = $12, updated_at = $13
		WHERE id = $14 AND status = $15`,
		string(inv.Status), inv.AccessRequested, inv.AccessApproved,
		inv.RejectionReason, inv.AcceptedByUserID, inv.AcceptedAt,
		inv.ContactName, inv.ContactPhone, inv.AccessRequestedAt,
		inv.DecidedBy, inv.DecidedAt, inv.MemberID, inv.UpdatedAt,
		inv.ID, string(from),
	)
	if err != nil {
		return sqldb.Classify(op, fmt.Errorf("failed to update invitation: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqldb.Classify(op, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n == 0 {
		return access.Errorf(access.KindInvalidTransition, op, "invitation is no longer %s", from)
	}
	return nil
}

func listInvitations(ctx context.Context, q sqldb.Querier, projectID string, filter ListFilter) ([]*Invitation, error) {
	conditions := []string{"project_id = $1"}
	args := []interface{}{projectID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AccessRequested != nil {
		args = append(args, *filter.AccessRequested)
		conditions = append(conditions, fmt.Sprintf("access_requested = $%d", len(args)))
	}
	if filter.AccessApproved != nil {
		args = append(args, *filter.AccessApproved)
		conditions = append(conditions, fmt.Sprintf("access_approved = $%d", len(args)))
	}

	query := `SELECT ` + invitationColumns + ` FROM project_invitations WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY invited_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqldb.Classify("invitations.list", fmt.Errorf("failed to list invitations: %w", err))
	}
	defer rows.Close()

	invitations := []*Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, sqldb.Classify("invitations.list", fmt.Errorf("failed to scan invitation: %w", err))
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.Classify("invitations.list", fmt.Errorf("failed to iterate invitations: %w", err))
	}
	return invitations, nil
}

func staleIDs(ctx context.Context, q sqldb.Querier, now time.Time, limit int) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM project_invitations
		WHERE status IN ($1, $2) AND expires_at <= $3
		ORDER BY expires_at ASC, id ASC
		LIMIT $4`,
		string(StatusPending), string(StatusAccepted), now, limit,
	)
	if err != nil {
		return nil, sqldb.Classify("invitations.expire_stale", fmt.Errorf("failed to select stale invitations: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, sqldb.Classify("invitations.expire_stale", fmt.Errorf("failed to scan invitation id: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.Classify("invitations.expire_stale", fmt.Errorf("failed to iterate stale invitations: %w", err))
	}
	return ids, nil
}
