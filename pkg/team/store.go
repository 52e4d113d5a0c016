package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

const memberColumns = `id, project_id, user_id, role, access_level, company_name,
	contact_name, contact_email, contact_phone, can_invite_others,
	csi_division, division_name, scope_of_work, is_active, invited_by,
	joined_at, removed_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row scanner) (*Member, error) {
	m := &Member{}
	var role, level, division string
	var removedAt sql.NullTime
	if err := row.Scan(
		&m.ID, &m.ProjectID, &m.UserID, &role, &level, &m.CompanyName,
		&m.ContactName, &m.ContactEmail, &m.ContactPhone, &m.CanInviteOthers,
		&division, &m.DivisionName, &m.ScopeOfWork, &m.IsActive, &m.InvitedBy,
		&m.JoinedAt, &removedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Role = catalog.Role(role)
	m.AccessLevel = catalog.AccessLevel(level)
	m.CSIDivision = catalog.Division(division)
	m.JoinedAt = m.JoinedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	if removedAt.Valid {
		t := removedAt.Time.UTC()
		m.RemovedAt = &t
	}
	return m, nil
}

// queryMember returns the first row matching where, or a KindNotFound error
func queryMember(ctx context.Context, q sqldb.Querier, op, where string, args ...interface{}) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE ` + where
	m, err := scanMember(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.New(access.KindNotFound, op, "member not found")
	}
	if err != nil {
		return nil, sqldb.Classify(op, fmt.Errorf("failed to get member: %w", err))
	}
	return m, nil
}

func (r *Registry) memberByID(ctx context.Context, q sqldb.Querier, op, id string, forUpdate bool) (*Member, error) {
	where := `id = $1`
	if forUpdate {
		where += r.db.ForUpdate()
	}
	return queryMember(ctx, q, op, where, id)
}

func activeMember(ctx context.Context, q sqldb.Querier, op, projectID, userID string) (*Member, error) {
	return queryMember(ctx, q, op, `project_id = $1 AND user_id = $2 AND is_active`, projectID, userID)
}

func latestInactive(ctx context.Context, q sqldb.Querier, op, projectID, userID string) (*Member, error) {
	return queryMember(ctx, q, op,
		`project_id = $1 AND user_id = $2 AND NOT is_active ORDER BY updated_at DESC, id DESC LIMIT 1`,
		projectID, userID)
}

func listMembers(ctx context.Context, q sqldb.Querier, projectID string, activeOnly bool) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE project_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY joined_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, sqldb.Classify("team.list", fmt.Errorf("failed to list members: %w", err))
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, sqldb.Classify("team.list", fmt.Errorf("failed to scan member: %w", err))
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.Classify("team.list", fmt.Errorf("failed to iterate members: %w", err))
	}
	return members, nil
}

func countActiveAdmins(ctx context.Context, q sqldb.Querier, projectID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_members WHERE project_id = $1 AND is_active AND access_level = $2`,
		projectID, string(catalog.AccessAdmin),
	).Scan(&n)
	if err != nil {
		return 0, sqldb.Classify("team.count_admins", fmt.Errorf("failed to count admins: %w", err))
	}
	return n, nil
}

func countMembers(ctx context.Context, q sqldb.Querier, projectID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, sqldb.Classify("team.count", fmt.Errorf("failed to count members: %w", err))
	}
	return n, nil
}

func insertMember(ctx context.Context, q sqldb.Querier, m *Member) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO team_members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		m.ID, m.ProjectID, m.UserID, string(m.Role), string(m.AccessLevel), m.CompanyName,
		m.ContactName, m.ContactEmail, m.ContactPhone, m.CanInviteOthers,
		string(m.CSIDivision), m.DivisionName, m.ScopeOfWork, m.IsActive, m.InvitedBy,
		m.JoinedAt, m.RemovedAt, m.UpdatedAt,
	)
	return writeErr("team.insert", err)
}

func updateMember(ctx context.Context, q sqldb.Querier, m *Member) error {
	_, err := q.ExecContext(ctx, `
		UPDATE team_members SET
			role = $1, access_level = $2, company_name = $3, contact_name = $4,
			contact_email = $5, contact_phone = $6, can_invite_others = $7,
			csi_division = $8, division_name = $9, scope_of_work = $10,
			is_active = $11, invited_by = $12, joined_at = $13, removed_at = $14,
			updated_at = $15
		WHERE id = $16`,
		string(m.Role), string(m.AccessLevel), m.CompanyName, m.ContactName,
		m.ContactEmail, m.ContactPhone, m.CanInviteOthers,
		string(m.CSIDivision), m.DivisionName, m.ScopeOfWork,
		m.IsActive, m.InvitedBy, m.JoinedAt, m.RemovedAt,
		m.UpdatedAt, m.ID,
	)
	return writeErr("team.update", err)
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if sqldb.IsUniqueViolation(err) {
		return access.Wrap(access.KindAlreadyMember, op, err)
	}
	return sqldb.Classify(op, fmt.Errorf("failed to write member: %w", err))
}
