package sqldb

import (
	"context"
	"fmt"
	"strings"
)

// schema is written once with dialect placeholders:
//
//	{{ts}}     timestamp column type
//	{{serial}} auto-incrementing primary key
//	{{json}}   JSON document column type
var schema = []string{
	`CREATE TABLE IF NOT EXISTS project_invitations (
		id                  TEXT PRIMARY KEY,
		project_id          TEXT NOT NULL,
		email               TEXT NOT NULL,
		company_name        TEXT NOT NULL DEFAULT '',
		role                TEXT NOT NULL,
		csi_division        TEXT NOT NULL DEFAULT '',
		division_name       TEXT NOT NULL DEFAULT '',
		scope_of_work       TEXT NOT NULL DEFAULT '',
		message             TEXT NOT NULL DEFAULT '',
		invited_by          TEXT NOT NULL,
		invited_at          {{ts}} NOT NULL,
		expires_at          {{ts}} NOT NULL,
		status              TEXT NOT NULL,
		access_requested    BOOLEAN NOT NULL DEFAULT FALSE,
		access_approved     BOOLEAN NOT NULL DEFAULT FALSE,
		rejection_reason    TEXT NOT NULL DEFAULT '',
		accepted_by_user_id TEXT NOT NULL DEFAULT '',
		accepted_at         {{ts}},
		contact_name        TEXT NOT NULL DEFAULT '',
		contact_phone       TEXT NOT NULL DEFAULT '',
		access_requested_at {{ts}},
		decided_by          TEXT NOT NULL DEFAULT '',
		decided_at          {{ts}},
		member_id           TEXT NOT NULL DEFAULT '',
		updated_at          {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS project_invitations_open_email
		ON project_invitations (project_id, email)
		WHERE status IN ('pending', 'accepted', 'access_requested')`,
	`CREATE INDEX IF NOT EXISTS project_invitations_project_status
		ON project_invitations (project_id, status, invited_at)`,
	`CREATE INDEX IF NOT EXISTS project_invitations_expiry
		ON project_invitations (status, expires_at)`,

	`CREATE TABLE IF NOT EXISTS team_members (
		id                TEXT PRIMARY KEY,
		project_id        TEXT NOT NULL,
		user_id           TEXT NOT NULL,
		role              TEXT NOT NULL,
		access_level      TEXT NOT NULL,
		company_name      TEXT NOT NULL DEFAULT '',
		contact_name      TEXT NOT NULL DEFAULT '',
		contact_email     TEXT NOT NULL DEFAULT '',
		contact_phone     TEXT NOT NULL DEFAULT '',
		can_invite_others BOOLEAN NOT NULL DEFAULT FALSE,
		csi_division      TEXT NOT NULL DEFAULT '',
		division_name     TEXT NOT NULL DEFAULT '',
		scope_of_work     TEXT NOT NULL DEFAULT '',
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		invited_by        TEXT NOT NULL DEFAULT '',
		joined_at         {{ts}} NOT NULL,
		removed_at        {{ts}},
		updated_at        {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS team_members_active_user
		ON team_members (project_id, user_id)
		WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS team_members_project_level
		ON team_members (project_id, is_active, access_level)`,

	`CREATE TABLE IF NOT EXISTS audit_entries (
		id            {{serial}},
		project_id    TEXT NOT NULL,
		actor_user_id TEXT NOT NULL DEFAULT '',
		action        TEXT NOT NULL,
		target_type   TEXT NOT NULL,
		target_id     TEXT NOT NULL DEFAULT '',
		outcome       TEXT NOT NULL,
		message       TEXT NOT NULL DEFAULT '',
		before_state  {{json}},
		after_state   {{json}},
		occurred_at   {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_entries_project_time
		ON audit_entries (project_id, occurred_at, id)`,
}

func (d *DB) render(stmt string) string {
	var r *strings.Replacer
	if d.dialect == DialectPostgres {
		r = strings.NewReplacer(
			"{{ts}}", "TIMESTAMPTZ",
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{json}}", "JSONB",
		)
	} else {
		r = strings.NewReplacer(
			"{{ts}}", "TIMESTAMP",
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{json}}", "TEXT",
		)
	}
	return r.Replace(stmt)
}

// Migrate creates the access control tables and indexes. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, d.render(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
