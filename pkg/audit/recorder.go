package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/platinummonkey/sitepass/pkg/storage/sqldb"
)

// Recorder appends entries to the audit trail. There is deliberately no way
// to update or delete an entry.
type Recorder interface {
	// Record writes an entry in its own statement
	Record(ctx context.Context, entry *Entry) error

	// RecordTx writes an entry through q, typically the transaction that
	// performs the audited transition, so both commit or neither does
	RecordTx(ctx context.Context, q sqldb.Querier, entry *Entry) error
}

// Source reads the audit trail
type Source interface {
	Query(ctx context.Context, projectID string, filter Filter) iter.Seq2[*Entry, error]
}

const defaultPageSize = 100

// DBRecorder stores entries in the audit_entries table
type DBRecorder struct {
	db  *sqldb.DB
	now func() time.Time
}

// NewDBRecorder creates a database-backed recorder
func NewDBRecorder(db *sqldb.DB) *DBRecorder {
	return &DBRecorder{db: db, now: time.Now}
}

// Record writes an entry in its own statement
func (r *DBRecorder) Record(ctx context.Context, entry *Entry) error {
	return r.RecordTx(ctx, r.db.SQL(), entry)
}

// RecordTx writes an entry through q
func (r *DBRecorder) RecordTx(ctx context.Context, q sqldb.Querier, entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)

	before, err := encodeState(entry.BeforeState)
	if err != nil {
		return fmt.Errorf("failed to marshal before state: %w", err)
	}
	after, err := encodeState(entry.AfterState)
	if err != nil {
		return fmt.Errorf("failed to marshal after state: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			project_id, actor_user_id, action, target_type, target_id,
			outcome, message, before_state, after_state, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = q.QueryRowContext(ctx, query,
		entry.ProjectID, entry.ActorUserID, string(entry.Action), string(entry.TargetType), entry.TargetID,
		string(entry.Outcome), entry.Message, before, after, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return sqldb.Classify("audit.record", fmt.Errorf("failed to insert audit entry: %w", err))
	}
	return nil
}

// Query returns the project's entries ordered by (timestamp, id) ascending.
// Rows are fetched lazily a page at a time; ranging over the sequence again
// re-runs the query from the start. A storage error is yielded once and ends
// the sequence.
func (r *DBRecorder) Query(ctx context.Context, projectID string, filter Filter) iter.Seq2[*Entry, error] {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return func(yield func(*Entry, error) bool) {
		var cursor *Entry
		for {
			page, err := r.queryPage(ctx, projectID, filter, cursor, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			cursor = page[len(page)-1]
		}
	}
}

func (r *DBRecorder) queryPage(ctx context.Context, projectID string, filter Filter, after *Entry, limit int) ([]*Entry, error) {
	args := []interface{}{projectID}
	conds := []string{"project_id = $1"}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Actions) > 0 {
		ph := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			ph[i] = next(string(a))
		}
		conds = append(conds, "action IN ("+strings.Join(ph, ", ")+")")
	}
	if filter.ActorUserID != "" {
		conds = append(conds, "actor_user_id = "+next(filter.ActorUserID))
	}
	if filter.TargetType != "" {
		conds = append(conds, "target_type = "+next(string(filter.TargetType)))
	}
	if filter.TargetID != "" {
		conds = append(conds, "target_id = "+next(filter.TargetID))
	}
	if filter.Outcome != "" {
		conds = append(conds, "outcome = "+next(string(filter.Outcome)))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "occurred_at >= "+next(filter.Since.UTC()))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "occurred_at < "+next(filter.Until.UTC()))
	}
	if after != nil {
		ts := next(after.Timestamp)
		id := next(after.ID)
		conds = append(conds, fmt.Sprintf("(occurred_at > %s OR (occurred_at = %s AND id > %s))", ts, ts, id))
	}
	limitPH := next(limit)

	query := `
		SELECT id, project_id, actor_user_id, action, target_type, target_id,
		       outcome, message, before_state, after_state, occurred_at
		FROM audit_entries
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY occurred_at ASC, id ASC
		LIMIT ` + limitPH

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqldb.Classify("audit.query", fmt.Errorf("failed to query audit entries: %w", err))
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var action, targetType, outcome string
		var before, after sql.NullString
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &e.ActorUserID, &action, &targetType, &e.TargetID,
			&outcome, &e.Message, &before, &after, &e.Timestamp,
		); err != nil {
			return nil, sqldb.Classify("audit.query", fmt.Errorf("failed to scan audit entry: %w", err))
		}
		e.Action = Action(action)
		e.TargetType = TargetType(targetType)
		e.Outcome = Outcome(outcome)
		e.Timestamp = e.Timestamp.UTC()
		if e.BeforeState, err = decodeState(before); err != nil {
			return nil, err
		}
		if e.AfterState, err = decodeState(after); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.Classify("audit.query", fmt.Errorf("failed to iterate audit entries: %w", err))
	}
	return entries, nil
}

func encodeState(s State) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeState(raw sql.NullString) (State, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var s State
	if err := json.Unmarshal([]byte(raw.String), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit state: %w", err)
	}
	return s, nil
}

// NopRecorder discards every entry
type NopRecorder struct{}

// Record implements Recorder
func (NopRecorder) Record(context.Context, *Entry) error { return nil }

// RecordTx implements Recorder
func (NopRecorder) RecordTx(context.Context, sqldb.Querier, *Entry) error { return nil }
