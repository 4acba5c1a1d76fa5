// Package audit records the commands sent to entities so operators can see
// what was asked of an appliance, from where, and whether it was queued.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Command sources.
const (
	SourceMQTT = "mqtt"
	SourceAPI  = "api"
)

// Command outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// timeLayout is fixed-width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one command as received.
type Entry struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	UniqueID  string    `json:"unique_id"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Speed     *int      `json:"speed,omitempty"`
	Source    string    `json:"source"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which entries List returns. Empty fields match everything.
type Filter struct {
	Platform string
	UniqueID string
	Source   string
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Recorder stores command entries. *SQLiteRepository implements it.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// SQLiteRepository persists entries in the command_log table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts e. ID and CreatedAt are filled in when empty; Outcome is
// derived from Error when unset.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeAccepted
		if e.Error != "" {
			e.Outcome = OutcomeRejected
		}
	}

	var speed any
	if e.Speed != nil {
		speed = *e.Speed
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, platform, unique_id, device_id, command, speed, source, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Platform, e.UniqueID, e.DeviceID, e.Command, speed,
		e.Source, e.Outcome, nullableString(e.Error),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Platform != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, filter.Platform)
	}
	if filter.UniqueID != "" {
		conditions = append(conditions, "unique_id = ?")
		args = append(args, filter.UniqueID)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, platform, unique_id, device_id, command, speed, source, outcome, error, created_at
		 FROM command_log %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var speed sql.NullInt64
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Platform, &e.UniqueID, &e.DeviceID, &e.Command,
			&speed, &e.Source, &e.Outcome, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log entry: %w", err)
		}
		if speed.Valid {
			v := int(speed.Int64)
			e.Speed = &v
		}
		e.Error = errText.String

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
