package host

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/entity"
)

// StoredEntity is one row of the entities table.
type StoredEntity struct {
	Key       entity.Key
	DeviceID  string
	Name      string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// LastState is the last published snapshot, nil if none was published.
	LastState *entity.Snapshot
}

// Store persists registered entities and their host-side disabled flag.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store on an open, migrated SQLite connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Upsert records an entity. An existing row keeps its disabled flag and
// creation time; name and device id are refreshed.
func (s *Store) Upsert(ctx context.Context, key entity.Key, deviceID, name string) (StoredEntity, error) {
	now := s.now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (platform, unique_id, device_id, name, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (platform, unique_id) DO UPDATE SET
			device_id = excluded.device_id,
			name = excluded.name,
			updated_at = excluded.updated_at`,
		string(key.Platform), key.UniqueID, deviceID, name, now, now,
	)
	if err != nil {
		return StoredEntity{}, fmt.Errorf("upserting entity %s: %w", key, err)
	}
	return s.Get(ctx, key)
}

// Get returns one entity, or ErrEntityNotFound.
func (s *Store) Get(ctx context.Context, key entity.Key) (StoredEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT platform, unique_id, device_id, name, disabled, created_at, updated_at, last_state
		FROM entities
		WHERE platform = ? AND unique_id = ?`,
		string(key.Platform), key.UniqueID,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredEntity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, key)
		}
		return StoredEntity{}, fmt.Errorf("querying entity %s: %w", key, err)
	}
	return e, nil
}

// List returns every stored entity ordered by platform and unique id.
func (s *Store) List(ctx context.Context) ([]StoredEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, unique_id, device_id, name, disabled, created_at, updated_at, last_state
		FROM entities
		ORDER BY platform, unique_id`)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var out []StoredEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return out, nil
}

// SetDisabled flips the host-side disabled flag.
func (s *Store) SetDisabled(ctx context.Context, key entity.Key, disabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET disabled = ?, updated_at = ?
		WHERE platform = ? AND unique_id = ?`,
		boolToInt(disabled), s.now().UTC().Format(time.RFC3339),
		string(key.Platform), key.UniqueID,
	)
	if err != nil {
		return fmt.Errorf("updating entity %s: %w", key, err)
	}
	return requireAffected(res, key)
}

// SaveState stores the last published snapshot.
func (s *Store) SaveState(ctx context.Context, snap entity.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	key := snap.Key()
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET last_state = ?
		WHERE platform = ? AND unique_id = ?`,
		string(data), string(key.Platform), key.UniqueID,
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", key, err)
	}
	return requireAffected(res, key)
}

// Delete removes an entity row.
func (s *Store) Delete(ctx context.Context, key entity.Key) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entities WHERE platform = ? AND unique_id = ?`,
		string(key.Platform), key.UniqueID,
	)
	if err != nil {
		return fmt.Errorf("deleting entity %s: %w", key, err)
	}
	return requireAffected(res, key)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (StoredEntity, error) {
	var (
		e                    StoredEntity
		platform             string
		disabled             int
		createdAt, updatedAt string
		lastState            sql.NullString
	)
	if err := row.Scan(&platform, &e.Key.UniqueID, &e.DeviceID, &e.Name, &disabled, &createdAt, &updatedAt, &lastState); err != nil {
		return StoredEntity{}, err
	}
	e.Key.Platform = entity.Platform(platform)
	e.Disabled = disabled != 0

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return StoredEntity{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return StoredEntity{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	if lastState.Valid && lastState.String != "" {
		var snap entity.Snapshot
		if err := json.Unmarshal([]byte(lastState.String), &snap); err != nil {
			return StoredEntity{}, fmt.Errorf("parsing last_state: %w", err)
		}
		e.LastState = &snap
	}
	return e, nil
}

func requireAffected(res sql.Result, key entity.Key) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, key)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
