package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations for entries.
type Repository interface {
	// GetByID returns ErrEntryNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// GetByUniqueID returns ErrEntryNotFound if no entry has the unique id.
	GetByUniqueID(ctx context.Context, uniqueID string) (*Entry, error)

	// List returns all entries, oldest first.
	List(ctx context.Context) ([]Entry, error)

	// Create returns ErrEntryExists on an ID or unique ID collision.
	Create(ctx context.Context, e *Entry) error

	// Delete returns ErrEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// timestampFormat is fixed-width so stored timestamps sort as text.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `
	SELECT id, unique_id, domain, title, data, version, source, created_at, updated_at
	FROM config_entries`

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// GetByUniqueID retrieves an entry by unique ID.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectColumns+` WHERE unique_id = ?`, uniqueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by unique id: %w", err)
	}
	return e, nil
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry, stamping CreatedAt/UpdatedAt.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (
			id, unique_id, domain, title, data, version, source, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UniqueID,
		e.Domain,
		e.Title,
		string(dataJSON),
		e.Version,
		e.Source,
		e.CreatedAt.UTC().Format(timestampFormat),
		e.UpdatedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                    Entry
		dataJSON             string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&e.ID, &e.UniqueID, &e.Domain, &e.Title, &dataJSON,
		&e.Version, &e.Source, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: config_entries")
}
