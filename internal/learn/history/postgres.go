package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the correction_records table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS correction_records (
    id                  TEXT PRIMARY KEY,
    original            TEXT NOT NULL,
    corrected           TEXT NOT NULL,
    occurrence_count    INTEGER NOT NULL DEFAULT 1,
    first_seen          TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen           TIMESTAMPTZ NOT NULL DEFAULT now(),
    added_to_dictionary BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (original, corrected)
);
CREATE INDEX IF NOT EXISTS idx_correction_records_last_seen ON correction_records(last_seen DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The upsert relies on the
// (original, corrected) unique constraint so concurrent observers cannot
// create duplicate records.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the correction_records table
// and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, original, corrected string) (*Record, error) {
	const q = `
INSERT INTO correction_records (id, original, corrected)
VALUES ($1, $2, $3)
ON CONFLICT (original, corrected) DO UPDATE
    SET occurrence_count = correction_records.occurrence_count + 1,
        last_seen = now()
RETURNING id, original, corrected, occurrence_count, first_seen, last_seen, added_to_dictionary`

	var r Record
	err := s.db.QueryRow(ctx, q, uuid.NewString(), original, corrected).Scan(
		&r.ID, &r.Original, &r.Corrected, &r.OccurrenceCount,
		&r.FirstSeen, &r.LastSeen, &r.AddedToDictionary,
	)
	if err != nil {
		return nil, fmt.Errorf("history: upsert: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) MarkAdded(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE correction_records SET added_to_dictionary = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("history: mark added: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history: record %q not found", id)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, original, corrected, occurrence_count, first_seen, last_seen, added_to_dictionary
FROM correction_records
ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.Original, &r.Corrected, &r.OccurrenceCount,
			&r.FirstSeen, &r.LastSeen, &r.AddedToDictionary,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}
