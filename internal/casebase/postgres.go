package casebase

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists case records in a shared Postgres database, the
// production analog of the original remote sheet.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds Postgres store settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS case_base (
	seq                    BIGSERIAL PRIMARY KEY,
	case_id                TEXT NOT NULL,
	user_input             TEXT NOT NULL,
	is_refined             TEXT NOT NULL,
	refine_steps           TEXT NOT NULL,
	refine_iteration_count TEXT NOT NULL,
	chosen_models          TEXT NOT NULL,
	user_ranked            TEXT NOT NULL,
	recorded_at            TEXT NOT NULL
);
`

// NewPostgresStore connects to Postgres and ensures the case table exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres store: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, for tests.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Append inserts one wire record, preserving field order.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if len(rec) != recordFields {
		return fmt.Errorf("append: %d fields, want %d", len(rec), recordFields)
	}

	query := `
		INSERT INTO case_base (case_id, user_input, is_refined, refine_steps,
			refine_iteration_count, chosen_models, user_ranked, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec[0], rec[1], rec[2], rec[3], rec[4], rec[5], rec[6], rec[7])
	if err != nil {
		return fmt.Errorf("append case: %w", err)
	}
	return nil
}

// ReadAll returns every stored record in insertion order.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]Record, error) {
	query := `
		SELECT case_id, user_input, is_refined, refine_steps,
			refine_iteration_count, chosen_models, user_ranked, recorded_at
		FROM case_base ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec := make(Record, recordFields)
		if err := rows.Scan(&rec[0], &rec[1], &rec[2], &rec[3], &rec[4], &rec[5], &rec[6], &rec[7]); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DB exposes the underlying handle, for tests.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
