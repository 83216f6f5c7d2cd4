package casebase

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists case records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteConfig holds SQLite store settings.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	JournalMode  string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS case_base (
	seq                    INTEGER PRIMARY KEY AUTOINCREMENT,
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

// NewSQLiteStore opens (and if necessary creates) the SQLite case store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s", cfg.Path, journalMode)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append inserts one wire record, preserving field order.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if len(rec) != recordFields {
		return fmt.Errorf("append: %d fields, want %d", len(rec), recordFields)
	}

	query := `
		INSERT INTO case_base (case_id, user_input, is_refined, refine_steps,
			refine_iteration_count, chosen_models, user_ranked, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec[0], rec[1], rec[2], rec[3], rec[4], rec[5], rec[6], rec[7])
	if err != nil {
		return fmt.Errorf("append case: %w", err)
	}
	return nil
}

// ReadAll returns every stored record in insertion order.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Record, error) {
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

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
