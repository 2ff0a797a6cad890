// Package db persists job records, per-segment render outcomes and
// custom orientation presets in Postgres. The database is optional:
// without DATABASE_URL the process runs on the in-memory status store
// alone and nothing here is constructed.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn}
	if err := db.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// ensureSchema creates the tables on startup. Statements are idempotent
// so repeated boots against the same database are harmless.
func (db *DB) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL,
			progress INT NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			orientation TEXT NOT NULL,
			provider TEXT NOT NULL,
			line_count INT NOT NULL DEFAULT 0,
			output_path TEXT,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS job_segments (
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			idx INT NOT NULL,
			kind TEXT NOT NULL,
			tier TEXT NOT NULL,
			omitted BOOLEAN NOT NULL DEFAULT FALSE,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (job_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS orientation_presets (
			name TEXT PRIMARY KEY,
			width INT NOT NULL,
			height INT NOT NULL,
			font_size INT NOT NULL,
			text_y INT NOT NULL,
			wrap_width INT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
