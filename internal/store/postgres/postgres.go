// Package postgres implements the store interfaces on PostgreSQL via
// pgx. Unique indexes on the natural keys are the concurrency-safety
// mechanism the pipeline relies on: a 23505 unique violation is
// surfaced as store.ErrConflict, never as a raw driver error.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracelight/ppm-backend/internal/store"
)

// Connect opens a connection pool for the given DSN and verifies it
// with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("Connect: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables and unique indexes the pipeline
// depends on. Safe to run repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			health TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS commitments (
			id TEXT PRIMARY KEY,
			po_number TEXT NOT NULL,
			po_line_nr INTEGER NOT NULL,
			vendor_no TEXT NOT NULL,
			vendor_desc TEXT NOT NULL,
			project_number TEXT NOT NULL,
			wbs_element TEXT NOT NULL,
			net_amount NUMERIC(18,2) NOT NULL,
			tax_amount NUMERIC(18,2) NOT NULL,
			total_amount NUMERIC(18,2) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			delivery_date DATE,
			project_id TEXT REFERENCES projects(id),
			custom_fields JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (po_number, po_line_nr)
		)`,
		`CREATE TABLE IF NOT EXISTS actuals (
			id TEXT PRIMARY KEY,
			fi_doc_no TEXT NOT NULL UNIQUE,
			posting_date DATE NOT NULL,
			doc_date DATE,
			vendor_no TEXT NOT NULL,
			vendor_desc TEXT NOT NULL,
			project_number TEXT NOT NULL,
			wbs_element TEXT NOT NULL,
			amount NUMERIC(18,2) NOT NULL,
			currency TEXT NOT NULL,
			item_desc TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			po_number TEXT NOT NULL DEFAULT '',
			project_id TEXT REFERENCES projects(id),
			custom_fields JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS financial_variances (
			project_number TEXT NOT NULL,
			wbs_element TEXT NOT NULL,
			project_id TEXT,
			total_commitment NUMERIC(18,2) NOT NULL,
			total_actual NUMERIC(18,2) NOT NULL,
			variance NUMERIC(18,2) NOT NULL,
			variance_ratio NUMERIC(18,6) NOT NULL,
			status TEXT NOT NULL,
			currency TEXT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (project_number, wbs_element)
		)`,
		`CREATE TABLE IF NOT EXISTS import_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			import_type TEXT NOT NULL,
			status TEXT NOT NULL,
			total_records INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			duplicate_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			errors JSONB,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	return nil
}

// mapError translates driver errors onto the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrConflict
	}
	return err
}
