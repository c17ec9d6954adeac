package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// ImportLogRepo implements store.ImportLogStore on PostgreSQL.
type ImportLogRepo struct {
	pool *pgxpool.Pool
}

// NewImportLogRepo creates an import audit log repository.
func NewImportLogRepo(pool *pgxpool.Pool) *ImportLogRepo {
	return &ImportLogRepo{pool: pool}
}

// Create implements store.ImportLogStore.
func (r *ImportLogRepo) Create(ctx context.Context, l *domain.ImportLog) error {
	errJSON, err := marshalRowErrors(l.Errors)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO import_logs (
			id, user_id, import_type, status, total_records,
			success_count, duplicate_count, error_count, errors,
			started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.UserID, string(l.Type), string(l.Status), l.TotalRecords,
		l.SuccessCount, l.DuplicateCount, l.ErrorCount, errJSON,
		l.StartedAt, l.CompletedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Update implements store.ImportLogStore. Only the owning import
// calls this, once, at completion.
func (r *ImportLogRepo) Update(ctx context.Context, l *domain.ImportLog) error {
	errJSON, err := marshalRowErrors(l.Errors)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE import_logs
		SET status = $2, total_records = $3, success_count = $4,
		    duplicate_count = $5, error_count = $6, errors = $7,
		    completed_at = $8
		WHERE id = $1
	`, l.ID, string(l.Status), l.TotalRecords, l.SuccessCount,
		l.DuplicateCount, l.ErrorCount, errJSON, l.CompletedAt)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get implements store.ImportLogStore.
func (r *ImportLogRepo) Get(ctx context.Context, id string) (*domain.ImportLog, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, import_type, status, total_records,
		       success_count, duplicate_count, error_count, errors,
		       started_at, completed_at
		FROM import_logs
		WHERE id = $1
	`, id)

	l, err := scanImportLog(row)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return l, nil
}

// List implements store.ImportLogStore, newest first.
func (r *ImportLogRepo) List(ctx context.Context, filter store.ImportLogFilter) ([]*domain.ImportLog, error) {
	query := `
		SELECT id, user_id, import_type, status, total_records,
		       success_count, duplicate_count, error_count, errors,
		       started_at, completed_at
		FROM import_logs
		WHERE ($1 = '' OR import_type = $1)
		  AND ($2 = '' OR user_id = $2)
		ORDER BY started_at DESC`
	args := []interface{}{string(filter.Type), filter.UserID}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var result []*domain.ImportLog
	for rows.Next() {
		l, err := scanImportLog(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return result, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImportLog(row rowScanner) (*domain.ImportLog, error) {
	var (
		l            domain.ImportLog
		kind, status string
		errJSON      []byte
	)
	if err := row.Scan(&l.ID, &l.UserID, &kind, &status, &l.TotalRecords,
		&l.SuccessCount, &l.DuplicateCount, &l.ErrorCount, &errJSON,
		&l.StartedAt, &l.CompletedAt); err != nil {
		return nil, err
	}
	l.Type = domain.EntityKind(kind)
	l.Status = domain.ImportStatus(status)

	if len(errJSON) > 0 {
		if err := json.Unmarshal(errJSON, &l.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
	}
	return &l, nil
}

func marshalRowErrors(errs []domain.RowError) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	return json.Marshal(errs)
}

var _ store.ImportLogStore = (*ImportLogRepo)(nil)
