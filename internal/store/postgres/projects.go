package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// ProjectRepo implements store.ProjectStore on PostgreSQL.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo creates a project repository.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// GetByNumber implements store.ProjectStore.
func (r *ProjectRepo) GetByNumber(ctx context.Context, number string) (*domain.Project, error) {
	var p domain.Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, description, status, health, created_at
		FROM projects
		WHERE number = $1
	`, number).Scan(&p.ID, &p.Number, &p.Description, &p.Status, &p.Health, &p.CreatedAt)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("GetByNumber: %w", err)
	}
	return &p, nil
}

// Create implements store.ProjectStore. A unique violation on the
// project number comes back as store.ErrConflict.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (id, number, description, status, health, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Number, p.Description, p.Status, p.Health, p.CreatedAt)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrConflict) {
			return store.ErrConflict
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

var _ store.ProjectStore = (*ProjectRepo)(nil)
