package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// VarianceRepo implements store.VarianceStore on PostgreSQL. The
// variance table is fully derived; Replace may drop and rebuild any
// group at any time without loss.
type VarianceRepo struct {
	pool *pgxpool.Pool
}

// NewVarianceRepo creates a variance repository.
func NewVarianceRepo(pool *pgxpool.Pool) *VarianceRepo {
	return &VarianceRepo{pool: pool}
}

// Replace implements store.VarianceStore. Delete-then-insert runs in
// one transaction so readers never observe a group half-replaced.
func (r *VarianceRepo) Replace(ctx context.Context, variances []*domain.FinancialVariance) error {
	if len(variances) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("Replace: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range variances {
		if _, err := tx.Exec(ctx, `
			DELETE FROM financial_variances
			WHERE project_number = $1 AND wbs_element = $2
		`, v.ProjectNumber, v.WBSElement); err != nil {
			return fmt.Errorf("Replace: delete group: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO financial_variances (
				project_number, wbs_element, project_id,
				total_commitment, total_actual, variance,
				variance_ratio, status, currency, computed_at
			) VALUES ($1, $2, $3, $4::numeric, $5::numeric,
				$6::numeric, $7::numeric, $8, $9, $10)
		`, v.ProjectNumber, v.WBSElement, v.ProjectID,
			v.TotalCommitment.String(), v.TotalActual.String(), v.Variance.String(),
			v.VarianceRatio.String(), string(v.Status), v.Currency, v.ComputedAt); err != nil {
			return fmt.Errorf("Replace: insert group: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("Replace: commit: %w", err)
	}
	return nil
}

// List implements store.VarianceStore.
func (r *VarianceRepo) List(ctx context.Context, projectNumbers ...string) ([]*domain.FinancialVariance, error) {
	query := `
		SELECT project_number, wbs_element, project_id,
		       total_commitment::text, total_actual::text,
		       variance::text, variance_ratio::text, status, currency,
		       computed_at
		FROM financial_variances`
	args := []interface{}{}
	if len(projectNumbers) > 0 {
		query += ` WHERE project_number = ANY($1)`
		args = append(args, projectNumbers)
	}
	query += ` ORDER BY project_number, wbs_element`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var result []*domain.FinancialVariance
	for rows.Next() {
		var (
			v                           domain.FinancialVariance
			commitStr, actualStr        string
			varianceStr, ratioStr, stat string
		)
		if err := rows.Scan(&v.ProjectNumber, &v.WBSElement, &v.ProjectID,
			&commitStr, &actualStr, &varianceStr, &ratioStr, &stat,
			&v.Currency, &v.ComputedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		if v.TotalCommitment, err = decimal.NewFromString(commitStr); err != nil {
			return nil, fmt.Errorf("List: total_commitment: %w", err)
		}
		if v.TotalActual, err = decimal.NewFromString(actualStr); err != nil {
			return nil, fmt.Errorf("List: total_actual: %w", err)
		}
		if v.Variance, err = decimal.NewFromString(varianceStr); err != nil {
			return nil, fmt.Errorf("List: variance: %w", err)
		}
		if v.VarianceRatio, err = decimal.NewFromString(ratioStr); err != nil {
			return nil, fmt.Errorf("List: variance_ratio: %w", err)
		}
		v.Status = domain.VarianceStatus(stat)
		result = append(result, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return result, nil
}

var _ store.VarianceStore = (*VarianceRepo)(nil)
