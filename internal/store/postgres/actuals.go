package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// ActualRepo implements store.ActualStore on PostgreSQL.
type ActualRepo struct {
	pool *pgxpool.Pool
}

// NewActualRepo creates an actuals repository.
func NewActualRepo(pool *pgxpool.Pool) *ActualRepo {
	return &ActualRepo{pool: pool}
}

// Exists implements store.ActualStore.
func (r *ActualRepo) Exists(ctx context.Context, fiDocNo string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM actuals WHERE fi_doc_no = $1)
	`, fiDocNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

// Insert implements store.ActualStore. A natural-key collision comes
// back as store.ErrConflict.
func (r *ActualRepo) Insert(ctx context.Context, a *domain.Actual) error {
	custom, err := marshalCustomFields(a.CustomFields)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO actuals (
			id, fi_doc_no, posting_date, doc_date, vendor_no,
			vendor_desc, project_number, wbs_element, amount, currency,
			item_desc, doc_type, po_number, project_id, custom_fields,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10,
			$11, $12, $13, $14, $15, $16
		)
	`, a.ID, a.FIDocNo, a.PostingDate, a.DocDate, a.VendorNo,
		a.VendorDesc, a.ProjectNumber, a.WBSElement, a.Amount.String(), a.Currency,
		a.ItemDesc, a.DocType, a.PONumber, a.ProjectID, custom,
		a.CreatedAt)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrConflict) {
			return store.ErrConflict
		}
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// List implements store.ActualStore.
func (r *ActualRepo) List(ctx context.Context, projectNumbers ...string) ([]*domain.Actual, error) {
	query := `
		SELECT id, fi_doc_no, posting_date, doc_date, vendor_no,
		       vendor_desc, project_number, wbs_element, amount::text,
		       currency, item_desc, doc_type, po_number, project_id,
		       custom_fields, created_at
		FROM actuals`
	args := []interface{}{}
	if len(projectNumbers) > 0 {
		query += ` WHERE project_number = ANY($1)`
		args = append(args, projectNumbers)
	}
	query += ` ORDER BY fi_doc_no`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var result []*domain.Actual
	for rows.Next() {
		var (
			a         domain.Actual
			amountStr string
			custom    []byte
		)
		if err := rows.Scan(&a.ID, &a.FIDocNo, &a.PostingDate, &a.DocDate, &a.VendorNo,
			&a.VendorDesc, &a.ProjectNumber, &a.WBSElement, &amountStr,
			&a.Currency, &a.ItemDesc, &a.DocType, &a.PONumber, &a.ProjectID,
			&custom, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		if a.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("List: amount: %w", err)
		}
		if a.CustomFields, err = unmarshalCustomFields(custom); err != nil {
			return nil, fmt.Errorf("List: custom_fields: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return result, nil
}

var _ store.ActualStore = (*ActualRepo)(nil)
