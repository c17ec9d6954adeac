package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// CommitmentRepo implements store.CommitmentStore on PostgreSQL.
type CommitmentRepo struct {
	pool *pgxpool.Pool
}

// NewCommitmentRepo creates a commitment repository.
func NewCommitmentRepo(pool *pgxpool.Pool) *CommitmentRepo {
	return &CommitmentRepo{pool: pool}
}

// Exists implements store.CommitmentStore.
func (r *CommitmentRepo) Exists(ctx context.Context, poNumber string, poLineNr int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM commitments WHERE po_number = $1 AND po_line_nr = $2
		)
	`, poNumber, poLineNr).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

// Insert implements store.CommitmentStore. A natural-key collision
// comes back as store.ErrConflict.
func (r *CommitmentRepo) Insert(ctx context.Context, c *domain.Commitment) error {
	custom, err := marshalCustomFields(c.CustomFields)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO commitments (
			id, po_number, po_line_nr, vendor_no, vendor_desc,
			project_number, wbs_element, net_amount, tax_amount,
			total_amount, currency, status, delivery_date, project_id,
			custom_fields, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric,
			$10::numeric, $11, $12, $13, $14, $15, $16
		)
	`, c.ID, c.PONumber, c.POLineNr, c.VendorNo, c.VendorDesc,
		c.ProjectNumber, c.WBSElement, c.NetAmount.String(), c.TaxAmount.String(),
		c.TotalAmount.String(), c.Currency, c.Status, c.DeliveryDate, c.ProjectID,
		custom, c.CreatedAt)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrConflict) {
			return store.ErrConflict
		}
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// List implements store.CommitmentStore.
func (r *CommitmentRepo) List(ctx context.Context, projectNumbers ...string) ([]*domain.Commitment, error) {
	query := `
		SELECT id, po_number, po_line_nr, vendor_no, vendor_desc,
		       project_number, wbs_element, net_amount::text,
		       tax_amount::text, total_amount::text, currency, status,
		       delivery_date, project_id, custom_fields, created_at
		FROM commitments`
	args := []interface{}{}
	if len(projectNumbers) > 0 {
		query += ` WHERE project_number = ANY($1)`
		args = append(args, projectNumbers)
	}
	query += ` ORDER BY po_number, po_line_nr`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var result []*domain.Commitment
	for rows.Next() {
		var (
			c                      domain.Commitment
			netStr, taxStr, totStr string
			custom                 []byte
		)
		if err := rows.Scan(&c.ID, &c.PONumber, &c.POLineNr, &c.VendorNo, &c.VendorDesc,
			&c.ProjectNumber, &c.WBSElement, &netStr, &taxStr, &totStr,
			&c.Currency, &c.Status, &c.DeliveryDate, &c.ProjectID, &custom, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		if c.NetAmount, err = decimal.NewFromString(netStr); err != nil {
			return nil, fmt.Errorf("List: net_amount: %w", err)
		}
		if c.TaxAmount, err = decimal.NewFromString(taxStr); err != nil {
			return nil, fmt.Errorf("List: tax_amount: %w", err)
		}
		if c.TotalAmount, err = decimal.NewFromString(totStr); err != nil {
			return nil, fmt.Errorf("List: total_amount: %w", err)
		}
		if c.CustomFields, err = unmarshalCustomFields(custom); err != nil {
			return nil, fmt.Errorf("List: custom_fields: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return result, nil
}

func marshalCustomFields(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

func unmarshalCustomFields(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

var _ store.CommitmentStore = (*CommitmentRepo)(nil)
