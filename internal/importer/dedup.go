package importer

import (
	"context"
	"fmt"

	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// DuplicateDetector classifies records as new or duplicate against
// the persisted set using each entity's natural key. Checks run one
// record at a time, after the previous record of the batch has been
// persisted, so two identical rows inside one upload are caught too.
type DuplicateDetector struct {
	commitments store.CommitmentStore
	actuals     store.ActualStore
}

// NewDuplicateDetector creates a detector over the given stores.
func NewDuplicateDetector(commitments store.CommitmentStore, actuals store.ActualStore) *DuplicateDetector {
	return &DuplicateDetector{commitments: commitments, actuals: actuals}
}

// IsDuplicateCommitment checks the (po_number, po_line_nr) natural key.
func (d *DuplicateDetector) IsDuplicateCommitment(ctx context.Context, c *domain.Commitment) (bool, error) {
	exists, err := d.commitments.Exists(ctx, c.PONumber, c.POLineNr)
	if err != nil {
		return false, fmt.Errorf("IsDuplicateCommitment: %w", err)
	}
	return exists, nil
}

// IsDuplicateActual checks the fi_doc_no natural key.
func (d *DuplicateDetector) IsDuplicateActual(ctx context.Context, a *domain.Actual) (bool, error) {
	exists, err := d.actuals.Exists(ctx, a.FIDocNo)
	if err != nil {
		return false, fmt.Errorf("IsDuplicateActual: %w", err)
	}
	return exists, nil
}
