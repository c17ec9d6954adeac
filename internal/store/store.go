// Package store defines the repository interfaces the import and
// variance pipelines persist through, plus the sentinel errors every
// implementation maps its backend-specific failures onto.
package store

import (
	"context"
	"errors"

	"github.com/tracelight/ppm-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an insert violates a unique
	// constraint. Callers treat it as "someone else got there first",
	// not as a failure: the linker re-fetches, the importer counts a
	// duplicate.
	ErrConflict = errors.New("store: unique constraint violation")
)

// ProjectStore persists durable project identities.
type ProjectStore interface {
	// GetByNumber returns the project with the given project-number
	// string, or ErrNotFound.
	GetByNumber(ctx context.Context, number string) (*domain.Project, error)

	// Create inserts a new project. Returns ErrConflict if a project
	// with the same number already exists.
	Create(ctx context.Context, p *domain.Project) error
}

// CommitmentStore persists purchase order lines.
type CommitmentStore interface {
	// Exists reports whether a commitment with the natural key
	// (poNumber, poLineNr) is already persisted.
	Exists(ctx context.Context, poNumber string, poLineNr int) (bool, error)

	// Insert persists a new commitment. Returns ErrConflict on a
	// natural-key collision.
	Insert(ctx context.Context, c *domain.Commitment) error

	// List returns commitments, optionally restricted to the given
	// project numbers (no restriction when empty), ordered by
	// (po_number, po_line_nr).
	List(ctx context.Context, projectNumbers ...string) ([]*domain.Commitment, error)
}

// ActualStore persists financial document lines.
type ActualStore interface {
	// Exists reports whether an actual with the given financial
	// document number is already persisted.
	Exists(ctx context.Context, fiDocNo string) (bool, error)

	// Insert persists a new actual. Returns ErrConflict on a
	// natural-key collision.
	Insert(ctx context.Context, a *domain.Actual) error

	// List returns actuals, optionally restricted to the given
	// project numbers, ordered by fi_doc_no.
	List(ctx context.Context, projectNumbers ...string) ([]*domain.Actual, error)
}

// VarianceStore persists derived variance aggregates.
type VarianceStore interface {
	// Replace overwrites the stored aggregates for every
	// (project_number, wbs_element) group present in variances and
	// inserts the new rows; groups not present are left untouched.
	Replace(ctx context.Context, variances []*domain.FinancialVariance) error

	// List returns stored variances, optionally restricted to the
	// given project numbers, ordered by (project_number, wbs_element).
	List(ctx context.Context, projectNumbers ...string) ([]*domain.FinancialVariance, error)
}

// ImportLogFilter narrows an audit log listing.
type ImportLogFilter struct {
	Type   domain.EntityKind
	UserID string
	Limit  int
	Offset int
}

// ImportLogStore persists import audit entries. Entries are
// append-only from the pipeline's perspective: only the owning import
// updates its own entry, once, at completion.
type ImportLogStore interface {
	Create(ctx context.Context, l *domain.ImportLog) error

	// Update stores the terminal counts and status for the entry.
	Update(ctx context.Context, l *domain.ImportLog) error

	Get(ctx context.Context, id string) (*domain.ImportLog, error)

	// List returns entries newest first.
	List(ctx context.Context, filter ImportLogFilter) ([]*domain.ImportLog, error)
}
