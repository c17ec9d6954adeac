// Package importer implements the financial data import pipeline:
// parse -> anonymize -> validate -> link project -> duplicate check ->
// persist -> audit log. Rows are processed sequentially in file
// order; a bad row never aborts the batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tracelight/ppm-backend/internal/anonymizer"
	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/store"
)

// Request describes one import invocation. The caller's identity and
// import capability have already been verified upstream.
type Request struct {
	Filename  string
	Data      []byte
	UserID    string
	Anonymize bool
}

// Result is the summary returned for every import, successful or
// not. TotalRecords == SuccessCount + DuplicateCount + ErrorCount
// always holds.
type Result struct {
	Success        bool                `json:"success"`
	ImportID       string              `json:"import_id"`
	Status         domain.ImportStatus `json:"status"`
	TotalRecords   int                 `json:"total_records"`
	SuccessCount   int                 `json:"success_count"`
	DuplicateCount int                 `json:"duplicate_count"`
	ErrorCount     int                 `json:"error_count"`
	Errors         []domain.RowError   `json:"errors,omitempty"`
	Message        string              `json:"message"`
}

// Importer orchestrates the import pipeline over the persisted
// stores. One Importer serves many imports; all per-run state
// (anonymization session, project cache, counters) is local to each
// Import call.
type Importer struct {
	projects    store.ProjectStore
	commitments store.CommitmentStore
	actuals     store.ActualStore
	logs        store.ImportLogStore
	log         zerolog.Logger
}

// New creates an import orchestrator.
func New(projects store.ProjectStore, commitments store.CommitmentStore, actuals store.ActualStore, logs store.ImportLogStore, log zerolog.Logger) *Importer {
	return &Importer{
		projects:    projects,
		commitments: commitments,
		actuals:     actuals,
		logs:        logs,
		log:         log,
	}
}

// Import runs one import invocation for the given entity kind.
//
// A request-level problem (unsupported format) is returned as an
// error before any state is touched. A structural failure after the
// audit entry exists (unreadable file, store outage) leaves the entry
// in a failed terminal state. Row-level problems accumulate into the
// result and never abort the batch.
func (imp *Importer) Import(ctx context.Context, kind domain.EntityKind, req Request) (*Result, error) {
	// Fail fast on the declared format, before any row is read and
	// before the audit entry is created.
	rows, rowErrors, parseErr := Parse(req.Data, req.Filename)
	if errors.Is(parseErr, ErrUnsupportedFormat) {
		return nil, parseErr
	}

	entry := &domain.ImportLog{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Type:      kind,
		Status:    domain.ImportProcessing,
		StartedAt: time.Now().UTC(),
	}
	if err := imp.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("Import: create audit entry: %w", err)
	}

	if parseErr != nil {
		// Structurally unreadable file: nothing was processed.
		res := imp.finish(ctx, entry, 0, 0, 0, []domain.RowError{{Message: parseErr.Error()}}, domain.ImportFailed, parseErr.Error())
		return res, nil
	}

	run := &importRun{
		importer: imp,
		kind:     kind,
		session:  anonymizer.NewSession(),
		linker:   NewProjectLinker(imp.projects),
		detector: NewDuplicateDetector(imp.commitments, imp.actuals),
		errors:   rowErrors,
	}
	run.errorRows = len(rowErrors)
	run.total = len(rows) + len(rowErrors)

	anonymize := req.Anonymize

	for _, row := range rows {
		if anonymize {
			row.Fields = run.session.AnonymizeRow(row.Fields, kind)
		}

		if err := run.processRow(ctx, row); err != nil {
			// System failure mid-batch: already-persisted rows stay,
			// the remainder is accounted as errored so that the
			// terminal entry still balances.
			imp.log.Error().Err(err).
				Str("import_id", entry.ID).
				Int("row", row.Num).
				Msg("Import aborted by system error")

			remaining := run.total - run.success - run.duplicates - run.errorRows
			run.errorRows += remaining
			run.errors = append(run.errors, domain.RowError{
				Row:     row.Num,
				Message: fmt.Sprintf("import aborted: %v", err),
			})
			res := imp.finish(ctx, entry, run.total, run.success, run.duplicates, run.errors, domain.ImportFailed, "import aborted by system error")
			return res, err
		}
	}

	status := domain.ImportCompleted
	if run.errorRows > 0 || run.duplicates > 0 {
		status = domain.ImportPartial
	}

	message := fmt.Sprintf("imported %d of %d records (%d duplicates, %d errors)",
		run.success, run.total, run.duplicates, run.errorRows)

	res := imp.finish(ctx, entry, run.total, run.success, run.duplicates, run.errors, status, message)

	imp.log.Info().
		Str("import_id", entry.ID).
		Str("type", string(kind)).
		Str("user", req.UserID).
		Int("total", res.TotalRecords).
		Int("success", res.SuccessCount).
		Int("duplicates", res.DuplicateCount).
		Int("errors", res.ErrorCount).
		Msg("Import finished")

	return res, nil
}

// finish writes the terminal audit update exactly once and builds the
// caller-facing result from the same numbers.
func (imp *Importer) finish(ctx context.Context, entry *domain.ImportLog, total, success, duplicates int, errs []domain.RowError, status domain.ImportStatus, message string) *Result {
	now := time.Now().UTC()
	entry.Status = status
	entry.TotalRecords = total
	entry.SuccessCount = success
	entry.DuplicateCount = duplicates
	entry.ErrorCount = total - success - duplicates
	entry.Errors = errs
	entry.CompletedAt = &now

	if err := imp.logs.Update(ctx, entry); err != nil {
		// The import outcome is already decided; a failed audit
		// update is logged, not propagated.
		imp.log.Error().Err(err).Str("import_id", entry.ID).Msg("Failed to update audit entry")
	}

	return &Result{
		Success:        status != domain.ImportFailed,
		ImportID:       entry.ID,
		Status:         status,
		TotalRecords:   total,
		SuccessCount:   success,
		DuplicateCount: duplicates,
		ErrorCount:     entry.ErrorCount,
		Errors:         errs,
		Message:        message,
	}
}

// importRun is the per-invocation state threaded through row
// processing.
type importRun struct {
	importer *Importer
	kind     domain.EntityKind
	session  *anonymizer.Session
	linker   *ProjectLinker
	detector *DuplicateDetector

	total      int
	success    int
	duplicates int
	errorRows  int
	errors     []domain.RowError
}

// processRow handles one record: validate, link, duplicate-check,
// persist. Row-level problems are recorded and return nil; only
// system failures return an error.
func (r *importRun) processRow(ctx context.Context, row RawRow) error {
	switch r.kind {
	case domain.KindCommitment:
		return r.processCommitment(ctx, row)
	case domain.KindActual:
		return r.processActual(ctx, row)
	default:
		return fmt.Errorf("processRow: unknown entity kind %q", r.kind)
	}
}

func (r *importRun) processCommitment(ctx context.Context, row RawRow) error {
	c, errs := ValidateCommitment(row)
	if len(errs) > 0 {
		r.errors = append(r.errors, errs...)
		r.errorRows++
		return nil
	}

	project, err := r.linker.Resolve(ctx, c.ProjectNumber, c.WBSElement)
	if err != nil {
		return err
	}
	c.ProjectID = &project.ID

	dup, err := r.detector.IsDuplicateCommitment(ctx, c)
	if err != nil {
		return err
	}
	if dup {
		r.duplicates++
		return nil
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	if err := r.importer.commitments.Insert(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A concurrent import persisted the same natural key
			// between our check and our insert.
			r.duplicates++
			return nil
		}
		return err
	}

	r.success++
	return nil
}

func (r *importRun) processActual(ctx context.Context, row RawRow) error {
	a, errs := ValidateActual(row)
	if len(errs) > 0 {
		r.errors = append(r.errors, errs...)
		r.errorRows++
		return nil
	}

	project, err := r.linker.Resolve(ctx, a.ProjectNumber, a.WBSElement)
	if err != nil {
		return err
	}
	a.ProjectID = &project.ID

	dup, err := r.detector.IsDuplicateActual(ctx, a)
	if err != nil {
		return err
	}
	if dup {
		r.duplicates++
		return nil
	}

	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	if err := r.importer.actuals.Insert(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			r.duplicates++
			return nil
		}
		return err
	}

	r.success++
	return nil
}
