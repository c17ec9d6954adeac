package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tracelight/ppm-backend/internal/api/middleware"
	"github.com/tracelight/ppm-backend/internal/domain"
	"github.com/tracelight/ppm-backend/internal/importer"
	"github.com/tracelight/ppm-backend/internal/jobs"
	"github.com/tracelight/ppm-backend/internal/store"
)

// maxUploadBytes caps import uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// ImportsHandler handles import-related endpoints.
type ImportsHandler struct {
	importer *importer.Importer
	logs     store.ImportLogStore
	log      zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(imp *importer.Importer, logs store.ImportLogStore, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		importer: imp,
		logs:     logs,
		log:      log,
	}
}

// ImportCommitments handles POST /api/imports/commitments
func (h *ImportsHandler) ImportCommitments(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, domain.KindCommitment)
}

// ImportActuals handles POST /api/imports/actuals
func (h *ImportsHandler) ImportActuals(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, domain.KindActual)
}

func (h *ImportsHandler) runImport(w http.ResponseWriter, r *http.Request, kind domain.EntityKind) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing identity")
		return
	}
	if !identity.CanImportFinancial {
		middleware.WriteError(w, http.StatusForbidden, "Financial import capability required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	// Anonymization is on unless the caller explicitly turns it off.
	anonymize := parseBoolDefault(firstNonEmpty(r.FormValue("anonymize"), r.URL.Query().Get("anonymize")), true)

	result, err := h.importer.Import(ctx, kind, importer.Request{
		Filename:  header.Filename,
		Data:      data,
		UserID:    identity.UserID,
		Anonymize: anonymize,
	})
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		// A system error mid-batch still produced a terminal audit
		// entry; return its summary with a 500.
		if result != nil {
			middleware.WriteJSON(w, http.StatusInternalServerError, result)
			return
		}
		h.log.Error().Err(err).Str("type", string(kind)).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// History handles GET /api/imports/history
func (h *ImportsHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := store.ImportLogFilter{
		Type:   domain.EntityKind(r.URL.Query().Get("type")),
		UserID: r.URL.Query().Get("user"),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}

	entries, err := h.logs.List(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list import history")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": entries,
		"count":   len(entries),
	})
}

// Template column sets, in file order. These match what the validator
// requires and accepts.
var templateColumns = map[domain.EntityKind][]string{
	domain.KindCommitment: {
		"po_number", "po_line_nr", "vendor_no", "vendor_desc",
		"project_number", "wbs_element", "net_amount", "tax_amount",
		"total_amount", "currency", "status", "delivery_date",
	},
	domain.KindActual: {
		"fi_doc_no", "posting_date", "vendor_no", "vendor_desc",
		"project_number", "wbs_element", "amount", "currency",
		"item_desc", "doc_type", "doc_date", "po_number",
	},
}

// Template handles GET /api/imports/templates/:type
func (h *ImportsHandler) Template(w http.ResponseWriter, r *http.Request, kind string) {
	columns, ok := templateColumns[domain.EntityKind(kind)]
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Unknown template type")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+kind+"_template.csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(strings.Join(columns, ";") + "\n"))
}

// VariancesHandler handles variance-related endpoints.
type VariancesHandler struct {
	variances store.VarianceStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewVariancesHandler creates a new variances handler.
func NewVariancesHandler(variances store.VarianceStore, publisher jobs.Publisher, log zerolog.Logger) *VariancesHandler {
	return &VariancesHandler{
		variances: variances,
		publisher: publisher,
		log:       log,
	}
}

// Recompute handles POST /api/variances/recompute. The recompute runs
// asynchronously; the response carries the job ID to poll.
func (h *VariancesHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	var req struct {
		ProjectNumbers []string `json:"project_numbers"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	job := &jobs.RecomputeVarianceJob{
		ProjectNumbers: req.ProjectNumbers,
		RequestedBy:    identity.UserID,
	}
	if err := h.publisher.PublishRecompute(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to publish recompute job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to queue recompute")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// List handles GET /api/variances
func (h *VariancesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var projectNumbers []string
	if p := r.URL.Query().Get("project"); p != "" {
		projectNumbers = strings.Split(p, ",")
	}

	variances, err := h.variances.List(ctx, projectNumbers...)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list variances")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list variances")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"variances": variances,
		"count":     len(variances),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := jobs.JobFilter{
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/:jobId
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

func parseBoolDefault(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
