package domain

import "time"

// ImportStatus is the lifecycle of one import invocation:
// processing -> completed | partial | failed. The audit entry is
// created once parsing succeeds, so there is no earlier state.
type ImportStatus string

const (
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportPartial    ImportStatus = "partial"
	ImportFailed     ImportStatus = "failed"
)

// RowError describes one problem with one row of an import. Row-level
// errors accumulate; they never abort the batch.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"error"`
}

// ImportLog is the audit entry for one import invocation. Once the
// entry reaches a terminal status,
// TotalRecords == SuccessCount + DuplicateCount + ErrorCount.
type ImportLog struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Type           EntityKind   `json:"type"`
	Status         ImportStatus `json:"status"`
	TotalRecords   int          `json:"total_records"`
	SuccessCount   int          `json:"success_count"`
	DuplicateCount int          `json:"duplicate_count"`
	ErrorCount     int          `json:"error_count"`
	Errors         []RowError   `json:"errors,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// Terminal reports whether the log has reached a terminal status.
func (l *ImportLog) Terminal() bool {
	switch l.Status {
	case ImportCompleted, ImportPartial, ImportFailed:
		return true
	}
	return false
}
