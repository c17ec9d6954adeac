package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies which financial entity an import carries.
type EntityKind string

const (
	// KindCommitment is a planned expenditure (purchase order line).
	KindCommitment EntityKind = "commitments"
	// KindActual is a realized expenditure (posted financial document line).
	KindActual EntityKind = "actuals"
)

// Commitment represents one purchase order line. The natural key is
// (PONumber, POLineNr); duplicates on that key are skipped at import,
// never merged.
type Commitment struct {
	ID            string            `json:"id"`
	PONumber      string            `json:"po_number"`
	POLineNr      int               `json:"po_line_nr"`
	VendorNo      string            `json:"vendor_no"`
	VendorDesc    string            `json:"vendor_desc"`
	ProjectNumber string            `json:"project_number"`
	WBSElement    string            `json:"wbs_element"`
	NetAmount     decimal.Decimal   `json:"net_amount"`
	TaxAmount     decimal.Decimal   `json:"tax_amount"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	DeliveryDate  *time.Time        `json:"delivery_date,omitempty"`
	ProjectID     *string           `json:"project_id,omitempty"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Actual represents one posted financial document line. The natural
// key is FIDocNo.
type Actual struct {
	ID            string            `json:"id"`
	FIDocNo       string            `json:"fi_doc_no"`
	PostingDate   time.Time         `json:"posting_date"`
	DocDate       *time.Time        `json:"doc_date,omitempty"`
	VendorNo      string            `json:"vendor_no"`
	VendorDesc    string            `json:"vendor_desc"`
	ProjectNumber string            `json:"project_number"`
	WBSElement    string            `json:"wbs_element"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	ItemDesc      string            `json:"item_desc"`
	DocType       string            `json:"doc_type"`
	// PONumber is a soft back-reference to a commitment; not enforced
	// at the data level.
	PONumber     string            `json:"po_number,omitempty"`
	ProjectID    *string           `json:"project_id,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Project health indicators and lifecycle statuses used for
// auto-created projects.
const (
	ProjectStatusActive = "active"
	ProjectHealthGreen  = "green"
)

// Project is a durable project identity. Auto-created projects start
// active with a green health indicator.
type Project struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Health      string    `json:"health"`
	CreatedAt   time.Time `json:"created_at"`
}

// VarianceStatus classifies a (project, WBS) group relative to the
// 0.95/1.05 thresholds.
type VarianceStatus string

const (
	VarianceUnder VarianceStatus = "under"
	VarianceOn    VarianceStatus = "on"
	VarianceOver  VarianceStatus = "over"
)

// FinancialVariance is a derived aggregate keyed by
// (ProjectNumber, WBSElement). It is a materialized view over the
// commitment and actual tables and may be recomputed at any time.
type FinancialVariance struct {
	ProjectID       *string         `json:"project_id,omitempty"`
	ProjectNumber   string          `json:"project_number"`
	WBSElement      string          `json:"wbs_element"`
	TotalCommitment decimal.Decimal `json:"total_commitment"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	Variance        decimal.Decimal `json:"variance"`
	VarianceRatio   decimal.Decimal `json:"variance_ratio"`
	Status          VarianceStatus  `json:"status"`
	Currency        string          `json:"currency"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// AlertSeverity grows monotonically with the magnitude of the
// variance ratio.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is an overrun event produced by scanning variances. The
// generator has no persistence obligation; callers deliver alerts.
type Alert struct {
	ProjectNumber string          `json:"project_number"`
	WBSElement    string          `json:"wbs_element"`
	Variance      decimal.Decimal `json:"variance"`
	VarianceRatio decimal.Decimal `json:"variance_ratio"`
	Currency      string          `json:"currency"`
	Severity      AlertSeverity   `json:"severity"`
	Message       string          `json:"message"`
}
