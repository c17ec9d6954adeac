package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tracelight/ppm-backend/internal/domain"
)

// Validation error messages. Kept as constants so the API response,
// the audit log and the tests agree on the exact wording.
const (
	msgRequired   = "required field missing"
	msgNumeric    = "must be numeric"
	msgDateFormat = "expected YYYY-MM-DD"
)

const dateLayout = "2006-01-02"

// Column sets per entity kind. Anything not listed here is preserved
// verbatim in CustomFields.
var (
	commitmentRequired = []string{
		"po_number", "po_line_nr", "vendor_no", "vendor_desc",
		"project_number", "wbs_element", "net_amount", "tax_amount",
		"total_amount", "currency", "status",
	}
	commitmentOptional = []string{"delivery_date"}

	actualRequired = []string{
		"fi_doc_no", "posting_date", "vendor_no", "vendor_desc",
		"project_number", "wbs_element", "amount", "currency",
		"item_desc", "doc_type",
	}
	actualOptional = []string{"doc_date", "po_number"}
)

// ValidateCommitment converts a raw row into a typed commitment.
// Every problem with the row is reported, not just the first one; a
// non-empty error slice means the row is rejected as a whole.
func ValidateCommitment(row RawRow) (*domain.Commitment, []domain.RowError) {
	v := rowValidator{row: row}

	c := &domain.Commitment{
		PONumber:      v.requireString("po_number"),
		VendorNo:      v.requireString("vendor_no"),
		VendorDesc:    v.requireString("vendor_desc"),
		ProjectNumber: v.requireString("project_number"),
		WBSElement:    v.requireString("wbs_element"),
		NetAmount:     v.requireAmount("net_amount"),
		TaxAmount:     v.requireAmount("tax_amount"),
		TotalAmount:   v.requireAmount("total_amount"),
		Currency:      v.requireString("currency"),
		Status:        v.requireString("status"),
	}
	c.POLineNr = v.requireInt("po_line_nr")
	c.DeliveryDate = v.optionalDate("delivery_date")
	c.CustomFields = v.extraFields(commitmentRequired, commitmentOptional)

	if len(v.errors) > 0 {
		return nil, v.errors
	}
	return c, nil
}

// ValidateActual converts a raw row into a typed actual, collecting
// all field errors for the row in one pass.
func ValidateActual(row RawRow) (*domain.Actual, []domain.RowError) {
	v := rowValidator{row: row}

	a := &domain.Actual{
		FIDocNo:       v.requireString("fi_doc_no"),
		VendorNo:      v.requireString("vendor_no"),
		VendorDesc:    v.requireString("vendor_desc"),
		ProjectNumber: v.requireString("project_number"),
		WBSElement:    v.requireString("wbs_element"),
		Amount:        v.requireAmount("amount"),
		Currency:      v.requireString("currency"),
		ItemDesc:      v.requireString("item_desc"),
		DocType:       v.requireString("doc_type"),
		PONumber:      row.Fields["po_number"],
	}
	a.PostingDate = v.requireDate("posting_date")
	a.DocDate = v.optionalDate("doc_date")
	a.CustomFields = v.extraFields(actualRequired, actualOptional)

	if len(v.errors) > 0 {
		return nil, v.errors
	}
	return a, nil
}

// rowValidator accumulates field errors while pulling typed values
// out of one raw row. Validation of one row never looks at any other
// row.
type rowValidator struct {
	row    RawRow
	errors []domain.RowError
}

func (v *rowValidator) addError(field, value, message string) {
	v.errors = append(v.errors, domain.RowError{
		Row:     v.row.Num,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *rowValidator) requireString(field string) string {
	val := strings.TrimSpace(v.row.Fields[field])
	if val == "" {
		v.addError(field, "", msgRequired)
	}
	return val
}

func (v *rowValidator) requireInt(field string) int {
	val := strings.TrimSpace(v.row.Fields[field])
	if val == "" {
		v.addError(field, "", msgRequired)
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		v.addError(field, val, msgNumeric)
		return 0
	}
	return n
}

// requireAmount parses a decimal amount, accepting both comma and dot
// as the decimal separator. Anything not reducible to a decimal
// number is rejected.
func (v *rowValidator) requireAmount(field string) decimal.Decimal {
	val := strings.TrimSpace(v.row.Fields[field])
	if val == "" {
		v.addError(field, "", msgRequired)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.Replace(val, ",", ".", 1))
	if err != nil {
		v.addError(field, val, msgNumeric)
		return decimal.Zero
	}
	return d
}

// requireDate accepts exactly YYYY-MM-DD. No other layouts are
// silently accepted.
func (v *rowValidator) requireDate(field string) time.Time {
	val := strings.TrimSpace(v.row.Fields[field])
	if val == "" {
		v.addError(field, "", msgRequired)
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		v.addError(field, val, msgDateFormat)
		return time.Time{}
	}
	return t
}

func (v *rowValidator) optionalDate(field string) *time.Time {
	val := strings.TrimSpace(v.row.Fields[field])
	if val == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		v.addError(field, val, msgDateFormat)
		return nil
	}
	return &t
}

// extraFields collects the open extension map: every column that is
// not part of the fixed schema for the entity kind.
func (v *rowValidator) extraFields(required, optional []string) map[string]string {
	known := make(map[string]bool, len(required)+len(optional))
	for _, f := range required {
		known[f] = true
	}
	for _, f := range optional {
		known[f] = true
	}

	var extra map[string]string
	for k, val := range v.row.Fields {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = val
	}
	return extra
}
