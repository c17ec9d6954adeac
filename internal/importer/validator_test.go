package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func commitmentFields() map[string]string {
	return map[string]string{
		"po_number":      "PO-1001",
		"po_line_nr":     "1",
		"vendor_no":      "V-77",
		"vendor_desc":    "Acme Industrial",
		"project_number": "4711",
		"wbs_element":    "WBS-01",
		"net_amount":     "100.00",
		"tax_amount":     "19.00",
		"total_amount":   "119.00",
		"currency":       "EUR",
		"status":         "open",
	}
}

func actualFields() map[string]string {
	return map[string]string{
		"fi_doc_no":      "5100001",
		"posting_date":   "2026-03-15",
		"vendor_no":      "V-77",
		"vendor_desc":    "Acme Industrial",
		"project_number": "4711",
		"wbs_element":    "WBS-01",
		"amount":         "119.00",
		"currency":       "EUR",
		"item_desc":      "consulting services",
		"doc_type":       "RE",
	}
}

func TestValidateCommitment(t *testing.T) {
	c, errs := ValidateCommitment(RawRow{Num: 1, Fields: commitmentFields()})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if c.PONumber != "PO-1001" || c.POLineNr != 1 {
		t.Errorf("natural key = (%s, %d), want (PO-1001, 1)", c.PONumber, c.POLineNr)
	}
	if !c.TotalAmount.Equal(decimal.RequireFromString("119.00")) {
		t.Errorf("total_amount = %s, want 119.00", c.TotalAmount)
	}
	if c.DeliveryDate != nil {
		t.Errorf("delivery_date should be nil when absent, got %v", c.DeliveryDate)
	}
	if len(c.CustomFields) != 0 {
		t.Errorf("expected no custom fields, got %v", c.CustomFields)
	}
}

func TestValidateCommitmentCollectsAllErrors(t *testing.T) {
	fields := commitmentFields()
	delete(fields, "po_number")
	fields["po_line_nr"] = "abc"
	fields["net_amount"] = "not-a-number"

	c, errs := ValidateCommitment(RawRow{Num: 7, Fields: fields})
	if c != nil {
		t.Fatal("expected rejected row, got a commitment")
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}

	byField := make(map[string]string)
	for _, e := range errs {
		if e.Row != 7 {
			t.Errorf("error row = %d, want 7", e.Row)
		}
		byField[e.Field] = e.Message
	}
	if byField["po_number"] != "required field missing" {
		t.Errorf("po_number message = %q", byField["po_number"])
	}
	if byField["po_line_nr"] != "must be numeric" {
		t.Errorf("po_line_nr message = %q", byField["po_line_nr"])
	}
	if byField["net_amount"] != "must be numeric" {
		t.Errorf("net_amount message = %q", byField["net_amount"])
	}
}

func TestValidateCommitmentCommaDecimals(t *testing.T) {
	fields := commitmentFields()
	fields["net_amount"] = "200,50"
	fields["tax_amount"] = "38,10"
	fields["total_amount"] = "238,60"

	c, errs := ValidateCommitment(RawRow{Num: 1, Fields: fields})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !c.TotalAmount.Equal(decimal.RequireFromString("238.60")) {
		t.Errorf("total_amount = %s, want 238.60", c.TotalAmount)
	}
}

func TestValidateCommitmentDeliveryDate(t *testing.T) {
	fields := commitmentFields()
	fields["delivery_date"] = "2026-04-01"

	c, errs := ValidateCommitment(RawRow{Num: 1, Fields: fields})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if c.DeliveryDate == nil || !c.DeliveryDate.Equal(want) {
		t.Errorf("delivery_date = %v, want %v", c.DeliveryDate, want)
	}
}

func TestValidateCommitmentExtraColumns(t *testing.T) {
	fields := commitmentFields()
	fields["pers_no"] = "EMP001"
	fields["cost_center"] = "CC-9"

	c, errs := ValidateCommitment(RawRow{Num: 1, Fields: fields})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if c.CustomFields["pers_no"] != "EMP001" || c.CustomFields["cost_center"] != "CC-9" {
		t.Errorf("custom fields = %v", c.CustomFields)
	}
}

func TestValidateActual(t *testing.T) {
	a, errs := ValidateActual(RawRow{Num: 1, Fields: actualFields()})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if a.FIDocNo != "5100001" {
		t.Errorf("fi_doc_no = %q", a.FIDocNo)
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !a.PostingDate.Equal(want) {
		t.Errorf("posting_date = %v, want %v", a.PostingDate, want)
	}
	if a.PONumber != "" {
		t.Errorf("po_number should be empty when absent, got %q", a.PONumber)
	}
}

func TestValidateActualDateFormats(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"iso date", "2026-03-15", false},
		{"german date", "15.03.2026", true},
		{"slash date", "2026/03/15", true},
		{"datetime", "2026-03-15T00:00:00Z", true},
		{"missing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := actualFields()
			fields["posting_date"] = tt.value

			_, errs := ValidateActual(RawRow{Num: 1, Fields: fields})
			if tt.wantErr && len(errs) == 0 {
				t.Errorf("posting_date %q: expected an error", tt.value)
			}
			if !tt.wantErr && len(errs) != 0 {
				t.Errorf("posting_date %q: unexpected errors %v", tt.value, errs)
			}
		})
	}
}

func TestValidateActualOptionalPONumber(t *testing.T) {
	fields := actualFields()
	fields["po_number"] = "PO-1001"

	a, errs := ValidateActual(RawRow{Num: 1, Fields: fields})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if a.PONumber != "PO-1001" {
		t.Errorf("po_number = %q, want PO-1001", a.PONumber)
	}
	if _, ok := a.CustomFields["po_number"]; ok {
		t.Error("po_number must not leak into custom fields")
	}
}

func TestValidateActualNegativeAmount(t *testing.T) {
	fields := actualFields()
	fields["amount"] = "-250.00"

	a, errs := ValidateActual(RawRow{Num: 1, Fields: fields})
	if len(errs) != 0 {
		t.Fatalf("credit memos must validate, got errors: %v", errs)
	}
	if !a.Amount.Equal(decimal.RequireFromString("-250.00")) {
		t.Errorf("amount = %s, want -250.00", a.Amount)
	}
}
