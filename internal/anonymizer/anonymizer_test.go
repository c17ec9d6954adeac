package anonymizer

import (
	"fmt"
	"testing"

	"github.com/tracelight/ppm-backend/internal/domain"
)

func TestVendorLabelConsistency(t *testing.T) {
	s := NewSession()

	// Scenario: two rows sharing "Acme Corp" both become "Vendor A",
	// a third distinct vendor becomes "Vendor B".
	if got := s.VendorLabel("Acme Corp"); got != "Vendor A" {
		t.Errorf("first vendor = %q, want %q", got, "Vendor A")
	}
	if got := s.VendorLabel("Acme Corp"); got != "Vendor A" {
		t.Errorf("repeated vendor = %q, want %q", got, "Vendor A")
	}
	if got := s.VendorLabel("Globex"); got != "Vendor B" {
		t.Errorf("second vendor = %q, want %q", got, "Vendor B")
	}
}

func TestVendorLabelBeyondAlphabet(t *testing.T) {
	s := NewSession()

	seen := make(map[string]string)
	for i := 0; i < 60; i++ {
		raw := fmt.Sprintf("vendor-%d", i)
		label := s.VendorLabel(raw)
		for other, otherLabel := range seen {
			if otherLabel == label {
				t.Fatalf("label %q assigned to both %q and %q", label, other, raw)
			}
		}
		seen[raw] = label
	}

	if got := seen["vendor-25"]; got != "Vendor Z" {
		t.Errorf("26th vendor = %q, want %q", got, "Vendor Z")
	}
	if got := seen["vendor-26"]; got != "Vendor AA" {
		t.Errorf("27th vendor = %q, want %q", got, "Vendor AA")
	}
	if got := seen["vendor-27"]; got != "Vendor AB" {
		t.Errorf("28th vendor = %q, want %q", got, "Vendor AB")
	}
}

func TestLetterSequence(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}

	for _, tt := range tests {
		if got := letterSequence(tt.n); got != tt.want {
			t.Errorf("letterSequence(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestProjectAndEmployeeSequences(t *testing.T) {
	s := NewSession()

	if got := s.ProjectNumber("PRJ-001"); got != "P0001" {
		t.Errorf("first project = %q, want P0001", got)
	}
	if got := s.ProjectNumber("PRJ-002"); got != "P0002" {
		t.Errorf("second project = %q, want P0002", got)
	}
	if got := s.ProjectNumber("PRJ-001"); got != "P0001" {
		t.Errorf("repeated project = %q, want P0001", got)
	}

	if got := s.EmployeeID("10042"); got != "EMP001" {
		t.Errorf("first employee = %q, want EMP001", got)
	}
	if got := s.EmployeeID("10099"); got != "EMP002" {
		t.Errorf("second employee = %q, want EMP002", got)
	}
}

func TestAnonymizeRowFieldPreservation(t *testing.T) {
	s := NewSession()

	row := map[string]string{
		"vendor_no":      "ACME-GmbH",
		"vendor_desc":    "Acme Industrial Supplies",
		"project_number": "PRJ-777",
		"item_desc":      "5x hydraulic pump",
		"pers_no":        "10042",
		"posting_date":   "2025-03-14",
		"amount":         "1234.56",
		"currency":       "EUR",
		"doc_type":       "RE",
	}

	got := s.AnonymizeRow(row, domain.KindActual)

	// Pass-through fields must be untouched.
	for _, col := range []string{"posting_date", "amount", "currency", "doc_type"} {
		if got[col] != row[col] {
			t.Errorf("column %q changed: %q -> %q", col, row[col], got[col])
		}
	}

	if got["vendor_no"] != "Vendor A" {
		t.Errorf("vendor_no = %q, want Vendor A", got["vendor_no"])
	}
	if got["vendor_desc"] != "Vendor Description" {
		t.Errorf("vendor_desc = %q, want fixed literal", got["vendor_desc"])
	}
	if got["item_desc"] != "Item Description" {
		t.Errorf("item_desc = %q, want fixed literal", got["item_desc"])
	}
	if got["project_number"] != "P0001" {
		t.Errorf("project_number = %q, want P0001", got["project_number"])
	}
	if got["pers_no"] != "EMP001" {
		t.Errorf("pers_no = %q, want EMP001", got["pers_no"])
	}

	// Input row must not be mutated.
	if row["vendor_no"] != "ACME-GmbH" {
		t.Errorf("input row mutated: vendor_no = %q", row["vendor_no"])
	}
}

func TestAnonymizeRowCommitmentKeepsItemDesc(t *testing.T) {
	s := NewSession()

	row := map[string]string{"item_desc": "free text", "vendor_no": "A1"}
	got := s.AnonymizeRow(row, domain.KindCommitment)

	// item_desc is an actuals column; commitments leave it alone.
	if got["item_desc"] != "free text" {
		t.Errorf("item_desc = %q, want unchanged", got["item_desc"])
	}
}
