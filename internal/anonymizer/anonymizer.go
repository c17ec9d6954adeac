// Package anonymizer replaces sensitive fields of financial records
// with stable synthetic identifiers. All mappings live in a
// caller-owned Session so that "same raw value, same synthetic value"
// holds exactly for the lifetime of one import and never leaks across
// unrelated imports.
package anonymizer

import (
	"fmt"

	"github.com/tracelight/ppm-backend/internal/domain"
)

// Fixed replacements for free-text fields. These are deliberately
// lossy: the original content is discarded, not encoded.
const (
	vendorDescLiteral = "Vendor Description"
	itemDescLiteral   = "Item Description"
)

// Columns inspected on raw rows.
const (
	colVendorNo      = "vendor_no"
	colVendorDesc    = "vendor_desc"
	colItemDesc      = "item_desc"
	colProjectNumber = "project_number"
	colPersonnelNo   = "pers_no"
)

// Session holds the synthetic-value mappings for one import
// invocation. It is not safe for concurrent use; each import owns its
// own session. Mappings are injective: distinct raw values never
// collide on a synthetic value.
type Session struct {
	vendors   map[string]string
	projects  map[string]string
	personnel map[string]string
}

// NewSession creates an empty anonymization session.
func NewSession() *Session {
	return &Session{
		vendors:   make(map[string]string),
		projects:  make(map[string]string),
		personnel: make(map[string]string),
	}
}

// VendorLabel returns the synthetic vendor label for raw, assigning
// "Vendor A", "Vendor B", ... in first-seen order. Past 26 distinct
// vendors the sequence continues "Vendor AA", "Vendor AB", ... and
// never wraps.
func (s *Session) VendorLabel(raw string) string {
	if label, ok := s.vendors[raw]; ok {
		return label
	}
	label := "Vendor " + letterSequence(len(s.vendors))
	s.vendors[raw] = label
	return label
}

// ProjectNumber returns the synthetic project number for raw:
// "P0001", "P0002", ... in first-seen order.
func (s *Session) ProjectNumber(raw string) string {
	if num, ok := s.projects[raw]; ok {
		return num
	}
	num := fmt.Sprintf("P%04d", len(s.projects)+1)
	s.projects[raw] = num
	return num
}

// EmployeeID returns the synthetic personnel id for raw:
// "EMP001", "EMP002", ...
func (s *Session) EmployeeID(raw string) string {
	if id, ok := s.personnel[raw]; ok {
		return id
	}
	id := fmt.Sprintf("EMP%03d", len(s.personnel)+1)
	s.personnel[raw] = id
	return id
}

// AnonymizeRow returns a copy of row with the sensitive fields for
// the given entity kind replaced. Dates, amounts, currency and
// status columns pass through unchanged. Missing columns are simply
// skipped, so the transform is total over any row shape.
func (s *Session) AnonymizeRow(row map[string]string, kind domain.EntityKind) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}

	if v, ok := out[colVendorNo]; ok && v != "" {
		out[colVendorNo] = s.VendorLabel(v)
	}
	if _, ok := out[colVendorDesc]; ok {
		out[colVendorDesc] = vendorDescLiteral
	}
	if v, ok := out[colProjectNumber]; ok && v != "" {
		out[colProjectNumber] = s.ProjectNumber(v)
	}
	if v, ok := out[colPersonnelNo]; ok && v != "" {
		out[colPersonnelNo] = s.EmployeeID(v)
	}

	if kind == domain.KindActual {
		if _, ok := out[colItemDesc]; ok {
			out[colItemDesc] = itemDescLiteral
		}
	}

	return out
}

// letterSequence converts a zero-based index into the spreadsheet
// column style letter sequence: 0 -> "A", 25 -> "Z", 26 -> "AA",
// 27 -> "AB", 701 -> "ZZ", 702 -> "AAA".
func letterSequence(n int) string {
	var buf [8]byte
	i := len(buf)
	n++
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}
