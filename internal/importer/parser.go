package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/tracelight/ppm-backend/internal/domain"
)

// ErrUnsupportedFormat is returned before any row is read when the
// file extension is not one of the accepted formats.
var ErrUnsupportedFormat = errors.New("unsupported file format: accepted formats are .csv, .json")

// Semicolon-delimited exports are the norm for the ERP systems these
// files come from.
const csvDelimiter = ';'

// RawRow is one parsed input row in a format-agnostic shape: a
// mapping from column or field name to its raw string value. Num is
// the 1-based data row number in the original file, kept so that
// errors reported later still point at the right line.
type RawRow struct {
	Num    int
	Fields map[string]string
}

// Parse converts an uploaded file into raw rows plus per-row parse
// errors. The format is chosen by file extension only, never by
// content sniffing; an unrecognized extension fails fast with
// ErrUnsupportedFormat. Malformed rows are reported and skipped,
// parsing always continues with the next row.
func Parse(data []byte, filename string) ([]RawRow, []domain.RowError, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, nil, ErrUnsupportedFormat
	}
}

// parseCSV reads a semicolon-delimited file. UTF-8 is attempted
// first; files that are not valid UTF-8 are decoded as ISO 8859-1
// instead of aborting. Quoted fields may contain the delimiter.
func parseCSV(data []byte) ([]RawRow, []domain.RowError, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parseCSV: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = csvDelimiter
	// Column-count mismatches are handled per row below.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("parseCSV: empty file, no header row")
		}
		return nil, nil, fmt.Errorf("parseCSV: reading header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	var (
		rows      []RawRow
		rowErrors []domain.RowError
		rowNum    int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if err != nil {
			rowErrors = append(rowErrors, domain.RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("malformed CSV row: %v", err),
			})
			continue
		}

		if len(record) != len(header) {
			rowErrors = append(rowErrors, domain.RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d", len(record), len(header)),
			})
			continue
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			fields[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, RawRow{Num: rowNum, Fields: fields})
	}

	return rows, rowErrors, nil
}

// parseJSON reads a JSON array of flat objects. Numbers are decoded
// as json.Number and rendered back to strings so that the same
// logical dataset parses identically from CSV and JSON.
func parseJSON(data []byte) ([]RawRow, []domain.RowError, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var elements []json.RawMessage
	if err := dec.Decode(&elements); err != nil {
		return nil, nil, fmt.Errorf("parseJSON: expected a JSON array of objects: %w", err)
	}

	var (
		rows      []RawRow
		rowErrors []domain.RowError
	)

	for i, raw := range elements {
		rowNum := i + 1

		elemDec := json.NewDecoder(bytes.NewReader(raw))
		elemDec.UseNumber()

		var obj map[string]interface{}
		if err := elemDec.Decode(&obj); err != nil {
			rowErrors = append(rowErrors, domain.RowError{
				Row:     rowNum,
				Message: fmt.Sprintf("malformed JSON element: %v", err),
			})
			continue
		}

		fields := make(map[string]string, len(obj))
		bad := false
		for k, v := range obj {
			s, err := stringifyJSONValue(v)
			if err != nil {
				rowErrors = append(rowErrors, domain.RowError{
					Row:     rowNum,
					Field:   k,
					Message: err.Error(),
				})
				bad = true
				break
			}
			fields[k] = s
		}
		if bad {
			continue
		}
		rows = append(rows, RawRow{Num: rowNum, Fields: fields})
	}

	return rows, rowErrors, nil
}

// stringifyJSONValue flattens a scalar JSON value to its string form.
// Nested arrays and objects are rejected: rows are flat records.
func stringifyJSONValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("nested value of type %T, want a scalar", v)
	}
}

// decodeText returns data as UTF-8, falling back to a Latin-1
// (ISO 8859-1) decode when the bytes are not valid UTF-8. Latin-1
// decoding cannot fail, so the whole file is never rejected for
// encoding reasons.
func decodeText(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("latin-1 decode: %w", err)
	}
	return decoded, nil
}
