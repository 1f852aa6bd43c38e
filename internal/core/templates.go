package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TemplateFileName is the suggested download name for the import template.
const TemplateFileName = "member_import_template.csv"

// templateRows are the example members shipped in the template.
// Values must not contain commas: the importer splits on every comma.
var templateRows = [][]string{
	{"John", "Smith", "john.smith@example.com", "555-0101", "1985-04-12", "123 Main St", "Springfield", "IL", "62701", "silver", "500", "Prefers email contact"},
	{"Maria", "Garcia", "maria.garcia@example.com", "555-0102", "1990-09-23", "456 Oak Ave", "Austin", "TX", "78701", "gold", "1200", "Referred by John Smith"},
}

// TemplateHeader returns the full header row in template order.
func TemplateHeader() []string {
	header := make([]string, len(MemberColumns))
	for i, col := range MemberColumns {
		header[i] = col.Name
	}
	return header
}

// TemplateCSV returns the static import template: the full header row
// followed by two complete example members.
func TemplateCSV() string {
	var b strings.Builder
	b.WriteString(strings.Join(TemplateHeader(), ","))
	b.WriteByte('\n')
	for _, row := range templateRows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

var rowErrorPattern = regexp.MustCompile(`^Row (\d+): (.*)$`)

// ErrorsCSV renders the failed rows of a result as a "row,error" CSV for download.
func ErrorsCSV(result *ImportResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"row", "error"}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, e := range result.Errors {
		record := []string{"", e}
		if m := rowErrorPattern.FindStringSubmatch(e); m != nil {
			if _, err := strconv.Atoi(m[1]); err == nil {
				record = []string{m[1], m[2]}
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}
