package core

// validation.go checks member CSV data at two levels:
//  1. Header validation: the four required columns must be present
//  2. Row validation: every problem on a row is collected, none short-circuit
//
// Rows are never checked against each other or against the member store here.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ColumnSpec describes one recognized CSV column.
type ColumnSpec struct {
	Name     string // Header name as shown in the template
	Required bool   // Column must exist in the header
}

// Key returns the case-insensitive lookup key for the column.
func (c ColumnSpec) Key() string {
	return strings.ToLower(c.Name)
}

// MemberColumns lists every column the importer understands, in template order.
var MemberColumns = []ColumnSpec{
	{Name: "firstName", Required: true},
	{Name: "lastName", Required: true},
	{Name: "email", Required: true},
	{Name: "phone", Required: true},
	{Name: "dateOfBirth"},
	{Name: "address"},
	{Name: "city"},
	{Name: "state"},
	{Name: "zipCode"},
	{Name: "tier"},
	{Name: "points"},
	{Name: "notes"},
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var settingsValidator = validator.New()

// ValidateHeaders checks that every required column is present.
// Returns the header index, or a KindHeader error naming the missing columns.
func ValidateHeaders(headers []string) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, col := range MemberColumns {
		if !col.Required {
			continue
		}
		if _, ok := idx[col.Key()]; !ok {
			missing = append(missing, col.Name)
		}
	}

	if len(missing) > 0 {
		return nil, newImportError(KindHeader, nil, "Missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// ValidateRow returns every validation failure for row, in field order.
func ValidateRow(row ImportRow) []string {
	var errs []string

	if strings.TrimSpace(row.FirstName) == "" {
		errs = append(errs, msgFirstNameRequired)
	}
	if strings.TrimSpace(row.LastName) == "" {
		errs = append(errs, msgLastNameRequired)
	}

	email := strings.TrimSpace(row.Email)
	switch {
	case email == "":
		errs = append(errs, msgEmailRequired)
	case !IsValidEmail(email):
		errs = append(errs, msgEmailInvalid)
	}

	if strings.TrimSpace(row.Phone) == "" {
		errs = append(errs, msgPhoneRequired)
	}

	return errs
}

// IsValidEmail reports whether s looks like local-part@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Validate checks the settings before they are used for a session.
func (s ImportSettings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid import settings: %w", err)
	}
	return nil
}
