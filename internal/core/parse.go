package core

// ParseMembers turns the text of a member CSV into candidate rows.
//
// The first non-blank line is the header. Every following non-blank line
// becomes one ImportRow, validated and numbered by its position among the
// non-blank lines (header is row 1). Tier and points fall back to the
// session defaults when absent or unrecognized.
func ParseMembers(content string, settings ImportSettings) ([]ImportRow, error) {
	lines := nonBlankLines(content)
	if len(lines) < 2 {
		return nil, newImportError(KindFile, nil, msgTooFewLines)
	}

	idx, err := ValidateHeaders(SplitLine(lines[0]))
	if err != nil {
		return nil, err
	}

	rows := make([]ImportRow, 0, len(lines)-1)
	for i, line := range lines[1:] {
		row := buildRow(SplitLine(line), idx, settings)
		row.RowNumber = i + 2
		row.Errors = ValidateRow(row)
		rows = append(rows, row)
	}
	return rows, nil
}

// buildRow maps cells onto an ImportRow without validating it.
func buildRow(cells []string, idx HeaderIndex, settings ImportSettings) ImportRow {
	row := ImportRow{
		FirstName:     idx.Value(cells, "firstname"),
		LastName:      idx.Value(cells, "lastname"),
		Email:         idx.Value(cells, "email"),
		Phone:         idx.Value(cells, "phone"),
		DateOfBirth:   idx.Value(cells, "dateofbirth"),
		Address:       idx.Value(cells, "address"),
		City:          idx.Value(cells, "city"),
		State:         idx.Value(cells, "state"),
		ZipCode:       idx.Value(cells, "zipcode"),
		Notes:         idx.Value(cells, "notes"),
		Tier:          settings.DefaultTier,
		InitialPoints: settings.DefaultPoints,
	}

	if t, ok := ParseTier(idx.Value(cells, "tier")); ok {
		row.Tier = t
	}
	if p, ok := ParsePoints(idx.Value(cells, "points")); ok {
		row.InitialPoints = p
	}

	return row
}

// ValidRows returns the rows eligible for import, preserving order.
func ValidRows(rows []ImportRow) []ImportRow {
	valid := make([]ImportRow, 0, len(rows))
	for _, r := range rows {
		if r.IsValid() {
			valid = append(valid, r)
		}
	}
	return valid
}

// CountValid returns how many rows passed validation.
func CountValid(rows []ImportRow) int {
	n := 0
	for _, r := range rows {
		if r.IsValid() {
			n++
		}
	}
	return n
}
