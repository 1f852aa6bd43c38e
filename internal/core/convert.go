package core

import (
	"strconv"
	"strings"
)

// HeaderIndex maps lower-cased column names to their position in a line.
// When a name repeats, the last occurrence wins.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from raw header cells.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}
	return idx
}

// Value returns the cleaned cell for column, or "" when the column is absent
// from the header or the line is too short to reach it.
func (h HeaderIndex) Value(cells []string, column string) string {
	pos, ok := h[column]
	if !ok || pos >= len(cells) {
		return ""
	}
	return cells[pos]
}

// CleanCell trims whitespace and strips one leading and one trailing double
// quote if present.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}

// SplitLine splits a line on every comma and cleans each cell.
// Quoted fields containing commas are not supported.
func SplitLine(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = CleanCell(p)
	}
	return parts
}

// ParsePoints parses a non-negative integer point balance.
func ParsePoints(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// nonBlankLines splits content into lines, dropping whitespace-only ones.
// Trailing carriage returns from CRLF files are removed.
func nonBlankLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
