package core

// intake.go reads an uploaded member file into memory.
//
// Files are small (capped at the configured maximum, 10MB by default) so the
// whole file is read at once rather than streamed. Before parsing:
//
//   - A UTF-8 BOM (0xEF 0xBB 0xBF), common in Excel exports, is dropped
//   - Invalid UTF-8 sequences are replaced with U+FFFD

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxFileSize is the default upload cap (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadImportFile reads the whole file from r and returns it as text.
// Returns a KindFile error when the file exceeds maxSize bytes.
func ReadImportFile(r io.Reader, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	// One byte past the cap tells an exact fit apart from an oversized file.
	data, err := io.ReadAll(io.LimitReader(br, maxSize+1))
	if err != nil {
		return "", newImportError(KindFile, err, "read file: %v", err)
	}
	if int64(len(data)) > maxSize {
		return "", newImportError(KindFile, nil, "file too large: exceeds %dMB limit", maxSize/(1024*1024))
	}

	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// ReadAndParse reads r and parses it with settings in one step.
func ReadAndParse(r io.Reader, maxSize int64, settings ImportSettings) ([]ImportRow, error) {
	content, err := ReadImportFile(r, maxSize)
	if err != nil {
		return nil, err
	}
	rows, err := ParseMembers(content, settings)
	if err != nil {
		return nil, fmt.Errorf("parse members: %w", err)
	}
	return rows, nil
}
