package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate email maps correctly",
			err:         fmt.Errorf("create member: %w", ErrDuplicateEmail),
			wantCode:    "IMP002",
			wantMessage: "Duplicate email address",
		},
		{
			name:        "no valid members maps correctly",
			err:         newImportError(KindNoValidRows, ErrNoValidMembers, msgNoValidMembers),
			wantCode:    "IMP001",
			wantMessage: "No valid members to import",
		},
		{
			name:        "too few lines maps correctly",
			err:         newImportError(KindFile, nil, msgTooFewLines),
			wantCode:    "FILE005",
			wantMessage: msgTooFewLines,
		},
		{
			name:        "header error keeps its own text",
			err:         newImportError(KindHeader, nil, "Missing required columns: email, phone"),
			wantCode:    "VAL004",
			wantMessage: "Missing required columns: email, phone",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "busy limiter maps correctly",
			err:         ErrTooManyImports,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other imports",
		},
		{
			name:        "unknown session maps correctly",
			err:         ErrSessionNotFound,
			wantCode:    "UPL003",
			wantMessage: "Import session not found",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("FILE TOO LARGE: 12MB"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum size limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrDuplicateEmail)

	expected := "Duplicate email address (Code: IMP002). Remove members that already exist from the file"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrDuplicateEmail, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("parse: %w", newImportError(KindHeader, nil, "Missing required columns: phone"))
	if got := KindOf(wrapped); got != KindHeader {
		t.Errorf("KindOf() = %v, want %v", got, KindHeader)
	}
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Errorf("KindOf(plain) = %v, want 0", got)
	}
}
