package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the import pipeline.
type ErrorKind int

const (
	// KindFile covers unreadable, oversized or too-short files.
	KindFile ErrorKind = iota + 1
	// KindHeader is a header missing one or more required columns.
	KindHeader
	// KindNoValidRows means parsing produced nothing importable.
	KindNoValidRows
	// KindRow is a single row failing to import.
	KindRow
	// KindCancelled means the run was stopped between rows.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindHeader:
		return "header"
	case KindNoValidRows:
		return "no_valid_rows"
	case KindRow:
		return "row"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ImportError is a tagged pipeline error. Message is safe to show to users.
type ImportError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

func newImportError(kind ErrorKind, err error, format string, args ...any) *ImportError {
	return &ImportError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the ErrorKind of err, or 0 if err is not an ImportError.
func KindOf(err error) ErrorKind {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}

var (
	// ErrDuplicateEmail is returned by a MemberCreator when the email is taken.
	ErrDuplicateEmail = errors.New("duplicate email address")

	// ErrNoValidMembers is wrapped by the error returned when nothing can be imported.
	ErrNoValidMembers = errors.New("no valid members to import")

	// ErrSessionNotFound is returned for unknown or expired import sessions.
	ErrSessionNotFound = errors.New("import session not found")

	// ErrSessionBusy is returned when an operation needs an idle session.
	ErrSessionBusy = errors.New("import already in progress for this session")
)

// Fixed user-facing strings.
const (
	msgTooFewLines       = "CSV file must contain a header row and at least one data row"
	msgNoValidMembers    = "No valid members to import"
	msgDuplicateEmail    = "Duplicate email address"
	msgImportCancelled   = "Import cancelled"
	msgFirstNameRequired = "First name is required"
	msgLastNameRequired  = "Last name is required"
	msgEmailRequired     = "Email is required"
	msgEmailInvalid      = "Invalid email format"
	msgPhoneRequired     = "Phone number is required"
)

// rowFailureMessage renders a MemberCreator error for the result error list.
func rowFailureMessage(err error) string {
	if errors.Is(err, ErrDuplicateEmail) {
		return msgDuplicateEmail
	}
	return MapError(err).Message
}
