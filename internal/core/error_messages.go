package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Codes are grouped by category:
//
//	FILE001-FILE099  file intake (size, encoding, too few lines)
//	VAL001-VAL099    header and row validation
//	IMP001-IMP099    import execution
//	DB001-DB099      member store
//	UPL001-UPL099    session lifecycle (cancel, busy, expired, timeouts)
//	RATE001          request throttling
//	ERR000           fallback
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File intake
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the member list into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "must contain a header row",
		msg: UserMessage{
			Message: msgTooFewLines,
			Action:  "Download the template and add at least one member",
			Code:    "FILE005",
		},
	},

	// Validation
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Include firstName, lastName, email and phone columns",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid import settings",
		msg: UserMessage{
			Message: "Import settings are invalid",
			Action:  "Choose a known default tier and non-negative default points",
			Code:    "VAL007",
		},
	},

	// Import execution
	{
		pattern: "no valid members",
		msg: UserMessage{
			Message: msgNoValidMembers,
			Action:  "Fix the row errors shown in the preview and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "duplicate email",
		msg: UserMessage{
			Message: msgDuplicateEmail,
			Action:  "Remove members that already exist from the file",
			Code:    "IMP002",
		},
	},

	// Member store
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate members",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Session lifecycle
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: msgImportCancelled,
			Action:  "Start a new import when ready",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please start a new import",
			Code:    "UPL003",
		},
	},
	{
		pattern: "import already in progress",
		msg: UserMessage{
			Message: "An import is already running in this session",
			Action:  "Wait for it to finish or cancel it first",
			Code:    "UPL006",
		},
	},
	{
		pattern: "import has not been started",
		msg: UserMessage{
			Message: "This import has not been started",
			Action:  "Upload a file and start the import first",
			Code:    "UPL007",
		},
	},
	{
		pattern: "no import is running",
		msg: UserMessage{
			Message: "No import is running in this session",
			Action:  "Refresh to see the latest result",
			Code:    "UPL008",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Header errors keep their own text since it names the missing columns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ie *ImportError
	if errors.As(err, &ie) && ie.Kind == KindHeader {
		return UserMessage{
			Message: ie.Message,
			Action:  "Include firstName, lastName, email and phone columns",
			Code:    "VAL004",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
