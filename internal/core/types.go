// Package core provides the business logic for member bulk imports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tier is a loyalty membership level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tiers lists every recognized tier in ascending order.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

// ParseTier lower-cases s and returns the matching tier.
// Returns false if s is not one of the four tiers.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// ImportSettings is the session-scoped configuration of one import run.
// It is set before parsing and must not change while a run is in progress.
type ImportSettings struct {
	DefaultTier   Tier `json:"defaultTier" validate:"required,oneof=bronze silver gold platinum"`
	DefaultPoints int  `json:"defaultPoints" validate:"gte=0"`

	// The following are collected from the user but not consulted by the
	// import loop. Skipped therefore stays 0 in every result.
	SendWelcomeEmails bool `json:"sendWelcomeEmails"`
	SkipDuplicates    bool `json:"skipDuplicates"`
	UpdateExisting    bool `json:"updateExisting"`
}

// DefaultSettings returns the settings a fresh import session starts with.
func DefaultSettings() ImportSettings {
	return ImportSettings{
		DefaultTier:       TierBronze,
		DefaultPoints:     0,
		SendWelcomeEmails: true,
		SkipDuplicates:    true,
	}
}

// ImportRow is one parsed data line, a candidate member.
type ImportRow struct {
	RowNumber     int      `json:"rowNumber"` // 1-based, header is row 1
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	DateOfBirth   string   `json:"dateOfBirth"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	ZipCode       string   `json:"zipCode"`
	Tier          Tier     `json:"tier"`
	InitialPoints int      `json:"initialPoints"`
	Notes         string   `json:"notes"`
	Errors        []string `json:"errors"`
}

// IsValid reports whether the row passed validation.
func (r ImportRow) IsValid() bool {
	return len(r.Errors) == 0
}

// NewMember is what the import loop asks the backend to create.
type NewMember struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string
	Address     string
	City        string
	State       string
	ZipCode     string
	Tier        Tier
	Points      int
	Notes       string
	CardNumber  string
	Status      string
	JoinDate    time.Time
	CreatedBy   string
}

// MemberRecord is the created member as reported back to the caller.
type MemberRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Tier       Tier   `json:"tier"`
	Points     int    `json:"points"`
	CardNumber string `json:"cardNumber"`
	Status     string `json:"status"`
	JoinDate   string `json:"joinDate"` // YYYY-MM-DD
	CreatedBy  string `json:"createdBy"`
}

const (
	// MemberStatusActive is the status of every imported member.
	MemberStatusActive = "active"

	// CreatedByImport marks members that came in through the bulk importer.
	CreatedByImport = "bulk_import"
)

// MemberCreator creates a single member in the backing store.
// Implementations return ErrDuplicateEmail when the email is already taken.
type MemberCreator interface {
	CreateMember(ctx context.Context, m NewMember) error
}

// ImportResult accumulates the outcome of one import run.
// Successful, Failed and Skipped partition Total once the run is finalized.
type ImportResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Errors     []string       `json:"errors"`
	Members    []MemberRecord `json:"members,omitempty"`
	Duration   time.Duration  `json:"-"`
}

// Balanced reports whether the partition invariant holds.
func (r *ImportResult) Balanced() bool {
	return r.Successful+r.Failed+r.Skipped == r.Total
}

// Summary returns a one-line description for logs and the CLI.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("%d total, %d imported, %d failed, %d skipped",
		r.Total, r.Successful, r.Failed, r.Skipped)
}

// ImportPhase indicates the current stage of an import session.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseImporting ImportPhase = "importing"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// Progress is published after each processed row.
type Progress struct {
	SessionID string      `json:"sessionId,omitempty"`
	Phase     ImportPhase `json:"phase"`
	Processed int         `json:"processed"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Error     string      `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// ProgressFunc is called synchronously after each row.
type ProgressFunc func(Progress)
