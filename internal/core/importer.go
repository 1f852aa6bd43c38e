package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Importer creates members row by row through a MemberCreator.
type Importer struct {
	creator MemberCreator
	logger  *slog.Logger

	// Overridable for tests.
	now        func() time.Time
	newID      func() string
	cardNumber func() string
}

// NewImporter returns an Importer that persists through creator.
func NewImporter(creator MemberCreator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		creator:    creator,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		cardNumber: generateCardNumber,
	}
}

// withLogger returns a copy of im that logs through logger.
func (im *Importer) withLogger(logger *slog.Logger) *Importer {
	c := *im
	c.logger = logger
	return &c
}

// Run imports every valid row in original order, one at a time.
//
// It fails before doing anything when no row is valid. A row that the
// creator rejects is recorded in the result and processing moves on.
// onProgress, if non-nil, is called after each row before the next starts.
// ctx is checked between rows; on cancellation the partial result is
// finalized over the rows attempted and returned with a KindCancelled error.
func (im *Importer) Run(ctx context.Context, rows []ImportRow, settings ImportSettings, onProgress ProgressFunc) (*ImportResult, error) {
	start := im.now()
	result := &ImportResult{Errors: []string{}}

	valid := ValidRows(rows)
	if len(valid) == 0 {
		return result, newImportError(KindNoValidRows, ErrNoValidMembers, msgNoValidMembers)
	}

	im.logger.Info("member import started",
		"valid_rows", len(valid),
		"total_rows", len(rows),
		"default_tier", settings.DefaultTier,
	)

	for i, row := range valid {
		if err := ctx.Err(); err != nil {
			result.Duration = im.now().Sub(start)
			im.logger.Warn("member import cancelled",
				"processed", i,
				"remaining", len(valid)-i,
			)
			return result, newImportError(KindCancelled, err, msgImportCancelled)
		}

		result.Total++
		member := im.newMember(row)

		if err := im.creator.CreateMember(ctx, member); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", row.RowNumber, rowFailureMessage(err)))
			im.logger.Debug("member create failed", "row", row.RowNumber, "error", err)
		} else {
			result.Successful++
			result.Members = append(result.Members, toRecord(member))
		}

		if onProgress != nil {
			onProgress(Progress{
				Phase:     PhaseImporting,
				Processed: i + 1,
				Total:     len(valid),
				Succeeded: result.Successful,
				Failed:    result.Failed,
			})
		}
	}

	result.Duration = im.now().Sub(start)
	im.logger.Info("member import finished",
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (im *Importer) newMember(row ImportRow) NewMember {
	return NewMember{
		ID:          im.newID(),
		FirstName:   strings.TrimSpace(row.FirstName),
		LastName:    strings.TrimSpace(row.LastName),
		Email:       strings.TrimSpace(row.Email),
		Phone:       strings.TrimSpace(row.Phone),
		DateOfBirth: row.DateOfBirth,
		Address:     row.Address,
		City:        row.City,
		State:       row.State,
		ZipCode:     row.ZipCode,
		Tier:        row.Tier,
		Points:      row.InitialPoints,
		Notes:       row.Notes,
		CardNumber:  im.cardNumber(),
		Status:      MemberStatusActive,
		JoinDate:    im.now(),
		CreatedBy:   CreatedByImport,
	}
}

func toRecord(m NewMember) MemberRecord {
	return MemberRecord{
		ID:         m.ID,
		Name:       m.FirstName + " " + m.LastName,
		Email:      m.Email,
		Phone:      m.Phone,
		Tier:       m.Tier,
		Points:     m.Points,
		CardNumber: m.CardNumber,
		Status:     m.Status,
		JoinDate:   m.JoinDate.Format(time.DateOnly),
		CreatedBy:  m.CreatedBy,
	}
}

// generateCardNumber returns a 16 digit loyalty card number grouped by four.
func generateCardNumber() string {
	var b strings.Builder
	for i := 0; i < 4; i++ {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%04d", rand.IntN(10000))
	}
	return b.String()
}
