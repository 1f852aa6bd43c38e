package core

import (
	"context"
	"time"
)

// ImportRun is the persisted summary of one finished import. A session that
// is reset and reloaded produces one run per import.
type ImportRun struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"sessionId"`
	FileName   string      `json:"fileName"`
	Status     ImportPhase `json:"status"`
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Errors     []string    `json:"errors,omitempty"`
	IPAddress  string      `json:"ipAddress,omitempty"`
	UserAgent  string      `json:"userAgent,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
}

// HistoryStore persists import run summaries.
type HistoryStore interface {
	RecordImportRun(ctx context.Context, run ImportRun) error
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)
}

// DefaultHistoryLimit caps history listings when the caller gives no limit.
const DefaultHistoryLimit = 50

// historyTimeout bounds the write of a run summary after the import context is gone.
const historyTimeout = 5 * time.Second

func newImportRun(sess *session, result *ImportResult, phase ImportPhase, finishedAt time.Time) ImportRun {
	run := ImportRun{
		ID:         sess.runID,
		SessionID:  sess.id,
		FileName:   sess.fileName,
		Status:     phase,
		IPAddress:  sess.ipAddress,
		UserAgent:  sess.userAgent,
		StartedAt:  sess.startedAt,
		FinishedAt: finishedAt,
	}
	if result != nil {
		run.Total = result.Total
		run.Successful = result.Successful
		run.Failed = result.Failed
		run.Skipped = result.Skipped
		run.Errors = result.Errors
	}
	return run
}
