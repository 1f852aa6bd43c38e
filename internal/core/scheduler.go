package core

// scheduler.go runs background maintenance for the import service.
//
// Sessions live in memory. The sweeper removes ones that have sat idle past
// the retention window so abandoned uploads do not accumulate. Sessions with
// a running import are never swept.

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often idle sessions are checked when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// StartSessionSweeper periodically removes idle sessions until ctx is cancelled.
// It blocks, so callers run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.logger.Info("session sweeper started",
		"interval", interval.String(),
		"retention", s.cfg.SessionRetention.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.SweepSessions(); removed > 0 {
				s.logger.Info("swept idle import sessions",
					"removed", removed,
					"remaining", s.SessionCount(),
				)
			}
		}
	}
}
