package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrImportNotStarted is returned when asking for the result of a session
	// that has not run an import yet.
	ErrImportNotStarted = errors.New("import has not been started")

	// ErrImportNotRunning is returned when cancelling an idle session.
	ErrImportNotRunning = errors.New("no import is running for this session")
)

// ServiceConfig holds the limits a Service applies to every session.
type ServiceConfig struct {
	MaxFileSize      int64         // Upload cap in bytes
	ImportTimeout    time.Duration // Upper bound on a single run
	MaxConcurrent    int           // Imports allowed to run at once
	MaxWaitTime      time.Duration // How long StartImport waits for a slot
	SessionRetention time.Duration // Idle sessions older than this are swept
}

// Service owns import sessions and runs their imports in the background.
type Service struct {
	importer *Importer
	history  HistoryStore
	limiter  *ImportLimiter
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewService creates a Service. history may be nil to skip run persistence.
func NewService(importer *Importer, history HistoryStore, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = 10 * time.Minute
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		importer: importer,
		history:  history,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// CreateSession starts an empty session with the given settings.
func (s *Service) CreateSession(settings ImportSettings) (string, error) {
	if err := settings.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = newSession(id, settings, s.now())
	s.mu.Unlock()

	s.logger.Debug("import session created", "session_id", id)
	return id, nil
}

// LoadFile reads and parses a member file into the session, replacing any
// rows from an earlier file. Fatal file and header errors leave the session
// without rows.
func (s *Service) LoadFile(ctx context.Context, sessionID, fileName string, r io.Reader) (SessionSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}

	sess.mu.Lock()
	if sess.running {
		sess.mu.Unlock()
		return SessionSnapshot{}, ErrSessionBusy
	}
	settings := sess.settings
	sess.mu.Unlock()

	rows, parseErr := ReadAndParse(r, s.cfg.MaxFileSize, settings)

	sess.mu.Lock()
	// An import may have started while the file was being read.
	if sess.running {
		sess.mu.Unlock()
		return SessionSnapshot{}, ErrSessionBusy
	}
	sess.fileName = fileName
	sess.rows = rows
	sess.result = nil
	sess.err = nil
	sess.done = nil
	sess.progress = Progress{SessionID: sessionID, Phase: PhaseStarting}
	sess.touchedAt = s.now()
	sess.mu.Unlock()

	if parseErr != nil {
		return SessionSnapshot{}, parseErr
	}

	s.logger.Info("member file parsed",
		"session_id", sessionID,
		"file", fileName,
		"rows", len(rows),
		"valid_rows", CountValid(rows),
	)
	return sess.snapshot(), nil
}

// StartImport begins importing the session's valid rows in the background.
//
// It fails immediately, without starting anything, when the session has no
// valid rows or when no import slot frees up in time. ctx only bounds the
// wait for a slot; the run itself is bounded by the configured timeout.
func (s *Service) StartImport(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.running {
		sess.mu.Unlock()
		return ErrSessionBusy
	}
	rows := sess.rows
	settings := sess.settings
	if CountValid(rows) == 0 {
		gateErr := newImportError(KindNoValidRows, ErrNoValidMembers, msgNoValidMembers)
		sess.result = &ImportResult{Errors: []string{}}
		sess.err = gateErr
		sess.progress = Progress{SessionID: sessionID, Phase: PhaseFailed, Error: gateErr.Message}
		sess.touchedAt = s.now()
		sess.mu.Unlock()
		return gateErr
	}
	sess.mu.Unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ImportTimeout)
	ip, ua := RequesterFromContext(ctx)

	sess.mu.Lock()
	if sess.running {
		sess.mu.Unlock()
		cancel()
		s.limiter.Release()
		return ErrSessionBusy
	}
	sess.running = true
	sess.runID = uuid.New().String()
	sess.cancel = cancel
	sess.done = make(chan struct{})
	sess.result = nil
	sess.err = nil
	sess.startedAt = s.now()
	sess.ipAddress = ip
	sess.userAgent = ua
	sess.progress = Progress{SessionID: sessionID, Phase: PhaseImporting, Total: CountValid(rows)}
	logger := s.logger.With("session_id", sessionID, "run_id", sess.runID, "file", sess.fileName)
	sess.mu.Unlock()

	go s.run(runCtx, logger, sess, rows, settings)
	return nil
}

// run executes one import and finalizes the session. done is closed last,
// after the run is recorded and its slot released.
func (s *Service) run(ctx context.Context, logger *slog.Logger, sess *session, rows []ImportRow, settings ImportSettings) {
	im := s.importer.withLogger(logger)

	result, err := im.Run(ctx, rows, settings, sess.publish)

	phase := PhaseComplete
	switch {
	case KindOf(err) == KindCancelled:
		phase = PhaseCancelled
	case err != nil:
		phase = PhaseFailed
	}

	finishedAt := s.now()

	sess.mu.Lock()
	sess.cancel()
	sess.running = false
	sess.result = result
	sess.err = err
	sess.finishedAt = finishedAt
	sess.touchedAt = finishedAt
	final := sess.progress
	final.Phase = phase
	if err != nil {
		final.Error = MapError(err).Message
	}
	sess.progress = final
	for _, ch := range sess.listeners {
		select {
		case ch <- final:
		default:
		}
	}
	sess.closeListenersLocked()
	run := newImportRun(sess, result, phase, finishedAt)
	done := sess.done
	sess.mu.Unlock()

	s.recordRun(logger, run)
	s.limiter.Release()
	close(done)
}

func (s *Service) recordRun(logger *slog.Logger, run ImportRun) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := s.history.RecordImportRun(ctx, run); err != nil {
		logger.Warn("failed to record import run", "error", err)
	}
}

// SubscribeProgress returns a channel of progress updates for the session.
// The current progress is delivered first; the channel closes when the run ends.
func (s *Service) SubscribeProgress(sessionID string) (<-chan Progress, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.subscribe(), nil
}

// CancelImport stops a running import before its next row.
func (s *Service) CancelImport(sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.running {
		return ErrImportNotRunning
	}
	sess.cancel()
	return nil
}

// Result returns the finalized result, waiting for a running import to end.
// The returned error is the run's own error, if any, alongside its result.
func (s *Service) Result(ctx context.Context, sessionID string) (*ImportResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	done := sess.done
	if done == nil {
		result, runErr := sess.result, sess.err
		sess.mu.Unlock()
		if result == nil {
			return nil, ErrImportNotStarted
		}
		return result, runErr
	}
	sess.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.result, sess.err
}

// Snapshot returns the current state of a session.
func (s *Service) Snapshot(sessionID string) (SessionSnapshot, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return sess.snapshot(), nil
}

// ResetSession clears rows, progress and result and applies fresh settings,
// so the next import starts with no state from the previous one.
func (s *Service) ResetSession(sessionID string, settings ImportSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.running {
		return ErrSessionBusy
	}

	sess.settings = settings
	sess.fileName = ""
	sess.rows = nil
	sess.result = nil
	sess.err = nil
	sess.done = nil
	sess.cancel = nil
	sess.startedAt = time.Time{}
	sess.finishedAt = time.Time{}
	sess.progress = Progress{SessionID: sessionID, Phase: PhaseStarting}
	sess.touchedAt = s.now()
	return nil
}

// DeleteSession cancels any running import and forgets the session.
func (s *Service) DeleteSession(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.running {
		sess.cancel()
	}
	sess.mu.Unlock()
	return nil
}

// SweepSessions removes idle sessions untouched for longer than the retention.
// Returns the number removed.
func (s *Service) SweepSessions() int {
	cutoff := s.now().Add(-s.cfg.SessionRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if since, idle := sess.idleSince(); idle && since.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// SessionCount returns the number of tracked sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// History lists recent import runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ImportRun, error) {
	if s.history == nil {
		return []ImportRun{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	runs, err := s.history.ListImportRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	return runs, nil
}

// LimiterStatus reports how many imports are running.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import is running or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// MaxFileSize returns the configured upload cap.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}
