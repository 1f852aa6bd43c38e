package core

import (
	"context"
	"sync"
	"time"
)

// session is one import session: settings, parsed rows, and at most one
// run at a time. All fields after mu are guarded by it.
type session struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	settings   ImportSettings
	fileName   string
	rows       []ImportRow
	progress   Progress
	result     *ImportResult
	err        error
	running    bool
	runID      string // ID of the current or most recent run
	cancel     context.CancelFunc
	done       chan struct{} // nil until a run starts, closed when it ends
	listeners  []chan Progress
	startedAt  time.Time
	finishedAt time.Time
	touchedAt  time.Time
	ipAddress  string
	userAgent  string
}

// SessionSnapshot is a read-only copy of a session's state.
type SessionSnapshot struct {
	ID        string         `json:"sessionId"`
	Settings  ImportSettings `json:"settings"`
	FileName  string         `json:"fileName,omitempty"`
	Rows      []ImportRow    `json:"rows"`
	TotalRows int            `json:"totalRows"`
	ValidRows int            `json:"validRows"`
	Progress  Progress       `json:"progress"`
	Percent   int            `json:"percent"`
	Running   bool           `json:"running"`
	Result    *ImportResult  `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func newSession(id string, settings ImportSettings, now time.Time) *session {
	return &session{
		id:        id,
		createdAt: now,
		touchedAt: now,
		settings:  settings,
		progress:  Progress{SessionID: id, Phase: PhaseStarting},
	}
}

func (s *session) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:        s.id,
		Settings:  s.settings,
		FileName:  s.fileName,
		Rows:      append([]ImportRow(nil), s.rows...),
		TotalRows: len(s.rows),
		ValidRows: CountValid(s.rows),
		Progress:  s.progress,
		Percent:   s.progress.Percent(),
		Running:   s.running,
		Result:    s.result,
	}
	if s.err != nil {
		snap.Error = MapError(s.err).Message
	}
	return snap
}

// subscribe registers a listener and immediately sends the current progress.
// If no run is active the channel is closed after that first value.
func (s *session) subscribe() <-chan Progress {
	ch := make(chan Progress, 16)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.progress
	if !s.running {
		close(ch)
		return ch
	}
	s.listeners = append(s.listeners, ch)
	return ch
}

// publish stores p and fans it out. Slow listeners miss intermediate updates.
func (s *session) publish(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.SessionID = s.id
	s.progress = p
	for _, ch := range s.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// closeListenersLocked closes every listener. Caller holds mu.
func (s *session) closeListenersLocked() {
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

// idleSince returns when the session last changed state, or false if a run is active.
func (s *session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return time.Time{}, false
	}
	return s.touchedAt, true
}
