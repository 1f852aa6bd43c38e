package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/memberimport/internal/core"
)

var (
	_ core.MemberCreator = (*Memory)(nil)
	_ core.HistoryStore  = (*Memory)(nil)
)

// Memory is an in-process store. Emails are unique case-insensitively,
// matching the Postgres index.
type Memory struct {
	mu      sync.Mutex
	members map[string]core.NewMember // lower-cased email -> member
	runs    []core.ImportRun
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{members: make(map[string]core.NewMember)}
}

// CreateMember stores m unless its email is already taken.
func (s *Memory) CreateMember(ctx context.Context, m core.NewMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := strings.ToLower(strings.TrimSpace(m.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[key]; exists {
		return fmt.Errorf("insert member: %w", core.ErrDuplicateEmail)
	}
	s.members[key] = m
	return nil
}

// Members returns every stored member ordered by email.
func (s *Memory) Members() []core.NewMember {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.NewMember, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out
}

// RecordImportRun appends run to the history. Run IDs are unique, as the
// Postgres primary key enforces.
func (s *Memory) RecordImportRun(_ context.Context, run core.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == run.ID {
			return fmt.Errorf("insert import run: duplicate run id %s", run.ID)
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// ListImportRuns returns up to limit runs, most recently finished first.
func (s *Memory) ListImportRuns(_ context.Context, limit int) ([]core.ImportRun, error) {
	s.mu.Lock()
	runs := append([]core.ImportRun(nil), s.runs...)
	s.mu.Unlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
