// Package store persists members and import runs.
//
// Postgres is the production backend. Memory backs dry runs and tests and
// enforces the same case-insensitive email uniqueness.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// emailConstraint is the unique index guarding member emails.
const emailConstraint = "members_email_key"

// DBTX is the subset of pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ core.MemberCreator = (*Postgres)(nil)
	_ core.HistoryStore  = (*Postgres)(nil)
)

// Postgres stores members and import runs in PostgreSQL.
type Postgres struct {
	db DBTX
}

// NewPostgres wraps a pool or connection.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const insertMemberSQL = `
INSERT INTO members (
    id, first_name, last_name, email, phone, date_of_birth,
    address, city, state, zip_code, tier, points, notes,
    card_number, status, join_date, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// CreateMember inserts one member. A taken email yields core.ErrDuplicateEmail.
func (p *Postgres) CreateMember(ctx context.Context, m core.NewMember) error {
	_, err := p.db.Exec(ctx, insertMemberSQL,
		m.ID, m.FirstName, m.LastName, m.Email, m.Phone, optionalText(m.DateOfBirth),
		optionalText(m.Address), optionalText(m.City), optionalText(m.State), optionalText(m.ZipCode),
		string(m.Tier), m.Points, optionalText(m.Notes),
		m.CardNumber, m.Status, pgtype.Date{Time: joinDate(m.JoinDate), Valid: true}, m.CreatedBy,
	)
	if err != nil {
		return translateError(err)
	}
	return nil
}

const insertRunSQL = `
INSERT INTO import_runs (
    id, session_id, file_name, status, total, successful, failed, skipped,
    errors, ip_address, user_agent, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// RecordImportRun stores the summary of a finished import.
func (p *Postgres) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := p.db.Exec(ctx, insertRunSQL,
		run.ID, run.SessionID, run.FileName, string(run.Status),
		run.Total, run.Successful, run.Failed, run.Skipped,
		errs, parseIP(run.IPAddress), optionalText(run.UserAgent),
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

const listRunsSQL = `
SELECT id, session_id, file_name, status, total, successful, failed, skipped,
       errors, ip_address, user_agent, started_at, finished_at
FROM import_runs
ORDER BY finished_at DESC
LIMIT $1`

// ListImportRuns returns the most recent runs, newest first.
func (p *Postgres) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := p.db.Query(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanImportRun)
	if err != nil {
		return nil, fmt.Errorf("scan import runs: %w", err)
	}
	return runs, nil
}

func scanImportRun(row pgx.CollectableRow) (core.ImportRun, error) {
	var (
		id         pgtype.UUID
		sessionID  pgtype.UUID
		status     string
		ipAddress  *netip.Addr
		userAgent  pgtype.Text
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
		run        core.ImportRun
	)

	err := row.Scan(
		&id, &sessionID, &run.FileName, &status,
		&run.Total, &run.Successful, &run.Failed, &run.Skipped,
		&run.Errors, &ipAddress, &userAgent, &startedAt, &finishedAt,
	)
	if err != nil {
		return core.ImportRun{}, err
	}

	run.ID = uuidString(id)
	run.SessionID = uuidString(sessionID)
	run.Status = core.ImportPhase(status)
	if ipAddress != nil {
		run.IPAddress = ipAddress.String()
	}
	run.UserAgent = userAgent.String
	run.StartedAt = startedAt.Time
	run.FinishedAt = finishedAt.Time
	return run, nil
}

// translateError maps driver errors onto core sentinels.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailConstraint {
		return fmt.Errorf("insert member: %w", core.ErrDuplicateEmail)
	}
	return fmt.Errorf("insert member: %w", err)
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// parseIP returns nil for empty or unparseable addresses so the column stays NULL.
func parseIP(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	v, err := u.Value()
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// joinDate normalizes a timestamp to the calendar day stored in join_date.
func joinDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
