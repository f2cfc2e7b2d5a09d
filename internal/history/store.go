// Package history persists the polls a session has visited and the votes
// it has cast.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver (pure Go)

	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotOpen reports use of a closed store.
var ErrNotOpen = errors.New("history: database not opened")

// Store implements core.HistoryStore over SQLite or PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect string
}

var _ core.HistoryStore = (*Store)(nil)

// Open connects to the history database and runs pending migrations. For
// sqlite the dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if dsn == ":memory:" {
			// One connection, or every pooled connection gets its own
			// empty database.
			db, err = sql.Open("sqlite", ":memory:")
			if err == nil {
				db.SetMaxOpenConns(1)
			}
		} else {
			db, err = sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	s := New(db, driver)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema is expected to be migrated.
func New(db *sql.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordVisit records that a session opened a poll.
func (s *Store) RecordVisit(ctx context.Context, sessionID, pollID string) (*core.Visit, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	v := &core.Visit{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		PollID:    pollID,
		VisitedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO visits (id, session_id, poll_id, visited_at) VALUES (?, ?, ?, ?)`),
		v.ID, v.SessionID, v.PollID, v.VisitedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}
	return v, nil
}

// ListVisits returns the latest visits of a session, newest first. A
// limit of zero or less returns every visit.
func (s *Store) ListVisits(ctx context.Context, sessionID string, limit int) ([]*core.Visit, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	query := `SELECT id, session_id, poll_id, visited_at FROM visits WHERE session_id = ? ORDER BY visited_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []*core.Visit
	for rows.Next() {
		v := &core.Visit{}
		if err := rows.Scan(&v.ID, &v.SessionID, &v.PollID, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// RecordVote stores a vote. The ID and submission time are filled in when
// missing. A session votes at most once per poll.
func (s *Store) RecordVote(ctx context.Context, vote *core.Vote) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}
	if vote.SubmittedAt.IsZero() {
		vote.SubmittedAt = time.Now().UTC()
	}
	answers, err := json.Marshal(vote.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO votes (id, session_id, poll_id, answers, submitted_at) VALUES (?, ?, ?, ?, ?)`),
		vote.ID, vote.SessionID, vote.PollID, string(answers), vote.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// ListVotes returns the latest votes of a session, newest first.
func (s *Store) ListVotes(ctx context.Context, sessionID string, limit int) ([]*core.Vote, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	query := `SELECT id, session_id, poll_id, answers, submitted_at FROM votes WHERE session_id = ? ORDER BY submitted_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*core.Vote
	for rows.Next() {
		v := &core.Vote{}
		var answers string
		if err := rows.Scan(&v.ID, &v.SessionID, &v.PollID, &answers, &v.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &v.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of vote %s: %w", v.ID, err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// HasVoted reports whether a session has voted on a poll.
func (s *Store) HasVoted(ctx context.Context, sessionID, pollID string) (bool, error) {
	if s.db == nil {
		return false, ErrNotOpen
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM votes WHERE session_id = ? AND poll_id = ?`),
		sessionID, pollID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return n > 0, nil
}
