package core

import (
	"context"
	"time"
)

// Visit records a session opening a poll.
type Visit struct {
	ID        string
	SessionID string
	PollID    string
	VisitedAt time.Time
}

// Vote records a submitted ballot.
type Vote struct {
	ID          string
	SessionID   string
	PollID      string
	Answers     map[string][]string
	SubmittedAt time.Time
}

// HistoryStore persists what a session has seen and submitted.
type HistoryStore interface {
	RecordVisit(ctx context.Context, sessionID, pollID string) (*Visit, error)
	ListVisits(ctx context.Context, sessionID string, limit int) ([]*Visit, error)
	RecordVote(ctx context.Context, vote *Vote) error
	ListVotes(ctx context.Context, sessionID string, limit int) ([]*Vote, error)
	HasVoted(ctx context.Context, sessionID, pollID string) (bool, error)
	Close() error
}
