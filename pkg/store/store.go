// Package store defines the persistence contract for context records.
// Concrete drivers live in the sqlite, postgres, and inmemory
// subpackages.
package store

import (
	"context"
	"time"

	"github.com/loopworkco/rewind/pkg/record"
)

// Candidate is a record returned from a search pass. Rank carries the
// backend's own relevance signal (FTS rank or similar) and is used only
// to order candidates before scoring; it never contributes to the final
// score.
type Candidate struct {
	record.ContextRecord
	Rank float64
}

// SessionSummary aggregates the stored activity for a single session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Count        int       `json:"count"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	AvgRelevance float64   `json:"avg_relevance"`
	FirstAt      time.Time `json:"first_at"`
	LastAt       time.Time `json:"last_at"`
}

// Store is the persistence interface the engine operates against.
type Store interface {
	// Insert persists a record, replacing any existing record with the
	// same content hash. It returns the stored record's ID.
	Insert(ctx context.Context, rec *record.ContextRecord) (int64, error)

	// QueryCandidates searches for records matching any of the given
	// terms, created at or after since, returning at most limit rows
	// ordered by backend rank.
	QueryCandidates(ctx context.Context, terms []string, since time.Time, limit int) ([]Candidate, error)

	// UpdateOutcome sets the outcome (and optionally merges metadata)
	// on the record with the given ID. It reports whether a row was
	// updated.
	UpdateOutcome(ctx context.Context, id int64, outcome record.Outcome, metadata map[string]string) (bool, error)

	// DeleteOlderThan removes records created before cutoff and returns
	// the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// AggregateSession summarizes all records stored under a session.
	AggregateSession(ctx context.Context, sessionID string) (*SessionSummary, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// CountSince returns the number of records created at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// Close releases the underlying resources.
	Close() error
}
