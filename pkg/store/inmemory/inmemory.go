// Package inmemory implements the context store on plain maps. It
// backs tests and ephemeral runs where durability is not wanted.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/scoring"
	"github.com/loopworkco/rewind/pkg/store"
)

// Store keeps context records in memory. It counts queries and can be
// forced to fail, which makes it useful for exercising callers.
type Store struct {
	mu         sync.Mutex
	records    map[int64]*record.ContextRecord
	byHash     map[string]int64
	nextID     int64
	queryCalls int
	failWith   error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[int64]*record.ContextRecord),
		byHash:  make(map[string]int64),
		nextID:  1,
	}
}

// FailWith forces every subsequent operation to return err. Passing
// nil restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// QueryCalls returns how many times QueryCandidates has been invoked.
func (s *Store) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

func (s *Store) Insert(_ context.Context, rec *record.ContextRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}

	if rec.ContentHash == "" {
		rec.ContentHash = record.ContentHash(rec.Prompt, rec.Payload)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = record.OutcomeUnknown
	}

	id, exists := s.byHash[rec.ContentHash]
	if !exists {
		id = s.nextID
		s.nextID++
		s.byHash[rec.ContentHash] = id
	}
	stored := *rec
	stored.ID = id
	stored.Files = append([]string(nil), rec.Files...)
	stored.Metadata = cloneMeta(rec.Metadata)
	s.records[id] = &stored
	rec.ID = id
	return id, nil
}

func (s *Store) QueryCandidates(_ context.Context, terms []string, since time.Time, limit int) ([]store.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCalls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	if limit <= 0 {
		limit = 10
	}

	var matches []store.Candidate
	for _, rec := range s.records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		if len(terms) > 0 && !matchesAny(rec, terms) {
			continue
		}
		cp := *rec
		cp.Files = append([]string(nil), rec.Files...)
		cp.Metadata = cloneMeta(rec.Metadata)
		matches = append(matches, store.Candidate{ContextRecord: cp})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) UpdateOutcome(_ context.Context, id int64, outcome record.Outcome, metadata map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	rec.Outcome = outcome
	if len(metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			rec.Metadata[k] = v
		}
	}
	return true, nil
}

func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}

	var deleted int64
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			delete(s.byHash, rec.ContentHash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) AggregateSession(_ context.Context, sessionID string) (*store.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	summary := &store.SessionSummary{SessionID: sessionID}
	var totalWeight float64
	for _, rec := range s.records {
		if rec.SessionID != sessionID {
			continue
		}
		summary.Count++
		switch rec.Outcome {
		case record.OutcomeSuccess:
			summary.SuccessCount++
		case record.OutcomeFailure:
			summary.FailureCount++
		}
		totalWeight += scoring.OutcomeWeight(rec.Outcome)
		if summary.FirstAt.IsZero() || rec.CreatedAt.Before(summary.FirstAt) {
			summary.FirstAt = rec.CreatedAt
		}
		if rec.CreatedAt.After(summary.LastAt) {
			summary.LastAt = rec.CreatedAt
		}
	}
	if summary.Count == 0 {
		return nil, &store.NotFoundError{Kind: "session", Key: sessionID}
	}
	summary.AvgRelevance = totalWeight / float64(summary.Count)
	return summary, nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	return int64(len(s.records)), nil
}

func (s *Store) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	var n int64
	for _, rec := range s.records {
		if !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error {
	return nil
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func matchesAny(rec *record.ContextRecord, terms []string) bool {
	haystack := strings.ToLower(rec.Prompt + " " + rec.Payload + " " + strings.Join(rec.Files, " "))
	for _, t := range terms {
		if strings.Contains(haystack, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
