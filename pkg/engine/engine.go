// Package engine orchestrates context storage and retrieval. It wires
// the store behind a circuit breaker, memoizes retrievals, scores
// candidates for relevance, and emits an event for every stored
// record.
//
// Writes surface their errors; reads are best effort. A retrieval that
// times out, trips the breaker, or fails outright returns an empty
// result so the caller's primary workflow is never blocked on
// historical context.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/breaker"
	"github.com/loopworkco/rewind/pkg/cache"
	"github.com/loopworkco/rewind/pkg/eventstream"
	"github.com/loopworkco/rewind/pkg/eventstream/nop"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/scoring"
	"github.com/loopworkco/rewind/pkg/store"
)

const (
	defaultRelevanceThreshold = 0.3
	defaultRetrieveTimeout    = 500 * time.Millisecond
	defaultRetentionDays      = 30
	defaultRecentWindow       = 24 * time.Hour
	defaultRetrieveLimit      = 5

	// candidateMultiplier oversamples the store query so the threshold
	// filter still leaves enough records to fill the limit.
	candidateMultiplier = 4
	minCandidates       = 20
)

// Config tunes engine behavior.
type Config struct {
	// RelevanceThreshold drops scored records below it entirely.
	RelevanceThreshold float64

	// RetrieveTimeout is the wall-clock budget for a retrieval. On
	// timeout the retrieval returns empty.
	RetrieveTimeout time.Duration

	// RetentionDays bounds both the cleanup cutoff and how far back
	// retrieval searches.
	RetentionDays int

	// RecentWindow defines which records count as recent in health
	// reports.
	RecentWindow time.Duration

	// Weights are the relevance scoring weights. Zero value means the
	// defaults.
	Weights scoring.Weights

	Breaker breaker.Config
	Cache   cache.Config
}

// Options carries the engine's collaborators.
type Options struct {
	// Store is required.
	Store store.Store

	// Publisher receives an event per stored record. Nil disables
	// publishing.
	Publisher eventstream.Publisher

	Logger *zap.Logger
	Config Config
}

// HealthReport is a point-in-time view of the engine's moving parts.
type HealthReport struct {
	CircuitState  string `json:"circuit_state"`
	TotalRecords  int64  `json:"total_records"`
	RecentRecords int64  `json:"recent_records"`
	CacheSize     int    `json:"cache_size"`
}

// Engine coordinates the store, breaker, cache, scorer, and publisher.
type Engine struct {
	store     store.Store
	breaker   *breaker.Breaker
	cache     *cache.Cache
	publisher eventstream.Publisher
	logger    *zap.Logger
	config    Config

	now func() time.Time
}

// New creates an engine, applying defaults for zero config fields.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a store")
	}

	cfg := opts.Config
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = defaultRelevanceThreshold
	}
	if cfg.RetrieveTimeout <= 0 {
		cfg.RetrieveTimeout = defaultRetrieveTimeout
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}
	if cfg.Weights == (scoring.Weights{}) {
		cfg.Weights = scoring.DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:     opts.Store,
		breaker:   breaker.New(cfg.Breaker),
		cache:     cache.New(cfg.Cache),
		publisher: publisher,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}, nil
}

// Store validates and persists a context record through the circuit
// breaker, returning the stored record's ID. Write failures surface to
// the caller.
func (e *Engine) Store(ctx context.Context, rec *record.ContextRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	id, err := breaker.Do(e.breaker, func() (int64, error) {
		return e.store.Insert(ctx, rec)
	})
	if err != nil {
		return 0, err
	}

	// A fresh record may supersede any memoized result set.
	e.cache.Purge()

	e.publish(ctx, rec)
	return id, nil
}

// Retrieve returns up to limit records relevant to the query, ranked
// by score. It is fail-open: breaker trips, store errors, and budget
// overruns all yield an empty result rather than an error.
func (e *Engine) Retrieve(ctx context.Context, query string, fileHints []string, limit int) []record.ScoredRecord {
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	key := cache.Key(query, fileHints)
	if cached, ok := e.cache.Get(key); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached
	}

	candidates, ok := e.queryCandidates(ctx, query, limit)
	if !ok {
		return nil
	}

	now := e.now()
	scored := make([]record.ScoredRecord, 0, len(candidates))
	for i := range candidates {
		s := scoring.Score(&candidates[i].ContextRecord, query, fileHints, e.config.Weights, now)
		if s < e.config.RelevanceThreshold {
			continue
		}
		scored = append(scored, record.ScoredRecord{
			ContextRecord: candidates[i].ContextRecord,
			Score:         s,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	e.cache.Put(key, scored)
	return scored
}

// queryCandidates runs the breaker-guarded store query under the
// retrieval budget. The false return covers every fail-open path.
func (e *Engine) queryCandidates(ctx context.Context, query string, limit int) ([]store.Candidate, bool) {
	terms := scoring.Tokenize(query)
	since := e.now().AddDate(0, 0, -e.config.RetentionDays)

	fetch := limit * candidateMultiplier
	if fetch < minCandidates {
		fetch = minCandidates
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.RetrieveTimeout)
	defer cancel()

	type result struct {
		candidates []store.Candidate
		err        error
	}
	done := make(chan result, 1)
	go func() {
		candidates, err := breaker.Do(e.breaker, func() ([]store.Candidate, error) {
			return e.store.QueryCandidates(ctx, terms, since, fetch)
		})
		done <- result{candidates, err}
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("retrieval budget exceeded", zap.Duration("budget", e.config.RetrieveTimeout))
		return nil, false
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, breaker.ErrOpen) {
				e.logger.Warn("retrieval skipped, circuit open")
			} else {
				e.logger.Warn("retrieval query failed", zap.Error(res.err))
			}
			return nil, false
		}
		return res.candidates, true
	}
}

// UpdateOutcome records how a stored context worked out. It reports
// false when no record has the ID.
func (e *Engine) UpdateOutcome(ctx context.Context, id int64, outcome record.Outcome, metadata map[string]string) (bool, error) {
	if !outcome.Valid() {
		return false, record.ValidationError{Field: "outcome", Reason: "unknown outcome " + string(outcome)}
	}

	ok, err := breaker.Do(e.breaker, func() (bool, error) {
		return e.store.UpdateOutcome(ctx, id, outcome, metadata)
	})
	if err != nil {
		return false, err
	}
	if ok {
		e.cache.Purge()
	}
	return ok, nil
}

// CleanupOld deletes records older than the given number of days,
// falling back to the configured retention. Returns how many were
// removed.
func (e *Engine) CleanupOld(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = e.config.RetentionDays
	}
	cutoff := e.now().AddDate(0, 0, -olderThanDays)

	deleted, err := breaker.Do(e.breaker, func() (int64, error) {
		return e.store.DeleteOlderThan(ctx, cutoff)
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.cache.Purge()
	}
	return deleted, nil
}

// SessionSummary aggregates the stored activity for a session.
func (e *Engine) SessionSummary(ctx context.Context, sessionID string) (*store.SessionSummary, error) {
	return breaker.Do(e.breaker, func() (*store.SessionSummary, error) {
		return e.store.AggregateSession(ctx, sessionID)
	})
}

// Health reports the circuit state, record counts, and cache size.
// Counts go through the breaker like every other store read; with the
// circuit open the report still comes back, carrying the open state
// and zero counts, so health never blocks on a dead store.
func (e *Engine) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{
		CircuitState: e.breaker.State().String(),
		CacheSize:    e.cache.Len(),
	}

	total, err := breaker.Do(e.breaker, func() (int64, error) {
		return e.store.Count(ctx)
	})
	if errors.Is(err, breaker.ErrOpen) {
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	recent, err := breaker.Do(e.breaker, func() (int64, error) {
		return e.store.CountSince(ctx, e.now().Add(-e.config.RecentWindow))
	})
	if errors.Is(err, breaker.ErrOpen) {
		report.TotalRecords = total
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	report.TotalRecords = total
	report.RecentRecords = recent
	return report, nil
}

// publish emits a stored-context event. Publishing is best effort and
// never fails the write that triggered it.
func (e *Engine) publish(ctx context.Context, rec *record.ContextRecord) {
	event := &eventstream.ContextStoredEvent{
		RecordID:    rec.ID,
		SessionID:   rec.SessionID,
		ContentHash: rec.ContentHash,
		Outcome:     rec.Outcome,
		Compressed:  rec.Compressed,
		FileCount:   len(rec.Files),
		EmittedAt:   e.now().UTC(),
	}
	if err := e.publisher.PublishContextStored(ctx, event); err != nil {
		e.logger.Warn("context event publish failed", zap.Int64("id", rec.ID), zap.Error(err))
	}
}
