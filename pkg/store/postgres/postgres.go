// Package postgres implements the context store on PostgreSQL, using
// a generated tsvector column for full-text search.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/codec"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/scoring"
	"github.com/loopworkco/rewind/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS contexts (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    prompt TEXT NOT NULL,
    payload TEXT NOT NULL,
    files JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL,
    outcome TEXT NOT NULL DEFAULT 'Unknown',
    metadata JSONB NOT NULL DEFAULT '{}',
    compressed BOOLEAN NOT NULL DEFAULT FALSE,
    content_hash TEXT UNIQUE,
    search TSVECTOR GENERATED ALWAYS AS (
        to_tsvector('english', prompt || ' ' || payload || ' ' || files::text)
    ) STORED
);

CREATE INDEX IF NOT EXISTS idx_contexts_session ON contexts(session_id);
CREATE INDEX IF NOT EXISTS idx_contexts_created ON contexts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_contexts_search ON contexts USING GIN (search);
`

// tsTermPattern keeps only characters safe to hand to to_tsquery.
var tsTermPattern = regexp.MustCompile(`[^\w./-]+`)

// Config tunes a postgres-backed store.
type Config struct {
	// CompressionThreshold is the payload size in bytes above which
	// payloads are gzip-compressed before storage. Zero or negative
	// disables compression.
	CompressionThreshold int

	Logger *zap.Logger
}

// Store persists context records in PostgreSQL.
type Store struct {
	db        *sql.DB
	threshold int
	logger    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to the database at connStr (a DSN or postgres:// URI),
// verifies the connection, and initializes the schema.
func New(ctx context.Context, connStr string, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, &store.StoreError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &store.StoreError{Op: "ping", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &store.StoreError{Op: "migrate", Err: err}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, threshold: cfg.CompressionThreshold, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, rec *record.ContextRecord) (int64, error) {
	if rec.ContentHash == "" {
		rec.ContentHash = record.ContentHash(rec.Prompt, rec.Payload)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = record.OutcomeUnknown
	}

	stored, compressed, err := codec.Compress(rec.Payload, s.threshold)
	if err != nil {
		return 0, &store.StoreError{Op: "compress", Err: err}
	}
	rec.Compressed = compressed

	filesJSON, _ := json.Marshal(rec.Files)
	if rec.Files == nil {
		filesJSON = []byte("[]")
	}
	metaJSON, _ := json.Marshal(rec.Metadata)
	if rec.Metadata == nil {
		metaJSON = []byte("{}")
	}

	const query = `
		INSERT INTO contexts (session_id, prompt, payload, files, created_at, outcome, metadata, compressed, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (content_hash) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			payload    = EXCLUDED.payload,
			files      = EXCLUDED.files,
			created_at = EXCLUDED.created_at,
			outcome    = EXCLUDED.outcome,
			metadata   = EXCLUDED.metadata,
			compressed = EXCLUDED.compressed
		RETURNING id`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		rec.SessionID, rec.Prompt, stored, string(filesJSON),
		rec.CreatedAt.UTC(), string(rec.Outcome), string(metaJSON),
		rec.Compressed, rec.ContentHash,
	).Scan(&id)
	if err != nil {
		return 0, &store.StoreError{Op: "insert", Err: err}
	}
	rec.ID = id
	return id, nil
}

func (s *Store) QueryCandidates(ctx context.Context, terms []string, since time.Time, limit int) ([]store.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	const cols = `id, session_id, prompt, payload, files, created_at, outcome, metadata, compressed, content_hash`

	var (
		query string
		args  []interface{}
	)
	if tsquery := buildTsquery(terms); tsquery != "" {
		query = `SELECT ` + cols + `, ts_rank(search, websearch_to_tsquery('english', $1))
			FROM contexts
			WHERE search @@ websearch_to_tsquery('english', $1) AND created_at >= $2
			ORDER BY ts_rank(search, websearch_to_tsquery('english', $1)) DESC
			LIMIT $3`
		args = []interface{}{tsquery, since.UTC(), limit}
	} else {
		query = `SELECT ` + cols + `, 0.0
			FROM contexts
			WHERE created_at >= $1
			ORDER BY created_at DESC
			LIMIT $2`
		args = []interface{}{since.UTC(), limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &store.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []store.Candidate
	for rows.Next() {
		var c store.Candidate
		var filesJSON, metaJSON, outcome string
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.Prompt, &c.Payload, &filesJSON,
			&c.CreatedAt, &outcome, &metaJSON, &c.Compressed, &c.ContentHash, &c.Rank,
		); err != nil {
			return nil, &store.StoreError{Op: "scan", Err: err}
		}
		c.Outcome = record.Outcome(outcome)
		_ = json.Unmarshal([]byte(filesJSON), &c.Files)
		_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
		if c.Files == nil {
			c.Files = []string{}
		}
		if c.Compressed {
			plain, err := codec.Decompress(c.Payload)
			if err != nil {
				s.logger.Warn("skipping undecodable row", zap.Int64("id", c.ID), zap.Error(err))
				continue
			}
			c.Payload = plain
			c.Compressed = false
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *Store) UpdateOutcome(ctx context.Context, id int64, outcome record.Outcome, metadata map[string]string) (bool, error) {
	metaJSON, _ := json.Marshal(metadata)
	if metadata == nil {
		metaJSON = []byte("{}")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET outcome = $1, metadata = metadata || $2::jsonb WHERE id = $3`,
		string(outcome), string(metaJSON), id)
	if err != nil {
		return false, &store.StoreError{Op: "update_outcome", Err: err}
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contexts WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, &store.StoreError{Op: "delete", Err: err}
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

func (s *Store) AggregateSession(ctx context.Context, sessionID string) (*store.SessionSummary, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = '%s' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = '%s' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(%s), 0),
		       COALESCE(MIN(created_at), 'epoch'::timestamptz),
		       COALESCE(MAX(created_at), 'epoch'::timestamptz)
		FROM contexts WHERE session_id = $1`,
		record.OutcomeSuccess, record.OutcomeFailure, outcomeWeightCase())

	summary := &store.SessionSummary{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&summary.Count, &summary.SuccessCount, &summary.FailureCount,
		&summary.AvgRelevance, &summary.FirstAt, &summary.LastAt,
	)
	if err != nil {
		return nil, &store.StoreError{Op: "aggregate", Err: err}
	}
	if summary.Count == 0 {
		return nil, &store.NotFoundError{Kind: "session", Key: sessionID}
	}
	return summary, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contexts`).Scan(&n); err != nil {
		return 0, &store.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// CountSince returns the number of records created at or after since.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contexts WHERE created_at >= $1`, since.UTC()).Scan(&n)
	if err != nil {
		return 0, &store.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// buildTsquery OR-joins the terms in websearch query syntax, dropping
// characters the search parser treats as operators. Returns "" when
// nothing survives.
func buildTsquery(terms []string) string {
	var safe []string
	for _, t := range terms {
		t = tsTermPattern.ReplaceAllString(t, "")
		if t != "" {
			safe = append(safe, t)
		}
	}
	return strings.Join(safe, " OR ")
}

// outcomeWeightCase builds the SQL expression mapping outcomes to the
// same weights the relevance scorer uses.
func outcomeWeightCase() string {
	outcomes := []record.Outcome{
		record.OutcomeSuccess, record.OutcomePartial,
		record.OutcomeFailure, record.OutcomeUnknown,
	}
	var b strings.Builder
	b.WriteString("CASE outcome")
	for _, o := range outcomes {
		fmt.Fprintf(&b, " WHEN '%s' THEN %g", o, scoring.OutcomeWeight(o))
	}
	fmt.Fprintf(&b, " ELSE %g END", scoring.OutcomeWeight(record.OutcomeUnknown))
	return b.String()
}
