// Package sqlite implements the context store on SQLite with FTS5
// full-text search. If the SQLite build lacks FTS5 the store degrades
// to LIKE-based matching.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/codec"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/scoring"
	"github.com/loopworkco/rewind/pkg/store"
)

// timeLayout is fixed-width UTC so that string comparison in SQL
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS contexts (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    prompt TEXT NOT NULL,
    payload TEXT NOT NULL,
    files TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    outcome TEXT NOT NULL DEFAULT 'Unknown',
    metadata TEXT NOT NULL DEFAULT '{}',
    compressed BOOLEAN NOT NULL DEFAULT 0,
    content_hash TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_contexts_session ON contexts(session_id);
CREATE INDEX IF NOT EXISTS idx_contexts_created ON contexts(created_at DESC);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS contexts_fts USING fts5(
    prompt, payload, files,
    content=contexts,
    content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS contexts_fts_insert AFTER INSERT ON contexts BEGIN
    INSERT INTO contexts_fts(rowid, prompt, payload, files)
    VALUES (new.id, new.prompt, new.payload, new.files);
END;

CREATE TRIGGER IF NOT EXISTS contexts_fts_delete AFTER DELETE ON contexts BEGIN
    INSERT INTO contexts_fts(contexts_fts, rowid, prompt, payload, files)
    VALUES ('delete', old.id, old.prompt, old.payload, old.files);
END;

CREATE TRIGGER IF NOT EXISTS contexts_fts_update AFTER UPDATE ON contexts BEGIN
    INSERT INTO contexts_fts(contexts_fts, rowid, prompt, payload, files)
    VALUES ('delete', old.id, old.prompt, old.payload, old.files);
    INSERT INTO contexts_fts(rowid, prompt, payload, files)
    VALUES (new.id, new.prompt, new.payload, new.files);
END;
`

// Config tunes a sqlite-backed store.
type Config struct {
	// CompressionThreshold is the payload size in bytes above which
	// payloads are gzip-compressed before storage. Zero or negative
	// disables compression.
	CompressionThreshold int

	Logger *zap.Logger
}

// Store persists context records in a single SQLite database.
type Store struct {
	db        *sql.DB
	hasFTS5   bool
	threshold int
	logger    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the database at path and initializes the
// schema. FTS5 is optional; without it search falls back to LIKE.
func New(path string, cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &store.StoreError{Op: "open", Err: err}
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, &store.StoreError{Op: "migrate", Err: err}
	}

	hasFTS5 := true
	if _, err := db.ExecContext(context.Background(), ftsSchema); err != nil {
		hasFTS5 = false
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if !hasFTS5 {
		logger.Warn("sqlite build lacks FTS5, search degrades to LIKE matching", zap.String("path", path))
	}

	return &Store{
		db:        db,
		hasFTS5:   hasFTS5,
		threshold: cfg.CompressionThreshold,
		logger:    logger,
	}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists a record, replacing any existing record with the same
// content hash. The record's ID, ContentHash, Compressed, and CreatedAt
// fields are filled in.
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

	filesJSON, metaJSON := recordJSONBlobs(rec)

	const query = `
		INSERT INTO contexts (session_id, prompt, payload, files, created_at, outcome, metadata, compressed, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			session_id = excluded.session_id,
			payload    = excluded.payload,
			files      = excluded.files,
			created_at = excluded.created_at,
			outcome    = excluded.outcome,
			metadata   = excluded.metadata,
			compressed = excluded.compressed
		RETURNING id`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		rec.SessionID, rec.Prompt, stored, string(filesJSON),
		rec.CreatedAt.UTC().Format(timeLayout),
		string(rec.Outcome), string(metaJSON), rec.Compressed, rec.ContentHash,
	).Scan(&id)
	if err != nil {
		return 0, &store.StoreError{Op: "insert", Err: err}
	}
	rec.ID = id
	return id, nil
}

// QueryCandidates searches for records matching any of the given terms,
// created at or after since. Rows whose compressed payload cannot be
// decoded are logged and skipped.
func (s *Store) QueryCandidates(ctx context.Context, terms []string, since time.Time, limit int) ([]store.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args := s.buildSearch(terms, since, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &store.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []store.Candidate
	for rows.Next() {
		var c store.Candidate
		var createdAt, filesJSON, metaJSON, outcome string
		if err := rows.Scan(
			&c.ID, &c.SessionID, &c.Prompt, &c.Payload, &filesJSON,
			&createdAt, &outcome, &metaJSON, &c.Compressed, &c.ContentHash, &c.Rank,
		); err != nil {
			return nil, &store.StoreError{Op: "scan", Err: err}
		}
		if err := hydrate(&c.ContextRecord, createdAt, outcome, filesJSON, metaJSON); err != nil {
			s.logger.Warn("skipping undecodable row", zap.Int64("id", c.ID), zap.Error(err))
			continue
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// buildSearch composes the candidate query. With FTS5 every term is
// quoted and terms are OR-ed; rank is negated so higher means better.
// Without FTS5 terms become LIKE patterns ordered by recency.
func (s *Store) buildSearch(terms []string, since time.Time, limit int) (string, []interface{}) {
	const cols = `c.id, c.session_id, c.prompt, c.payload, c.files, c.created_at, c.outcome, c.metadata, c.compressed, c.content_hash`
	sinceStr := since.UTC().Format(timeLayout)

	if len(terms) == 0 {
		return `SELECT ` + cols + `, 0.0
			FROM contexts c
			WHERE c.created_at >= ?
			ORDER BY c.created_at DESC LIMIT ?`, []interface{}{sinceStr, limit}
	}

	if s.hasFTS5 {
		// FTS5 string syntax: embedded double quotes are escaped by
		// doubling them, so any token is safe inside one quoted string.
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
		}
		match := strings.Join(quoted, " OR ")
		return `SELECT ` + cols + `, -f.rank
			FROM contexts_fts f
			JOIN contexts c ON c.id = f.rowid
			WHERE contexts_fts MATCH ? AND c.created_at >= ?
			ORDER BY f.rank LIMIT ?`, []interface{}{match, sinceStr, limit}
	}

	clauses := make([]string, 0, len(terms))
	args := []interface{}{sinceStr}
	for _, t := range terms {
		pattern := "%" + t + "%"
		clauses = append(clauses, `(c.prompt LIKE ? OR c.payload LIKE ? OR c.files LIKE ?)`)
		args = append(args, pattern, pattern, pattern)
	}
	args = append(args, limit)
	return `SELECT ` + cols + `, 0.0
		FROM contexts c
		WHERE c.created_at >= ? AND (` + strings.Join(clauses, " OR ") + `)
		ORDER BY c.created_at DESC LIMIT ?`, args
}

// UpdateOutcome sets the outcome on a record, merging metadata keys
// over any already stored. Returns false when no record has the ID.
func (s *Store) UpdateOutcome(ctx context.Context, id int64, outcome record.Outcome, metadata map[string]string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &store.StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var metaJSON string
	err = tx.QueryRowContext(ctx, `SELECT metadata FROM contexts WHERE id = ?`, id).Scan(&metaJSON)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &store.StoreError{Op: "update_outcome", Err: err}
	}

	merged := map[string]string{}
	_ = json.Unmarshal([]byte(metaJSON), &merged)
	for k, v := range metadata {
		merged[k] = v
	}
	mergedJSON, _ := json.Marshal(merged)

	if _, err := tx.ExecContext(ctx,
		`UPDATE contexts SET outcome = ?, metadata = ? WHERE id = ?`,
		string(outcome), string(mergedJSON), id); err != nil {
		return false, &store.StoreError{Op: "update_outcome", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &store.StoreError{Op: "update_outcome", Err: err}
	}
	return true, nil
}

// DeleteOlderThan removes records created before cutoff and reclaims
// the freed pages. The vacuum is best effort.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contexts WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, &store.StoreError{Op: "delete", Err: err}
	}
	deleted, _ := res.RowsAffected()

	if deleted > 0 {
		if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
			s.logger.Warn("vacuum after cleanup failed", zap.Error(err))
		}
	}
	return deleted, nil
}

// AggregateSession summarizes the stored activity for a session. The
// average relevance is computed over outcome weights so that sessions
// full of failures score low.
func (s *Store) AggregateSession(ctx context.Context, sessionID string) (*store.SessionSummary, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = '%s' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = '%s' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(%s), 0),
		       COALESCE(MIN(created_at), ''),
		       COALESCE(MAX(created_at), '')
		FROM contexts WHERE session_id = ?`,
		record.OutcomeSuccess, record.OutcomeFailure, outcomeWeightCase())

	summary := &store.SessionSummary{SessionID: sessionID}
	var firstAt, lastAt string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&summary.Count, &summary.SuccessCount, &summary.FailureCount,
		&summary.AvgRelevance, &firstAt, &lastAt,
	)
	if err != nil {
		return nil, &store.StoreError{Op: "aggregate", Err: err}
	}
	if summary.Count == 0 {
		return nil, &store.NotFoundError{Kind: "session", Key: sessionID}
	}
	summary.FirstAt, _ = time.Parse(timeLayout, firstAt)
	summary.LastAt, _ = time.Parse(timeLayout, lastAt)
	return summary, nil
}

// Count returns the total number of stored records.
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
		`SELECT COUNT(*) FROM contexts WHERE created_at >= ?`,
		since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, &store.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// outcomeWeightCase builds the SQL expression mapping outcomes to the
// same weights the relevance scorer uses, so the aggregate and the
// scorer cannot drift apart.
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

// hydrate fills the JSON and encoded columns back into a record,
// decompressing the payload when needed.
func hydrate(rec *record.ContextRecord, createdAt, outcome, filesJSON, metaJSON string) error {
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = ts
	rec.Outcome = record.Outcome(outcome)

	_ = json.Unmarshal([]byte(filesJSON), &rec.Files)
	_ = json.Unmarshal([]byte(metaJSON), &rec.Metadata)
	if rec.Files == nil {
		rec.Files = []string{}
	}

	if rec.Compressed {
		plain, err := codec.Decompress(rec.Payload)
		if err != nil {
			return err
		}
		rec.Payload = plain
		rec.Compressed = false
	}
	return nil
}

// recordJSONBlobs returns JSON-encoded files and metadata columns.
func recordJSONBlobs(rec *record.ContextRecord) (filesJSON, metaJSON []byte) {
	filesJSON, _ = json.Marshal(rec.Files)
	if rec.Files == nil {
		filesJSON = []byte("[]")
	}
	metaJSON, _ = json.Marshal(rec.Metadata)
	if rec.Metadata == nil {
		metaJSON = []byte("{}")
	}
	return filesJSON, metaJSON
}
