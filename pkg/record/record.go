// Package record defines the ContextRecord, the unit of session memory
// stored and recalled by the rewind engine.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Outcome classifies how the work captured by a record ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomePartial Outcome = "Partial"
	OutcomeFailure Outcome = "Failure"
	OutcomeUnknown Outcome = "Unknown"
)

// Valid reports whether o is one of the four known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure, OutcomeUnknown:
		return true
	}
	return false
}

// ContextRecord is one stored unit of session memory: the prompt that
// produced it, the derived context payload, the files it touched, and
// how it turned out.
type ContextRecord struct {
	// ID is the storage-assigned identifier. Zero until inserted.
	ID int64 `json:"id"`

	// SessionID groups records produced in one working session.
	SessionID string `json:"session_id"`

	// Prompt is the original text that produced this record. Required.
	Prompt string `json:"prompt"`

	// Payload is the derived context text. Required. Stored compressed
	// when it exceeds the configured threshold.
	Payload string `json:"payload"`

	// Files are the file paths associated with the record. Order does
	// not matter; may be empty.
	Files []string `json:"files"`

	// Outcome records how the work ended. Defaults to Unknown.
	Outcome Outcome `json:"outcome"`

	// Metadata holds small auxiliary values (tool name, duration, ...).
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is set at insertion and never mutated.
	CreatedAt time.Time `json:"created_at"`

	// Compressed indicates the persisted payload is gzip+hex encoded.
	Compressed bool `json:"compressed"`

	// ContentHash is the deterministic hash of (prompt, payload) used
	// for deduplication. Re-inserting an identical hash replaces the
	// prior row.
	ContentHash string `json:"content_hash"`
}

// ScoredRecord is a ContextRecord with a per-query relevance score
// attached at retrieval time. The score is never persisted.
type ScoredRecord struct {
	ContextRecord

	// Score is the computed relevance in [0,1].
	Score float64 `json:"relevance_score"`
}

// ValidationError indicates a record was rejected before touching
// storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid record: " + e.Field + " " + e.Reason
}

// Validate checks the invariants a record must satisfy before it may
// be stored: prompt and payload are never empty, and the outcome is
// one of the known values.
func (r *ContextRecord) Validate() error {
	if r.Prompt == "" {
		return ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if r.Payload == "" {
		return ValidationError{Field: "payload", Reason: "must not be empty"}
	}
	if r.Outcome != "" && !r.Outcome.Valid() {
		return ValidationError{Field: "outcome", Reason: "must be one of Success, Partial, Failure, Unknown"}
	}
	return nil
}

// ContentHash computes the deduplication hash for a (prompt, payload)
// pair: SHA-256 over both texts with a NUL separator, hex-encoded.
// The hash covers the uncompressed payload so compression settings do
// not affect identity.
func ContentHash(prompt, payload string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
