package eventstream

import (
	"time"

	"github.com/loopworkco/rewind/pkg/record"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeContextStored is emitted after a context record is persisted.
	EventTypeContextStored = "rewind.context.stored"
)

// ContextStoredEvent is a transport-neutral event payload for a persisted
// context record. The prompt and payload themselves are not carried; the
// event identifies the record so consumers can fetch it if they need it.
type ContextStoredEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	RecordID      int64          `json:"record_id"`
	SessionID     string         `json:"session_id"`
	ContentHash   string         `json:"content_hash"`
	Outcome       record.Outcome `json:"outcome"`
	Compressed    bool           `json:"compressed"`
	FileCount     int            `json:"file_count"`
}

// EventSource identifies where the stored context originated.
type EventSource struct {
	Project   string `json:"project,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
}
