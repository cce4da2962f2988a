// Package backfill imports historical agent transcripts as context
// records, so sessions recorded before rewind was running still feed
// retrieval.
package backfill

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// TranscriptBlock represents a content block in a transcript message.
type TranscriptBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TranscriptMessage represents the message field within a JSONL entry.
type TranscriptMessage struct {
	ID      string            `json:"id"`
	Role    string            `json:"role"`
	Content []TranscriptBlock `json:"content"`
}

// TranscriptEntry represents a single line in an agent JSONL transcript.
type TranscriptEntry struct {
	Type      string             `json:"type"`
	UUID      string             `json:"uuid"`
	Timestamp string             `json:"timestamp"`
	SessionID string             `json:"sessionId"`
	Message   *TranscriptMessage `json:"message"`
}

// TextContent extracts the concatenated text from all text content blocks.
func (e *TranscriptEntry) TextContent() string {
	if e.Message == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range e.Message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// ScanTranscriptDir finds all JSONL files under the given directory.
func ScanTranscriptDir(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// ParseTranscript reads a JSONL file and returns user and assistant
// entries with text content, in file order. Streaming chunks sharing a
// message ID are deduplicated, keeping the last (most complete) entry.
func ParseTranscript(path string) ([]TranscriptEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	byKey := make(map[string]int)
	var entries []TranscriptEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB max line

	for scanner.Scan() {
		var entry TranscriptEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		if entry.Message == nil || entry.TextContent() == "" {
			continue
		}

		// Streaming assistant chunks repeat the message ID; the last
		// chunk carries the full content.
		key := entry.Message.ID
		if key == "" {
			key = entry.UUID
		}
		if key == "" {
			entries = append(entries, entry)
			continue
		}

		if i, seen := byKey[key]; seen {
			entries[i] = entry
			continue
		}
		byKey[key] = len(entries)
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
