package backfill

import "fmt"

// Result contains statistics from an import run.
type Result struct {
	TranscriptFiles   int
	TranscriptEntries int
	Records           int
	Enqueued          int
	Dropped           int
}

// Summary returns a human-readable summary of the import result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Import complete: %d records derived, %d stored, %d dropped\n"+
			"Scanned %d transcript files (%d entries)",
		r.Records, r.Enqueued, r.Dropped,
		r.TranscriptFiles, r.TranscriptEntries,
	)
}
