package backfill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/trigger"
	"github.com/loopworkco/rewind/pkg/worker"
)

// Options configures import behavior.
type Options struct {
	// DryRun derives records without storing anything.
	DryRun bool

	// Verbose prints per-file warnings.
	Verbose bool

	// Workers sizes the storage worker pool (0 uses the pool default).
	Workers uint
}

// Importer derives context records from agent transcripts and stores
// them through the engine.
type Importer struct {
	engine   *engine.Engine
	analyzer *trigger.Analyzer
	logger   *zap.Logger
	options  Options
}

// NewImporter creates an Importer storing through the given engine.
func NewImporter(eng *engine.Engine, logger *zap.Logger, opts Options) (*Importer, error) {
	if eng == nil {
		return nil, fmt.Errorf("importer requires an engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Importer{
		engine:   eng,
		analyzer: trigger.NewAnalyzer(nil),
		logger:   logger,
		options:  opts,
	}, nil
}

// Run scans transcripts under dir, derives context records, and stores
// them through an asynchronous worker pool. It returns after all
// enqueued records have drained.
func (b *Importer) Run(ctx context.Context, dir string) (*Result, error) {
	files, err := ScanTranscriptDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcript directory: %w", err)
	}

	result := &Result{TranscriptFiles: len(files)}

	var records []*record.ContextRecord
	for _, f := range files {
		entries, err := ParseTranscript(f)
		if err != nil {
			if b.options.Verbose {
				fmt.Printf("  warning: skipping %s: %v\n", f, err)
			}
			continue
		}
		result.TranscriptEntries += len(entries)
		records = append(records, b.deriveRecords(entries)...)
	}
	result.Records = len(records)

	if b.options.DryRun {
		return result, nil
	}

	pool, err := worker.NewPool(&worker.Config{
		Engine:     b.engine,
		NumWorkers: b.options.Workers,
		Logger:     b.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if pool.Enqueue(worker.Job{Record: rec}) {
			result.Enqueued++
		} else {
			result.Dropped++
		}
	}

	// Drain before reporting so the caller sees settled state.
	pool.Close()

	return result, ctx.Err()
}

// deriveRecords pairs each user prompt with the next assistant reply in
// the same session. File hints come from path-like tokens in the prompt.
func (b *Importer) deriveRecords(entries []TranscriptEntry) []*record.ContextRecord {
	var records []*record.ContextRecord

	for i, entry := range entries {
		if entry.Type != "user" {
			continue
		}
		prompt := entry.TextContent()

		for _, reply := range entries[i+1:] {
			if reply.SessionID != entry.SessionID {
				continue
			}
			if reply.Type == "user" {
				break // next turn, no assistant reply for this prompt
			}
			if reply.Type != "assistant" {
				continue
			}

			records = append(records, &record.ContextRecord{
				SessionID: entry.SessionID,
				Prompt:    prompt,
				Payload:   reply.TextContent(),
				Files:     b.analyzer.Analyze(prompt).Files,
				Outcome:   record.OutcomeUnknown,
			})
			break
		}
	}

	return records
}
