// Package scoring computes per-query relevance for context records.
// Four normalized signals (recency, textual overlap, prior outcome,
// and file overlap) are linearly combined by configurable weights
// into a score in [0,1]. Scoring is pure: it never touches storage.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loopworkco/rewind/pkg/record"
)

// decayWindow is how long recency takes to decay linearly to zero.
const decayWindow = 7 * 24 * time.Hour

// Weights combines the four relevance signals. The weights must sum
// to 1.0 so the final score stays in [0,1].
type Weights struct {
	Recency     float64 `json:"recency"`
	Overlap     float64 `json:"overlap"`
	Outcome     float64 `json:"outcome"`
	FileOverlap float64 `json:"file_overlap"`
}

// DefaultWeights favors textual overlap, then recency, then outcome.
func DefaultWeights() Weights {
	return Weights{
		Recency:     0.3,
		Overlap:     0.4,
		Outcome:     0.2,
		FileOverlap: 0.1,
	}
}

// Validate rejects weight sets that are negative or do not sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"recency":      w.Recency,
		"overlap":      w.Overlap,
		"outcome":      w.Outcome,
		"file_overlap": w.FileOverlap,
	} {
		if v < 0 {
			return fmt.Errorf("scoring weight %s must not be negative", name)
		}
	}

	sum := w.Recency + w.Overlap + w.Outcome + w.FileOverlap
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// OutcomeWeight maps a prior outcome to its fixed relevance signal.
func OutcomeWeight(o record.Outcome) float64 {
	switch o {
	case record.OutcomeSuccess:
		return 1.0
	case record.OutcomePartial:
		return 0.5
	case record.OutcomeFailure:
		return 0.1
	default:
		return 0.3
	}
}

// Score computes the relevance of rec for the given query and file
// hints at time now, clamped to [0,1].
func Score(rec *record.ContextRecord, query string, fileHints []string, w Weights, now time.Time) float64 {
	queryWords := Tokenize(query)

	score := w.Recency*recency(rec.CreatedAt, now) +
		w.Overlap*textualOverlap(queryWords, rec) +
		w.Outcome*OutcomeWeight(rec.Outcome) +
		w.FileOverlap*fileOverlap(fileHints, rec.Files)

	return math.Min(1, math.Max(0, score))
}

// Tokenize lowercases text and splits it into words, trimming common
// punctuation from each token.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'`()[]{}")
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

// recency decays linearly from 1 (just created) to 0 (a week old).
func recency(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(age)/float64(decayWindow))
}

// textualOverlap measures how much of the query appears in the record.
// Prompt overlap counts fully and payload overlap at half weight: the
// prompt is the denser, more precise relevance signal.
func textualOverlap(queryWords []string, rec *record.ContextRecord) float64 {
	prompt := overlap(queryWords, Tokenize(rec.Prompt))
	payload := 0.5 * overlap(queryWords, Tokenize(rec.Payload))
	return math.Max(prompt, payload)
}

// overlap is |query ∩ target| / max(|query|, 1) over word sets.
func overlap(queryWords, targetWords []string) float64 {
	if len(queryWords) == 0 {
		return 0
	}

	target := make(map[string]struct{}, len(targetWords))
	for _, w := range targetWords {
		target[w] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryWords))
	matched := 0
	for _, w := range queryWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := target[w]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(seen))
}

// fileOverlap is |hints ∩ files| / max(|hints|, 1); zero when the
// caller supplied no hints.
func fileOverlap(hints, files []string) float64 {
	if len(hints) == 0 {
		return 0
	}

	have := make(map[string]struct{}, len(files))
	for _, f := range files {
		have[f] = struct{}{}
	}

	matched := 0
	for _, h := range hints {
		if _, ok := have[h]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(hints))
}
