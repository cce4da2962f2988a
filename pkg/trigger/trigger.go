// Package trigger decides, from a new prompt's text alone, whether
// recalling past context is worth the trip to storage. It is a cheap
// heuristic pre-filter: confidence accumulates from keyword, intent,
// and file-token signals, and retrieval fires at or above a fixed
// threshold.
package trigger

import (
	"regexp"
	"strings"
)

// Threshold is the confidence at or above which retrieval fires.
const Threshold = 0.3

const (
	keywordBonus  = 0.15
	categoryBonus = 0.2
	errorBonus    = 0.3
	successBonus  = 0.2
	fileBonus     = 0.1
	fileBonusCap  = 0.3
	lengthBonus   = 0.1
	longPromptLen = 20
)

// Analysis is the result of analyzing one prompt.
type Analysis struct {
	// ShouldRetrieve reports whether the confidence cleared Threshold.
	ShouldRetrieve bool `json:"should_retrieve"`

	// Confidence is the accumulated signal strength, clamped to [0,1].
	Confidence float64 `json:"confidence"`

	// QueryTerms are the significant words and file tokens derived
	// from the prompt, suitable as a retrieval query.
	QueryTerms []string `json:"query_terms"`

	// Files are the file-like tokens found in the prompt, usable as
	// retrieval file hints.
	Files []string `json:"files"`
}

// Intent regexes, one per category. Each category that matches adds
// one categoryBonus regardless of how many times it matches.
var intentPatterns = map[string]*regexp.Regexp{
	"error":          regexp.MustCompile(`(?i)\b(error|exception|panic|traceback|stack\s*trace|crash(e[sd])?|fail(s|ed|ing|ure)?)\b`),
	"implementation": regexp.MustCompile(`(?i)\b(implement|add|create|build|write|wire\s+up|set\s+up)\b`),
	"pattern":        regexp.MustCompile(`(?i)\b(like\s+(before|last\s+time)|same\s+as|similar\s+to|again|pattern|approach\s+we)\b`),
	"structure":      regexp.MustCompile(`(?i)\b(refactor|restructure|reorganize|rename|move|extract|split)\b`),
}

var errorIndicators = []string{
	"error", "exception", "panic", "traceback", "failed", "broken",
	"bug", "regression", "flaky", "leak", "deadlock",
}

var successIndicators = []string{
	"worked", "fixed", "passing", "resolved", "shipped",
}

// fileTokenPattern matches path-like tokens with a short extension,
// e.g. "auth.go", "internal/store/sqlite.go", "config.toml".
var fileTokenPattern = regexp.MustCompile(`\b[\w./-]+\.[A-Za-z]{1,5}\b`)

// stopwords are dropped when deriving query terms.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "do": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "please": {}, "so": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "what": {}, "when": {}, "why": {},
	"with": {}, "you": {},
}

// Analyzer scores prompts for retrieval worthiness. Keywords come from
// configuration; the intent patterns are fixed.
type Analyzer struct {
	keywords []string
}

// NewAnalyzer creates an analyzer with the given trigger keywords
// (lowercased for matching). A nil slice means no keyword signal.
func NewAnalyzer(keywords []string) *Analyzer {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Analyzer{keywords: lowered}
}

// Analyze scores the prompt and derives query terms and file hints.
func (a *Analyzer) Analyze(prompt string) Analysis {
	lower := strings.ToLower(prompt)
	words := strings.Fields(lower)

	var confidence float64

	for _, kw := range a.keywords {
		if strings.Contains(lower, kw) {
			confidence += keywordBonus
		}
	}

	for _, pattern := range intentPatterns {
		if pattern.MatchString(prompt) {
			confidence += categoryBonus
		}
	}

	if containsAny(lower, errorIndicators) {
		confidence += errorBonus
	}
	if containsAny(lower, successIndicators) {
		confidence += successBonus
	}

	files := dedupe(fileTokenPattern.FindAllString(prompt, -1))
	fileSignal := fileBonus * float64(len(files))
	if fileSignal > fileBonusCap {
		fileSignal = fileBonusCap
	}
	confidence += fileSignal

	if len(words) > longPromptLen {
		confidence += lengthBonus
	}

	if confidence > 1 {
		confidence = 1
	}

	return Analysis{
		ShouldRetrieve: confidence >= Threshold,
		Confidence:     confidence,
		QueryTerms:     queryTerms(words, files),
		Files:          files,
	}
}

// queryTerms keeps significant words, then appends file tokens so a
// path mentioned in the prompt always reaches the full-text index.
func queryTerms(words, files []string) []string {
	terms := make([]string, 0, len(words)+len(files))
	seen := make(map[string]struct{})

	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'`()[]{}")
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}

	for _, f := range files {
		f = strings.ToLower(f)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}

	return terms
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
