package scoring_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/scoring"
)

var _ = Describe("Scoring", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Now()
	})

	rec := func(prompt string, age time.Duration, outcome record.Outcome, files ...string) *record.ContextRecord {
		return &record.ContextRecord{
			Prompt:    prompt,
			Payload:   "derived context for " + prompt,
			Files:     files,
			Outcome:   outcome,
			CreatedAt: now.Add(-age),
		}
	}

	Describe("Weights", func() {
		It("accepts the defaults", func() {
			Expect(scoring.DefaultWeights().Validate()).To(Succeed())
		})

		It("rejects weights that do not sum to 1.0", func() {
			w := scoring.Weights{Recency: 0.5, Overlap: 0.5, Outcome: 0.5}
			Expect(w.Validate()).NotTo(Succeed())
		})

		It("rejects negative weights", func() {
			w := scoring.Weights{Recency: -0.2, Overlap: 0.8, Outcome: 0.2, FileOverlap: 0.2}
			Expect(w.Validate()).NotTo(Succeed())
		})
	})

	Describe("Score", func() {
		w := scoring.DefaultWeights()

		It("stays within [0,1]", func() {
			r := rec("fix auth bug", time.Hour, record.OutcomeSuccess, "auth.go")
			s := scoring.Score(r, "fix auth bug", []string{"auth.go"}, w, now)
			Expect(s).To(BeNumerically(">", 0))
			Expect(s).To(BeNumerically("<=", 1))
		})

		It("scores an exact prompt match above the default threshold", func() {
			r := rec("fix auth bug", time.Hour, record.OutcomeUnknown)
			s := scoring.Score(r, "fix auth bug", nil, w, now)
			Expect(s).To(BeNumerically(">", 0.3))
		})

		It("ranks a fresh success above a stale failure with equal text", func() {
			fresh := rec("fix auth bug", time.Hour, record.OutcomeSuccess)
			stale := rec("fix auth bug", 7*24*time.Hour, record.OutcomeFailure)

			sFresh := scoring.Score(fresh, "fix auth bug", nil, w, now)
			sStale := scoring.Score(stale, "fix auth bug", nil, w, now)
			Expect(sFresh).To(BeNumerically(">", sStale))
		})

		It("weights prompt overlap above payload overlap", func() {
			inPrompt := &record.ContextRecord{
				Prompt:    "database migration retry",
				Payload:   "unrelated notes",
				Outcome:   record.OutcomeUnknown,
				CreatedAt: now,
			}
			inPayload := &record.ContextRecord{
				Prompt:    "unrelated notes",
				Payload:   "database migration retry",
				Outcome:   record.OutcomeUnknown,
				CreatedAt: now,
			}

			q := "database migration retry"
			Expect(scoring.Score(inPrompt, q, nil, w, now)).To(
				BeNumerically(">", scoring.Score(inPayload, q, nil, w, now)))
		})

		It("rewards file overlap only when hints are given", func() {
			r := rec("fix auth bug", time.Hour, record.OutcomeUnknown, "auth.go", "session.go")

			withHints := scoring.Score(r, "fix auth bug", []string{"auth.go"}, w, now)
			without := scoring.Score(r, "fix auth bug", nil, w, now)
			Expect(withHints).To(BeNumerically(">", without))
		})

		It("gives zero recency to records older than a week", func() {
			old := rec("fix auth bug", 30*24*time.Hour, record.OutcomeUnknown)
			recent := rec("fix auth bug", time.Minute, record.OutcomeUnknown)

			diff := scoring.Score(recent, "fix auth bug", nil, w, now) -
				scoring.Score(old, "fix auth bug", nil, w, now)
			// The entire recency weight separates them.
			Expect(diff).To(BeNumerically("~", w.Recency, 0.01))
		})
	})

	Describe("OutcomeWeight", func() {
		It("orders outcomes Success > Partial > Unknown > Failure", func() {
			Expect(scoring.OutcomeWeight(record.OutcomeSuccess)).To(Equal(1.0))
			Expect(scoring.OutcomeWeight(record.OutcomePartial)).To(Equal(0.5))
			Expect(scoring.OutcomeWeight(record.OutcomeUnknown)).To(Equal(0.3))
			Expect(scoring.OutcomeWeight(record.OutcomeFailure)).To(Equal(0.1))
		})
	})

	Describe("Tokenize", func() {
		It("lowercases and strips punctuation", func() {
			Expect(scoring.Tokenize("Fix the Auth, bug!")).To(
				Equal([]string{"fix", "the", "auth", "bug"}))
		})

		It("keeps file-path tokens intact", func() {
			Expect(scoring.Tokenize("see internal/auth/token.go")).To(
				ContainElement("internal/auth/token.go"))
		})
	})
})
