package inmemory_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/store"
	"github.com/loopworkco/rewind/pkg/store/inmemory"
)

var _ = Describe("Store", func() {
	var (
		s   *inmemory.Store
		ctx context.Context
	)

	insert := func(sessionID, prompt, payload string, outcome record.Outcome) int64 {
		id, err := s.Insert(ctx, &record.ContextRecord{
			SessionID: sessionID,
			Prompt:    prompt,
			Payload:   payload,
			Outcome:   outcome,
		})
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = inmemory.New()
	})

	It("deduplicates on content hash", func() {
		id1 := insert("a", "same prompt", "same payload", record.OutcomeUnknown)
		id2 := insert("b", "same prompt", "same payload", record.OutcomeSuccess)
		Expect(id2).To(Equal(id1))

		count, err := s.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("matches terms case-insensitively and counts queries", func() {
		insert("a", "Refactor the Parser", "split the lexer", record.OutcomeSuccess)

		candidates, err := s.QueryCandidates(ctx, []string{"parser"}, time.Time{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(HaveLen(1))
		Expect(s.QueryCalls()).To(Equal(1))
	})

	It("returns copies that do not alias stored state", func() {
		id := insert("a", "isolate mutation", "payload", record.OutcomeSuccess)

		candidates, err := s.QueryCandidates(ctx, []string{"isolate"}, time.Time{}, 10)
		Expect(err).NotTo(HaveOccurred())
		candidates[0].Outcome = record.OutcomeFailure

		again, err := s.QueryCandidates(ctx, []string{"isolate"}, time.Time{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(again[0].ID).To(Equal(id))
		Expect(again[0].Outcome).To(Equal(record.OutcomeSuccess))
	})

	It("updates outcomes and reports unknown ids", func() {
		id := insert("a", "prompt", "payload", record.OutcomeUnknown)

		ok, err := s.UpdateOutcome(ctx, id, record.OutcomeSuccess, map[string]string{"pr": "7"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = s.UpdateOutcome(ctx, 999, record.OutcomeSuccess, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("aggregates a session", func() {
		insert("sess", "one", "p1", record.OutcomeSuccess)
		insert("sess", "two", "p2", record.OutcomeFailure)

		summary, err := s.AggregateSession(ctx, "sess")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Count).To(Equal(2))
		Expect(summary.SuccessCount).To(Equal(1))
		Expect(summary.FailureCount).To(Equal(1))
		Expect(summary.AvgRelevance).To(BeNumerically("~", 0.55, 0.001))

		_, err = s.AggregateSession(ctx, "missing")
		Expect(store.IsNotFound(err)).To(BeTrue())
	})

	It("propagates injected failures", func() {
		boom := errors.New("disk on fire")
		s.FailWith(boom)

		_, err := s.Insert(ctx, &record.ContextRecord{Prompt: "p", Payload: "q"})
		Expect(err).To(MatchError(boom))

		s.FailWith(nil)
		_, err = s.Insert(ctx, &record.ContextRecord{Prompt: "p", Payload: "q"})
		Expect(err).NotTo(HaveOccurred())
	})
})
