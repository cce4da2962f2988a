package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/store"
	"github.com/loopworkco/rewind/pkg/store/postgres"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("REWIND_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("REWIND_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	var (
		s   *postgres.Store
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		s, err = postgres.New(ctx, dsn, postgres.Config{CompressionThreshold: 1024})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_, err := s.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())
		})

		// Clean all contexts before each test for isolation.
		_, err = s.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns an error for an unreachable server", func() {
		connStr()
		_, err := postgres.New(context.Background(),
			"host=invalid port=9999 user=bad dbname=bad sslmode=disable connect_timeout=1",
			postgres.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("inserts, deduplicates, and searches records", func() {
		first := &record.ContextRecord{
			SessionID: "sess-1",
			Prompt:    "fix the websocket reconnect loop",
			Payload:   "added jittered backoff",
			Files:     []string{"conn.go"},
			Outcome:   record.OutcomeUnknown,
		}
		id1, err := s.Insert(ctx, first)
		Expect(err).NotTo(HaveOccurred())

		second := &record.ContextRecord{
			SessionID: "sess-2",
			Prompt:    "fix the websocket reconnect loop",
			Payload:   "added jittered backoff",
			Outcome:   record.OutcomeSuccess,
		}
		id2, err := s.Insert(ctx, second)
		Expect(err).NotTo(HaveOccurred())
		Expect(id2).To(Equal(id1))

		count, err := s.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))

		candidates, err := s.QueryCandidates(ctx, []string{"websocket"}, time.Time{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(HaveLen(1))
		Expect(candidates[0].SessionID).To(Equal("sess-2"))
	})

	It("updates outcomes and merges metadata", func() {
		rec := &record.ContextRecord{
			SessionID: "sess-1",
			Prompt:    "tighten the scheduler deadline",
			Payload:   "cut the budget in half",
			Metadata:  map[string]string{"branch": "main"},
			Outcome:   record.OutcomeUnknown,
		}
		id, err := s.Insert(ctx, rec)
		Expect(err).NotTo(HaveOccurred())

		ok, err := s.UpdateOutcome(ctx, id, record.OutcomeSuccess, map[string]string{"pr": "11"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		candidates, err := s.QueryCandidates(ctx, []string{"scheduler"}, time.Time{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(HaveLen(1))
		Expect(candidates[0].Outcome).To(Equal(record.OutcomeSuccess))
		Expect(candidates[0].Metadata).To(HaveKeyWithValue("branch", "main"))
		Expect(candidates[0].Metadata).To(HaveKeyWithValue("pr", "11"))

		ok, err = s.UpdateOutcome(ctx, 1<<40, record.OutcomeSuccess, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("aggregates a session", func() {
		_, err := s.Insert(ctx, &record.ContextRecord{
			SessionID: "sess-agg", Prompt: "one", Payload: "p1", Outcome: record.OutcomeSuccess,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Insert(ctx, &record.ContextRecord{
			SessionID: "sess-agg", Prompt: "two", Payload: "p2", Outcome: record.OutcomeFailure,
		})
		Expect(err).NotTo(HaveOccurred())

		summary, err := s.AggregateSession(ctx, "sess-agg")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Count).To(Equal(2))
		Expect(summary.SuccessCount).To(Equal(1))
		Expect(summary.FailureCount).To(Equal(1))
		Expect(summary.AvgRelevance).To(BeNumerically("~", 0.55, 0.001))

		_, err = s.AggregateSession(ctx, "missing")
		Expect(store.IsNotFound(err)).To(BeTrue())
	})
})
