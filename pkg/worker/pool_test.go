package worker

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/store/inmemory"
)

// newTestPool creates a worker pool backed by an in-memory store.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool() (*Pool, *inmemory.Store) {
	logger, _ := zap.NewDevelopment()
	st := inmemory.New()

	eng, err := engine.New(engine.Options{Store: st})
	Expect(err).NotTo(HaveOccurred())

	wp, err := NewPool(&Config{
		Engine: eng,
		Logger: logger,
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, st
}

var _ = Describe("Worker Pool", func() {
	var (
		wp  *Pool
		st  *inmemory.Store
		ctx context.Context
	)

	BeforeEach(func() {
		wp, st = newTestPool()
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires an engine", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			ok := wp.Enqueue(Job{
				Record: &record.ContextRecord{
					SessionID: "sess-1",
					Prompt:    "trace the flaky websocket test",
					Payload:   "races on the dial timeout",
				},
			})
			Expect(ok).To(BeTrue())
			wp.Close()
		})
	})

	Describe("Async storage", func() {
		It("persists queued records after drain", func() {
			wp.Enqueue(Job{
				Record: &record.ContextRecord{
					SessionID: "sess-1",
					Prompt:    "first capture",
					Payload:   "payload one",
				},
			})
			wp.Enqueue(Job{
				Record: &record.ContextRecord{
					SessionID: "sess-1",
					Prompt:    "second capture",
					Payload:   "payload two",
				},
			})
			wp.Close()

			count, err := st.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("drops invalid records without crashing the pool", func() {
			wp.Enqueue(Job{
				Record: &record.ContextRecord{SessionID: "sess-1", Prompt: "", Payload: "orphan"},
			})
			Expect(wp.Enqueue(Job{Record: nil})).To(BeFalse())
			wp.Enqueue(Job{
				Record: &record.ContextRecord{SessionID: "sess-1", Prompt: "valid", Payload: "payload"},
			})
			wp.Close()

			count, err := st.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
