package mcp

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/store/inmemory"
)

var _ = Describe("Recall and save tools", func() {
	var (
		server *Server
		ctx    context.Context
	)

	BeforeEach(func() {
		eng, err := engine.New(engine.Options{
			Store:  inmemory.New(),
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			Engine: eng,
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Describe("handleSave", func() {
		It("stores a record and returns its id and hash", func() {
			result, output, err := server.handleSave(ctx, nil, SaveInput{
				SessionID: "sess-1",
				Prompt:    "fix the retry loop in the uploader",
				Payload:   "retries were not backing off on 429 responses",
				Files:     []string{"upload/retry.go"},
				Outcome:   "Success",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.ID).To(BeNumerically(">=", 1))
			Expect(output.ContentHash).NotTo(BeEmpty())
		})

		It("reports a tool error for an invalid record", func() {
			result, _, err := server.handleSave(ctx, nil, SaveInput{
				SessionID: "sess-1",
				Payload:   "payload with no prompt",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("handleRecall", func() {
		BeforeEach(func() {
			_, _, err := server.handleSave(ctx, nil, SaveInput{
				SessionID: "sess-1",
				Prompt:    "fix the retry loop in the uploader",
				Payload:   "retries were not backing off on 429 responses",
				Files:     []string{"upload/retry.go"},
				Outcome:   "Success",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("recalls a stored record by query", func() {
			result, output, err := server.handleRecall(ctx, nil, RecallInput{
				Query: "uploader retry backoff",
				Files: []string{"upload/retry.go"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Records[0].Prompt).To(ContainSubstring("retry loop"))
			Expect(output.Records[0].Score).To(BeNumerically(">", 0))
		})

		It("returns an empty result for an unrelated query", func() {
			_, output, err := server.handleRecall(ctx, nil, RecallInput{
				Query: "zqxwvut",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(Equal(0))
		})
	})
})

var _ = Describe("buildRecalledContext", func() {
	It("copies every field from the scored record", func() {
		sr := record.ScoredRecord{
			ContextRecord: record.ContextRecord{
				ID:        42,
				SessionID: "sess-9",
				Prompt:    "a prompt",
				Payload:   "a payload",
				Files:     []string{"a.go"},
				Outcome:   record.OutcomePartial,
			},
			Score: 0.7,
		}

		rc := buildRecalledContext(sr)
		Expect(rc.ID).To(Equal(int64(42)))
		Expect(rc.SessionID).To(Equal("sess-9"))
		Expect(rc.Prompt).To(Equal("a prompt"))
		Expect(rc.Payload).To(Equal("a payload"))
		Expect(rc.Files).To(Equal([]string{"a.go"}))
		Expect(rc.Outcome).To(Equal("Partial"))
		Expect(rc.Score).To(Equal(0.7))
	})
})
