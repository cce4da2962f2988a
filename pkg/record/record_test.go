package record_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/record"
)

var _ = Describe("ContextRecord", func() {
	Describe("Validate", func() {
		It("accepts a record with prompt and payload", func() {
			r := &record.ContextRecord{
				Prompt:  "fix auth bug",
				Payload: "the token refresh path was racing the session store",
				Outcome: record.OutcomeSuccess,
			}
			Expect(r.Validate()).To(Succeed())
		})

		It("rejects an empty prompt", func() {
			r := &record.ContextRecord{Payload: "something"}
			err := r.Validate()
			Expect(err).To(HaveOccurred())

			var verr record.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
			Expect(err.Error()).To(ContainSubstring("prompt"))
		})

		It("rejects an empty payload", func() {
			r := &record.ContextRecord{Prompt: "fix auth bug"}
			err := r.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("payload"))
		})

		It("rejects an unknown outcome value", func() {
			r := &record.ContextRecord{
				Prompt:  "fix auth bug",
				Payload: "notes",
				Outcome: record.Outcome("Shrug"),
			}
			Expect(r.Validate()).NotTo(Succeed())
		})

		It("allows an unset outcome", func() {
			r := &record.ContextRecord{Prompt: "p", Payload: "c"}
			Expect(r.Validate()).To(Succeed())
		})
	})

	Describe("ContentHash", func() {
		It("is deterministic for identical inputs", func() {
			a := record.ContentHash("fix auth bug", "payload text")
			b := record.ContentHash("fix auth bug", "payload text")
			Expect(a).To(Equal(b))
			Expect(a).To(HaveLen(64))
		})

		It("differs when either input differs", func() {
			base := record.ContentHash("fix auth bug", "payload text")
			Expect(record.ContentHash("fix auth bug", "other payload")).NotTo(Equal(base))
			Expect(record.ContentHash("add login page", "payload text")).NotTo(Equal(base))
		})

		It("is not fooled by boundary shifting", func() {
			// "ab"+"c" must not hash the same as "a"+"bc".
			Expect(record.ContentHash("ab", "c")).NotTo(Equal(record.ContentHash("a", "bc")))
		})
	})

	Describe("Outcome", func() {
		It("validates the four known outcomes", func() {
			for _, o := range []record.Outcome{
				record.OutcomeSuccess,
				record.OutcomePartial,
				record.OutcomeFailure,
				record.OutcomeUnknown,
			} {
				Expect(o.Valid()).To(BeTrue())
			}
			Expect(record.Outcome("success").Valid()).To(BeFalse())
		})
	})
})
