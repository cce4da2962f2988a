package codec_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/codec"
)

var _ = Describe("Codec", func() {
	Describe("Compress", func() {
		It("passes short payloads through untouched", func() {
			stored, compressed, err := codec.Compress("small", 1024)
			Expect(err).NotTo(HaveOccurred())
			Expect(compressed).To(BeFalse())
			Expect(stored).To(Equal("small"))
		})

		It("compresses payloads over the threshold", func() {
			payload := strings.Repeat("the same context line over and over\n", 100)
			stored, compressed, err := codec.Compress(payload, 1024)
			Expect(err).NotTo(HaveOccurred())
			Expect(compressed).To(BeTrue())
			Expect(stored).NotTo(Equal(payload))
			// Repetitive text compresses well even with hex doubling.
			Expect(len(stored)).To(BeNumerically("<", len(payload)))
		})

		It("disables compression when threshold is zero", func() {
			payload := strings.Repeat("x", 4096)
			stored, compressed, err := codec.Compress(payload, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(compressed).To(BeFalse())
			Expect(stored).To(Equal(payload))
		})
	})

	Describe("Decompress", func() {
		It("round-trips a compressed payload", func() {
			payload := strings.Repeat("context fragment ", 200)
			stored, compressed, err := codec.Compress(payload, 64)
			Expect(err).NotTo(HaveOccurred())
			Expect(compressed).To(BeTrue())

			restored, err := codec.Decompress(stored)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored).To(Equal(payload))
		})

		It("returns a DecodeError for malformed hex", func() {
			_, err := codec.Decompress("not hex at all!")
			Expect(err).To(HaveOccurred())

			var derr codec.DecodeError
			Expect(err).To(BeAssignableToTypeOf(derr))
		})

		It("returns a DecodeError for valid hex that is not gzip", func() {
			_, err := codec.Decompress("deadbeef")
			Expect(err).To(HaveOccurred())

			var derr codec.DecodeError
			Expect(err).To(BeAssignableToTypeOf(derr))
		})
	})
})
