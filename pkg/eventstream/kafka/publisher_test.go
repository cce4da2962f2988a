package kafka_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/eventstream"
	"github.com/loopworkco/rewind/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "rewind.contexts"})
		Expect(p).NotTo(BeNil())
		Expect(p.Close()).To(Succeed())
	})

	It("returns ErrNilEvent for nil events without touching the broker", func() {
		p := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "rewind.contexts"})
		defer p.Close()

		err := p.PublishContextStored(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilEvent))
	})
})
