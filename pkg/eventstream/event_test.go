package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/eventstream"
	"github.com/loopworkco/rewind/pkg/record"
)

var _ = Describe("Event", func() {
	It("marshals ContextStoredEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.ContextStoredEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeContextStored,
			EventID:       "evt_123",
			EmittedAt:     now,
			Source: eventstream.EventSource{
				Project:   "my-project",
				AgentName: "codex",
			},
			RecordID:    42,
			SessionID:   "sess-1",
			ContentHash: "deadbeef",
			Outcome:     record.OutcomeSuccess,
			Compressed:  true,
			FileCount:   3,
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("record_id"))
		Expect(got).To(HaveKey("session_id"))
		Expect(got).To(HaveKey("content_hash"))
		Expect(got).To(HaveKey("outcome"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeContextStored).To(Equal("rewind.context.stored"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilEvent).To(MatchError("nil context event"))
	})
})
