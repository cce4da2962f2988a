package savecmder_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/api"
	savecmder "github.com/loopworkco/rewind/cmd/rewind/save"
)

var _ = Describe("NewSaveCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := savecmder.NewSaveCmd()
		Expect(cmd.Use).To(Equal("save <prompt>"))
	})

	It("has session, payload, file, outcome, and meta flags", func() {
		cmd := savecmder.NewSaveCmd()

		file := cmd.Flags().Lookup("file")
		Expect(file).NotTo(BeNil())
		Expect(file.Shorthand).To(Equal("f"))

		Expect(cmd.Flags().Lookup("session")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("payload")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("outcome")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("meta")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("api-target")).NotTo(BeNil())
	})

	It("requires exactly one argument", func() {
		cmd := savecmder.NewSaveCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"prompt"})).NotTo(HaveOccurred())
	})
})

var _ = Describe("SaveAPI", func() {
	It("posts the record and parses the created response", func() {
		var received api.StoreContextRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/contexts"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			Expect(json.NewEncoder(w).Encode(api.StoreContextResponse{
				ID:          42,
				ContentHash: "abc123",
			})).To(Succeed())
		}))
		defer server.Close()

		output, err := savecmder.SaveAPI(server.URL, &api.StoreContextRequest{
			SessionID: "sess-1",
			Prompt:    "fix the retry loop",
			Payload:   "raised the backoff cap",
			Files:     []string{"retry.go"},
			Outcome:   "Success",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(output.ID).To(Equal(int64(42)))
		Expect(output.ContentHash).To(Equal("abc123"))
		Expect(received.SessionID).To(Equal("sess-1"))
		Expect(received.Files).To(ConsistOf("retry.go"))
	})

	It("surfaces rejection responses as errors", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := savecmder.SaveAPI(server.URL, &api.StoreContextRequest{Prompt: "p", Payload: "q"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("HTTP 400"))
	})
})
