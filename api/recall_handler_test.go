package api

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("handleRecall", func() {
	Context("when query parameter is missing", func() {
		It("returns 400", func() {
			server, _ := newTestServer()

			req, err := http.NewRequest(http.MethodGet, "/v1/recall", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})
	})

	Context("when limit is invalid", func() {
		It("returns 400 for non-integer limit", func() {
			server, _ := newTestServer()

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?query=test&limit=abc", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("limit must be a positive integer"))
		})

		It("returns 400 for a zero limit", func() {
			server, _ := newTestServer()

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?query=test&limit=0", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("with stored contexts", func() {
		It("returns matching records with relevance scores", func() {
			server, _ := newTestServer()

			postJSON(server, "/v1/contexts", StoreContextRequest{
				SessionID: "sess-1",
				Prompt:    "fix the flaky websocket reconnect test",
				Payload:   "the reconnect backoff was not reset between attempts",
				Files:     []string{"ws/reconnect.go"},
				Outcome:   "Success",
			})

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?query=websocket+reconnect+backoff&files=ws/reconnect.go", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[RecallResponse](resp)
			Expect(out.Count).To(Equal(1))
			Expect(out.Records).To(HaveLen(1))
			Expect(out.Records[0].Prompt).To(ContainSubstring("websocket"))
			Expect(out.Records[0].Score).To(BeNumerically(">", 0))
		})

		It("returns an empty list when nothing matches", func() {
			server, _ := newTestServer()

			postJSON(server, "/v1/contexts", StoreContextRequest{
				SessionID: "sess-1",
				Prompt:    "fix the flaky websocket reconnect test",
				Payload:   "the reconnect backoff was not reset between attempts",
			})

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?query=zqxwvut", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[RecallResponse](resp)
			Expect(out.Count).To(Equal(0))
		})
	})

	Context("when storage is unreachable", func() {
		It("fails open and returns an empty result", func() {
			server, mem := newTestServer()
			mem.FailWith(io.ErrUnexpectedEOF)

			req, err := http.NewRequest(http.MethodGet, "/v1/recall?query=anything", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[RecallResponse](resp)
			Expect(out.Count).To(Equal(0))
		})
	})
})
