package mcp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/api/mcp"
	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/store/inmemory"
	"github.com/loopworkco/rewind/pkg/trigger"
)

var _ = Describe("MCP Server", func() {
	var (
		server *mcp.Server
		eng    *engine.Engine
	)

	BeforeEach(func() {
		var err error
		eng, err = engine.New(engine.Options{
			Store:  inmemory.New(),
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = mcp.NewServer(mcp.Config{
			Engine:   eng,
			Analyzer: trigger.NewAnalyzer(nil),
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when engine is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Logger: zap.NewNop(),
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("engine is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Engine: eng,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with valid config", func() {
			Expect(server).NotTo(BeNil())
		})

		It("creates a server without an analyzer", func() {
			s, err := mcp.NewServer(mcp.Config{
				Engine: eng,
				Logger: zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			handler := server.Handler()
			Expect(handler).NotTo(BeNil())
		})

		It("creates an empty server when noop is set", func() {
			s, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})
	})
})
