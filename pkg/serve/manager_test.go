package serve_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/serve"
)

var _ = Describe("Manager", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "rewind-serve-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if tempDir != "" {
			Expect(os.RemoveAll(tempDir)).To(Succeed())
		}
	})

	It("saves and loads state", func() {
		manager, err := serve.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		state := &serve.State{
			DaemonPID: 123,
			APIURL:    "http://localhost:8092",
			Provider:  "sqlite",
			Agents: []serve.AgentSession{{
				Name:      "claude",
				SessionID: "sess-abc",
				PID:       456,
			}},
		}

		Expect(manager.SaveState(state)).To(Succeed())
		loaded, err := manager.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).NotTo(BeNil())
		Expect(loaded.DaemonPID).To(Equal(123))
		Expect(loaded.APIURL).To(Equal("http://localhost:8092"))
		Expect(loaded.Provider).To(Equal("sqlite"))
		Expect(loaded.Agents).To(HaveLen(1))
		Expect(loaded.Agents[0].Name).To(Equal("claude"))
		Expect(loaded.Agents[0].SessionID).To(Equal("sess-abc"))
		Expect(loaded.Agents[0].PID).To(Equal(456))
		Expect(loaded.LogPath).To(Equal(filepath.Join(tempDir, "serve.log")))
	})

	It("clears state", func() {
		manager, err := serve.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(manager.SaveState(&serve.State{DaemonPID: 1})).To(Succeed())
		Expect(manager.ClearState()).To(Succeed())

		loaded, err := manager.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeNil())
	})

	It("locks and releases", func() {
		manager, err := serve.NewManager(tempDir)
		Expect(err).NotTo(HaveOccurred())

		lock, err := manager.Lock()
		Expect(err).NotTo(HaveOccurred())
		Expect(lock).NotTo(BeNil())
		Expect(lock.Release()).To(Succeed())
	})
})
