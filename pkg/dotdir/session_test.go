package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/dotdir"
)

var _ = Describe("SessionState", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "session-test-*")
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns nil when no session state exists", func() {
		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a saved session", func() {
		started := time.Now().UTC().Truncate(time.Second)
		Expect(m.SaveSession(&dotdir.SessionState{ID: "sess-42", StartedAt: started}, tmpDir)).To(Succeed())

		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.ID).To(Equal("sess-42"))
		Expect(state.StartedAt).To(BeTemporally("==", started))
	})

	It("rejects a nil session state", func() {
		Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
	})

	It("clears the session state", func() {
		Expect(m.SaveSession(&dotdir.SessionState{ID: "sess-42"}, tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())

		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())

		// Clearing twice is fine.
		Expect(m.ClearSession(tmpDir)).To(Succeed())
	})
})
