package log

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logger", func() {
	var (
		out *bytes.Buffer
		l   Logger
	)
	BeforeEach(func() {
		out = &bytes.Buffer{}
		l = NewLogger(InfoLevel, out)
	})

	It("filters by level", func() {
		l.Debug("hidden")
		l.Infof("shown %v", 1)
		l.Warn("warn")
		Expect(out.String()).NotTo(ContainSubstring("hidden"))
		Expect(out.String()).To(ContainSubstring("INFO: shown 1"))
		Expect(out.String()).To(ContainSubstring("WARN: warn"))
	})

	It("writes fields as json", func() {
		l.WithFields(Fields{"shard": 3}).Error("evicted")
		Expect(out.String()).To(ContainSubstring(`ERROR: {"shard":3} evicted`))
	})

	It("merges fields", func() {
		l = l.WithFields(Fields{"a": 1}).WithFields(Fields{"b": 2})
		Expect(l.Fields()).To(Equal(Fields{"a": 1, "b": 2}))
	})

	It("panics", func() {
		Expect(func() { l.Panicf("broken %v", "invariant") }).To(PanicWith("broken invariant"))
		Expect(out.String()).To(ContainSubstring("broken invariant"))
	})

	It("nop logger is silent", func() {
		NewNopLogger().Error("nothing")
	})

	It("parses level", func() {
		level, err := LevelFromString("debug")
		Expect(err).NotTo(HaveOccurred())
		Expect(level).To(Equal(DebugLevel))
		level, err = LevelFromString("WARN")
		Expect(err).NotTo(HaveOccurred())
		Expect(level).To(Equal(WarnLevel))
		_, err = LevelFromString("verbose")
		Expect(err).To(HaveOccurred())
	})
})
