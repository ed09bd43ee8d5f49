package config

import (
	"io/ioutil"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	"github.com/onsi/gomega"

	"github.com/mo-open/direct-cache-sub001/log"
	. "github.com/mo-open/direct-cache-sub001/testutil"
)

var _ = Describe("Config", func() {
	DescribeTable("parse size",
		func(s string, expected int64) {
			size, err := parseSize(s)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(size).To(gomega.Equal(expected))
		},
		Entry("bytes", "48b", int64(48)),
		Entry("kilobytes", "4k", int64(4<<10)),
		Entry("megabytes upper case", "64M", int64(64<<20)),
		Entry("gigabytes", "2g", int64(2<<30)),
	)

	DescribeTable("invalid size",
		func(s string) {
			_, err := parseSize(s)
			gomega.Expect(err).To(gomega.HaveOccurred())
		},
		Entry("empty", ""),
		Entry("no number", "m"),
		Entry("unknown exponent", "10t"),
		Entry("not a number", "xxm"),
	)

	It("default parses", func() {
		conf, load, err := Parse(*Default())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(conf.LogLevel).To(gomega.Equal(log.InfoLevel))
		gomega.Expect(conf.Slab.Capacity).To(gomega.Equal(64 << 20))
		gomega.Expect(conf.Slab.MinChunkSize).To(gomega.Equal(48))
		gomega.Expect(conf.Cache.DefaultExpiry).To(gomega.BeZero())
		gomega.Expect(load.ValueSize).To(gomega.Equal(4 << 10))
		gomega.Expect(load.Workers).To(gomega.Equal(8))
		gomega.Expect(load.Duration).To(gomega.BeZero())
	})

	It("merge overrides non zero values", func() {
		def := Default()
		Merge(def, &Config{
			LogLevel: "debug",
			Expiry:   "10s",
			Load:     LoadConfig{Workers: 2, Duration: "1s"},
		})
		gomega.Expect(def.LogLevel).To(gomega.Equal("debug"))
		gomega.Expect(def.Capacity).To(gomega.Equal(Default().Capacity))
		gomega.Expect(def.Load.Workers).To(gomega.Equal(2))
		gomega.Expect(def.Load.Keys).To(gomega.Equal(Default().Load.Keys))

		conf, load, err := Parse(*def)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(conf.LogLevel).To(gomega.Equal(log.DebugLevel))
		gomega.Expect(conf.Cache.DefaultExpiry).To(gomega.Equal(10 * time.Second))
		gomega.Expect(load.Duration).To(gomega.Equal(time.Second))
	})

	DescribeTable("invalid config",
		func(override Config) {
			def := Default()
			Merge(def, &override)
			_, _, err := Parse(*def)
			gomega.Expect(err).To(gomega.HaveOccurred())
		},
		Entry("log level", Config{LogLevel: "verbose"}),
		Entry("capacity", Config{Capacity: "64"}),
		Entry("slab smaller than max chunk", Config{SlabSize: "64k"}),
		Entry("growth factor", Config{GrowthFactor: 0.5}),
		Entry("expiry", Config{Expiry: "forever"}),
		Entry("ratios", Config{Load: LoadConfig{PutRatio: 0.7, RemoveRatio: 0.7}}),
		Entry("value size", Config{Load: LoadConfig{ValueSize: "1m"}}),
		Entry("duration", Config{Load: LoadConfig{Duration: "long"}}),
	)

	It("read file", func() {
		filename := TmpFileName()
		expected := &Config{Capacity: "1g", Load: LoadConfig{Workers: 3}}
		gomega.Expect(ioutil.WriteFile(filename, Marshal(expected), 0644)).To(gomega.Succeed())
		defer os.Remove(filename)
		conf, err := Read(filename)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(conf).To(gomega.Equal(expected))
	})

	It("read missing file fails", func() {
		_, err := Read(TmpFileName())
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
