package directcache

import (
	"io"
	"os"

	"github.com/mo-open/direct-cache-sub001/cache"
	"github.com/mo-open/direct-cache-sub001/log"
	"github.com/mo-open/direct-cache-sub001/slab"
)

type Config struct {
	// LogDestination is log output. Default is stderr.
	LogDestination io.Writer
	LogLevel       log.Level
	Slab           slab.Config
	Cache          cache.Config
}

func DefaultConfig() Config {
	return Config{
		LogDestination: os.Stderr,
		LogLevel:       log.InfoLevel,
		Slab:           slab.DefaultConfig(),
		Cache: cache.Config{
			Shards:       cache.DefaultShards,
			PromoteEvery: cache.DefaultPromoteEvery,
			EvictBatch:   cache.DefaultEvictBatch,
		},
	}
}

func (c Config) logger() log.Logger {
	dest := c.LogDestination
	if dest == nil {
		dest = os.Stderr
	}
	return log.NewLogger(c.LogLevel, dest)
}
