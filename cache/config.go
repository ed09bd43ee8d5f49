package cache

import (
	"time"

	"github.com/mo-open/direct-cache-sub001/recycle"
)

const (
	DefaultShards       = 64
	DefaultPromoteEvery = 2
	DefaultEvictBatch   = 16
)

type Config struct {
	// Shards is number of key table shards. Rounded up to power of two.
	Shards int
	// PromoteEvery is hits number per entry promotion to lru head.
	// One means promotion on every hit.
	PromoteEvery int
	// PromoteInterval is minimal time between promotions of entry. Zero means no limit.
	PromoteInterval time.Duration
	// EvictBatch is max number of entries evicted, when allocator is out of memory.
	EvictBatch int
	// DefaultExpiry is used by Set. Zero means no expiration.
	DefaultExpiry time.Duration

	// LeakCallback is set to every holder. For test and debug purpose only.
	LeakCallback recycle.LeakCallback
	// OnEvict is called after entry eviction, on the goroutine that triggered it.
	OnEvict func(key string)
	// Now is clock. Default is time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = DefaultShards
	}
	shards := 1
	for shards < c.Shards {
		shards <<= 1
	}
	c.Shards = shards
	if c.PromoteEvery <= 0 {
		c.PromoteEvery = DefaultPromoteEvery
	}
	if c.EvictBatch <= 0 {
		c.EvictBatch = DefaultEvictBatch
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
