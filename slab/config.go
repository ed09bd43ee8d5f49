package slab

import (
	"math"

	"github.com/pkg/errors"
)

const (
	DefaultCapacity     = 64 << 20
	DefaultSlabSize     = 1 << 20
	DefaultMinChunkSize = 48
	DefaultMaxChunkSize = 1 << 20
	DefaultGrowthFactor = 1.25
	DefaultAlignment    = 8
)

type Config struct {
	// Capacity is region size in bytes. All slabs are reserved from it.
	Capacity int
	// SlabSize is how many bytes reserved for size class at once.
	// The last slab in the region can be smaller, if it still fits at least one chunk.
	SlabSize     int
	MinChunkSize int
	MaxChunkSize int
	// GrowthFactor is ratio between neighbour chunk sizes.
	GrowthFactor float64
	// Alignment of every chunk size except MaxChunkSize.
	Alignment int
	// ChunkSizes overrides geometric size classes if not nil.
	// Sizes should be sorted, have no duplicates, and the last one is used as max chunk size.
	ChunkSizes []int
}

func DefaultConfig() Config {
	return Config{
		Capacity:     DefaultCapacity,
		SlabSize:     DefaultSlabSize,
		MinChunkSize: DefaultMinChunkSize,
		MaxChunkSize: DefaultMaxChunkSize,
		GrowthFactor: DefaultGrowthFactor,
		Alignment:    DefaultAlignment,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Capacity == 0 {
		c.Capacity = def.Capacity
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = def.MinChunkSize
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = def.MaxChunkSize
		if c.MaxChunkSize > c.Capacity {
			c.MaxChunkSize = c.Capacity
		}
	}
	if c.SlabSize == 0 {
		c.SlabSize = def.SlabSize
		if max := c.maxChunkSize(); c.SlabSize < max {
			c.SlabSize = max
		}
	}
	if c.GrowthFactor == 0 {
		c.GrowthFactor = def.GrowthFactor
	}
	if c.Alignment == 0 {
		c.Alignment = def.Alignment
	}
	return c
}

func (c Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}
	if c.Capacity <= 0 {
		return invalid("non positive capacity %v", c.Capacity)
	}
	if c.Alignment <= 0 {
		return invalid("non positive alignment %v", c.Alignment)
	}
	if c.ChunkSizes != nil {
		if len(c.ChunkSizes) == 0 {
			return invalid("empty chunk sizes")
		}
		for i, size := range c.ChunkSizes {
			if size <= 0 {
				return invalid("non positive chunk size %v", size)
			}
			if i != 0 && c.ChunkSizes[i-1] >= size {
				return invalid("chunk sizes unsorted or have duplicates")
			}
		}
	} else {
		if c.MinChunkSize <= 0 {
			return invalid("non positive min chunk size %v", c.MinChunkSize)
		}
		if c.MaxChunkSize < c.MinChunkSize {
			return invalid("max chunk size %v is less than min %v", c.MaxChunkSize, c.MinChunkSize)
		}
		if !(c.GrowthFactor > 1) || math.IsInf(c.GrowthFactor, 0) {
			return invalid("growth factor %v should be greater than 1", c.GrowthFactor)
		}
	}
	max := c.maxChunkSize()
	if c.SlabSize < max {
		return invalid("slab size %v is less than max chunk size %v", c.SlabSize, max)
	}
	if c.Capacity < max {
		return invalid("capacity %v is less than max chunk size %v", c.Capacity, max)
	}
	return nil
}

func (c Config) maxChunkSize() int {
	if c.ChunkSizes != nil {
		if len(c.ChunkSizes) == 0 {
			return 0
		}
		return c.ChunkSizes[len(c.ChunkSizes)-1]
	}
	return c.MaxChunkSize
}

// SizeClasses returns chunk sizes: from MinChunkSize multiplied by GrowthFactor
// and aligned, while less than MaxChunkSize. MaxChunkSize is always the last class.
// Config should be valid.
func (c Config) SizeClasses() []int {
	if c.ChunkSizes != nil {
		return append([]int(nil), c.ChunkSizes...)
	}
	var sizes []int
	for size := c.MinChunkSize; ; {
		size = align(size, c.Alignment)
		if n := len(sizes); n > 0 && size <= sizes[n-1] {
			size = sizes[n-1] + c.Alignment
		}
		if size >= c.MaxChunkSize {
			break
		}
		sizes = append(sizes, size)
		size = int(float64(size) * c.GrowthFactor)
	}
	return append(sizes, c.MaxChunkSize)
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}
