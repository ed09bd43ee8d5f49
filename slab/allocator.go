package slab

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/mo-open/direct-cache-sub001/internal/region"
	"github.com/mo-open/direct-cache-sub001/log"
)

// Allocator hands out fixed capacity chunks of off-heap region.
// Chunks are grouped in size classes. Every class reserves region memory
// by slabs, lazily, when it has no free chunk. Reserved slab is never returned
// to the region until Reset or Destroy.
//
// Allocate and Free never block on anything but short per class critical section,
// so different size classes proceed independently.
type Allocator struct {
	log     log.Logger
	conf    Config
	region  *region.Region
	classes []*class

	// reserved is region offset of next slab. Changed only under class lock.
	reserved  atomic.Int64
	destroyed atomic.Bool
}

// Slab is contiguous run of equal size chunks reserved for one size class.
type Slab struct {
	ChunkSize  int
	ChunkCount int
	Offset     int
}

// class free list contains region offsets of free chunks from all class slabs.
type class struct {
	chunkSize int

	mu        sync.Mutex
	slabs     []Slab
	free      []int
	inUse     int
	requested int64 // Sum of requested sizes of chunks in use.
	used      int64
}

// ClassStats is size class usage snapshot.
type ClassStats struct {
	ChunkSize int
	Slabs     int
	Chunks    int
	Free      int
	InUse     int
	Requested int64
	Used      int64
}

// New reserves region of conf.Capacity bytes. Zero config fields are set to defaults.
// Nil logger discards everything.
func New(l log.Logger, conf Config) (*Allocator, error) {
	if l == nil {
		l = log.NewNopLogger()
	}
	conf = conf.withDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	r, err := region.New(conf.Capacity)
	if err != nil {
		return nil, err
	}
	a := &Allocator{
		log:    l,
		conf:   conf,
		region: r,
	}
	for _, size := range conf.SizeClasses() {
		a.classes = append(a.classes, &class{chunkSize: size})
	}
	l.Debugf("Allocator created. Capacity: %v, slab size: %v, classes: %v.",
		conf.Capacity, conf.SlabSize, len(a.classes))
	return a, nil
}

// Allocate returns buffer with smallest chunk that fits size.
// Zero size request returns zero capacity buffer, which consumes no chunk.
func (a *Allocator) Allocate(size int) (*Buffer, error) {
	if a.destroyed.Load() {
		return nil, errors.Wrap(ErrIllegalState, "allocate after destroy")
	}
	if size < 0 {
		return nil, ErrNegativeSize
	}
	if size == 0 {
		return &Buffer{alloc: a, class: zeroClass}, nil
	}
	if size > a.MaxChunkSize() {
		return nil, ErrOversizedRequest
	}
	ci := a.classIndex(size)
	c := a.classes[ci]
	c.mu.Lock()
	if len(c.free) == 0 && !a.reserveSlab(c) {
		c.mu.Unlock()
		return nil, ErrOutOfMemory
	}
	last := len(c.free) - 1
	offset := c.free[last]
	c.free = c.free[:last]
	c.inUse++
	c.requested += int64(size)
	c.used += int64(c.chunkSize)
	c.mu.Unlock()

	data, err := a.region.Slice(offset, c.chunkSize)
	if err != nil {
		// Region closed by concurrent Destroy.
		return nil, errors.Wrap(ErrIllegalState, err.Error())
	}
	return &Buffer{
		alloc:     a,
		class:     ci,
		offset:    offset,
		data:      data,
		requested: size,
	}, nil
}

// Free returns buffer chunk to its class free list.
// Buffer should not be used after that. Double free is not detected here:
// exactly once free is guaranteed by buffer owner.
func (a *Allocator) Free(b *Buffer) error {
	if a.destroyed.Load() {
		return errors.Wrap(ErrIllegalState, "free after destroy")
	}
	if b.alloc != a {
		return errors.Wrap(ErrIllegalState, "buffer of another allocator")
	}
	if b.class == zeroClass {
		return nil
	}
	c := a.classes[b.class]
	c.mu.Lock()
	c.free = append(c.free, b.offset)
	c.inUse--
	c.requested -= int64(b.requested)
	c.used -= int64(c.chunkSize)
	c.mu.Unlock()
	return nil
}

// reserveSlab reserves new slab for class, if it fits in the region.
// Requires class lock.
func (a *Allocator) reserveSlab(c *class) bool {
	for {
		offset := a.reserved.Load()
		left := int64(a.conf.Capacity) - offset
		size := int64(a.conf.SlabSize)
		if left < size {
			// Tail slab: use what left, if any chunk fits.
			size = left / int64(c.chunkSize) * int64(c.chunkSize)
		}
		if size == 0 {
			return false
		}
		if !a.reserved.CompareAndSwap(offset, offset+size) {
			continue
		}
		s := Slab{
			ChunkSize:  c.chunkSize,
			ChunkCount: int(size) / c.chunkSize,
			Offset:     int(offset),
		}
		c.slabs = append(c.slabs, s)
		// Reversed, so lower chunks are allocated first.
		for i := s.ChunkCount - 1; i >= 0; i-- {
			c.free = append(c.free, s.Offset+i*s.ChunkSize)
		}
		a.log.Debugf("Slab reserved. Chunk size: %v, chunks: %v, offset: %v.", s.ChunkSize, s.ChunkCount, s.Offset)
		return true
	}
}

// classIndex returns index of smallest class that fits size. Size should not be greater than max chunk size.
func (a *Allocator) classIndex(size int) int {
	return sort.Search(len(a.classes), func(i int) bool {
		return a.classes[i].chunkSize >= size
	})
}

// Reset drops all slabs, and returns physical memory to OS.
// It fails if any chunk is still in use.
func (a *Allocator) Reset() error {
	if a.destroyed.Load() {
		return errors.Wrap(ErrIllegalState, "reset after destroy")
	}
	for _, c := range a.classes {
		c.mu.Lock()
	}
	defer func() {
		for _, c := range a.classes {
			c.mu.Unlock()
		}
	}()
	for _, c := range a.classes {
		if c.inUse != 0 {
			return errors.Wrapf(ErrIllegalState, "reset: %v chunks of size %v in use", c.inUse, c.chunkSize)
		}
	}
	for _, c := range a.classes {
		c.slabs = nil
		c.free = nil
	}
	reserved := int(a.reserved.Swap(0))
	a.log.Debugf("Allocator reset. Released: %v bytes.", reserved)
	return a.region.Advise(0, reserved, region.AccessDontNeed)
}

// Destroy releases region. Any use of allocator or its buffers after that fails with ErrIllegalState.
// Destroy must not race with buffer reads and writes.
func (a *Allocator) Destroy() error {
	if a.destroyed.Swap(true) {
		return errors.Wrap(ErrIllegalState, "second destroy")
	}
	a.log.Debug("Allocator destroyed.")
	return a.region.Close()
}

func (a *Allocator) Destroyed() bool { return a.destroyed.Load() }

// Capacity returns total bytes reserved by slabs.
// Usage reporting methods return zero after Destroy.
func (a *Allocator) Capacity() int64 {
	if a.destroyed.Load() {
		return 0
	}
	return a.reserved.Load()
}

// RegionCapacity returns total bytes that can be reserved.
func (a *Allocator) RegionCapacity() int64 {
	if a.destroyed.Load() {
		return 0
	}
	return int64(a.conf.Capacity)
}

// Used returns bytes of allocated buffers at chunk granularity.
func (a *Allocator) Used() int64 {
	return a.sum(func(c *class) int64 { return c.used })
}

// ActualUsed is the same as Used.
func (a *Allocator) ActualUsed() int64 { return a.Used() }

// RequestedUsed returns sum of requested sizes of allocated buffers.
// Difference with Used is internal fragmentation.
func (a *Allocator) RequestedUsed() int64 {
	return a.sum(func(c *class) int64 { return c.requested })
}

func (a *Allocator) sum(field func(c *class) int64) int64 {
	if a.destroyed.Load() {
		return 0
	}
	var res int64
	for _, c := range a.classes {
		c.mu.Lock()
		res += field(c)
		c.mu.Unlock()
	}
	return res
}

func (a *Allocator) MinChunkSize() int { return a.classes[0].chunkSize }
func (a *Allocator) MaxChunkSize() int { return a.classes[len(a.classes)-1].chunkSize }

// ChunkSize returns capacity of buffer that would be allocated for size.
func (a *Allocator) ChunkSize(size int) (int, error) {
	if size < 0 {
		return 0, ErrNegativeSize
	}
	if size == 0 {
		return 0, nil
	}
	if size > a.MaxChunkSize() {
		return 0, ErrOversizedRequest
	}
	return a.classes[a.classIndex(size)].chunkSize, nil
}

func (a *Allocator) SizeClasses() []int {
	sizes := make([]int, len(a.classes))
	for i, c := range a.classes {
		sizes[i] = c.chunkSize
	}
	return sizes
}

// Stats returns nil after Destroy.
func (a *Allocator) Stats() []ClassStats {
	if a.destroyed.Load() {
		return nil
	}
	stats := make([]ClassStats, len(a.classes))
	for i, c := range a.classes {
		c.mu.Lock()
		s := ClassStats{
			ChunkSize: c.chunkSize,
			Slabs:     len(c.slabs),
			Free:      len(c.free),
			InUse:     c.inUse,
			Requested: c.requested,
			Used:      c.used,
		}
		for _, sl := range c.slabs {
			s.Chunks += sl.ChunkCount
		}
		c.mu.Unlock()
		stats[i] = s
	}
	return stats
}

// Slabs returns reserved slabs of all classes ordered by offset.
func (a *Allocator) Slabs() []Slab {
	if a.destroyed.Load() {
		return nil
	}
	var slabs []Slab
	for _, c := range a.classes {
		c.mu.Lock()
		slabs = append(slabs, c.slabs...)
		c.mu.Unlock()
	}
	sort.Slice(slabs, func(i, j int) bool { return slabs[i].Offset < slabs[j].Offset })
	return slabs
}

func (a *Allocator) String() string {
	return fmt.Sprintf("slab.Allocator{capacity: %v/%v, used: %v, requested: %v}",
		a.Capacity(), a.RegionCapacity(), a.Used(), a.RequestedUsed())
}
