package cache

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/mo-open/direct-cache-sub001/log"
	"github.com/mo-open/direct-cache-sub001/recycle"
	"github.com/mo-open/direct-cache-sub001/slab"
)

var ErrDestroyed = errors.New("cache: map destroyed")

// Map is concurrent key to off-heap value map. Values are stored in allocator chunks.
// When allocator is out of memory, Map evicts least recently used entries.
type Map struct {
	log     log.Logger
	conf    Config
	alloc   *slab.Allocator
	seed    maphash.Seed
	shards  []*shard
	mask    uint64
	lru     *lru
	metrics *mapMetrics

	size      atomic.Int64
	destroyed atomic.Bool
}

type shard struct {
	sync.RWMutex
	table map[string]*node
}

// NewMap returns map over allocator. Map owns allocator: Destroy destroys it.
// Nil logger discards everything.
func NewMap(l log.Logger, alloc *slab.Allocator, conf Config) *Map {
	if l == nil {
		l = log.NewNopLogger()
	}
	conf = conf.withDefaults()
	m := &Map{
		log:   l,
		conf:  conf,
		alloc: alloc,
		seed:  maphash.MakeSeed(),
		mask:  uint64(conf.Shards - 1),
		lru:   newLRU(conf.PromoteEvery, conf.PromoteInterval),
	}
	for i := 0; i < conf.Shards; i++ {
		m.shards = append(m.shards, &shard{table: make(map[string]*node)})
	}
	m.metrics = newMapMetrics(m)
	l.Debugf("Map created. Shards: %v, promote every: %v, evict batch: %v.",
		conf.Shards, conf.PromoteEvery, conf.EvictBatch)
	return m
}

// Put stores copy of value under key, replacing previous value.
// Zero expiry means no expiration.
// Replaced value is recycled after its readers finish.
func (m *Map) Put(key string, value []byte, expiry time.Duration) error {
	_, err := m.store(key, value, expiry, false)
	return err
}

// Set is Put with default expiry.
func (m *Map) Set(key string, value []byte) error {
	return m.Put(key, value, m.conf.DefaultExpiry)
}

// PutIfAbsent stores value, only if key is absent or expired.
// Otherwise it returns present value, loaded true, and map is unmodified.
func (m *Map) PutIfAbsent(key string, value []byte, expiry time.Duration) (actual []byte, loaded bool, err error) {
	existing, err := m.store(key, value, expiry, true)
	if existing == nil {
		if err != nil {
			return nil, false, err
		}
		return value, false, nil
	}
	actual, readErr := existing.Read()
	releaseErr := existing.Release()
	return actual, true, firstErr(err, readErr, releaseErr)
}

// Get returns copy of value. Present empty value is returned as empty
// non nil slice and ok true. Missed or expired key returns ok false.
func (m *Map) Get(key string) (value []byte, ok bool, err error) {
	if m.destroyed.Load() {
		return nil, false, ErrDestroyed
	}
	now := m.now()
	n, err := m.lookup(key, now)
	if n == nil {
		m.metrics.misses.Inc(1)
		return nil, false, err
	}
	m.touch(n, now)
	value, readErr := n.Read()
	if err = firstErr(err, readErr, n.Release()); err != nil {
		return nil, false, err
	}
	m.metrics.hits.Inc(1)
	return value, true, nil
}

// View returns reader of value. Value is not recycled until reader Close.
func (m *Map) View(key string) (r *recycle.Reader, ok bool, err error) {
	if m.destroyed.Load() {
		return nil, false, ErrDestroyed
	}
	now := m.now()
	n, err := m.lookup(key, now)
	if n == nil {
		m.metrics.misses.Inc(1)
		return nil, false, err
	}
	m.touch(n, now)
	r, readerErr := n.NewReader()
	if err = firstErr(err, readerErr, n.Release()); err != nil {
		if r != nil {
			r.Close()
		}
		return nil, false, err
	}
	m.metrics.hits.Inc(1)
	return r, true, nil
}

// Remove deletes key. Value is recycled after its readers finish.
func (m *Map) Remove(key string) (removed bool, err error) {
	if m.destroyed.Load() {
		return false, ErrDestroyed
	}
	s := m.shard(key)
	s.Lock()
	n, ok := s.table[key]
	if !ok {
		s.Unlock()
		return false, nil
	}
	delete(s.table, key)
	m.lru.remove(n)
	s.Unlock()
	m.size.Add(-1)
	return true, n.Release()
}

// Clear removes all entries. When no value has readers, allocator usage drops to zero,
// and allocator slabs are reset.
func (m *Map) Clear() error {
	if m.destroyed.Load() {
		return ErrDestroyed
	}
	err := m.removeAll()
	if resetErr := m.alloc.Reset(); resetErr != nil {
		m.log.Debugf("Allocator was not reset after clear: %v.", resetErr)
	}
	return err
}

// PurgeExpired removes expired entries, and returns their number.
func (m *Map) PurgeExpired() (purged int, err error) {
	if m.destroyed.Load() {
		return 0, ErrDestroyed
	}
	now := m.now()
	for _, s := range m.shards {
		var expired []*node
		s.Lock()
		for key, n := range s.table {
			if n.ExpiredAt(now) {
				delete(s.table, key)
				m.lru.remove(n)
				expired = append(expired, n)
			}
		}
		s.Unlock()
		m.size.Add(-int64(len(expired)))
		for _, n := range expired {
			err = firstErr(err, n.Release())
		}
		purged += len(expired)
	}
	m.metrics.expirations.Inc(int64(purged))
	if purged > 0 {
		m.log.Debugf("Purged %v expired entries.", purged)
	}
	return
}

// Size returns number of entries, including expired, that were not accessed yet.
// Size and usage reporting methods return zero after Destroy.
func (m *Map) Size() int {
	if m.destroyed.Load() {
		return 0
	}
	return int(m.size.Load())
}

// Destroy removes all entries and destroys allocator. Any map call after that fails.
// Readers, that are not closed yet, fail on next read.
func (m *Map) Destroy() error {
	if m.destroyed.Swap(true) {
		return ErrDestroyed
	}
	err := m.removeAll()
	err = firstErr(err, m.alloc.Destroy())
	m.log.Debug("Map destroyed.")
	return err
}

func (m *Map) Destroyed() bool { return m.destroyed.Load() }

// Capacity returns bytes reserved by allocator slabs.
func (m *Map) Capacity() int64 { return m.alloc.Capacity() }

// Used returns bytes of allocator chunks used by values.
func (m *Map) Used() int64 { return m.alloc.Used() }

// ActualUsed is the same as Used.
func (m *Map) ActualUsed() int64 { return m.alloc.ActualUsed() }

// RequestedUsed returns sum of stored value sizes.
func (m *Map) RequestedUsed() int64 { return m.alloc.RequestedUsed() }

// store allocates and writes value, and then inserts it.
// In ifAbsent mode, if key is present, acquired present node is returned, and nothing is changed.
func (m *Map) store(key string, value []byte, expiry time.Duration, ifAbsent bool) (existing *node, err error) {
	if m.destroyed.Load() {
		return nil, ErrDestroyed
	}
	if expiry < 0 {
		return nil, errors.Errorf("cache: negative expiry %v", expiry)
	}
	now := m.now()
	if ifAbsent {
		existing, err = m.lookup(key, now)
		if existing != nil || err != nil {
			return
		}
	}
	buf, err := m.allocate(len(value))
	if err != nil {
		return nil, errors.Wrapf(err, "put %q of %v bytes", key, len(value))
	}
	if _, err = buf.Write(value); err != nil {
		return nil, firstErr(err, buf.Free())
	}
	h := recycle.NewHolder(key, buf, expiry, now)
	if m.conf.LeakCallback != nil {
		h.SetLeakCallback(m.conf.LeakCallback)
	}
	n := newNode(h)

	s := m.shard(key)
	s.Lock()
	old := s.table[key]
	if ifAbsent && old != nil && !old.ExpiredAt(now) && old.Acquire() == nil {
		// Concurrent put won.
		s.Unlock()
		return old, n.Release()
	}
	s.table[key] = n
	m.lru.insert(n)
	if old != nil {
		m.lru.remove(old)
	}
	s.Unlock()

	m.metrics.puts.Inc(1)
	if old == nil {
		m.size.Add(1)
	} else {
		if ifAbsent {
			m.metrics.expirations.Inc(1)
		}
		err = old.Release()
	}
	m.checkInvariants()
	return nil, err
}

// lookup returns acquired live node. Expired node is removed.
func (m *Map) lookup(key string, now time.Time) (*node, error) {
	s := m.shard(key)
	s.RLock()
	n, ok := s.table[key]
	if ok && n.Acquire() != nil {
		// Can't happen: table owns reference.
		n, ok = nil, false
	}
	s.RUnlock()
	if !ok {
		return nil, nil
	}
	if n.ExpiredAt(now) {
		releaseErr := n.Release()
		deleted, err := m.delete(n)
		if deleted {
			m.metrics.expirations.Inc(1)
		}
		return nil, firstErr(releaseErr, err)
	}
	return n, nil
}

// delete deletes node from table and lru, if table still refers to it.
func (m *Map) delete(n *node) (deleted bool, err error) {
	s := m.shard(n.Key())
	s.Lock()
	if s.table[n.Key()] != n {
		s.Unlock()
		return false, nil
	}
	delete(s.table, n.Key())
	m.lru.remove(n)
	s.Unlock()
	m.size.Add(-1)
	return true, n.Release()
}

func (m *Map) removeAll() (err error) {
	var removed []*node
	for _, s := range m.shards {
		s.Lock()
		for _, n := range s.table {
			m.lru.remove(n)
			removed = append(removed, n)
		}
		s.table = make(map[string]*node)
		s.Unlock()
	}
	m.size.Add(-int64(len(removed)))
	for _, n := range removed {
		err = firstErr(err, n.Release())
	}
	m.log.Debugf("Removed all %v entries.", len(removed))
	return
}

// allocate evicts one batch of entries and retries once, when allocator is out of memory.
func (m *Map) allocate(size int) (*slab.Buffer, error) {
	buf, err := m.alloc.Allocate(size)
	if errors.Cause(err) != slab.ErrOutOfMemory {
		return buf, err
	}
	m.metrics.oomRetries.Inc(1)
	evicted, err := m.evict(m.conf.EvictBatch)
	if err != nil {
		return nil, err
	}
	buf, err = m.alloc.Allocate(size)
	if err != nil {
		m.log.Warnf("Allocation of %v bytes failed after eviction of %v entries: %v.", size, evicted, err)
	}
	return buf, err
}

func (m *Map) evict(count int) (evicted int, err error) {
	for _, n := range m.lru.evictTail(count) {
		deleted, releaseErr := m.delete(n)
		if !deleted {
			// Removed or replaced concurrently.
			continue
		}
		err = firstErr(err, releaseErr)
		evicted++
		if m.conf.OnEvict != nil {
			m.conf.OnEvict(n.Key())
		}
	}
	m.metrics.evictions.Inc(int64(evicted))
	m.log.Debugf("Evicted %v entries of %v requested.", evicted, count)
	return
}

func (m *Map) touch(n *node, now time.Time) {
	if m.lru.promote(n, n.Touch(now), now) {
		m.metrics.promotions.Inc(1)
	}
}

func (m *Map) shard(key string) *shard {
	return m.shards[maphash.String(m.seed, key)&m.mask]
}

func (m *Map) now() time.Time { return m.conf.Now() }

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
