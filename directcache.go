// Package directcache is embedded key-value cache, which stores values off-heap:
// in anonymous memory mapping, that is not scanned by garbage collector.
//
// New wires together region, slab allocator and cache map.
// Store adds value encoding on top of map.
package directcache

import (
	"github.com/mo-open/direct-cache-sub001/cache"
	"github.com/mo-open/direct-cache-sub001/internal/tag"
	"github.com/mo-open/direct-cache-sub001/slab"
)

// New reserves off-heap region of conf.Slab.Capacity bytes, and returns map over it.
// Map Destroy releases the region.
func New(conf Config) (*cache.Map, error) {
	l := conf.logger()
	if tag.Debug {
		l.Warn("Using debug build. It has more runtime checks and large perfomance overhead.")
	}
	alloc, err := slab.New(l, conf.Slab)
	if err != nil {
		return nil, err
	}
	l.Debugf("Cache created: %v.", alloc)
	return cache.NewMap(l, alloc, conf.Cache), nil
}
