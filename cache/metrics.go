package cache

import (
	"github.com/rcrowley/go-metrics"
)

type mapMetrics struct {
	registry    metrics.Registry
	hits        metrics.Counter
	misses      metrics.Counter
	puts        metrics.Counter
	evictions   metrics.Counter
	expirations metrics.Counter
	promotions  metrics.Counter
	oomRetries  metrics.Counter
}

func newMapMetrics(m *Map) *mapMetrics {
	r := metrics.NewRegistry()
	mm := &mapMetrics{
		registry:    r,
		hits:        metrics.NewRegisteredCounter("cache.hit", r),
		misses:      metrics.NewRegisteredCounter("cache.miss", r),
		puts:        metrics.NewRegisteredCounter("cache.put", r),
		evictions:   metrics.NewRegisteredCounter("cache.eviction", r),
		expirations: metrics.NewRegisteredCounter("cache.expiration", r),
		promotions:  metrics.NewRegisteredCounter("cache.promotion", r),
		oomRetries:  metrics.NewRegisteredCounter("cache.oom_retry", r),
	}
	metrics.NewRegisteredFunctionalGauge("cache.size", r, func() int64 { return int64(m.Size()) })
	metrics.NewRegisteredFunctionalGauge("slab.capacity", r, m.Capacity)
	metrics.NewRegisteredFunctionalGauge("slab.used", r, m.Used)
	metrics.NewRegisteredFunctionalGauge("slab.requested_used", r, m.RequestedUsed)
	return mm
}

// Stats is map counters snapshot.
type Stats struct {
	Size        int
	Hits        int64
	Misses      int64
	Puts        int64
	Evictions   int64
	Expirations int64
	Promotions  int64
	OOMRetries  int64
	Capacity    int64
	Used        int64
	Requested   int64
}

func (m *Map) Stats() Stats {
	mm := m.metrics
	return Stats{
		Size:        m.Size(),
		Hits:        mm.hits.Count(),
		Misses:      mm.misses.Count(),
		Puts:        mm.puts.Count(),
		Evictions:   mm.evictions.Count(),
		Expirations: mm.expirations.Count(),
		Promotions:  mm.promotions.Count(),
		OOMRetries:  mm.oomRetries.Count(),
		Capacity:    m.Capacity(),
		Used:        m.Used(),
		Requested:   m.RequestedUsed(),
	}
}

// Metrics returns registry of map counters and gauges.
func (m *Map) Metrics() metrics.Registry { return m.metrics.registry }
