package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/mo-open/direct-cache-sub001/cache"
	"github.com/mo-open/direct-cache-sub001/cmd/directcache-load/config"
	"github.com/mo-open/direct-cache-sub001/internal/util"
	"github.com/mo-open/direct-cache-sub001/log"
	"github.com/mo-open/direct-cache-sub001/slab"
)

type result struct {
	registry metrics.Registry
	get      metrics.Timer
	put      metrics.Timer
	remove   metrics.Timer
	miss     metrics.Counter
	oom      metrics.Counter
	requests int64
	elapsed  time.Duration
}

func newResult() *result {
	r := metrics.NewRegistry()
	return &result{
		registry: r,
		get:      metrics.NewRegisteredTimer("get", r),
		put:      metrics.NewRegisteredTimer("put", r),
		remove:   metrics.NewRegisteredTimer("remove", r),
		miss:     metrics.NewRegisteredCounter("load.miss", r),
		oom:      metrics.NewRegisteredCounter("err.oom", r),
	}
}

// runLoad runs load.Workers workers, until load.Requests done or load.Duration passed.
// Out of memory put errors are counted, other errors stop the load.
func runLoad(l log.Logger, m *cache.Map, load config.Load) (*result, error) {
	res := newResult()
	ctx := context.Background()
	if load.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, load.Duration)
		defer cancel()
	}
	var requests int64
	next := func() bool {
		if ctx.Err() != nil {
			return false
		}
		return load.Requests <= 0 || atomic.AddInt64(&requests, 1) <= int64(load.Requests)
	}
	keyIndex := func(r *rand.Rand) int {
		// Normally distributed, so some keys are hot.
		for {
			i := int(math.Abs(r.NormFloat64() * float64(load.Keys) / 2))
			if i < load.Keys {
				return i
			}
		}
	}

	l.Infof("Load start. Workers: %v, keys: %v.", load.Workers, load.Keys)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < load.Workers; i++ {
		r := rand.New(rand.NewSource(load.Seed + int64(i)))
		g.Go(func() error {
			value := make([]byte, 2*load.ValueSize)
			r.Read(value)
			for next() {
				key := "key_" + strconv.Itoa(keyIndex(r))
				var err error
				switch p := r.Float64(); {
				case p < load.PutRatio:
					size := 0
					if load.ValueSize > 0 {
						size = r.Intn(2 * load.ValueSize)
					}
					res.put.Time(func() { err = m.Put(key, value[:size], 0) })
					if err != nil && util.Unwrap(err) == slab.ErrOutOfMemory {
						res.oom.Inc(1)
						err = nil
					}
				case p < load.PutRatio+load.RemoveRatio:
					res.remove.Time(func() { _, err = m.Remove(key) })
				default:
					var ok bool
					res.get.Time(func() { _, ok, err = m.Get(key) })
					if !ok && err == nil {
						res.miss.Inc(1)
					}
				}
				if err != nil {
					return errors.Wrapf(err, "request of %q", key)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	res.elapsed = time.Since(start)
	res.requests = res.get.Count() + res.put.Count() + res.remove.Count()
	l.Infof("Load done. Requests: %v, elapsed: %v.", res.requests, res.elapsed)
	return res, err
}

func (r *result) Write(w io.Writer, m *cache.Map) {
	fmt.Fprintln(w, "Request metrics. Time units is nanos.")
	metrics.WriteOnce(r.registry, w)
	fmt.Fprintln(w, "Cache metrics.")
	metrics.WriteOnce(m.Metrics(), w)
	stats := m.Stats()
	if gets := r.get.Count(); gets > 0 {
		fmt.Fprintf(w, "%.2f%% cache miss.\n", float64(r.miss.Count()*100)/float64(gets))
	}
	fmt.Fprintf(w, "Requests: %v. Elapsed: %v. Entries: %v. Used: %v of %v bytes reserved.\n",
		r.requests, r.elapsed, stats.Size, stats.Used, stats.Capacity)
}
