// Package config is directcache-load configuration: JSON file and command line flags
// with human readable sizes and durations, converted into library configs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/stackerr"

	directcache "github.com/mo-open/direct-cache-sub001"
	"github.com/mo-open/direct-cache-sub001/internal/util"
	"github.com/mo-open/direct-cache-sub001/log"
)

type Config struct {
	LogDestination string `json:"log-destination,omitempty"` // Stdout, stderr, or filepath.
	LogLevel       string `json:"log-level,omitempty"`
	// Size values 10g, 128m, 1024k, 1000000b
	Capacity     string  `json:"capacity,omitempty"`
	SlabSize     string  `json:"slab-size,omitempty"`
	MinChunkSize string  `json:"min-chunk-size,omitempty"`
	MaxChunkSize string  `json:"max-chunk-size,omitempty"`
	GrowthFactor float64 `json:"growth-factor,omitempty"`

	Shards       int    `json:"shards,omitempty"`
	PromoteEvery int    `json:"promote-every,omitempty"`
	EvictBatch   int    `json:"evict-batch,omitempty"`
	Expiry       string `json:"expiry,omitempty"` // Duration: 10s, 5m. Empty means no expiry.

	Load LoadConfig `json:"load,omitempty"`
}

type LoadConfig struct {
	Workers  int    `json:"workers,omitempty"`
	Keys     int    `json:"keys,omitempty"`
	Requests int    `json:"requests,omitempty"`
	Duration string `json:"duration,omitempty"` // Limits run time, if not empty.
	// ValueSize is mean value size. Sizes are uniformly distributed in [0, 2 * ValueSize).
	ValueSize   string  `json:"value-size,omitempty"`
	PutRatio    float64 `json:"put-ratio,omitempty"`
	RemoveRatio float64 `json:"remove-ratio,omitempty"`
	Seed        int64   `json:"seed,omitempty"`
}

// Load is parsed LoadConfig.
type Load struct {
	Workers     int
	Keys        int
	Requests    int
	Duration    time.Duration
	ValueSize   int
	PutRatio    float64
	RemoveRatio float64
	Seed        int64
}

func Default() *Config {
	return &Config{
		LogDestination: "stderr",
		LogLevel:       "info",
		Capacity:       "64m",
		SlabSize:       "1m",
		MinChunkSize:   "48b",
		MaxChunkSize:   "1m",
		GrowthFactor:   1.25,
		Shards:         64,
		PromoteEvery:   2,
		EvictBatch:     16,
		Load: LoadConfig{
			Workers:   8,
			Keys:      16 << 10,
			Requests:  1 << 20,
			ValueSize: "4k",
			PutRatio:  0.1,
			Seed:      1,
		},
	}
}

func Parse(conf Config) (cconf directcache.Config, load Load, err error) {
	cconf = directcache.DefaultConfig()
	cconf.LogDestination, err = logDestination(conf.LogDestination)
	if err != nil {
		err = stackerr.Newf("Log destination open error: %v", err)
		return
	}
	cconf.LogLevel, err = log.LevelFromString(conf.LogLevel)
	if err != nil {
		err = stackerr.Newf("Log level parse error: %v", err)
		return
	}
	sizes := []struct {
		name string
		str  string
		dst  *int
	}{
		{"Capacity", conf.Capacity, &cconf.Slab.Capacity},
		{"Slab size", conf.SlabSize, &cconf.Slab.SlabSize},
		{"Min chunk size", conf.MinChunkSize, &cconf.Slab.MinChunkSize},
		{"Max chunk size", conf.MaxChunkSize, &cconf.Slab.MaxChunkSize},
		{"Value size", conf.Load.ValueSize, &load.ValueSize},
	}
	for _, s := range sizes {
		var size int64
		size, err = parseSize(s.str)
		if err != nil {
			err = stackerr.Newf("%s parse error: %v", s.name, err)
			return
		}
		*s.dst = int(size)
	}
	cconf.Slab.GrowthFactor = conf.GrowthFactor
	if err = cconf.Slab.Validate(); err != nil {
		err = stackerr.Wrap(err)
		return
	}
	cconf.Cache.Shards = conf.Shards
	cconf.Cache.PromoteEvery = conf.PromoteEvery
	cconf.Cache.EvictBatch = conf.EvictBatch
	if conf.Expiry != "" {
		cconf.Cache.DefaultExpiry, err = time.ParseDuration(conf.Expiry)
		if err != nil {
			err = stackerr.Newf("Expiry parse error: %v", err)
			return
		}
	}

	load.Workers = conf.Load.Workers
	load.Keys = conf.Load.Keys
	load.Requests = conf.Load.Requests
	load.PutRatio = conf.Load.PutRatio
	load.RemoveRatio = conf.Load.RemoveRatio
	load.Seed = conf.Load.Seed
	if conf.Load.Duration != "" {
		load.Duration, err = time.ParseDuration(conf.Load.Duration)
		if err != nil {
			err = stackerr.Newf("Duration parse error: %v", err)
			return
		}
	}
	switch {
	case load.Workers <= 0:
		err = stackerr.Newf("Non positive workers number %v.", load.Workers)
	case load.Keys <= 0:
		err = stackerr.Newf("Non positive keys number %v.", load.Keys)
	case load.Requests <= 0 && load.Duration <= 0:
		err = stackerr.Newf("Neither requests number nor duration is set.")
	case load.PutRatio < 0 || load.RemoveRatio < 0 || load.PutRatio+load.RemoveRatio > 1:
		err = stackerr.Newf("Invalid put %v and remove %v ratios.", load.PutRatio, load.RemoveRatio)
	case 2*load.ValueSize > cconf.Slab.MaxChunkSize:
		err = stackerr.Newf("Value size %v is too large for max chunk size %v.", load.ValueSize, cconf.Slab.MaxChunkSize)
	}
	return
}

// Merge overwrites def values with non zero override values.
func Merge(def, override *Config) {
	defLoad := def.Load
	merge(def, override)

	// HACK: manual recursion. Some third party high level reflection package should be used here.
	merge(&defLoad, &override.Load)
	def.Load = defLoad
}

func merge(def, override interface{}) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		overrideVal := overrideVal.Field(i)
		if !util.IsZeroVal(overrideVal) {
			defVal.Field(i).Set(overrideVal)
		}
	}
}

// Read reads JSON config file.
func Read(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, stackerr.Newf("Config file read error: %v", err)
	}
	conf := &Config{}
	if err = json.Unmarshal(data, conf); err != nil {
		return nil, stackerr.Newf("Config parse error: %v", err)
	}
	return conf, nil
}

func Marshal(conf *Config) []byte {
	data, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}
	return data
}

func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		err = errors.New("Invalid size format.")
		return
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	exponentStr := s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		err = errors.New("Invalid exponent. Only 'b', 'k', 'm', 'g' allowed.")
		return
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		err = fmt.Errorf("Size parse error: %s", err)
		return
	}
	size <<= exponent
	return
}

func logDestination(dest string) (w io.Writer, err error) {
	switch strings.ToLower(dest) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		w, err = os.OpenFile(dest, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	}
	return
}
