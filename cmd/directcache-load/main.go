// Command directcache-load runs concurrent get, put and remove load against off-heap cache,
// and prints cache and request metrics.
package main

import (
	"flag"
	"fmt"
	"os"

	directcache "github.com/mo-open/direct-cache-sub001"
	"github.com/mo-open/direct-cache-sub001/cmd/directcache-load/config"
	"github.com/mo-open/direct-cache-sub001/log"
)

const usage = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s", usage)
		flag.PrintDefaults()
	}
}

func main() {
	l := log.NewLogger(log.InfoLevel, os.Stderr)
	cconf, load := parseConfig(l)
	m, err := directcache.New(cconf)
	if err != nil {
		l.Fatal("Cache create error: ", err)
	}
	l = log.NewLogger(cconf.LogLevel, cconf.LogDestination)
	l.Debugf("Config: %#v. Load: %#v.", cconf, load)

	res, err := runLoad(l, m, load)
	if err != nil {
		l.Error("Load error: ", err)
	}
	res.Write(os.Stdout, m)
	if destroyErr := m.Destroy(); destroyErr != nil {
		l.Error("Cache destroy error: ", destroyErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

type Flags struct {
	ConfigPath string
	config.Config
}

// parseConfig parses command flags, reads config file if any, returns merged config.
func parseConfig(l log.Logger) (directcache.Config, config.Load) {
	flg := parseFlags()
	conf := config.Default()
	if flg.ConfigPath != "" {
		fileConf, err := config.Read(flg.ConfigPath)
		if err != nil {
			l.Fatal(err)
		}
		config.Merge(conf, fileConf)
	}
	config.Merge(conf, &flg.Config)
	cconf, load, err := config.Parse(*conf)
	if err != nil {
		l.Fatal("Config error: ", err)
	}
	return cconf, load
}

// NOTE: for simplicity only part of config can be set from command line.
func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")

	def := config.Default()
	usage := func(usage string, defVal interface{}) string {
		if _, ok := defVal.(string); ok {
			usage += fmt.Sprintf(" (default %q)", defVal)
		} else {
			usage += fmt.Sprintf(" (default %v)", defVal)
		}
		return usage
	}
	flag.StringVar(&f.LogDestination, "log-destination", "", usage("log destination: stderr, stdout or file path", def.LogDestination))
	flag.StringVar(&f.LogLevel, "log-level", "", usage("log level: debug, info, warn, error, fatal", def.LogLevel))
	flag.StringVar(&f.Capacity, "capacity", "", usage("off-heap region size: 2g, 64m", def.Capacity))
	flag.StringVar(&f.SlabSize, "slab-size", "", usage("slab size: 1m, 256k", def.SlabSize))
	flag.StringVar(&f.MaxChunkSize, "max-chunk-size", "", usage("max value size: 1m, 64k", def.MaxChunkSize))
	flag.IntVar(&f.Shards, "shards", 0, usage("key table shards", def.Shards))
	flag.IntVar(&f.PromoteEvery, "promote-every", 0, usage("hits per lru promotion", def.PromoteEvery))
	flag.StringVar(&f.Expiry, "expiry", "", "value expiry: 10s, 5m (default no expiry)")
	flag.IntVar(&f.Load.Workers, "workers", 0, usage("concurrent workers", def.Load.Workers))
	flag.IntVar(&f.Load.Keys, "keys", 0, usage("key space size", def.Load.Keys))
	flag.IntVar(&f.Load.Requests, "requests", 0, usage("total requests", def.Load.Requests))
	flag.StringVar(&f.Load.Duration, "duration", "", "max load duration: 10s, 1m")
	flag.StringVar(&f.Load.ValueSize, "value-size", "", usage("mean value size: 4k, 100b", def.Load.ValueSize))
	flag.Float64Var(&f.Load.PutRatio, "put-ratio", 0, usage("put requests ratio", def.Load.PutRatio))
	flag.Float64Var(&f.Load.RemoveRatio, "remove-ratio", 0, usage("remove requests ratio", def.Load.RemoveRatio))
	flag.Int64Var(&f.Load.Seed, "seed", 0, usage("random seed", def.Load.Seed))
	flag.Parse()
	return f
}
