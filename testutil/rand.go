package testutil

import (
	"math/rand"
	"sync"

	"github.com/google/gofuzz"
	. "github.com/onsi/ginkgo"
)

var RandSource rand.Source = &lockedSource{src: rand.NewSource(GinkgoRandomSeed())}
var Rand = rand.New(RandSource)
var Fuzzer = func() *fuzz.Fuzzer {
	f := fuzz.New().NilChance(0)
	f.RandSource(RandSource)
	return f
}()
var fuzzMu sync.Mutex

// Fuzz fills obj with random values. Safe for concurrent use.
func Fuzz(obj interface{}) {
	fuzzMu.Lock()
	Fuzzer.Fuzz(obj)
	fuzzMu.Unlock()
}

// RandBytes returns random slice of size len.
func RandBytes(size int) []byte {
	p := make([]byte, size)
	Rand.Read(p)
	return p
}

// RandKey returns random non empty string key.
func RandKey() string {
	var key string
	for key == "" {
		Fuzz(&key)
	}
	return key
}

// lockedSource makes Rand safe for use from test goroutines.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	n := s.src.Int63()
	s.mu.Unlock()
	return n
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	s.src.Seed(seed)
	s.mu.Unlock()
}
