//go:build debug
// +build debug

// Gomega should not be dependency in non-debug build.

package cache

import (
	"errors"
	"log"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var _ = func() (_ struct{}) {
	RegisterFailHandler(GomegaFailHandler)
	return
}()

func GomegaFailHandler(message string, callerSkip ...int) {
	skip := callerSkip[0] + 1
	log.Fatal("FATAL: invariants are broken:", stackerr.WrapSkip(errors.New(message), skip))
}

// checkInvariants requires lru lock.
func (l *lru) checkInvariants() {
	Expect(l.fakeHead.prev).To(BeNil())
	Expect(l.fakeTail.next).To(BeNil())
	var linked int
	for n := l.head(); !l.end(n); n = n.next {
		linked++
		Expect(n.linked).To(BeTrue(), n.Key())
		Expect(n.prev.next).To(BeIdenticalTo(n))
		Expect(n.next.prev).To(BeIdenticalTo(n))
	}
	Expect(l.tail().next).To(BeIdenticalTo(l.fakeTail))
	Expect(linked).To(Equal(l.len))
}

// checkInvariants checks that every lru node is in table.
// Table can have nodes, that are evicted from lru, but not deleted from table yet.
func (m *Map) checkInvariants() {
	for _, s := range m.shards {
		s.RLock()
	}
	defer func() {
		for _, s := range m.shards {
			s.RUnlock()
		}
	}()
	m.lru.mu.Lock()
	defer m.lru.mu.Unlock()
	var tableLen int
	for _, s := range m.shards {
		tableLen += len(s.table)
	}
	Expect(m.lru.len).To(BeNumerically("<=", tableLen))
	for n := m.lru.head(); !m.lru.end(n); n = n.next {
		tn, ok := m.shard(n.Key()).table[n.Key()]
		Expect(ok).To(BeTrue(), n.Key(), "no table ref to node")
		Expect(tn).To(BeIdenticalTo(n), "table refs to another node")
		Expect(n.IsLive()).To(BeTrue(), n.Key(), "linked node is recycled")
	}
}
