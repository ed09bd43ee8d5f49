package cache

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("lru", func() {
	var (
		l               *lru
		promoteEvery    int
		promoteInterval time.Duration
		nodes           []*node
	)
	BeforeEach(func() {
		resetTestKeys()
		promoteEvery = 1
		promoteInterval = 0
		nodes = nil
	})
	JustBeforeEach(func() {
		l = newLRU(promoteEvery, promoteInterval)
	})
	AfterEach(func() {
		l.ExpectInvariantsOk()
	})
	insert := func(n int) {
		for i := 0; i < n; i++ {
			node := testNode()
			nodes = append(nodes, node)
			l.insert(node)
		}
	}
	keys := func(idx ...int) (keys []string) {
		for _, i := range idx {
			keys = append(keys, nodes[i].Key())
		}
		return
	}

	It("empty", func() {
		Expect(l.Len()).To(BeZero())
		Expect(l.keys()).To(BeEmpty())
		Expect(l.evictTail(1)).To(BeEmpty())
	})

	It("insert at head", func() {
		insert(3)
		Expect(l.Len()).To(Equal(3))
		Expect(l.keys()).To(Equal(keys(2, 1, 0)))
	})

	Context("remove", func() {
		JustBeforeEach(func() { insert(4) })
		It("head", func() {
			Expect(l.remove(nodes[3])).To(BeTrue())
			Expect(l.keys()).To(Equal(keys(2, 1, 0)))
		})
		It("tail", func() {
			Expect(l.remove(nodes[0])).To(BeTrue())
			Expect(l.keys()).To(Equal(keys(3, 2, 1)))
		})
		It("middle", func() {
			Expect(l.remove(nodes[1])).To(BeTrue())
			Expect(l.keys()).To(Equal(keys(3, 2, 0)))
		})
		It("twice", func() {
			Expect(l.remove(nodes[1])).To(BeTrue())
			Expect(l.remove(nodes[1])).To(BeFalse())
			Expect(l.Len()).To(Equal(3))
		})
		It("all", func() {
			for _, n := range nodes {
				Expect(l.remove(n)).To(BeTrue())
			}
			Expect(l.Len()).To(BeZero())
			Expect(l.head()).To(BeIdenticalTo(l.fakeTail))
		})
	})

	Context("promote", func() {
		now := time.Now()
		JustBeforeEach(func() { insert(3) })
		It("moves to head", func() {
			Expect(l.promote(nodes[0], 1, now)).To(BeTrue())
			Expect(l.keys()).To(Equal(keys(0, 2, 1)))
			Expect(l.promote(nodes[2], 1, now)).To(BeTrue())
			Expect(l.keys()).To(Equal(keys(2, 0, 1)))
		})
		It("head stays", func() {
			Expect(l.promote(nodes[2], 1, now)).To(BeFalse())
			Expect(l.keys()).To(Equal(keys(2, 1, 0)))
		})
		It("removed node is not linked back", func() {
			l.remove(nodes[0])
			Expect(l.promote(nodes[0], 1, now)).To(BeFalse())
			Expect(l.keys()).To(Equal(keys(2, 1)))
		})

		Context("every third hit", func() {
			BeforeEach(func() { promoteEvery = 3 })
			It("skips other hits", func() {
				Expect(l.promote(nodes[0], 1, now)).To(BeFalse())
				Expect(l.promote(nodes[0], 2, now)).To(BeFalse())
				Expect(l.keys()).To(Equal(keys(2, 1, 0)))
				Expect(l.promote(nodes[0], 3, now)).To(BeTrue())
				Expect(l.keys()).To(Equal(keys(0, 2, 1)))
			})
		})

		Context("with interval", func() {
			BeforeEach(func() { promoteInterval = time.Second })
			It("skips close hits", func() {
				Expect(l.promote(nodes[0], 1, now)).To(BeTrue())
				Expect(l.promote(nodes[1], 1, now)).To(BeTrue())
				Expect(l.promote(nodes[0], 2, now.Add(time.Second/2))).To(BeFalse())
				Expect(l.keys()).To(Equal(keys(1, 0, 2)))
				Expect(l.promote(nodes[0], 3, now.Add(time.Second))).To(BeTrue())
				Expect(l.keys()).To(Equal(keys(0, 1, 2)))
			})
		})
	})

	Context("evict tail", func() {
		JustBeforeEach(func() { insert(5) })
		It("pops least recent first", func() {
			evicted := l.evictTail(2)
			Expect(evicted).To(HaveLen(2))
			Expect(evicted[0]).To(BeIdenticalTo(nodes[0]))
			Expect(evicted[1]).To(BeIdenticalTo(nodes[1]))
			Expect(evicted[0].linked).To(BeFalse())
			Expect(l.keys()).To(Equal(keys(4, 3, 2)))
		})
		It("respects promotion", func() {
			l.promote(nodes[0], 1, time.Now())
			evicted := l.evictTail(1)
			Expect(evicted[0]).To(BeIdenticalTo(nodes[1]))
		})
		It("never evicts last remaining node", func() {
			evicted := l.evictTail(10)
			Expect(evicted).To(HaveLen(4))
			Expect(l.Len()).To(Equal(1))
			Expect(l.keys()).To(Equal(keys(4)))
			Expect(l.evictTail(1)).To(BeEmpty())
			Expect(l.Len()).To(Equal(1))
		})
		It("evicted node remove is no-op", func() {
			evicted := l.evictTail(1)
			Expect(l.remove(evicted[0])).To(BeFalse())
			Expect(l.Len()).To(Equal(4))
		})
	})

	It("concurrent access", func() {
		const goroutines = 8
		insert(goroutines * 50)
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for g := 0; g < goroutines; g++ {
			go func(own []*node) {
				defer GinkgoRecover()
				defer wg.Done()
				for i, n := range own {
					l.promote(n, int64(i+1), time.Now())
					l.remove(n)
					l.insert(n)
					l.evictTail(1)
				}
			}(nodes[g*50 : (g+1)*50])
		}
		wg.Wait()
		Expect(l.Len()).To(BeNumerically(">=", 1))
	})
})
