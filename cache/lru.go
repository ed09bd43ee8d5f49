package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mo-open/direct-cache-sub001/internal/tag"
	"github.com/mo-open/direct-cache-sub001/recycle"
)

// Invariants after every lru method:
// * {fakeHead, all linked nodes, fakeTail} are correct doubly linked list.
// * node.linked is true exactly for nodes between fakeHead and fakeTail.
// * lru.len equal number of linked nodes.
type lru struct {
	mu  sync.Mutex
	len int

	promoteEvery    int64
	promoteInterval time.Duration

	// Fake nodes. Real nodes are between them.
	// nil <- fakeHead <-> node_0 <-> ... <-> node_(n-1) <-> fakeTail -> nil
	// Such structure prevent nil checks in code.

	// fakeHead.next is most recently used node.
	fakeHead *node
	// fakeTail.prev is least recently used node, next to be evicted.
	fakeTail *node
}

// For debug output.
const fakeHeadKey = " !HEAD! "
const fakeTailKey = " !TAIL! "

func newLRU(promoteEvery int, promoteInterval time.Duration) *lru {
	if promoteEvery < 1 {
		promoteEvery = 1
	}
	l := &lru{
		promoteEvery:    int64(promoteEvery),
		promoteInterval: promoteInterval,
	}
	l.fakeHead = &node{Holder: recycle.NewHolder(fakeHeadKey, nil, 0, time.Time{})}
	l.fakeTail = &node{Holder: recycle.NewHolder(fakeTailKey, nil, 0, time.Time{})}
	link(l.fakeHead, l.fakeTail)
	return l
}

// insert adds node at head.
func (l *lru) insert(n *node) {
	l.mu.Lock()
	l.pushFront(n)
	l.len++
	n.linked = true
	l.checkInvariants()
	l.mu.Unlock()
}

// remove unlinks node. It returns false, if node was not linked:
// already removed or evicted.
func (l *lru) remove(n *node) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !n.linked {
		return false
	}
	l.unlink(n)
	l.checkInvariants()
	return true
}

// promote moves node to head, if its hit with hits number should not be skipped.
// It returns true, if node was moved.
func (l *lru) promote(n *node, hits int64, now time.Time) bool {
	if hits%l.promoteEvery != 0 {
		return false
	}
	if l.promoteInterval > 0 {
		last := n.promotedAt.Load()
		if now.UnixNano()-last < int64(l.promoteInterval) {
			return false
		}
		if !n.promotedAt.CompareAndSwap(last, now.UnixNano()) {
			// Concurrent hit promotes.
			return false
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !n.linked || l.head() == n {
		return false
	}
	link(n.prev, n.next)
	l.pushFront(n)
	l.checkInvariants()
	return true
}

// evictTail unlinks up to count least recently used nodes, and returns them
// from least recent. The last remaining node is never evicted.
func (l *lru) evictTail(count int) []*node {
	l.mu.Lock()
	defer l.mu.Unlock()
	var evicted []*node
	for len(evicted) < count && l.len > 1 {
		n := l.tail()
		l.unlink(n)
		evicted = append(evicted, n)
	}
	l.checkInvariants()
	return evicted
}

func (l *lru) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.len
}

// keys returns keys from head to tail.
func (l *lru) keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, l.len)
	for n := l.head(); !l.end(n); n = n.next {
		keys = append(keys, n.Key())
	}
	return keys
}

func (l *lru) pushFront(n *node) {
	link(n, l.fakeHead.next)
	link(l.fakeHead, n)
}

func (l *lru) unlink(n *node) {
	link(n.prev, n.next)
	n.linked = false
	l.len--
	if tag.Debug {
		n.prev = nil
		n.next = nil
	}
}

func (l *lru) head() *node      { return l.fakeHead.next }
func (l *lru) tail() *node      { return l.fakeTail.prev }
func (l *lru) end(n *node) bool { return n == l.fakeTail }

type node struct {
	*recycle.Holder
	// Fields bellow are guarded by lru lock.
	prev   *node
	next   *node
	linked bool

	promotedAt atomic.Int64 // Unix nanoseconds.
}

func newNode(h *recycle.Holder) *node {
	return &node{Holder: h}
}

func link(a, b *node) { a.next, b.prev = b, a }

func (n *node) GoString() string {
	key := func(n *node) interface{} {
		if n == nil {
			return nil
		}
		return n.Key()
	}
	return fmt.Sprintf("{Holder:%#v, linked:%v, prev:%v, next:%v}",
		n.Holder, n.linked, key(n.prev), key(n.next))
}

var _ fmt.GoStringer = (*node)(nil)
