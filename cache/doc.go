// Package cache provides concurrent off-heap key-value map with approximate LRU eviction.
//
// Values are stored in slab allocator chunks, wrapped into reference counted
// recycle.Holder. Map owns one holder reference per entry. Readers acquire
// their own reference for the read duration, so value removed, replaced or
// evicted under reader is recycled only after the reader release.
//
// Keys are spread over fixed number of shards, each with own lock. Recency
// order is kept by one lru list, which lock is held only for pointer relinking.
// Lock order is shard, then lru. Evictor pops nodes from lru first, and then
// deletes them from shard table, only if table still refers to the same node.
// Whoever deletes node from table releases the map reference.
//
// Promotion on hit is throttled: only every PromoteEvery-th hit of entry,
// not closer than PromoteInterval to previous promotion, moves it to the head.
package cache
