package cachecore

import "container/list"

// Stats is a snapshot of an ArcCache's internal state (spec §4.2).
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
	T1Size    int
	T2Size    int
	B1Size    int
	B2Size    int
	P         float64
}

type location int8

const (
	locNone location = iota
	locT1
	locT2
	locB1
	locB2
)

type node[K comparable, V any] struct {
	key   K
	value V
	bytes int64
	loc   location
}

// ArcCache is a generic Adaptive Replacement Cache over a byte capacity,
// with a synchronous eviction callback (spec §4.2). It implements the
// classic Megiddo/Modha ARC replacement decision (which of T1/T2 to evict
// from, driven by the adaptive target p) but bounds the *loop* that drives
// eviction by total bytes rather than a fixed entry count, since this cache
// is sized in bytes, not entries (spec §3.1 "generic byte-capacity ARC").
//
// ArcCache is not safe for concurrent use; per spec §4.3/§4.4 both the
// server-side and viewer-side session caches are single-thread-by-contract.
type ArcCache[K comparable, V any] struct {
	capacityBytes int64
	bytes         int64
	p             float64 // adaptive target length (in entries) of T1

	t1, t2, b1, b2 *list.List
	index          map[K]*list.Element // live entries: t1 or t2

	onEvict func(K, V)

	hits, misses, evictions int64
}

// New creates an ArcCache with the given byte capacity. onEvict, if
// non-nil, is invoked synchronously within Insert whenever the replacement
// policy evicts an entry; it must not recursively mutate the cache.
func New[K comparable, V any](capacityBytes int64, onEvict func(K, V)) *ArcCache[K, V] {
	return &ArcCache[K, V]{
		capacityBytes: capacityBytes,
		t1:            list.New(),
		t2:            list.New(),
		b1:            list.New(),
		b2:            list.New(),
		index:         make(map[K]*list.Element),
		onEvict:       onEvict,
	}
}

// Get looks up k, promoting it to the MRU end of T2 on a hit (spec §4.2).
func (c *ArcCache[K, V]) Get(k K) (V, bool) {
	if elem, ok := c.index[k]; ok {
		n := elem.Value.(*node[K, V])
		c.promote(elem, n)
		c.hits++
		return n.value, true
	}
	var zero V
	c.misses++
	return zero, false
}

// promote moves a hit entry to the MRU end of T2; ARC promotes on any hit
// in T1 or T2 alike.
func (c *ArcCache[K, V]) promote(elem *list.Element, n *node[K, V]) {
	switch n.loc {
	case locT1:
		c.t1.Remove(elem)
	case locT2:
		c.t2.Remove(elem)
	}
	n.loc = locT2
	newElem := c.t2.PushFront(n)
	c.index[n.key] = newElem
}

// Insert adds or updates k. Idempotent: if k already holds a live entry,
// its value and byte weight are updated in place and it is promoted, with
// no eviction-policy side effects beyond the capacity check every mutation
// performs.
func (c *ArcCache[K, V]) Insert(k K, v V, bytes int64) {
	if elem, ok := c.index[k]; ok {
		n := elem.Value.(*node[K, V])
		c.bytes += bytes - n.bytes
		n.value = v
		n.bytes = bytes
		c.promote(elem, n)
		c.evictToFit()
		return
	}

	if ge := c.findGhost(c.b1, k); ge != nil {
		b1Len, b2Len := c.b1.Len(), c.b2.Len()
		delta := 1.0
		if b1Len > 0 {
			delta = float64(b2Len) / float64(b1Len)
			if delta < 1 {
				delta = 1
			}
		}
		c.p += delta
		if cap := c.pCeiling(); c.p > cap {
			c.p = cap
		}
		c.b1.Remove(ge)
		c.insertLive(k, v, bytes, locT2)
		return
	}

	if ge := c.findGhost(c.b2, k); ge != nil {
		b1Len, b2Len := c.b1.Len(), c.b2.Len()
		delta := 1.0
		if b2Len > 0 {
			delta = float64(b1Len) / float64(b2Len)
			if delta < 1 {
				delta = 1
			}
		}
		c.p -= delta
		if c.p < 0 {
			c.p = 0
		}
		c.b2.Remove(ge)
		c.insertLive(k, v, bytes, locT2)
		return
	}

	// Case IV: genuinely new key, enters at the MRU end of T1.
	c.insertLive(k, v, bytes, locT1)
	c.trimGhosts()
}

func (c *ArcCache[K, V]) insertLive(k K, v V, bytes int64, loc location) {
	n := &node[K, V]{key: k, value: v, bytes: bytes, loc: loc}
	var elem *list.Element
	if loc == locT1 {
		elem = c.t1.PushFront(n)
	} else {
		elem = c.t2.PushFront(n)
	}
	c.index[k] = elem
	c.bytes += bytes
	c.evictToFit()
}

func (c *ArcCache[K, V]) findGhost(l *list.List, k K) *list.Element {
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(K) == k {
			return e
		}
	}
	return nil
}

// pCeiling bounds p at the current total tracked key count (live+ghost),
// standing in for "capacity" in the textbook entry-count ARC formula; this
// cache has no fixed entry-count capacity, only a byte-capacity one.
func (c *ArcCache[K, V]) pCeiling() float64 {
	total := c.t1.Len() + c.t2.Len() + c.b1.Len() + c.b2.Len()
	if total == 0 {
		return 1
	}
	return float64(total)
}

// trimGhosts keeps the ghost lists from growing unboundedly: each is capped
// to roughly the size of its live counterpart's capacity share.
func (c *ArcCache[K, V]) trimGhosts() {
	maxGhost := c.t1.Len() + c.t2.Len() + 1
	for c.b1.Len() > maxGhost {
		c.b1.Remove(c.b1.Back())
	}
	for c.b2.Len() > maxGhost {
		c.b2.Remove(c.b2.Back())
	}
}

// evictToFit runs the textbook REPLACE(p) decision in a loop until total
// bytes are within capacity (or there is nothing left to evict).
func (c *ArcCache[K, V]) evictToFit() {
	for c.bytes > c.capacityBytes && (c.t1.Len()+c.t2.Len()) > 0 {
		c.replace()
	}
}

// replace implements the ARC REPLACE(p) step: evict from T1 if T1 holds at
// least p+0.5 entries (the adaptive target rounded to a whole entry) or T2
// is empty, otherwise from T2, moving the evicted key to the matching ghost
// list and firing onEvict.
func (c *ArcCache[K, V]) replace() {
	evictFromT1 := c.t1.Len() > 0 && float64(c.t1.Len()) >= c.p+0.5
	if c.t1.Len() == 0 {
		evictFromT1 = false
	}
	if c.t2.Len() == 0 {
		evictFromT1 = c.t1.Len() > 0
	}

	if evictFromT1 {
		back := c.t1.Back()
		n := back.Value.(*node[K, V])
		c.t1.Remove(back)
		delete(c.index, n.key)
		c.bytes -= n.bytes
		c.evictions++
		c.b1.PushFront(n.key)
		if c.onEvict != nil {
			c.onEvict(n.key, n.value)
		}
	} else {
		back := c.t2.Back()
		if back == nil {
			return
		}
		n := back.Value.(*node[K, V])
		c.t2.Remove(back)
		delete(c.index, n.key)
		c.bytes -= n.bytes
		c.evictions++
		c.b2.PushFront(n.key)
		if c.onEvict != nil {
			c.onEvict(n.key, n.value)
		}
	}
}

// Remove deletes k outright. Unlike policy-driven eviction, Remove never
// invokes onEvict (spec §4.2: "explicit delete, not policy-driven").
func (c *ArcCache[K, V]) Remove(k K) {
	if elem, ok := c.index[k]; ok {
		n := elem.Value.(*node[K, V])
		switch n.loc {
		case locT1:
			c.t1.Remove(elem)
		case locT2:
			c.t2.Remove(elem)
		}
		delete(c.index, k)
		c.bytes -= n.bytes
		return
	}
	if ge := c.findGhost(c.b1, k); ge != nil {
		c.b1.Remove(ge)
		return
	}
	if ge := c.findGhost(c.b2, k); ge != nil {
		c.b2.Remove(ge)
	}
}

// Contains reports whether k is a live (non-ghost) entry, without affecting
// recency ordering or hit/miss stats.
func (c *ArcCache[K, V]) Contains(k K) bool {
	_, ok := c.index[k]
	return ok
}

// Stats returns a snapshot of cache statistics (spec §4.2).
func (c *ArcCache[K, V]) Stats() Stats {
	return Stats{
		Entries:   len(c.index),
		Bytes:     c.bytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		T1Size:    c.t1.Len(),
		T2Size:    c.t2.Len(),
		B1Size:    c.b1.Len(),
		B2Size:    c.b2.Len(),
		P:         c.p,
	}
}
