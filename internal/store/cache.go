package store

import (
	"container/list"
	"sync"

	"numeric-desensitizer/internal/desensitizer"
	"numeric-desensitizer/internal/logger"
)

type cacheEntry struct {
	rec  *Record
	freq uint8 // saturating in [0, 3]
	elem *list.Element
	inM  bool
}

// cachedStore keeps recently used records in memory in front of another
// Store, using S3-FIFO eviction ("Simple, Scalable, FIFO-based cache
// eviction", Yang et al., 2023):
//
//   - S (small, ~10% of capacity): probationary queue; new keys land here.
//   - M (main, the rest): keys read again while in S are promoted here.
//   - G (ghost): bounded ring of keys recently evicted from S. A key found
//     in G on insert goes straight to M.
//
// Eviction only drops the decoded copy; the backing store keeps every record.
// Records returned by Get are shared between callers and must not be
// mutated.
type cachedStore struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*cacheEntry
	sQueue  *list.List
	mQueue  *list.List

	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing Store
}

// NewCached wraps backing with an in-memory cache of up to capacity decoded
// records. Values < 2 are clamped to 2.
func NewCached(backing Store, capacity int, log *logger.Logger) Store {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	if log != nil {
		log.Debugf("cache_init", "capacity=%d sTarget=%d ghostCap=%d", capacity, sTarget, ghostCap)
	}
	return &cachedStore{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*cacheEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

func (c *cachedStore) Put(source string, m *desensitizer.Mapping) (string, error) {
	return c.backing.Put(source, m)
}

// Get serves from memory when resident, otherwise reads through and warms
// the cache.
func (c *cachedStore) Get(id string) (*Record, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		if e.freq < 3 {
			e.freq++
		}
		rec := e.rec
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	rec, err := c.backing.Get(id)
	if err != nil {
		return nil, err
	}
	c.insert(id, rec)
	return rec, nil
}

func (c *cachedStore) Delete(id string) error {
	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()
	return c.backing.Delete(id)
}

func (c *cachedStore) List() ([]Summary, error) { return c.backing.List() }

func (c *cachedStore) Close() error { return c.backing.Close() }

// resident reports whether id is held in memory.
func (c *cachedStore) resident(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

func (c *cachedStore) insert(key string, rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.rec = rec
		return
	}

	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &cacheEntry{rec: rec, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

// evictOne must be called with c.mu held.
func (c *cachedStore) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

// evictFromS promotes the oldest S entry to M if it was read since insert,
// otherwise drops it and remembers the key in G. Must be called with c.mu held.
func (c *cachedStore) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	c.sQueue.Remove(front)
	key, _ := front.Value.(string)
	e, ok := c.entries[key]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(key)
		if c.mQueue.Len() > c.capacity-c.sTarget {
			c.evictFromM()
		}
		return
	}
	delete(c.entries, key)
	c.ghostAdd(key)
}

// evictFromM must be called with c.mu held.
func (c *cachedStore) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	c.mQueue.Remove(front)
	key, _ := front.Value.(string)
	delete(c.entries, key)
}

// removeLocked must be called with c.mu held.
func (c *cachedStore) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.inM {
		c.mQueue.Remove(e.elem)
	} else {
		c.sQueue.Remove(e.elem)
	}
	delete(c.entries, key)
}

func (c *cachedStore) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

// ghostAdd inserts key into the ring, overwriting the oldest when full.
func (c *cachedStore) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}
	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	c.ghostBuf[(c.ghostHead+c.ghostCount)%c.ghostCap] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
