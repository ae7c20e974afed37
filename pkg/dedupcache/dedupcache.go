// Package dedupcache holds the client-side advisory set of block hashes
// already known to the server. It exists purely to avoid a round trip per
// block; the server's needed_hashes response remains the authoritative
// filter, so losing this cache costs bandwidth, never correctness.
package dedupcache

import (
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// Cache is a concurrency-safe set of hashes. The zero value is not usable;
// construct with New or NewPersistent.
type Cache struct {
	mu     sync.RWMutex
	hashes map[hashchunk.Hash]struct{}

	// db backs the cache with an embedded store so its contents survive
	// process restarts. Nil for a pure in-memory cache built with New.
	db *badger.DB
}

// New returns an empty, purely in-memory Cache.
func New() *Cache {
	return &Cache{hashes: make(map[hashchunk.Hash]struct{})}
}

// NewPersistent opens (creating if absent) a badger store under dir and
// returns a Cache backed by it, pre-loaded with every hash the store
// already holds. Inserts and bulk loads are mirrored to disk best-effort:
// a persistence failure is logged but never returned to the caller, since
// the cache remains correct, just colder, on the next process start.
func NewPersistent(dir string) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}

	c := &Cache{hashes: make(map[hashchunk.Hash]struct{}), db: db}
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) != hashchunk.HashSize {
				continue
			}
			var h hashchunk.Hash
			copy(h[:], key)
			c.hashes[h] = struct{}{}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the on-disk store, if any. A no-op for a pure in-memory
// Cache built with New.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) persist(h hashchunk.Hash) {
	if c.db == nil {
		return
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(h[:], []byte{})
	})
	if err != nil {
		logger.Warn("dedupcache: failed to persist hash", logger.KeyError, err.Error())
	}
}

// Contains reports whether h has been inserted or bulk-loaded. Safe for
// concurrent use with other readers and with Insert/BulkLoad.
func (c *Cache) Contains(h hashchunk.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[h]
	return ok
}

// Insert adds h to the set. Idempotent.
func (c *Cache) Insert(h hashchunk.Hash) {
	c.mu.Lock()
	c.hashes[h] = struct{}{}
	c.mu.Unlock()
	c.persist(h)
}

// BulkLoad adds every hash in hs under a single lock acquisition. Used at
// session start to seed the cache from a server-provided hash listing.
func (c *Cache) BulkLoad(hs []hashchunk.Hash) {
	c.mu.Lock()
	for _, h := range hs {
		c.hashes[h] = struct{}{}
	}
	c.mu.Unlock()
	for _, h := range hs {
		c.persist(h)
	}
}

// Len reports the number of distinct hashes currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

// Filter returns the subset of candidates not present in the cache,
// preserving order and collapsing duplicates. This is the client-side half
// of the two-tier dedup protocol: its output is what gets sent to the
// server's needed_hashes call, which may still return a strict subset.
func (c *Cache) Filter(candidates []hashchunk.Hash) []hashchunk.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]hashchunk.Hash, 0, len(candidates))
	seen := make(map[hashchunk.Hash]struct{}, len(candidates))
	for _, h := range candidates {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if _, known := c.hashes[h]; known {
			continue
		}
		out = append(out, h)
	}
	return out
}
