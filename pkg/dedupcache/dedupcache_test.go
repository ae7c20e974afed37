package dedupcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

func hashOf(b byte) hashchunk.Hash {
	var h hashchunk.Hash
	h[0] = b
	return h
}

func TestInsertAndContains(t *testing.T) {
	c := New()
	h := hashOf(1)
	assert.False(t, c.Contains(h))
	c.Insert(h)
	assert.True(t, c.Contains(h))
}

func TestInsert_Idempotent(t *testing.T) {
	c := New()
	h := hashOf(2)
	c.Insert(h)
	c.Insert(h)
	assert.Equal(t, 1, c.Len())
}

func TestBulkLoad(t *testing.T) {
	c := New()
	hs := []hashchunk.Hash{hashOf(1), hashOf(2), hashOf(3)}
	c.BulkLoad(hs)
	assert.Equal(t, 3, c.Len())
	for _, h := range hs {
		assert.True(t, c.Contains(h))
	}
}

func TestFilter_OrderPreservingDedupesAndExcludesKnown(t *testing.T) {
	c := New()
	known := hashOf(2)
	c.Insert(known)

	h1, h3 := hashOf(1), hashOf(3)
	candidates := []hashchunk.Hash{h1, known, h1, h3}
	got := c.Filter(candidates)
	assert.Equal(t, []hashchunk.Hash{h1, h3}, got)
}

func TestNewPersistent_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewPersistent(dir)
	assert.NoError(t, err)
	h := hashOf(7)
	c1.Insert(h)
	assert.NoError(t, c1.Close())

	c2, err := NewPersistent(dir)
	assert.NoError(t, err)
	defer c2.Close()
	assert.True(t, c2.Contains(h))
}

func TestCache_CloseIsNoopWithoutStore(t *testing.T) {
	c := New()
	assert.NoError(t, c.Close())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h := hashOf(byte(n))
			c.Insert(h)
			_ = c.Contains(h)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, c.Len())
}
