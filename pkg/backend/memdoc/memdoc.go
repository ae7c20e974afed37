// Package memdoc is a pure in-memory implementation of the five-operation
// Backend contract. It backs the "file" backend config variant (a
// single-process deployment needing no external store) and doubles as the
// reference implementation exercised directly in unit tests. Uses an
// RWMutex-guarded map-of-maps (one map per host), checking ctx.Err() before
// taking the lock.
package memdoc

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// Backend is a single-process, all-capabilities backend backed entirely by
// in-memory maps. State does not survive process restart.
type Backend struct {
	mu sync.RWMutex

	blocks map[hashchunk.Hash]hashchunk.Block
	files  map[string][]filemeta.FileMeta // keyed by host
}

var _ backend.Backend = (*Backend)(nil)

// New returns an empty Backend.
func New() *Backend {
	return &Backend{
		blocks: make(map[hashchunk.Hash]hashchunk.Block),
		files:  make(map[string][]filemeta.FileMeta),
	}
}

// StoreBlock persists b. Idempotent on Hash: a second store of the same
// hash is a no-op overwrite with identical content.
func (b *Backend) StoreBlock(ctx context.Context, blk hashchunk.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks[blk.Hash] = blk
	return nil
}

// StoreFileMeta appends fm to its host's record list. Never dedupes.
func (b *Backend) StoreFileMeta(ctx context.Context, fm filemeta.FileMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fm.Host == "" {
		return backend.NewError("StoreFileMeta", "memdoc", backend.ErrConfigError)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[fm.Host] = append(b.files[fm.Host], fm)
	return nil
}

// NeededHashes returns the candidates not yet stored, in order, deduped.
func (b *Backend) NeededHashes(ctx context.Context, candidates []hashchunk.Hash) ([]hashchunk.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]hashchunk.Hash, 0, len(candidates))
	seen := make(map[hashchunk.Hash]struct{}, len(candidates))
	for _, h := range candidates {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if _, ok := b.blocks[h]; ok {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// RetrieveBlock returns the stored block for h, or ErrNotFound.
func (b *Backend) RetrieveBlock(ctx context.Context, h hashchunk.Hash) (hashchunk.Block, error) {
	if err := ctx.Err(); err != nil {
		return hashchunk.Block{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	blk, ok := b.blocks[h]
	if !ok {
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "memdoc", backend.ErrNotFound).WithHash(hashchunk.HashToHex(h))
	}
	return blk, nil
}

// ListFiles answers q by scanning the host's record list in memory,
// applying the same filter/sort/latest-only reduction the document-store
// backend uses, so both are testable against identical expectations.
func (b *Backend) ListFiles(ctx context.Context, q backend.Query) iter.Seq2[filemeta.FileMeta, error] {
	return func(yield func(filemeta.FileMeta, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(filemeta.FileMeta{}, err)
			return
		}

		b.mu.RLock()
		all := append([]filemeta.FileMeta(nil), b.files[q.Host]...)
		b.mu.RUnlock()

		matched := make([]filemeta.FileMeta, 0, len(all))
		for _, fm := range all {
			if matches(fm, q) {
				matched = append(matched, fm)
			}
		}

		sort.SliceStable(matched, func(i, j int) bool { return filemeta.Less(matched[i], matched[j]) })
		if q.LatestOnly {
			matched = filemeta.LatestOnly(matched)
		}

		for _, fm := range matched {
			if !yield(fm, nil) {
				return
			}
		}
	}
}

func matches(fm filemeta.FileMeta, q backend.Query) bool {
	if q.Filename != nil && !containsFold(fm.Name, *q.Filename) {
		return false
	}
	if q.Owner != nil && !containsFold(fm.Owner, *q.Owner) {
		return false
	}
	if q.Group != nil && !containsFold(fm.Group, *q.Group) {
		return false
	}
	if q.BeforeMtime != nil && fm.Mtime > *q.BeforeMtime {
		return false
	}
	if q.AfterMtime != nil && fm.Mtime < *q.AfterMtime {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return len(substr) == 0 || strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
