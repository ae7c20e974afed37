package client

import (
	"fmt"
	"os"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/dedupcache"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
	"github.com/cdpfgl/cdpfgl-go/pkg/metrics"
)

// Pipeline archives files for one host, following the six steps of the
// backup data flow exactly: stat, skip-if-seen, chunk, dedup-filter,
// upload missing blocks, send FileMeta.
type Pipeline struct {
	api       *APIClient
	cache     *dedupcache.Cache
	host      string
	blockSize int
	metrics   *metrics.Metrics
}

// NewPipeline constructs a Pipeline. cache should be seeded via
// dedupcache.Cache.BulkLoad at session start when the server can supply its
// existing hash set; an empty cache degrades gracefully to relying on the
// server's NeededHashes confirmation for every block.
func NewPipeline(api *APIClient, cache *dedupcache.Cache, host string, blockSize int, m *metrics.Metrics) *Pipeline {
	if blockSize <= 0 {
		blockSize = hashchunk.DefaultBlockSize
	}
	return &Pipeline{api: api, cache: cache, host: host, blockSize: blockSize, metrics: m}
}

// Close releases the pipeline's dedup cache. A no-op if the cache is purely
// in-memory.
func (p *Pipeline) Close() error {
	return p.cache.Close()
}

// ArchivePath runs the full pipeline for one filesystem path. It returns
// (skipped=true, nil) if an equivalent record already exists server-side.
func (p *Pipeline) ArchivePath(path string) (skipped bool, err error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, fmt.Errorf("cdpfgl client: stat %s: %w", path, err)
	}

	tentative := statToFileMeta(p.host, path, info)

	seen, err := p.alreadySeen(tentative)
	if err != nil {
		return false, err
	}
	if seen {
		logger.Debug("skipping unchanged file", "path", path)
		return true, nil
	}

	if tentative.Type != filemeta.TypeRegular {
		return false, p.sendFileMeta(tentative)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("cdpfgl client: open %s: %w", path, err)
	}
	defer f.Close()

	hashes, err := p.uploadChunks(f)
	if err != nil {
		return false, fmt.Errorf("cdpfgl client: upload %s: %w", path, err)
	}
	tentative.Hashes = hashes

	return false, p.sendFileMeta(tentative)
}

// alreadySeen asks the server whether an equivalent record already
// exists for the file's identity tuple. The filename
// narrows the candidate set; FileMeta.Equal performs the exact identity
// comparison client-side.
func (p *Pipeline) alreadySeen(tentative filemeta.FileMeta) (bool, error) {
	records, err := p.api.ListFiles(ListFilesQuery{Host: p.host, Filename: tentative.Name})
	if err != nil {
		return false, fmt.Errorf("cdpfgl client: check existing record: %w", err)
	}
	for _, r := range records {
		if fileRecordMatches(r, tentative) {
			return true, nil
		}
	}
	return false, nil
}

// uploadChunks runs steps 3-5: chunk the file, filter through the dedup
// cache, confirm against the server, upload the survivors, and record
// newly-confirmed hashes locally. It returns the complete ordered hash
// list for the file regardless of which blocks were actually uploaded.
func (p *Pipeline) uploadChunks(f *os.File) ([]hashchunk.Hash, error) {
	var all []hashchunk.Hash
	var blocks []hashchunk.Block
	for blk, err := range hashchunk.Chunk(f, p.blockSize) {
		if err != nil {
			return nil, err
		}
		all = append(all, blk.Hash)
		blocks = append(blocks, blk)
	}

	candidates := p.cache.Filter(all)
	if len(candidates) == 0 {
		return all, nil
	}

	needed, err := p.api.NeededHashes(candidates)
	if err != nil {
		return nil, err
	}
	neededSet := make(map[hashchunk.Hash]struct{}, len(needed))
	for _, h := range needed {
		neededSet[h] = struct{}{}
	}

	for _, blk := range blocks {
		if _, want := neededSet[blk.Hash]; !want {
			continue
		}
		if err := p.api.StoreBlock(blk); err != nil {
			return nil, fmt.Errorf("store block %s: %w", hashchunk.HashToHex(blk.Hash), err)
		}
		p.cache.Insert(blk.Hash)
		p.metrics.RecordBlockStored("client", len(blk.Payload))
		p.metrics.RecordBytesUploaded(len(blk.Payload))
	}

	return all, nil
}

func (p *Pipeline) sendFileMeta(fm filemeta.FileMeta) error {
	hashes := make([]string, len(fm.Hashes))
	for i, h := range fm.Hashes {
		hashes[i] = hashchunk.HashToHex(h)
	}

	err := p.api.StoreFileMeta(FileRecord{
		Host:   fm.Host,
		Path:   fm.Path,
		Name:   fm.Name,
		Type:   int(fm.Type),
		Mode:   fm.Mode,
		UID:    fm.UID,
		GID:    fm.GID,
		Owner:  fm.Owner,
		Group:  fm.Group,
		Inode:  fm.Inode,
		Size:   fm.Size,
		Atime:  fm.Atime,
		Ctime:  fm.Ctime,
		Mtime:  fm.Mtime,
		Link:   fm.Link,
		Hashes: hashes,
	})
	if err == nil {
		p.metrics.RecordFileArchived(fm.Host)
	}
	return err
}

func fileRecordMatches(r FileRecord, tentative filemeta.FileMeta) bool {
	return r.Path == tentative.Path &&
		filemeta.Type(r.Type) == tentative.Type &&
		r.UID == tentative.UID &&
		r.GID == tentative.GID &&
		r.Atime == tentative.Atime &&
		r.Ctime == tentative.Ctime &&
		r.Mtime == tentative.Mtime &&
		r.Mode == tentative.Mode
}
