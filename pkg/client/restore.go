package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// RestoreFile reconstructs one FileRecord's content at destPath by fetching
// each of its blocks in order and concatenating their decompressed payload.
// Directories and symlinks carry no blocks; callers recreate those directly
// from rec.Type without calling RestoreFile.
func (p *Pipeline) RestoreFile(rec FileRecord, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("cdpfgl client: create destination directory: %w", err)
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(rec.Mode))
	if err != nil {
		return fmt.Errorf("cdpfgl client: create %s: %w", destPath, err)
	}
	defer f.Close()

	for _, hexHash := range rec.Hashes {
		hash, err := hashchunk.HexToHash(hexHash)
		if err != nil {
			return fmt.Errorf("cdpfgl client: decode hash %s: %w", hexHash, err)
		}

		blk, err := p.api.RetrieveBlock(hash)
		if err != nil {
			return fmt.Errorf("cdpfgl client: retrieve block %s: %w", hexHash, err)
		}

		payload, err := hashchunk.Decompress(blk.Payload, blk.CompressionKind)
		if err != nil {
			return fmt.Errorf("cdpfgl client: decompress block %s: %w", hexHash, err)
		}

		if _, err := f.Write(payload); err != nil {
			return fmt.Errorf("cdpfgl client: write %s: %w", destPath, err)
		}
	}

	return nil
}

// ListRecords exposes the server's file listing for the restore/list CLI
// surface, passing q through unmodified.
func (p *Pipeline) ListRecords(q ListFilesQuery) ([]FileRecord, error) {
	return p.api.ListFiles(q)
}
