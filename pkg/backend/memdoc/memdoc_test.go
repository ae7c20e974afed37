package memdoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

func block(b byte) hashchunk.Block {
	var h hashchunk.Hash
	h[0] = b
	return hashchunk.Block{Hash: h, Payload: []byte{b}, UncompressedLength: 1}
}

func TestStoreBlock_Idempotent(t *testing.T) {
	ctx := context.Background()
	be := New()
	blk := block(1)

	require.NoError(t, be.StoreBlock(ctx, blk))
	require.NoError(t, be.StoreBlock(ctx, blk))

	needed, err := be.NeededHashes(ctx, []hashchunk.Hash{blk.Hash})
	require.NoError(t, err)
	assert.Empty(t, needed)
}

func TestNeededHashes_OrderPreservingDedup(t *testing.T) {
	ctx := context.Background()
	be := New()
	h2 := block(2)
	require.NoError(t, be.StoreBlock(ctx, h2))

	h1, h3 := block(1).Hash, block(3).Hash
	needed, err := be.NeededHashes(ctx, []hashchunk.Hash{h1, h2.Hash, h1, h3})
	require.NoError(t, err)
	assert.Equal(t, []hashchunk.Hash{h1, h3}, needed)
}

func TestRetrieveBlock_NotFound(t *testing.T) {
	ctx := context.Background()
	be := New()
	var missing hashchunk.Hash
	_, err := be.RetrieveBlock(ctx, missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestListFiles_LatestOnly(t *testing.T) {
	ctx := context.Background()
	be := New()

	records := []filemeta.FileMeta{
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1654041600},
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1671062400},
		{Host: "hostA", Path: "/a.txt", Name: "a.txt", Type: filemeta.TypeRegular, Mtime: 1683504000},
	}
	for _, r := range records {
		require.NoError(t, be.StoreFileMeta(ctx, r))
	}

	before := int64(1672531200)
	var got []filemeta.FileMeta
	for fm, err := range be.ListFiles(ctx, backend.Query{Host: "hostA", BeforeMtime: &before, LatestOnly: true}) {
		require.NoError(t, err)
		got = append(got, fm)
	}

	require.Len(t, got, 1)
	assert.Equal(t, int64(1671062400), got[0].Mtime)
}

func TestListFiles_FilenameFilterIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	be := New()
	require.NoError(t, be.StoreFileMeta(ctx, filemeta.FileMeta{Host: "hostA", Path: "/Report.PDF", Name: "Report.PDF", Mtime: 1}))

	name := "report"
	var got []filemeta.FileMeta
	for fm, err := range be.ListFiles(ctx, backend.Query{Host: "hostA", Filename: &name}) {
		require.NoError(t, err)
		got = append(got, fm)
	}
	assert.Len(t, got, 1)
}

func TestTwoHostsShareBlocksButNotRecords(t *testing.T) {
	ctx := context.Background()
	be := New()
	blk := block(9)
	require.NoError(t, be.StoreBlock(ctx, blk))

	require.NoError(t, be.StoreFileMeta(ctx, filemeta.FileMeta{Host: "hostA", Path: "/data/x", Name: "x", Hashes: []hashchunk.Hash{blk.Hash}, Mtime: 1}))
	require.NoError(t, be.StoreFileMeta(ctx, filemeta.FileMeta{Host: "hostB", Path: "/data/x", Name: "x", Hashes: []hashchunk.Hash{blk.Hash}, Mtime: 1}))

	var aCount, bCount int
	for _, err := range be.ListFiles(ctx, backend.Query{Host: "hostA"}) {
		require.NoError(t, err)
		aCount++
	}
	for _, err := range be.ListFiles(ctx, backend.Query{Host: "hostB"}) {
		require.NoError(t, err)
		bCount++
	}
	assert.Equal(t, 1, aCount)
	assert.Equal(t, 1, bCount)
}

func TestValidateCapabilities_MemdocAloneCoversAll(t *testing.T) {
	// memdoc alone covers all five operations.
	assert.NoError(t, backend.ValidateCapabilities(nil, New()))
}
