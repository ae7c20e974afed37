package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

func TestSidecar_RoundTrip(t *testing.T) {
	body := encodeSidecar(16384, hashchunk.CompressionGzip)
	gotLen, gotKind, err := decodeSidecar(body)
	require.NoError(t, err)
	assert.Equal(t, int64(16384), gotLen)
	assert.Equal(t, hashchunk.CompressionGzip, gotKind)
}

func TestSidecar_ZeroValues(t *testing.T) {
	body := encodeSidecar(0, hashchunk.CompressionNone)
	gotLen, gotKind, err := decodeSidecar(body)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotLen)
	assert.Equal(t, hashchunk.CompressionNone, gotKind)
}

func TestBackend_SupportsBlockOpsOnly(t *testing.T) {
	b := &Backend{}
	assert.True(t, b.Supports(backend.CapStoreBlock))
	assert.True(t, b.Supports(backend.CapNeededHashes))
	assert.True(t, b.Supports(backend.CapRetrieveBlock))
	assert.False(t, b.Supports(backend.CapStoreFileMeta))
	assert.False(t, b.Supports(backend.CapListFiles))
}
