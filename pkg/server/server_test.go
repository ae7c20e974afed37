package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend/memdoc"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// dataOnlyBackend supports only the block operations, mirroring
// objectstore's capability profile without needing a live S3 endpoint.
type dataOnlyBackend struct{}

func (dataOnlyBackend) StoreBlock(context.Context, hashchunk.Block) error { return nil }
func (dataOnlyBackend) StoreFileMeta(context.Context, filemeta.FileMeta) error {
	return backend.NewError("StoreFileMeta", "dataonly", backend.ErrNotSupported)
}
func (dataOnlyBackend) NeededHashes(context.Context, []hashchunk.Hash) ([]hashchunk.Hash, error) {
	return nil, nil
}
func (dataOnlyBackend) RetrieveBlock(context.Context, hashchunk.Hash) (hashchunk.Block, error) {
	return hashchunk.Block{}, nil
}
func (dataOnlyBackend) ListFiles(context.Context, backend.Query) iter.Seq2[filemeta.FileMeta, error] {
	return func(yield func(filemeta.FileMeta, error) bool) {}
}
func (dataOnlyBackend) Supports(cap backend.Capability) bool {
	switch cap {
	case backend.CapStoreBlock, backend.CapNeededHashes, backend.CapRetrieveBlock:
		return true
	default:
		return false
	}
}

var _ backend.Backend = dataOnlyBackend{}
var _ backend.CapabilityProvider = dataOnlyBackend{}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	m := memdoc.New()
	disp := NewDispatcher(m, m)
	return httptest.NewServer(newRouter(disp, nil))
}

func TestEndToEnd_StoreBlockThenRetrieve(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	blk := storeBlockRequest{
		Hash:               hashchunk.HashToHex(hashchunk.Hash{1, 2, 3}),
		Payload:            []byte("hello world"),
		UncompressedLength: 11,
	}
	body, _ := json.Marshal(blk)

	resp, err := http.Post(ts.URL+"/api/v1/blocks", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/blocks/" + blk.Hash)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "ok", env.Status)
}

func TestEndToEnd_RetrieveMissingBlockReturns404(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/blocks/" + hashchunk.HashToHex(hashchunk.Hash{9, 9}))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEnd_StoreFileMetaThenListFiles(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	fm := storeFileMetaRequest{
		Host: "hostA",
		Path: "/data/a.txt",
		Name: "a.txt",
		Mode: 0644,
	}
	body, _ := json.Marshal(fm)

	resp, err := http.Post(ts.URL+"/api/v1/filemeta", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/files?host=hostA")
	require.NoError(t, err)
	defer resp.Body.Close()

	var env response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "ok", env.Status)
}

func TestEndToEnd_ListFilesRequiresHost(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndToEnd_NeededHashes(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	h := hashchunk.HashToHex(hashchunk.Hash{5})
	req := neededHashesRequest{Hashes: []string{h}}
	body, _ := json.Marshal(req)

	resp, err := http.Post(ts.URL+"/api/v1/hashes/needed", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	data, _ := json.Marshal(env.Data)
	var decoded struct {
		Needed []string `json:"needed"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded.Needed, h)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServer_RejectsMissingCapability(t *testing.T) {
	_, err := NewServer(Config{}, dataOnlyBackend{}, dataOnlyBackend{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrMissingCapability))
}

func TestNewServer_AcceptsComplementaryPair(t *testing.T) {
	_, err := NewServer(Config{}, memdoc.New(), dataOnlyBackend{}, nil)
	require.NoError(t, err)
}

func TestDispatcher_RoutePrefersDataOverMetaOnOverlap(t *testing.T) {
	meta := memdoc.New()
	data := memdoc.New()
	d := NewDispatcher(meta, data)

	require.NoError(t, d.storeBlock(context.Background(), hashchunk.Block{Hash: hashchunk.Hash{1}, Payload: []byte("x"), UncompressedLength: 1}))

	_, err := data.RetrieveBlock(context.Background(), hashchunk.Hash{1})
	assert.NoError(t, err, "block routed to the data backend")

	_, err = meta.RetrieveBlock(context.Background(), hashchunk.Hash{1})
	assert.Error(t, err, "block must not have been routed to the meta backend")
}
