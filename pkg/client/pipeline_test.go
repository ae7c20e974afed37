package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdpfgl/cdpfgl-go/pkg/dedupcache"
)

// fakeServer is a minimal stand-in for the dispatcher's HTTP surface,
// enough to drive the pipeline end-to-end without a real backend.
type fakeServer struct {
	mu        sync.Mutex
	blocks    map[string][]byte
	filemetas []FileRecord
}

func newFakeServer() *fakeServer {
	return &fakeServer{blocks: make(map[string][]byte)}
}

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		var req storeBlockPayload
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.blocks[req.Hash] = req.Payload
		s.mu.Unlock()
		writeEnvelope(w, nil)
	})
	mux.HandleFunc("/api/v1/hashes/needed", func(w http.ResponseWriter, r *http.Request) {
		var req neededHashesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		var needed []string
		for _, h := range req.Hashes {
			if _, ok := s.blocks[h]; !ok {
				needed = append(needed, h)
			}
		}
		s.mu.Unlock()
		writeEnvelope(w, neededHashesResponse{Needed: needed})
	})
	mux.HandleFunc("/api/v1/filemeta", func(w http.ResponseWriter, r *http.Request) {
		var req FileRecord
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.filemetas = append(s.filemetas, req)
		s.mu.Unlock()
		writeEnvelope(w, nil)
	})
	mux.HandleFunc("/api/v1/files", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		out := append([]FileRecord(nil), s.filemetas...)
		s.mu.Unlock()
		writeEnvelope(w, out)
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, data any) {
	raw, _ := json.Marshal(data)
	resp := envelope{Status: "ok", Data: raw}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestArchivePath_UploadsBlocksThenFileMeta(t *testing.T) {
	fs := newFakeServer()
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 40000), 0644))

	api := NewAPIClient(srv.URL)
	cache := dedupcache.New()
	p := NewPipeline(api, cache, "hostA", 16384, nil)

	skipped, err := p.ArchivePath(path)
	require.NoError(t, err)
	assert.False(t, skipped)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	// Chunks are 16384, 16384, 7232 bytes; the file is all zeros, so the two
	// full chunks share one hash and are stored once.
	assert.Len(t, fs.blocks, 2)
	require.Len(t, fs.filemetas, 1)
	assert.Len(t, fs.filemetas[0].Hashes, 3)
}

func TestArchivePath_SkipsUnchangedFile(t *testing.T) {
	fs := newFakeServer()
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	api := NewAPIClient(srv.URL)
	p := NewPipeline(api, dedupcache.New(), "hostA", 16384, nil)

	_, err := p.ArchivePath(path)
	require.NoError(t, err)

	skipped, err := p.ArchivePath(path)
	require.NoError(t, err)
	assert.True(t, skipped)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Len(t, fs.filemetas, 1, "second archive of an unchanged file must not send a new record")
}

func TestArchivePath_DedupCacheAvoidsReupload(t *testing.T) {
	fs := newFakeServer()
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	content := []byte(fmt.Sprintf("%0100d", 1))
	require.NoError(t, os.WriteFile(a, content, 0644))
	require.NoError(t, os.WriteFile(b, content, 0644))

	api := NewAPIClient(srv.URL)
	cache := dedupcache.New()
	p := NewPipeline(api, cache, "hostA", 16384, nil)

	_, err := p.ArchivePath(a)
	require.NoError(t, err)
	_, err = p.ArchivePath(b)
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Len(t, fs.blocks, 1, "identical content across two files must store one block")
	assert.Len(t, fs.filemetas, 2, "two distinct paths still get two records")
}
