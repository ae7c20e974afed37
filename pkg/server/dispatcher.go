// Package server implements the HTTP dispatcher: it exposes the five
// backend operations over REST, routing each request to whichever of the
// configured metadata/data backend pair supports it, with a shared response
// envelope, router middleware stack, and Server lifecycle.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// Dispatcher holds the configured metadata and data backend handles and
// routes each of the five operations to whichever supports it. Both fields
// may point at the same backend (a single all-capabilities backend such as
// memdoc), or at two different ones (objectstore + docstore).
type Dispatcher struct {
	meta backend.Backend
	data backend.Backend
}

// NewDispatcher constructs a Dispatcher. Callers must have already run
// backend.ValidateCapabilities(meta, data) and treated any error as fatal;
// Dispatcher itself does not re-validate.
func NewDispatcher(meta, data backend.Backend) *Dispatcher {
	return &Dispatcher{meta: meta, data: data}
}

// route picks whichever backend supports cap. When both do, block
// operations go to data and metadata operations (StoreFileMeta, ListFiles)
// go to meta. Returns nil if neither supports it — callers treat that as
// ErrNotSupported.
func (d *Dispatcher) route(cap backend.Capability) backend.Backend {
	first, second := d.data, d.meta
	if cap == backend.CapStoreFileMeta || cap == backend.CapListFiles {
		first, second = d.meta, d.data
	}
	if supports(first, cap) {
		return first
	}
	if supports(second, cap) {
		return second
	}
	return nil
}

func supports(b backend.Backend, cap backend.Capability) bool {
	if b == nil {
		return false
	}
	if provider, ok := b.(backend.CapabilityProvider); ok {
		return provider.Supports(cap)
	}
	return true
}

func (d *Dispatcher) storeBlock(ctx context.Context, blk hashchunk.Block) error {
	b := d.route(backend.CapStoreBlock)
	if b == nil {
		return backend.NewError("StoreBlock", "dispatcher", backend.ErrNotSupported)
	}
	return b.StoreBlock(ctx, blk)
}

func (d *Dispatcher) storeFileMeta(ctx context.Context, fm filemeta.FileMeta) error {
	b := d.route(backend.CapStoreFileMeta)
	if b == nil {
		return backend.NewError("StoreFileMeta", "dispatcher", backend.ErrNotSupported)
	}
	return b.StoreFileMeta(ctx, fm)
}

func (d *Dispatcher) neededHashes(ctx context.Context, candidates []hashchunk.Hash) ([]hashchunk.Hash, error) {
	b := d.route(backend.CapNeededHashes)
	if b == nil {
		return nil, backend.NewError("NeededHashes", "dispatcher", backend.ErrNotSupported)
	}
	return b.NeededHashes(ctx, candidates)
}

func (d *Dispatcher) retrieveBlock(ctx context.Context, h hashchunk.Hash) (hashchunk.Block, error) {
	b := d.route(backend.CapRetrieveBlock)
	if b == nil {
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "dispatcher", backend.ErrNotSupported)
	}
	return b.RetrieveBlock(ctx, h)
}

func (d *Dispatcher) listFiles(ctx context.Context, q backend.Query) ([]filemeta.FileMeta, error) {
	b := d.route(backend.CapListFiles)
	if b == nil {
		return nil, backend.NewError("ListFiles", "dispatcher", backend.ErrNotSupported)
	}

	var out []filemeta.FileMeta
	for fm, err := range b.ListFiles(ctx, q) {
		if err != nil {
			return nil, err
		}
		out = append(out, fm)
	}
	return out, nil
}

// storeBlockRequest is the wire shape for POST /api/v1/blocks.
type storeBlockRequest struct {
	Hash               string `json:"hash"`
	HashBase64         string `json:"hash_base64,omitempty"`
	Payload            []byte `json:"payload"`
	Compression        string `json:"compression,omitempty"`
	UncompressedLength int64  `json:"uncompressed_length"`
}

func (req storeBlockRequest) toBlock() (hashchunk.Block, error) {
	var h hashchunk.Hash
	var err error
	switch {
	case req.HashBase64 != "":
		h, err = hashchunk.Base64ToHash(req.HashBase64)
	default:
		h, err = hashchunk.HexToHash(req.Hash)
	}
	if err != nil {
		return hashchunk.Block{}, err
	}

	kind := hashchunk.CompressionNone
	if req.Compression == "gzip" {
		kind = hashchunk.CompressionGzip
	}

	return hashchunk.Block{
		Hash:               h,
		Payload:            req.Payload,
		CompressionKind:    kind,
		UncompressedLength: req.UncompressedLength,
	}, nil
}

func (s *Server) handleStoreBlock(w http.ResponseWriter, r *http.Request) {
	var req storeBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "malformed request body"})
		return
	}

	blk, err := req.toBlock()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: err.Error()})
		return
	}

	if err := s.dispatcher.storeBlock(r.Context(), blk); err != nil {
		logger.ErrorCtx(r.Context(), "store block failed", logger.KeyError, err.Error())
		writeBackendError(w, err)
		return
	}
	writeOK(w, nil)
}

// storeFileMetaRequest is the wire shape for POST /api/v1/filemeta.
type storeFileMetaRequest struct {
	Host   string   `json:"host"`
	Path   string   `json:"path"`
	Name   string   `json:"name"`
	Type   int      `json:"type"`
	Mode   int32    `json:"mode"`
	UID    int32    `json:"uid"`
	GID    int32    `json:"gid"`
	Owner  string   `json:"owner"`
	Group  string   `json:"group"`
	Inode  int64    `json:"inode"`
	Size   int64    `json:"size"`
	Atime  int64    `json:"atime"`
	Ctime  int64    `json:"ctime"`
	Mtime  int64    `json:"mtime"`
	Link   string   `json:"link,omitempty"`
	Hashes []string `json:"hashes"`
}

func (req storeFileMetaRequest) toFileMeta() (filemeta.FileMeta, error) {
	hashes := make([]hashchunk.Hash, len(req.Hashes))
	for i, s := range req.Hashes {
		h, err := hashchunk.HexToHash(s)
		if err != nil {
			return filemeta.FileMeta{}, err
		}
		hashes[i] = h
	}
	return filemeta.FileMeta{
		Host:   req.Host,
		Path:   req.Path,
		Name:   req.Name,
		Type:   filemeta.Type(req.Type),
		Mode:   req.Mode,
		UID:    req.UID,
		GID:    req.GID,
		Owner:  req.Owner,
		Group:  req.Group,
		Inode:  req.Inode,
		Size:   req.Size,
		Atime:  req.Atime,
		Ctime:  req.Ctime,
		Mtime:  req.Mtime,
		Link:   req.Link,
		Hashes: hashes,
	}, nil
}

func (s *Server) handleStoreFileMeta(w http.ResponseWriter, r *http.Request) {
	var req storeFileMetaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "malformed request body"})
		return
	}

	fm, err := req.toFileMeta()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: err.Error()})
		return
	}

	if err := s.dispatcher.storeFileMeta(r.Context(), fm); err != nil {
		logger.ErrorCtx(r.Context(), "store filemeta failed", logger.KeyError, err.Error())
		writeBackendError(w, err)
		return
	}
	writeOK(w, nil)
}

type neededHashesRequest struct {
	Hashes []string `json:"hashes"`
}

func (s *Server) handleNeededHashes(w http.ResponseWriter, r *http.Request) {
	var req neededHashesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "malformed request body"})
		return
	}

	candidates := make([]hashchunk.Hash, len(req.Hashes))
	for i, s := range req.Hashes {
		h, err := hashchunk.HexToHash(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: err.Error()})
			return
		}
		candidates[i] = h
	}

	needed, err := s.dispatcher.neededHashes(r.Context(), candidates)
	if err != nil {
		logger.ErrorCtx(r.Context(), "needed hashes failed", logger.KeyError, err.Error())
		writeBackendError(w, err)
		return
	}

	out := make([]string, len(needed))
	for i, h := range needed {
		out[i] = hashchunk.HashToHex(h)
	}
	writeOK(w, map[string][]string{"needed": out})
}

func (s *Server) handleRetrieveBlock(w http.ResponseWriter, r *http.Request) {
	hex := chiURLParam(r, "hash")
	h, err := hashchunk.HexToHash(hex)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: err.Error()})
		return
	}

	blk, err := s.dispatcher.retrieveBlock(r.Context(), h)
	if err != nil {
		logger.ErrorCtx(r.Context(), "retrieve block failed", logger.KeyError, err.Error())
		writeBackendError(w, err)
		return
	}

	writeOK(w, storeBlockRequest{
		Hash:               hashchunk.HashToHex(blk.Hash),
		Payload:            blk.Payload,
		Compression:        compressionName(blk.CompressionKind),
		UncompressedLength: blk.UncompressedLength,
	})
}

func compressionName(k hashchunk.CompressionKind) string {
	if k == hashchunk.CompressionGzip {
		return "gzip"
	}
	return ""
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := backend.Query{Host: r.URL.Query().Get("host")}

	if v := r.URL.Query().Get("filename"); v != "" {
		q.Filename = &v
	}
	if v := r.URL.Query().Get("owner"); v != "" {
		q.Owner = &v
	}
	if v := r.URL.Query().Get("group"); v != "" {
		q.Group = &v
	}
	if v := r.URL.Query().Get("before_mtime"); v != "" {
		if n, err := parseInt64(v); err == nil {
			q.BeforeMtime = &n
		}
	}
	if v := r.URL.Query().Get("after_mtime"); v != "" {
		if n, err := parseInt64(v); err == nil {
			q.AfterMtime = &n
		}
	}
	q.LatestOnly = r.URL.Query().Get("latest_only") == "true"

	if q.Host == "" {
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "host is required"})
		return
	}

	files, err := s.dispatcher.listFiles(r.Context(), q)
	if err != nil {
		logger.ErrorCtx(r.Context(), "list files failed", logger.KeyError, err.Error())
		writeBackendError(w, err)
		return
	}
	writeOK(w, files)
}
