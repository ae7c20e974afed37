// Package client implements the backup pipeline: stat, skip-if-seen,
// chunk, dedup-filter, upload, and the thin REST client it talks to the
// server dispatcher through — a small http.Client wrapper with a single
// JSON request helper (do) and an APIError type.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdpfgl server: %d: %s", e.StatusCode, e.Message)
}

// APIClient is a thin REST client for the server dispatcher's endpoint
// table.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient constructs a client against baseURL (e.g. "http://localhost:8080").
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (c *APIClient) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cdpfgl client: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("cdpfgl client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cdpfgl client: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cdpfgl client: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("cdpfgl client: decode envelope: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("cdpfgl client: decode data: %w", err)
		}
	}
	return nil
}

type storeBlockPayload struct {
	Hash               string `json:"hash"`
	Payload            []byte `json:"payload"`
	Compression        string `json:"compression,omitempty"`
	UncompressedLength int64  `json:"uncompressed_length"`
}

// StoreBlock sends a single block payload to the server.
func (c *APIClient) StoreBlock(blk hashchunk.Block) error {
	compression := ""
	if blk.CompressionKind == hashchunk.CompressionGzip {
		compression = "gzip"
	}
	req := storeBlockPayload{
		Hash:               hashchunk.HashToHex(blk.Hash),
		Payload:            blk.Payload,
		Compression:        compression,
		UncompressedLength: blk.UncompressedLength,
	}
	return c.do(http.MethodPost, "/api/v1/blocks", req, nil)
}

type neededHashesRequest struct {
	Hashes []string `json:"hashes"`
}

type neededHashesResponse struct {
	Needed []string `json:"needed"`
}

// NeededHashes asks the server which of candidates it does not yet hold.
func (c *APIClient) NeededHashes(candidates []hashchunk.Hash) ([]hashchunk.Hash, error) {
	req := neededHashesRequest{Hashes: make([]string, len(candidates))}
	for i, h := range candidates {
		req.Hashes[i] = hashchunk.HashToHex(h)
	}

	var resp neededHashesResponse
	if err := c.do(http.MethodPost, "/api/v1/hashes/needed", req, &resp); err != nil {
		return nil, err
	}

	out := make([]hashchunk.Hash, len(resp.Needed))
	for i, s := range resp.Needed {
		h, err := hashchunk.HexToHash(s)
		if err != nil {
			return nil, fmt.Errorf("cdpfgl client: decode needed hash: %w", err)
		}
		out[i] = h
	}
	return out, nil
}

type FileRecord struct {
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

// StoreFileMeta sends a complete FileMeta record to the server.
func (c *APIClient) StoreFileMeta(req FileRecord) error {
	return c.do(http.MethodPost, "/api/v1/filemeta", req, nil)
}

// ListFilesQuery mirrors backend.Query's filterable fields for the client's
// restore/list path.
type ListFilesQuery struct {
	Host        string
	Filename    string
	Owner       string
	Group       string
	BeforeMtime *int64
	AfterMtime  *int64
	LatestOnly  bool
}

// ListFiles queries the server's file listing endpoint.
func (c *APIClient) ListFiles(q ListFilesQuery) ([]FileRecord, error) {
	values := url.Values{}
	values.Set("host", q.Host)
	if q.Filename != "" {
		values.Set("filename", q.Filename)
	}
	if q.Owner != "" {
		values.Set("owner", q.Owner)
	}
	if q.Group != "" {
		values.Set("group", q.Group)
	}
	if q.BeforeMtime != nil {
		values.Set("before_mtime", fmt.Sprintf("%d", *q.BeforeMtime))
	}
	if q.AfterMtime != nil {
		values.Set("after_mtime", fmt.Sprintf("%d", *q.AfterMtime))
	}
	if q.LatestOnly {
		values.Set("latest_only", "true")
	}

	var out []FileRecord
	if err := c.do(http.MethodGet, "/api/v1/files?"+values.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RetrieveBlock fetches a single block by hex hash.
func (c *APIClient) RetrieveBlock(h hashchunk.Hash) (hashchunk.Block, error) {
	var resp storeBlockPayload
	if err := c.do(http.MethodGet, "/api/v1/blocks/"+hashchunk.HashToHex(h), nil, &resp); err != nil {
		return hashchunk.Block{}, err
	}

	decoded, err := hashchunk.HexToHash(resp.Hash)
	if err != nil {
		return hashchunk.Block{}, fmt.Errorf("cdpfgl client: decode block hash: %w", err)
	}

	kind := hashchunk.CompressionNone
	if resp.Compression == "gzip" {
		kind = hashchunk.CompressionGzip
	}

	return hashchunk.Block{
		Hash:               decoded,
		Payload:            resp.Payload,
		CompressionKind:    kind,
		UncompressedLength: resp.UncompressedLength,
	}, nil
}
