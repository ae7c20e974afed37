// Package docstore implements the MongoDB-backed metadata backend: one
// collection per host, FileMeta stored as append-only documents, and query
// compilation over filename/owner/group/latest-only filters using the Go
// driver's bson/mongo idioms (one collection per host, cursor-then-sort-
// then-filter).
package docstore

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// Config configures a docstore backend instance.
type Config struct {
	URI      string
	Database string

	// HashBase64 selects the hash list's wire encoding: hex (default) or
	// base64. Fixed per backend instance; never mixed within one
	// deployment.
	HashBase64 bool
}

// Backend is the document-store metadata backend. It implements
// StoreFileMeta and ListFiles; NeededHashes/RetrieveBlock are not supported
// since this backend holds no block payloads.
type Backend struct {
	client     *mongo.Client
	db         *mongo.Database
	hashBase64 bool
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.CapabilityProvider = (*Backend)(nil)

// Open connects to MongoDB and pings it, returning ErrTransient if the
// deployment is unreachable at startup.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, backend.NewError("Open", "docstore", backend.ErrTransient)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, backend.NewError("Open", "docstore", backend.ErrTransient)
	}
	return &Backend{
		client:     client,
		db:         client.Database(cfg.Database),
		hashBase64: cfg.HashBase64,
	}, nil
}

// Close disconnects the underlying Mongo client.
func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// Supports reports the subset of the five-operation contract this backend
// covers: metadata storage and listing, not block payload operations.
func (b *Backend) Supports(cap backend.Capability) bool {
	switch cap {
	case backend.CapStoreFileMeta, backend.CapListFiles:
		return true
	default:
		return false
	}
}

// collectionName mirrors get_collection_name from the original
// implementation: one collection per host, named "<host>_meta".
func collectionName(host string) string {
	return host + "_meta"
}

// doc is the BSON document shape for a FileMeta.
type doc struct {
	Inode    int64    `bson:"inode"`
	FileType int32    `bson:"filetype"`
	Mode     int32    `bson:"mode"`
	Atime    int64    `bson:"atime"`
	Ctime    int64    `bson:"ctime"`
	Mtime    int64    `bson:"mtime"`
	Size     int64    `bson:"size"`
	Owner    string   `bson:"owner"`
	Group    string   `bson:"group"`
	UID      int32    `bson:"uid"`
	GID      int32    `bson:"gid"`
	Name     string   `bson:"name"`
	Path     string   `bson:"path"`
	Link     string   `bson:"link"`
	HashList []string `bson:"hashlist"`
}

func (b *Backend) toDoc(fm filemeta.FileMeta) doc {
	hashes := make([]string, len(fm.Hashes))
	for i, h := range fm.Hashes {
		if b.hashBase64 {
			hashes[i] = hashchunk.HashToBase64(h)
		} else {
			hashes[i] = hashchunk.HashToHex(h)
		}
	}
	return doc{
		Inode:    fm.Inode,
		FileType: int32(fm.Type),
		Mode:     fm.Mode,
		Atime:    fm.Atime,
		Ctime:    fm.Ctime,
		Mtime:    fm.Mtime,
		Size:     fm.Size,
		Owner:    fm.Owner,
		Group:    fm.Group,
		UID:      fm.UID,
		GID:      fm.GID,
		Name:     fm.Name,
		Path:     fm.Path,
		Link:     fm.Link,
		HashList: hashes,
	}
}

func (b *Backend) fromDoc(host string, d doc) (filemeta.FileMeta, error) {
	hashes := make([]hashchunk.Hash, len(d.HashList))
	for i, s := range d.HashList {
		var h hashchunk.Hash
		var err error
		if b.hashBase64 {
			h, err = hashchunk.Base64ToHash(s)
		} else {
			h, err = hashchunk.HexToHash(s)
		}
		if err != nil {
			return filemeta.FileMeta{}, fmt.Errorf("docstore: decode hash list entry: %w", err)
		}
		hashes[i] = h
	}
	return filemeta.FileMeta{
		Host:   host,
		Path:   d.Path,
		Name:   d.Name,
		Type:   filemeta.Type(d.FileType),
		Mode:   d.Mode,
		UID:    d.UID,
		GID:    d.GID,
		Owner:  d.Owner,
		Group:  d.Group,
		Inode:  d.Inode,
		Size:   d.Size,
		Atime:  d.Atime,
		Ctime:  d.Ctime,
		Mtime:  d.Mtime,
		Link:   d.Link,
		Hashes: hashes,
	}, nil
}

// StoreFileMeta inserts a new document. Append-only: no upsert, no dedupe
// against an existing equivalent record.
func (b *Backend) StoreFileMeta(ctx context.Context, fm filemeta.FileMeta) error {
	if fm.Host == "" {
		return backend.NewError("StoreFileMeta", "docstore", backend.ErrConfigError)
	}
	coll := b.db.Collection(collectionName(fm.Host))
	_, err := coll.InsertOne(ctx, b.toDoc(fm))
	if err != nil {
		return backend.NewError("StoreFileMeta", "docstore", backend.ErrTransient).WithHost(fm.Host)
	}
	return nil
}

// compileFilter builds the bson.D filter for a Query: filename/owner/group
// as case-insensitive regex, before/after mtime as $lte/$gte, AND-combined.
func compileFilter(q backend.Query) bson.D {
	filter := bson.D{}
	if q.Filename != nil {
		filter = append(filter, bson.E{Key: "name", Value: primitive.Regex{Pattern: *q.Filename, Options: "i"}})
	}
	if q.Owner != nil {
		filter = append(filter, bson.E{Key: "owner", Value: primitive.Regex{Pattern: *q.Owner, Options: "i"}})
	}
	if q.Group != nil {
		filter = append(filter, bson.E{Key: "group", Value: primitive.Regex{Pattern: *q.Group, Options: "i"}})
	}
	if q.BeforeMtime != nil {
		filter = append(filter, bson.E{Key: "mtime", Value: bson.D{{Key: "$lte", Value: *q.BeforeMtime}}})
	}
	if q.AfterMtime != nil {
		filter = append(filter, bson.E{Key: "mtime", Value: bson.D{{Key: "$gte", Value: *q.AfterMtime}}})
	}
	return filter
}

// ListFiles compiles q to a Mongo filter over the host's collection, sorts
// by mtime descending, and — if LatestOnly — reduces client-side to one
// record per (path, type). The client-side reduction (rather than a Mongo
// aggregation $group) keeps list semantics identical to the in-memory
// reference backend, so both are testable against the same expectations.
func (b *Backend) ListFiles(ctx context.Context, q backend.Query) iter.Seq2[filemeta.FileMeta, error] {
	return func(yield func(filemeta.FileMeta, error) bool) {
		if q.Host == "" {
			yield(filemeta.FileMeta{}, backend.NewError("ListFiles", "docstore", backend.ErrConfigError))
			return
		}

		coll := b.db.Collection(collectionName(q.Host))
		opts := options.Find().SetSort(bson.D{{Key: "mtime", Value: -1}})
		cursor, err := coll.Find(ctx, compileFilter(q), opts)
		if err != nil {
			yield(filemeta.FileMeta{}, backend.NewError("ListFiles", "docstore", backend.ErrTransient).WithHost(q.Host))
			return
		}
		defer cursor.Close(ctx)

		var docs []doc
		if err := cursor.All(ctx, &docs); err != nil {
			yield(filemeta.FileMeta{}, backend.NewError("ListFiles", "docstore", backend.ErrTransient).WithHost(q.Host))
			return
		}

		records := make([]filemeta.FileMeta, 0, len(docs))
		for _, d := range docs {
			fm, err := b.fromDoc(q.Host, d)
			if err != nil {
				if !yield(filemeta.FileMeta{}, backend.NewError("ListFiles", "docstore", backend.ErrCorrupt).WithHost(q.Host)) {
					return
				}
				continue
			}
			records = append(records, fm)
		}

		sort.SliceStable(records, func(i, j int) bool { return filemeta.Less(records[i], records[j]) })
		if q.LatestOnly {
			records = filemeta.LatestOnly(records)
		}

		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// NeededHashes is not supported by the document-store backend; it holds no
// block payloads.
func (b *Backend) NeededHashes(context.Context, []hashchunk.Hash) ([]hashchunk.Hash, error) {
	return nil, backend.NewError("NeededHashes", "docstore", backend.ErrNotSupported)
}

// RetrieveBlock is not supported by the document-store backend.
func (b *Backend) RetrieveBlock(context.Context, hashchunk.Hash) (hashchunk.Block, error) {
	return hashchunk.Block{}, backend.NewError("RetrieveBlock", "docstore", backend.ErrNotSupported)
}

// StoreBlock is not supported by the document-store backend.
func (b *Backend) StoreBlock(context.Context, hashchunk.Block) error {
	return backend.NewError("StoreBlock", "docstore", backend.ErrNotSupported)
}
