// Package objectstore implements the S3-compatible data backend: content-
// addressed block payloads in a data bucket, paired with tiny sidecar
// "filemeta" objects carrying each block's compression metadata, using the
// AWS SDK v2 client.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cdpfgl/cdpfgl-go/internal/logger"
	"github.com/cdpfgl/cdpfgl-go/pkg/backend"
	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// FallbackBucket is the reserved bucket name used when a configured bucket
// is unreachable at write time. It is always initialized alongside the
// configured buckets, mirroring MINIO_FALLBACK_BUCKET in the original
// implementation.
const FallbackBucket = "tmp-fallback"

const metaSuffix = ".meta"

// Config configures an object-store backend instance.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool

	BucketData     string
	BucketFileMeta string

	// AddMissingBucket controls whether Open creates configured buckets
	// that do not already exist. When false and a bucket is missing, Open
	// fails with ErrConfigError (matching the source: startup fails when
	// add_missing_bucket is false and a bucket is absent).
	AddMissingBucket bool
}

// Backend is the object-store data backend. It implements StoreBlock,
// NeededHashes, and RetrieveBlock; StoreFileMeta and ListFiles are not
// supported here (file-level queries route to the metadata backend).
type Backend struct {
	client *s3.Client
	cfg    Config
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.CapabilityProvider = (*Backend)(nil)

// Open constructs the S3 client from cfg, then ensures the fallback bucket
// and both configured buckets are accessible, creating them when
// AddMissingBucket is set.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	b := &Backend{client: client, cfg: cfg}

	if err := b.ensureBucket(ctx, FallbackBucket, true); err != nil {
		return nil, fmt.Errorf("objectstore: init fallback bucket: %w", err)
	}
	if err := b.ensureBucket(ctx, cfg.BucketData, cfg.AddMissingBucket); err != nil {
		return nil, fmt.Errorf("objectstore: init data bucket %q: %w", cfg.BucketData, err)
	}
	if err := b.ensureBucket(ctx, cfg.BucketFileMeta, cfg.AddMissingBucket); err != nil {
		return nil, fmt.Errorf("objectstore: init filemeta bucket %q: %w", cfg.BucketFileMeta, err)
	}

	return b, nil
}

func (b *Backend) ensureBucket(ctx context.Context, bucket string, createIfMissing bool) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if !createIfMissing {
		return backend.NewError("Open", "objectstore", backend.ErrConfigError)
	}
	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Supports reports the subset of the five-operation contract this backend
// covers: block payload operations, not metadata/listing ones.
func (b *Backend) Supports(cap backend.Capability) bool {
	switch cap {
	case backend.CapStoreBlock, backend.CapNeededHashes, backend.CapRetrieveBlock:
		return true
	default:
		return false
	}
}

// StoreBlock writes the sidecar object then the payload object. A failed
// write to the configured bucket is logged at error level and repeated
// against FallbackBucket; if that fallback write also fails, StoreBlock
// returns ErrTransient at once, so a sidecar failure leaves the payload
// unwritten. Blocks are content-addressed, so calling StoreBlock again for
// the same block is safe.
func (b *Backend) StoreBlock(ctx context.Context, blk hashchunk.Block) error {
	hex := hashchunk.HashToHex(blk.Hash)

	metaBucket := b.cfg.BucketFileMeta
	if err := b.putSidecar(ctx, metaBucket, hex, blk); err != nil {
		logger.ErrorCtx(ctx, "objectstore: filemeta write failed, falling back",
			logger.Key(hex), logger.Bucket(metaBucket), logger.Err(err))
		if fbErr := b.putSidecar(ctx, FallbackBucket, hex, blk); fbErr != nil {
			return backend.NewError("StoreBlock", "objectstore", backend.ErrTransient).WithHash(hex)
		}
	}

	dataBucket := b.cfg.BucketData
	if err := b.putPayload(ctx, dataBucket, hex, blk.Payload); err != nil {
		logger.ErrorCtx(ctx, "objectstore: payload write failed, falling back",
			logger.Key(hex), logger.Bucket(dataBucket), logger.Err(err))
		if fbErr := b.putPayload(ctx, FallbackBucket, hex, blk.Payload); fbErr != nil {
			return backend.NewError("StoreBlock", "objectstore", backend.ErrTransient).WithHash(hex)
		}
	}

	return nil
}

func (b *Backend) putPayload(ctx context.Context, bucket, hex string, payload []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(hex),
		Body:   bytes.NewReader(payload),
	})
	return err
}

func (b *Backend) putSidecar(ctx context.Context, bucket, hex string, blk hashchunk.Block) error {
	body := encodeSidecar(blk.UncompressedLength, blk.CompressionKind)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(hex + metaSuffix),
		Body:   bytes.NewReader(body),
	})
	return err
}

// encodeSidecar renders the tiny key-value body stored alongside a block:
// uncmplen=<n>\ncmptype=<n>\n.
func encodeSidecar(uncompressedLength int64, kind hashchunk.CompressionKind) []byte {
	return []byte(fmt.Sprintf("uncmplen=%d\ncmptype=%d\n", uncompressedLength, int(kind)))
}

func decodeSidecar(body []byte) (uncompressedLength int64, kind hashchunk.CompressionKind, err error) {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "uncmplen":
			n, perr := strconv.ParseInt(parts[1], 10, 64)
			if perr != nil {
				return 0, 0, perr
			}
			uncompressedLength = n
		case "cmptype":
			n, perr := strconv.Atoi(parts[1])
			if perr != nil {
				return 0, 0, perr
			}
			kind = hashchunk.CompressionKind(n)
		}
	}
	return uncompressedLength, kind, nil
}

// NeededHashes issues a HeadObject probe per candidate against the data
// bucket, returning the subset absent there, in candidate order with
// duplicates collapsed.
func (b *Backend) NeededHashes(ctx context.Context, candidates []hashchunk.Hash) ([]hashchunk.Hash, error) {
	out := make([]hashchunk.Hash, 0, len(candidates))
	seen := make(map[hashchunk.Hash]struct{}, len(candidates))

	for _, h := range candidates {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		hex := hashchunk.HashToHex(h)
		_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.cfg.BucketData),
			Key:    aws.String(hex),
		})
		if err == nil {
			continue // already present
		}
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			return nil, backend.NewError("NeededHashes", "objectstore", backend.ErrTransient).WithHash(hex)
		}
		out = append(out, h)
	}
	return out, nil
}

// RetrieveBlock fetches the sidecar first; absence signals ErrNotFound. If
// the sidecar exists but the payload does not, the block is ErrCorrupt: an
// index entry referencing missing data.
func (b *Backend) RetrieveBlock(ctx context.Context, h hashchunk.Hash) (hashchunk.Block, error) {
	hex := hashchunk.HashToHex(h)

	sidecarResp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.BucketFileMeta),
		Key:    aws.String(hex + metaSuffix),
	})
	if err != nil {
		var nokey *types.NoSuchKey
		if errors.As(err, &nokey) {
			return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrNotFound).WithHash(hex)
		}
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrTransient).WithHash(hex)
	}
	defer sidecarResp.Body.Close()

	sidecarBody, err := io.ReadAll(sidecarResp.Body)
	if err != nil {
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrTransient).WithHash(hex)
	}
	uncompressedLength, kind, err := decodeSidecar(sidecarBody)
	if err != nil {
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrCorrupt).WithHash(hex)
	}

	payloadResp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.BucketData),
		Key:    aws.String(hex),
	})
	if err != nil {
		var nokey *types.NoSuchKey
		if errors.As(err, &nokey) {
			logger.ErrorCtx(ctx, "objectstore: sidecar present but payload missing", logger.Key(hex))
			return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrCorrupt).WithHash(hex)
		}
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrTransient).WithHash(hex)
	}
	defer payloadResp.Body.Close()

	payload, err := io.ReadAll(payloadResp.Body)
	if err != nil {
		return hashchunk.Block{}, backend.NewError("RetrieveBlock", "objectstore", backend.ErrTransient).WithHash(hex)
	}

	return hashchunk.Block{
		Hash:               h,
		Payload:            payload,
		UncompressedLength: uncompressedLength,
		CompressionKind:    kind,
	}, nil
}

// StoreFileMeta is not supported by the object-store backend.
func (b *Backend) StoreFileMeta(context.Context, filemeta.FileMeta) error {
	return backend.NewError("StoreFileMeta", "objectstore", backend.ErrNotSupported)
}

// ListFiles is not supported by the object-store backend; file-level
// queries are routed to the metadata backend.
func (b *Backend) ListFiles(context.Context, backend.Query) iter.Seq2[filemeta.FileMeta, error] {
	return func(yield func(filemeta.FileMeta, error) bool) {
		yield(filemeta.FileMeta{}, backend.NewError("ListFiles", "objectstore", backend.ErrNotSupported))
	}
}
