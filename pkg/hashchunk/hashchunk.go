// Package hashchunk implements the fixed-size chunking and content-addressing
// primitives shared by the client pipeline and every backend: splitting a
// byte stream into bounded blocks, hashing each with SHA-256, and converting
// between the binary hash representation and the hex/base64 encodings used
// on the wire.
package hashchunk

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"iter"

	"github.com/cdpfgl/cdpfgl-go/pkg/bufpool"
)

// DefaultBlockSize is the block size used when the monitor config does not
// override it.
const DefaultBlockSize = 16384

// HashSize is the length in bytes of a SHA-256 digest.
const HashSize = sha256.Size

// Hash is a content address: SHA-256 of a block's uncompressed bytes.
type Hash [HashSize]byte

// CompressionKind identifies how a block's stored payload relates to its
// uncompressed bytes. The hash is always computed over the uncompressed
// form, so a block's compression kind never affects its identity.
type CompressionKind int

const (
	CompressionNone CompressionKind = iota
	CompressionGzip
)

// IsCompressionAllowed reports whether kind is a compression the codec
// understands. Unknown kinds are not an error at the type level; callers
// that parse an untrusted kind value should route it through this check and
// fall back to CompressionNone, matching the source behavior of silently
// degrading unrecognized compression tags instead of rejecting them.
func IsCompressionAllowed(kind CompressionKind) bool {
	switch kind {
	case CompressionNone, CompressionGzip:
		return true
	default:
		return false
	}
}

// Block is an immutable, content-addressed unit of file data.
type Block struct {
	Hash               Hash
	Payload            []byte
	UncompressedLength int64
	CompressionKind    CompressionKind
}

// Chunk reads r in BlockSize-sized steps, hashing each block as it is read,
// and yields (Block, error) pairs in file order. The sequence is finite and
// forward-only: r is read exactly once, start to end. The final block may be
// shorter than blockSize; it is still yielded. A read error terminates the
// sequence after yielding the error.
func Chunk(r io.Reader, blockSize int) iter.Seq2[Block, error] {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return func(yield func(Block, error) bool) {
		buf := bufpool.Get(blockSize)
		defer bufpool.Put(buf)
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				payload := make([]byte, n)
				copy(payload, buf[:n])
				sum := sha256.Sum256(payload)
				block := Block{
					Hash:               Hash(sum),
					Payload:            payload,
					UncompressedLength: int64(n),
					CompressionKind:    CompressionNone,
				}
				if !yield(block, nil) {
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				yield(Block{}, fmt.Errorf("hashchunk: read block: %w", err))
				return
			}
		}
	}
}

// Compress encodes data under the given compression kind. CompressionNone
// returns data unchanged (no copy).
func Compress(data []byte, kind CompressionKind) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("hashchunk: gzip compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("hashchunk: gzip compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("hashchunk: unsupported compression kind %d", kind)
	}
}

// Decompress reverses Compress. CompressionNone returns data unchanged.
func Decompress(data []byte, kind CompressionKind) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("hashchunk: gzip decompress: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("hashchunk: gzip decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("hashchunk: unsupported compression kind %d", kind)
	}
}

// HashToHex renders a hash as lowercase hex, the wire encoding used by the
// object-store backend.
func HashToHex(h Hash) string {
	return hex.EncodeToString(h[:])
}

// HexToHash parses a lowercase (or mixed-case) hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hashchunk: decode hex hash: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("hashchunk: hex hash has %d bytes, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// HashToBase64 renders a hash as standard base64, the alternate wire
// encoding enabled by the document-store backend's hash_base64 flag.
func HashToBase64(h Hash) string {
	return base64.StdEncoding.EncodeToString(h[:])
}

// Base64ToHash parses a standard base64 string into a Hash.
func Base64ToHash(s string) (Hash, error) {
	var h Hash
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hashchunk: decode base64 hash: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("hashchunk: base64 hash has %d bytes, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}
