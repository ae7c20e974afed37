package logger

import (
	"encoding/hex"
	"log/slog"
)

// Field keys for structured logging. Kept to the set this codebase actually
// emits: request tracing, the backend-routing/operation context attached to
// every HTTP request, and the content-addressing identifiers (block hash,
// bucket) the object-store backend logs when a block write fails.
const (
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	KeyOperation  = "operation"  // Dispatcher operation name: store_block, retrieve_block, etc.
	KeyStoreName  = "store_name" // Backend name the operation was routed to (meta/data)
	KeyClientIP   = "client_ip"
	KeyClientHost = "client_host"

	KeyError     = "error"
	KeyErrorCode = "error_code"

	KeyBlockHash = "hash"   // Content hash (hex) of a block
	KeyBucket    = "bucket" // Object-store bucket name
)

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// BlockHash returns a slog.Attr for a raw block hash, hex-encoded.
func BlockHash(h []byte) slog.Attr {
	return slog.String(KeyBlockHash, hex.EncodeToString(h))
}

// Key returns a slog.Attr for a hash/object key already in hex/string form.
func Key(hexKey string) slog.Attr {
	return slog.String(KeyBlockHash, hexKey)
}

// Bucket returns a slog.Attr for an object-store bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}
