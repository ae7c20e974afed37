// Package backend defines the five-operation contract every storage backend
// implements, and the startup validation that ensures a configured
// (metadata, data) backend pair covers all five between them.
package backend

import (
	"context"
	"iter"

	"github.com/cdpfgl/cdpfgl-go/pkg/filemeta"
	"github.com/cdpfgl/cdpfgl-go/pkg/hashchunk"
)

// Backend is the capability-typed polymorphism this package uses in place
// of a C-style function-pointer dispatch table: one concrete type per
// storage technology, all satisfying the same interface. A backend
// that does not support an operation returns ErrNotSupported from it;
// ValidateCapabilities is what keeps a configured pair from ever calling
// into that path in practice.
type Backend interface {
	// StoreBlock persists a block. Idempotent on Hash.
	StoreBlock(ctx context.Context, b hashchunk.Block) error

	// StoreFileMeta persists a FileMeta record. Append-only — never
	// upserts or dedupes against existing records.
	StoreFileMeta(ctx context.Context, fm filemeta.FileMeta) error

	// NeededHashes returns the subset of candidates this backend does not
	// yet hold, preserving order and collapsing duplicates.
	NeededHashes(ctx context.Context, candidates []hashchunk.Hash) ([]hashchunk.Hash, error)

	// RetrieveBlock returns the stored block for hash, or ErrNotFound.
	RetrieveBlock(ctx context.Context, h hashchunk.Hash) (hashchunk.Block, error)

	// ListFiles answers q with an ordered, lazily-produced sequence of
	// matching records. The backend is free to stream internally rather
	// than materializing the full result set.
	ListFiles(ctx context.Context, q Query) iter.Seq2[filemeta.FileMeta, error]
}

// Capability identifies one of the five operations a Backend may or may not
// support, for use in ValidateCapabilities.
type Capability int

const (
	CapStoreBlock Capability = iota
	CapStoreFileMeta
	CapNeededHashes
	CapRetrieveBlock
	CapListFiles
)

func (c Capability) String() string {
	switch c {
	case CapStoreBlock:
		return "StoreBlock"
	case CapStoreFileMeta:
		return "StoreFileMeta"
	case CapNeededHashes:
		return "NeededHashes"
	case CapRetrieveBlock:
		return "RetrieveBlock"
	case CapListFiles:
		return "ListFiles"
	default:
		return "unknown"
	}
}

// allCapabilities lists every operation a configured backend pair must
// cover between them.
var allCapabilities = []Capability{
	CapStoreBlock,
	CapStoreFileMeta,
	CapNeededHashes,
	CapRetrieveBlock,
	CapListFiles,
}

// CapabilityProvider is implemented by backends that know which operations
// they actually support, rather than merely returning ErrNotSupported at
// call time. ValidateCapabilities prefers this when available; backends
// that don't implement it are assumed to support everything the interface
// exposes (informative failure then happens lazily, at call time).
type CapabilityProvider interface {
	Supports(c Capability) bool
}

// ValidateCapabilities checks that, for each of the five operations, at
// least one of {meta, data} supports it, or startup fails. Either argument
// may be nil (the other alone must then cover everything), but not both.
func ValidateCapabilities(meta, data Backend) error {
	if meta == nil && data == nil {
		return NewError("ValidateCapabilities", "dispatcher", ErrMissingCapability)
	}

	var missing []string
	for _, cap := range allCapabilities {
		if supports(meta, cap) || supports(data, cap) {
			continue
		}
		missing = append(missing, cap.String())
	}

	if len(missing) == 0 {
		return nil
	}

	err := NewError("ValidateCapabilities", "dispatcher", ErrMissingCapability)
	return &missingCapabilityError{Error: err, Operations: missing}
}

// missingCapabilityError augments Error with the list of operations no
// configured backend covers, for a clearer fatal-startup log line.
type missingCapabilityError struct {
	*Error
	Operations []string
}

func (e *missingCapabilityError) Error() string {
	msg := e.Error.Error()
	for _, op := range e.Operations {
		msg += " missing:" + op
	}
	return msg
}

func supports(b Backend, cap Capability) bool {
	if b == nil {
		return false
	}
	if provider, ok := b.(CapabilityProvider); ok {
		return provider.Supports(cap)
	}
	return true
}
