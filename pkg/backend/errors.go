package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the backend error taxonomy. Every backend
// implementation returns one of these (optionally wrapped in Error for
// debugging context); callers match with errors.Is.
var (
	// ErrNotFound indicates the requested hash or document is absent. Not
	// fatal; returned to the caller.
	ErrNotFound = errors.New("backend: not found")

	// ErrTransient indicates a network/timeout/temporary-unavailability
	// failure. The caller should retry; the dispatcher itself never does.
	ErrTransient = errors.New("backend: transient failure")

	// ErrCorrupt indicates a sidecar or index entry exists but the payload
	// it describes is missing or hash-mismatched. Logged at error level and
	// propagated as fatal to the caller's request.
	ErrCorrupt = errors.New("backend: corrupt")

	// ErrMissingCapability indicates startup capability validation failed:
	// no configured backend pair covers all five operations. The process
	// exits on this error.
	ErrMissingCapability = errors.New("backend: missing capability")

	// ErrConfigError indicates unreadable or malformed backend
	// configuration, a startup-time failure.
	ErrConfigError = errors.New("backend: config error")

	// ErrInternal indicates an unexpected driver-level failure. Mapped to
	// ErrTransient at the server boundary (see pkg/server).
	ErrInternal = errors.New("backend: internal error")

	// ErrNotSupported indicates the backend does not implement the called
	// operation. Returned by backends that only cover part of the
	// five-operation contract; capability validation is what keeps a
	// *configured pair* from ever hitting this in practice.
	ErrNotSupported = errors.New("backend: operation not supported")
)

// Error wraps a sentinel backend error with operational context: which
// operation failed, against which backend, for which hash or host/path.
// It unwraps to the sentinel so errors.Is(err, ErrNotFound) keeps working
// through the wrapping.
type Error struct {
	Op      string // "StoreBlock", "NeededHashes", "ListFiles", etc.
	Backend string // backend kind: "objectstore", "docstore", "memdoc"
	Hash    string // hex hash, when the operation is hash-keyed
	Host    string // host, when the operation is host-scoped
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s(%s): %s (hash=%s, host=%s)", e.Op, e.Backend, e.Err, e.Hash, e.Host)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError constructs an Error wrapping a sentinel backend error.
func NewError(op, backendKind string, err error) *Error {
	return &Error{Op: op, Backend: backendKind, Err: err}
}

// WithHash returns a copy of e with Hash set, for chaining at the call site.
func (e *Error) WithHash(hash string) *Error {
	clone := *e
	clone.Hash = hash
	return &clone
}

// WithHost returns a copy of e with Host set, for chaining at the call site.
func (e *Error) WithHost(host string) *Error {
	clone := *e
	clone.Host = host
	return &clone
}
