package iconvfile

import (
	"errors"
	"fmt"
)

// Common errors returned by iconvfile backends and pipelines.
var (
	// ErrNoFilename is returned when neither the configuration nor the
	// request names a file.
	ErrNoFilename = errors.New("iconvfile: no filename specified")

	// ErrUnsupportedCharset is returned when the configured charset is not
	// known to the charset codec.
	ErrUnsupportedCharset = errors.New("iconvfile: unsupported charset")

	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("iconvfile: not found")

	// ErrPermissionDenied is returned when access to a path is denied.
	ErrPermissionDenied = errors.New("iconvfile: permission denied")

	// ErrBackendClosed is returned when operating on a closed backend.
	ErrBackendClosed = errors.New("iconvfile: backend closed")

	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("iconvfile: writer closed")

	// ErrInvalidPath is returned when a path is invalid (e.g., escapes the backend root).
	ErrInvalidPath = errors.New("iconvfile: invalid path")

	// ErrNotSupported is returned when an operation is not supported by the backend.
	ErrNotSupported = errors.New("iconvfile: operation not supported")

	// ErrUnknownBackend is returned by Open when the backend name is not registered.
	ErrUnknownBackend = errors.New("iconvfile: unknown backend")

	// ErrSerializerClosed is returned for requests submitted after Close.
	ErrSerializerClosed = errors.New("iconvfile: serializer closed")

	// ErrQueueAborted is returned for queued requests discarded after an
	// unrecoverable fault in the write worker.
	ErrQueueAborted = errors.New("iconvfile: write queue aborted")
)

// Operation sentinels. An *OpError unwraps to the sentinel for its Op,
// so callers can test with errors.Is(err, ErrAppend).
var (
	ErrRead      = errors.New("iconvfile: read failed")
	ErrWrite     = errors.New("iconvfile: write failed")
	ErrAppend    = errors.New("iconvfile: append failed")
	ErrCreateDir = errors.New("iconvfile: create directory failed")
	ErrDelete    = errors.New("iconvfile: delete failed")
)

// Op names the filesystem operation an OpError refers to.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpAppend Op = "append"
	OpMkdir  Op = "mkdir"
	OpDelete Op = "delete"
)

func (op Op) sentinel() error {
	switch op {
	case OpRead:
		return ErrRead
	case OpWrite:
		return ErrWrite
	case OpAppend:
		return ErrAppend
	case OpMkdir:
		return ErrCreateDir
	case OpDelete:
		return ErrDelete
	default:
		return nil
	}
}

// OpError records a failed filesystem operation and the path it touched.
type OpError struct {
	Op   Op
	Path string
	Err  error
}

// NewOpError wraps err as a failure of op on path.
func NewOpError(op Op, path string, err error) *OpError {
	return &OpError{Op: op, Path: path, Err: err}
}

func (e *OpError) Error() string {
	return fmt.Sprintf("iconvfile: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the operation sentinel and the underlying cause.
func (e *OpError) Unwrap() []error {
	if s := e.Op.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// IsNoFilename returns true if the error indicates a missing filename.
func IsNoFilename(err error) bool {
	return errors.Is(err, ErrNoFilename)
}

// IsUnsupportedCharset returns true if the error indicates an unknown charset.
func IsUnsupportedCharset(err error) bool {
	return errors.Is(err, ErrUnsupportedCharset)
}

// IsNotFound returns true if the error indicates a path was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates permission was denied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotSupported returns true if the error indicates an unsupported operation.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
