// Package iconvfile reads and writes files while transcoding between a
// configurable text encoding and Go strings.
//
// Reads are split into records by the filein package (whole file, lines or
// raw chunks). Writes are serialized per instance by the fileout package,
// which supports overwrite, append and delete semantics and reopens append
// handles when the target file is rotated.
//
// Both pipelines talk to storage through the Backend interface, so the same
// code works against the local filesystem, memory, S3 or SFTP.
//
// Basic usage:
//
//	backend := file.New(file.Config{})
//	r, _ := filein.New(backend, filein.Config{Format: filein.FormatLines, Charset: "latin1"})
//	s, _ := r.Open(ctx, iconvfile.Request{Filename: "/var/log/app.log"})
//	for rec, err := range s.Records() {
//	    ...
//	}
package iconvfile

import (
	"context"
	"io"
)

// Backend is the filesystem collaborator used by the read and write
// pipelines. Implementations handle raw byte transport to/from storage.
//
// Backends are safe for concurrent use by multiple goroutines.
// All methods accept a context.Context for cancellation and timeouts.
type Backend interface {
	// NewWriter opens a writer for the given path.
	// By default the file is created or truncated; WithAppend opens it
	// for appending instead. The returned writer must be closed after use.
	NewWriter(ctx context.Context, path string, opts ...WriterOption) (io.WriteCloser, error)

	// NewReader opens a reader for the given path.
	// Returns ErrNotFound if the path does not exist.
	// The returned reader must be closed after use.
	NewReader(ctx context.Context, path string, opts ...ReaderOption) (io.ReadCloser, error)

	// Stat returns metadata about a path, including its FileID.
	// Returns ErrNotFound if the path does not exist.
	Stat(ctx context.Context, path string) (ObjectInfo, error)

	// Delete removes a path.
	// Unlike a blob store delete, removing a missing path is an error
	// (ErrNotFound), matching unlink(2).
	Delete(ctx context.Context, path string) error

	// Mkdir creates a directory and any missing parents.
	// Returns nil if the directory already exists.
	Mkdir(ctx context.Context, path string) error

	// Features returns the capabilities of this backend.
	Features() Features

	// Close releases any resources held by the backend.
	// After Close, all other methods return ErrBackendClosed.
	Close() error
}
