// Package memory provides an in-memory backend for iconvfile.
//
// The memory backend models a POSIX filesystem closely enough to exercise
// the write serializer: every file is an inode with its own FileID, open
// writers keep writing to their inode even after the path is deleted or
// renamed, and recreating a path yields a new identity.
//
// It is useful for:
//   - Unit testing without filesystem access
//   - Fault injection (see WithFault)
//   - Ephemeral buffers in tools and examples
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/grokify/iconvfile"
)

func init() {
	iconvfile.Register("memory", NewFromConfig)
}

// Operations passed to a FaultFunc.
const (
	OpOpenRead  = "open-read"
	OpRead      = "read"
	OpOpenWrite = "open-write"
	OpWrite     = "write"
	OpStat      = "stat"
	OpDelete    = "delete"
	OpMkdir     = "mkdir"
)

// FaultFunc is consulted before every operation. A non-nil error fails
// the operation with that error.
type FaultFunc func(op, path string) error

// inode is the storage behind a path. Writers hold the inode, not the path.
type inode struct {
	ino     uint64
	data    []byte
	modTime time.Time
	isDir   bool
}

// Stats counts writer lifecycles.
type Stats struct {
	WritersOpened int
	WritersClosed int
}

// Backend implements iconvfile.Backend in memory.
type Backend struct {
	files     map[string]*inode
	nextIno   uint64
	strictDir bool
	fault     FaultFunc
	stats     Stats
	closed    bool
	mu        sync.RWMutex
}

// Option configures a memory backend.
type Option func(*Backend)

// WithFault installs a fault injection hook.
func WithFault(f FaultFunc) Option {
	return func(b *Backend) {
		b.fault = f
	}
}

// WithStrictDirs requires parent directories to exist before a file can
// be created, as on a real filesystem.
func WithStrictDirs() Option {
	return func(b *Backend) {
		b.strictDir = true
	}
}

// New creates a new memory backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		files: make(map[string]*inode),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromConfig creates a new memory backend from a config map.
// Supported keys:
//   - strict_dirs: "true" to require parent directories
func NewFromConfig(config map[string]string) (iconvfile.Backend, error) {
	var opts []Option
	if config["strict_dirs"] == "true" {
		opts = append(opts, WithStrictDirs())
	}
	return New(opts...), nil
}

// NewWriter opens p for writing. Writes go straight to the inode.
func (b *Backend) NewWriter(ctx context.Context, p string, opts ...iconvfile.WriterOption) (io.WriteCloser, error) {
	p, err := b.prepare(ctx, OpOpenWrite, p)
	if err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyWriterOptions(opts...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.strictDir {
		if dir := path.Dir(p); dir != "." && dir != "/" {
			if parent, ok := b.files[dir]; !ok || !parent.isDir {
				return nil, fmt.Errorf("%w: parent directory of %s", iconvfile.ErrNotFound, p)
			}
		}
	}

	node, exists := b.files[p]
	switch {
	case exists && node.isDir:
		return nil, fmt.Errorf("is a directory: %s", p)
	case !exists:
		node = b.newInode()
		b.files[p] = node
	case !cfg.Append:
		node.data = nil
		node.modTime = time.Now()
	}

	b.stats.WritersOpened++
	return &memoryWriter{backend: b, path: p, node: node}, nil
}

// NewReader opens p for reading a snapshot of its current content.
func (b *Backend) NewReader(ctx context.Context, p string, opts ...iconvfile.ReaderOption) (io.ReadCloser, error) {
	p, err := b.prepare(ctx, OpOpenRead, p)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	node, exists := b.files[p]
	var data []byte
	if exists {
		data = bytes.Clone(node.data)
	}
	b.mu.RUnlock()

	if !exists {
		return nil, iconvfile.ErrNotFound
	}
	if node.isDir {
		return nil, fmt.Errorf("cannot read directory: %s", p)
	}

	config := iconvfile.ApplyReaderOptions(opts...)
	if config.Offset > 0 {
		data = data[min(config.Offset, int64(len(data))):]
	}
	if config.Limit > 0 && int64(len(data)) > config.Limit {
		data = data[:config.Limit]
	}

	return &memoryReader{backend: b, path: p, reader: bytes.NewReader(data)}, nil
}

// Stat returns metadata for p. FileID.Ino is the inode number.
func (b *Backend) Stat(ctx context.Context, p string) (iconvfile.ObjectInfo, error) {
	p, err := b.prepare(ctx, OpStat, p)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	node, exists := b.files[p]
	if !exists {
		return nil, iconvfile.ErrNotFound
	}

	return &iconvfile.BasicObjectInfo{
		ObjectPath:    p,
		ObjectSize:    int64(len(node.data)),
		ObjectModTime: node.modTime,
		ObjectIsDir:   node.isDir,
		ObjectID:      iconvfile.FileID{Ino: node.ino},
	}, nil
}

// Delete unlinks p. Open writers keep their (now orphaned) inode.
func (b *Backend) Delete(ctx context.Context, p string) error {
	p, err := b.prepare(ctx, OpDelete, p)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.files[p]; !exists {
		return iconvfile.ErrNotFound
	}
	delete(b.files, p)
	return nil
}

// Mkdir creates p and all parents.
func (b *Backend) Mkdir(ctx context.Context, p string) error {
	p, err := b.prepare(ctx, OpMkdir, p)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	prefix := ""
	if strings.HasPrefix(p, "/") {
		prefix = "/"
	}
	for i := range parts {
		dir := prefix + strings.Join(parts[:i+1], "/")
		node, exists := b.files[dir]
		if !exists {
			node = b.newInode()
			node.isDir = true
			b.files[dir] = node
			continue
		}
		if !node.isDir {
			return fmt.Errorf("mkdir %s: not a directory", dir)
		}
	}
	return nil
}

// Features returns the capabilities of the memory backend.
func (b *Backend) Features() iconvfile.Features {
	return iconvfile.Features{
		Append:    true,
		Identity:  true,
		Mkdir:     b.strictDir,
		RangeRead: true,
	}
}

// Close releases all stored data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.files = nil
	return nil
}

// Rename moves the file at src to dst, replacing dst. Writers open on the
// src inode keep writing to it under its new name, as with rename(2).
func (b *Backend) Rename(src, dst string) error {
	src, dst = normalizePath(src), normalizePath(dst)

	b.mu.Lock()
	defer b.mu.Unlock()

	node, exists := b.files[src]
	if !exists {
		return iconvfile.ErrNotFound
	}
	b.files[dst] = node
	delete(b.files, src)
	return nil
}

// ReadFile returns a copy of the content at p.
func (b *Backend) ReadFile(p string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	node, exists := b.files[normalizePath(p)]
	if !exists || node.isDir {
		return nil, iconvfile.ErrNotFound
	}
	return bytes.Clone(node.data), nil
}

// WriteFile replaces the content at p with data, creating a new inode if
// p does not exist.
func (b *Backend) WriteFile(p string, data []byte) {
	p = normalizePath(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	node, exists := b.files[p]
	if !exists {
		node = b.newInode()
		b.files[p] = node
	}
	node.data = bytes.Clone(data)
	node.modTime = time.Now()
}

// Stats returns writer lifecycle counters.
func (b *Backend) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// newInode allocates an inode. Caller must hold b.mu.
func (b *Backend) newInode() *inode {
	b.nextIno++
	return &inode{ino: b.nextIno, modTime: time.Now()}
}

func (b *Backend) prepare(ctx context.Context, op, p string) (string, error) {
	if err := b.checkClosed(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p == "" {
		return "", iconvfile.ErrInvalidPath
	}
	p = normalizePath(p)
	if err := b.checkFault(op, p); err != nil {
		return "", err
	}
	return p, nil
}

func (b *Backend) checkFault(op, p string) error {
	if b.fault == nil {
		return nil
	}
	return b.fault(op, p)
}

func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return iconvfile.ErrBackendClosed
	}
	return nil
}

// normalizePath cleans p. Absolute paths stay absolute.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// memoryWriter writes through to an inode.
type memoryWriter struct {
	backend *Backend
	path    string
	node    *inode
	closed  bool
	mu      sync.Mutex
}

func (w *memoryWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, iconvfile.ErrWriterClosed
	}
	if err := w.backend.checkFault(OpWrite, w.path); err != nil {
		return 0, err
	}

	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()

	w.node.data = append(w.node.data, p...)
	w.node.modTime = time.Now()
	return len(p), nil
}

func (w *memoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.backend.mu.Lock()
	w.backend.stats.WritersClosed++
	w.backend.mu.Unlock()
	return nil
}

// memoryReader reads a snapshot and consults the fault hook per Read.
type memoryReader struct {
	backend *Backend
	path    string
	reader  *bytes.Reader
	closed  bool
	mu      sync.Mutex
}

func (r *memoryReader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if err := r.backend.checkFault(OpRead, r.path); err != nil {
		return 0, err
	}
	return r.reader.Read(p)
}

func (r *memoryReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return nil
}

var _ iconvfile.Backend = (*Backend)(nil)
