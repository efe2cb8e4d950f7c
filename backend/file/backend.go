// Package file provides the local filesystem backend for iconvfile.
//
// Paths are used as given (absolute, or relative to the working directory)
// unless Config.Root is set, in which case they are resolved under Root and
// may not escape it.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grokify/iconvfile"
)

func init() {
	iconvfile.Register("file", NewFromConfig)
}

// Config holds configuration for the file backend.
type Config struct {
	// Root is an optional base directory. When empty, paths are used as-is.
	Root string

	// CreateDirs creates missing parent directories when opening writers.
	// The write serializer manages directory creation itself, so this is
	// off by default.
	CreateDirs bool

	// DirPermissions is the permission mode for created directories.
	// Default: 0755
	DirPermissions os.FileMode

	// FilePermissions is the permission mode for created files.
	// Default: 0644
	FilePermissions os.FileMode
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DirPermissions:  0755,
		FilePermissions: 0644,
	}
}

// Backend implements iconvfile.Backend for the local filesystem.
type Backend struct {
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new file backend with the given configuration.
func New(config Config) *Backend {
	if config.DirPermissions == 0 {
		config.DirPermissions = 0755
	}
	if config.FilePermissions == 0 {
		config.FilePermissions = 0644
	}
	return &Backend{
		config: config,
	}
}

// NewFromConfig creates a new file backend from a config map.
// Supported keys:
//   - root: base directory (default: none)
//   - create_dirs: "true" or "false" (default: "false")
func NewFromConfig(configMap map[string]string) (iconvfile.Backend, error) {
	config := DefaultConfig()

	if root, ok := configMap["root"]; ok {
		config.Root = root
	}

	if createDirs, ok := configMap["create_dirs"]; ok {
		config.CreateDirs = createDirs == "true"
	}

	return New(config), nil
}

// NewWriter opens path for writing, truncating it unless WithAppend is given.
func (b *Backend) NewWriter(ctx context.Context, path string, opts ...iconvfile.WriterOption) (io.WriteCloser, error) {
	fullPath, err := b.prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyWriterOptions(opts...)

	if b.config.CreateDirs {
		dir := filepath.Dir(fullPath)
		if err := os.MkdirAll(dir, b.config.DirPermissions); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if cfg.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	perm := b.config.FilePermissions
	if cfg.Permissions != 0 {
		perm = cfg.Permissions
	}

	f, err := os.OpenFile(fullPath, flags, perm)
	if err != nil {
		return nil, translateError(err, "opening", path)
	}

	return f, nil
}

// NewReader opens path for reading.
func (b *Backend) NewReader(ctx context.Context, path string, opts ...iconvfile.ReaderOption) (io.ReadCloser, error) {
	fullPath, err := b.prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, translateError(err, "opening", path)
	}

	config := iconvfile.ApplyReaderOptions(opts...)

	if config.Offset > 0 {
		if _, err := f.Seek(config.Offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("seeking to offset %d: %w", config.Offset, err)
		}
	}

	if config.Limit > 0 {
		return &limitedReadCloser{
			r:      io.LimitReader(f, config.Limit),
			closer: f,
		}, nil
	}

	return f, nil
}

// Stat returns metadata for path, including its device and inode.
func (b *Backend) Stat(ctx context.Context, path string) (iconvfile.ObjectInfo, error) {
	fullPath, err := b.prepare(ctx, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, translateError(err, "stat", path)
	}

	return &iconvfile.BasicObjectInfo{
		ObjectPath:    path,
		ObjectSize:    info.Size(),
		ObjectModTime: info.ModTime(),
		ObjectIsDir:   info.IsDir(),
		ObjectID:      fileID(info),
	}, nil
}

// Delete unlinks path. A missing file is reported as ErrNotFound.
func (b *Backend) Delete(ctx context.Context, path string) error {
	fullPath, err := b.prepare(ctx, path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		return translateError(err, "deleting", path)
	}
	return nil
}

// Mkdir creates path and any missing parents.
func (b *Backend) Mkdir(ctx context.Context, path string) error {
	fullPath, err := b.prepare(ctx, path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fullPath, b.config.DirPermissions); err != nil {
		return translateError(err, "mkdir", path)
	}
	return nil
}

// Features returns the capabilities of the file backend.
func (b *Backend) Features() iconvfile.Features {
	return iconvfile.Features{
		Append:    true,
		Identity:  identitySupported,
		Mkdir:     true,
		RangeRead: true,
	}
}

// Close releases any resources held by the backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// prepare runs the checks shared by every operation and resolves path.
func (b *Backend) prepare(ctx context.Context, path string) (string, error) {
	if err := b.checkClosed(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := b.validatePath(path); err != nil {
		return "", err
	}
	return b.fullPath(path), nil
}

func (b *Backend) fullPath(path string) string {
	path = filepath.FromSlash(path)
	if b.config.Root == "" {
		return path
	}
	return filepath.Join(b.config.Root, path)
}

func (b *Backend) validatePath(path string) error {
	if path == "" {
		return iconvfile.ErrInvalidPath
	}
	if b.config.Root == "" {
		return nil
	}

	// Rooted backends may not be escaped.
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return iconvfile.ErrInvalidPath
	}
	return nil
}

func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return iconvfile.ErrBackendClosed
	}
	return nil
}

// translateError maps os errors onto iconvfile sentinels, keeping the
// underlying error in the chain.
func translateError(err error, action, path string) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s %s: %w", iconvfile.ErrNotFound, action, path, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s %s: %w", iconvfile.ErrPermissionDenied, action, path, err)
	default:
		return fmt.Errorf("%s %s: %w", action, path, err)
	}
}

type limitedReadCloser struct {
	r      io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	return l.r.Read(p)
}

func (l *limitedReadCloser) Close() error {
	return l.closer.Close()
}

var _ iconvfile.Backend = (*Backend)(nil)
