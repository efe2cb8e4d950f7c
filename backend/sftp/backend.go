// Package sftp provides an SFTP backend for iconvfile.
//
// Basic usage with password authentication:
//
//	backend, err := sftp.New(sftp.Config{
//	    Host:     "example.com",
//	    User:     "username",
//	    Password: "password",
//	})
//
// With SSH key authentication and host key verification:
//
//	backend, err := sftp.New(sftp.Config{
//	    Host:           "example.com",
//	    User:           "username",
//	    KeyFile:        "/path/to/id_ed25519",
//	    KnownHostsFile: "/home/me/.ssh/known_hosts",
//	})
//
// SFTP exposes no inode numbers, so append handles cannot detect rotation.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/grokify/iconvfile"
)

func init() {
	iconvfile.Register("sftp", NewFromConfig)
}

// Backend implements iconvfile.Backend for SFTP.
type Backend struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	config     Config
	closed     bool
	mu         sync.RWMutex
}

// New connects to the configured server.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30
	}

	var authMethods []ssh.AuthMethod

	if cfg.Password != "" {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	if cfg.KeyFile != "" {
		keyAuth, err := keyFileAuth(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("sftp: loading key file: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("sftp: no authentication method provided (password or key_file required)")
	}

	hostKeyCallback, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		Timeout:         time.Duration(cfg.Timeout) * time.Second,
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftp: SSH connection failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		if closeErr := sshClient.Close(); closeErr != nil {
			return nil, fmt.Errorf("sftp: SFTP session failed: %w (also failed to close SSH: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("sftp: SFTP session failed: %w", err)
	}

	return &Backend{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		config:     cfg,
	}, nil
}

// NewWithClient wraps an established SFTP session. Closing the backend
// closes the client.
func NewWithClient(cfg Config, client *sftp.Client) *Backend {
	return &Backend{
		sftpClient: client,
		config:     cfg,
	}
}

// NewFromConfig creates a new SFTP backend from a config map.
// This is used by the iconvfile registry.
func NewFromConfig(configMap map[string]string) (iconvfile.Backend, error) {
	return New(ConfigFromMap(configMap))
}

// hostKeyCallback verifies against knownHostsFile, or accepts any key
// when no file is configured.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // G106: opt-in verification via KnownHostsFile
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: loading known_hosts: %w", err)
	}
	return cb, nil
}

// keyFileAuth creates an SSH auth method from a private key file.
func keyFileAuth(keyFile, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// NewWriter opens p for writing. The parent directory must exist.
func (b *Backend) NewWriter(ctx context.Context, p string, opts ...iconvfile.WriterOption) (io.WriteCloser, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyWriterOptions(opts...)
	fullPath := b.fullPath(p)

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if cfg.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := b.sftpClient.OpenFile(fullPath, flags)
	if err != nil {
		return nil, b.translateError(err, p)
	}

	// Not every server honors the append flag; position explicitly.
	if cfg.Append {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sftp: seeking to end: %w", err)
		}
	}

	perm := b.config.FilePermissions
	if cfg.Permissions != 0 {
		perm = cfg.Permissions
	}
	if perm != 0 {
		if err := f.Chmod(perm); err != nil {
			_ = f.Close()
			return nil, b.translateError(err, p)
		}
	}

	return f, nil
}

// NewReader creates a reader for the given path.
func (b *Backend) NewReader(ctx context.Context, p string, opts ...iconvfile.ReaderOption) (io.ReadCloser, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyReaderOptions(opts...)

	f, err := b.sftpClient.Open(b.fullPath(p))
	if err != nil {
		return nil, b.translateError(err, p)
	}

	if cfg.Offset > 0 {
		if _, err := f.Seek(cfg.Offset, io.SeekStart); err != nil {
			if closeErr := f.Close(); closeErr != nil {
				return nil, fmt.Errorf("sftp: seeking to offset: %w (also failed to close: %v)", err, closeErr)
			}
			return nil, fmt.Errorf("sftp: seeking to offset: %w", err)
		}
	}

	if cfg.Limit > 0 {
		return &limitedReader{f, cfg.Limit}, nil
	}

	return f, nil
}

// limitedReader wraps a reader with a byte limit.
type limitedReader struct {
	r         io.ReadCloser
	remaining int64
}

func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > lr.remaining {
		p = p[:lr.remaining]
	}
	n, err = lr.r.Read(p)
	lr.remaining -= int64(n)
	return
}

func (lr *limitedReader) Close() error {
	return lr.r.Close()
}

// Stat returns metadata about a remote file.
func (b *Backend) Stat(ctx context.Context, p string) (iconvfile.ObjectInfo, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	info, err := b.sftpClient.Stat(b.fullPath(p))
	if err != nil {
		return nil, b.translateError(err, p)
	}

	return &iconvfile.BasicObjectInfo{
		ObjectPath:    p,
		ObjectSize:    info.Size(),
		ObjectModTime: info.ModTime(),
		ObjectIsDir:   info.IsDir(),
	}, nil
}

// Delete removes a remote file. A missing file is ErrNotFound.
func (b *Backend) Delete(ctx context.Context, p string) error {
	if err := b.prepare(ctx, p); err != nil {
		return err
	}

	if err := b.sftpClient.Remove(b.fullPath(p)); err != nil {
		return b.translateError(err, p)
	}
	return nil
}

// Mkdir creates a directory and its parents.
func (b *Backend) Mkdir(ctx context.Context, p string) error {
	if err := b.prepare(ctx, p); err != nil {
		return err
	}

	if err := b.sftpClient.MkdirAll(b.fullPath(p)); err != nil {
		return fmt.Errorf("sftp: creating directory: %w", b.translateError(err, p))
	}
	return nil
}

// Features returns the capabilities of the SFTP backend.
func (b *Backend) Features() iconvfile.Features {
	return iconvfile.Features{
		Append:    true,
		Mkdir:     true,
		RangeRead: true,
	}
}

// Close releases the SFTP session and SSH connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	var errs []error
	if b.sftpClient != nil {
		if err := b.sftpClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.sshClient != nil {
		if err := b.sshClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("sftp: close errors: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Backend) prepare(ctx context.Context, p string) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == "" {
		return iconvfile.ErrInvalidPath
	}
	return nil
}

// fullPath returns the full remote path.
func (b *Backend) fullPath(p string) string {
	if b.config.Root == "" {
		return p
	}
	return path.Join(b.config.Root, p)
}

// checkClosed returns an error if the backend is closed.
func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return iconvfile.ErrBackendClosed
	}
	return nil
}

// translateError converts SFTP errors to iconvfile errors.
func (b *Backend) translateError(err error, p string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", iconvfile.ErrNotFound, p, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", iconvfile.ErrPermissionDenied, p, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("sftp: network error for %q: %w", p, err)
	}

	return fmt.Errorf("sftp: error for %q: %w", p, err)
}

var _ iconvfile.Backend = (*Backend)(nil)
