// Package s3 provides an S3-compatible backend for iconvfile.
//
// This backend works with AWS S3, Cloudflare R2, MinIO and other
// S3-compatible object stores. Objects cannot be appended to and carry no
// stable identity, so the write serializer only supports overwrite and
// delete modes against it.
//
// Basic usage:
//
//	backend, err := s3.New(s3.Config{
//	    Bucket: "my-bucket",
//	    Region: "us-east-1",
//	})
//
// For S3-compatible services:
//
//	backend, err := s3.New(s3.Config{
//	    Bucket:       "my-bucket",
//	    Endpoint:     "http://localhost:9000",
//	    UsePathStyle: true,
//	})
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/grokify/iconvfile"
)

func init() {
	iconvfile.Register("s3", NewFromConfig)
}

// Errors specific to the S3 backend.
var (
	ErrBucketRequired = errors.New("s3: bucket is required")
)

// API is the subset of *s3.Client used by the backend.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend implements iconvfile.Backend for S3-compatible storage.
type Backend struct {
	client API
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new S3 backend with the given configuration.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var optFns []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(cfg, client)
}

// NewWithClient creates a backend that talks to an existing client.
func NewWithClient(cfg Config, client API) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backend{
		client: client,
		config: cfg,
	}, nil
}

// NewFromConfig creates a new S3 backend from a config map.
// This is used by the iconvfile registry.
func NewFromConfig(configMap map[string]string) (iconvfile.Backend, error) {
	return New(ConfigFromMap(configMap))
}

// NewWriter buffers writes and uploads the object on Close. Append is not
// supported.
func (b *Backend) NewWriter(ctx context.Context, p string, opts ...iconvfile.WriterOption) (io.WriteCloser, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyWriterOptions(opts...)
	if cfg.Append {
		return nil, fmt.Errorf("%w: s3 objects cannot be appended", iconvfile.ErrNotSupported)
	}

	contentType := b.config.ContentType
	if cfg.ContentType != "" {
		contentType = cfg.ContentType
	}

	return &s3Writer{
		backend:     b,
		ctx:         ctx,
		key:         b.fullKey(p),
		buffer:      &bytes.Buffer{},
		contentType: contentType,
	}, nil
}

// NewReader creates a reader for the given path.
func (b *Backend) NewReader(ctx context.Context, p string, opts ...iconvfile.ReaderOption) (io.ReadCloser, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	cfg := iconvfile.ApplyReaderOptions(opts...)

	input := &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	}

	if cfg.Offset > 0 || cfg.Limit > 0 {
		var rangeHeader string
		if cfg.Limit > 0 {
			rangeHeader = fmt.Sprintf("bytes=%d-%d", cfg.Offset, cfg.Offset+cfg.Limit-1)
		} else {
			rangeHeader = fmt.Sprintf("bytes=%d-", cfg.Offset)
		}
		input.Range = aws.String(rangeHeader)
	}

	result, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, b.translateError(err, p)
	}

	return result.Body, nil
}

// Stat returns metadata about an object. Objects have no FileID.
func (b *Backend) Stat(ctx context.Context, p string) (iconvfile.ObjectInfo, error) {
	if err := b.prepare(ctx, p); err != nil {
		return nil, err
	}

	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	})
	if err != nil {
		return nil, b.translateError(err, p)
	}

	var size int64
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	var modTime time.Time
	if result.LastModified != nil {
		modTime = *result.LastModified
	}

	return &iconvfile.BasicObjectInfo{
		ObjectPath:    p,
		ObjectSize:    size,
		ObjectModTime: modTime,
	}, nil
}

// Delete removes an object. S3 deletes are idempotent, so the object is
// checked first to report a missing path as ErrNotFound.
func (b *Backend) Delete(ctx context.Context, p string) error {
	if _, err := b.Stat(ctx, p); err != nil {
		return err
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	})
	if err != nil {
		return b.translateError(err, p)
	}
	return nil
}

// Mkdir is a no-op: directories are implicit in object keys.
func (b *Backend) Mkdir(ctx context.Context, p string) error {
	return b.prepare(ctx, p)
}

// Features returns the capabilities of the S3 backend.
func (b *Backend) Features() iconvfile.Features {
	return iconvfile.Features{
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

func (b *Backend) prepare(ctx context.Context, p string) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Trim(p, "/") == "" {
		return iconvfile.ErrInvalidPath
	}
	return nil
}

// fullKey returns the full S3 key for a path.
func (b *Backend) fullKey(p string) string {
	p = strings.TrimPrefix(p, "/")
	if b.config.Prefix == "" {
		return p
	}
	return path.Join(b.config.Prefix, p)
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

// translateError converts S3 errors to iconvfile errors.
func (b *Backend) translateError(err error, path string) error {
	if err == nil {
		return nil
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", iconvfile.ErrNotFound, path)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", iconvfile.ErrNotFound, path)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("s3: bucket not found: %s", b.config.Bucket)
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: %s", iconvfile.ErrNotFound, path)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", iconvfile.ErrPermissionDenied, path)
		}
	}

	return fmt.Errorf("s3: %w", err)
}

// s3Writer buffers the object body until Close.
type s3Writer struct {
	backend     *Backend
	ctx         context.Context
	key         string
	buffer      *bytes.Buffer
	contentType string
	closed      bool
	mu          sync.Mutex
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, iconvfile.ErrWriterClosed
	}

	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	input := &s3.PutObjectInput{
		Bucket:        aws.String(w.backend.config.Bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buffer.Bytes()),
		ContentLength: aws.Int64(int64(w.buffer.Len())),
	}
	if w.contentType != "" {
		input.ContentType = aws.String(w.contentType)
	}

	if _, err := w.backend.client.PutObject(w.ctx, input); err != nil {
		return fmt.Errorf("s3: uploading object: %w", err)
	}
	return nil
}

var _ iconvfile.Backend = (*Backend)(nil)
