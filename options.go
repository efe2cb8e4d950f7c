package iconvfile

import "os"

// WriterOption configures a writer created by Backend.NewWriter.
type WriterOption func(*WriterConfig)

// WriterConfig holds configuration for creating a writer.
type WriterConfig struct {
	// Append opens the file for appending instead of truncating it.
	// Backends that cannot append return ErrNotSupported.
	Append bool

	// Permissions is the mode used when the file is created.
	// 0 means use the backend's default.
	Permissions os.FileMode

	// ContentType is a MIME type hint for the content.
	// Object stores use this for Content-Type headers.
	ContentType string
}

// WithAppend opens the writer in append mode.
func WithAppend() WriterOption {
	return func(c *WriterConfig) {
		c.Append = true
	}
}

// WithPermissions sets the mode for newly created files.
func WithPermissions(mode os.FileMode) WriterOption {
	return func(c *WriterConfig) {
		c.Permissions = mode
	}
}

// WithContentType sets the content type hint.
func WithContentType(contentType string) WriterOption {
	return func(c *WriterConfig) {
		c.ContentType = contentType
	}
}

// ApplyWriterOptions applies options to a WriterConfig.
func ApplyWriterOptions(opts ...WriterOption) *WriterConfig {
	config := &WriterConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// ReaderOption configures a reader created by Backend.NewReader.
type ReaderOption func(*ReaderConfig)

// ReaderConfig holds configuration for creating a reader.
type ReaderConfig struct {
	// Offset is the byte offset to start reading from.
	// Not all backends support this.
	Offset int64

	// Limit is the maximum number of bytes to read.
	// 0 means no limit.
	Limit int64
}

// WithOffset sets the byte offset to start reading from.
func WithOffset(offset int64) ReaderOption {
	return func(c *ReaderConfig) {
		c.Offset = offset
	}
}

// WithLimit sets the maximum number of bytes to read.
func WithLimit(limit int64) ReaderOption {
	return func(c *ReaderConfig) {
		c.Limit = limit
	}
}

// ApplyReaderOptions applies options to a ReaderConfig.
func ApplyReaderOptions(opts ...ReaderOption) *ReaderConfig {
	config := &ReaderConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}
