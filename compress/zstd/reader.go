// Package zstd provides Zstandard framing for iconvfile streams.
//
// Frame produces one complete zstd frame per call. Concatenated frames form
// a valid zstd stream, so appending framed writes to a file keeps it
// decodable with Reader.
package zstd

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxWindowSize caps the decoder window. Frames written by Frame use far
// less; the cap protects readers from hostile files.
const MaxWindowSize = 64 << 20

// Reader decodes a file of concatenated zstd frames.
type Reader struct {
	zr     *zstd.Decoder
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewReader creates a streaming decoder over r. Decoding runs on the
// caller's goroutine, which keeps memory flat for line-by-line reads.
func NewReader(r io.ReadCloser) (*Reader, error) {
	zr, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(MaxWindowSize),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return &Reader{
		zr:     zr,
		closer: r,
	}, nil
}

// Read reads decompressed data.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}

	n, err := r.zr.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("zstd: %w", err)
	}
	return n, err
}

// Close releases the decoder and closes the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.zr.Close()
	return r.closer.Close()
}

var _ io.ReadCloser = (*Reader)(nil)
