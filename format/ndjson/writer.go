// Package ndjson reads and writes newline-delimited JSON. The command line
// tool uses it for requests on stdin and records on stdout.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/grokify/iconvfile"
)

const (
	// DefaultBufferSize is the default buffer size for writers and the
	// maximum line length for readers.
	DefaultBufferSize = 64 * 1024 // 64KB
)

// Writer encodes one value per line.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	closed bool
	mu     sync.Mutex
}

// NewWriter creates a Writer. If w is an io.Closer it is closed with the
// Writer.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, DefaultBufferSize)
}

// NewWriterSize creates a Writer with the specified buffer size.
func NewWriterSize(w io.Writer, bufferSize int) *Writer {
	nw := &Writer{w: bufio.NewWriterSize(w, bufferSize)}
	if c, ok := w.(io.Closer); ok {
		nw.closer = c
	}
	return nw
}

// Encode writes v as a single JSON line. HTML characters are not escaped.
func (w *Writer) Encode(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return w.Write(buf.Bytes())
}

// Write writes one pre-encoded record. Trailing whitespace is trimmed
// before the newline delimiter is added.
func (w *Writer) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return iconvfile.ErrWriterClosed
	}
	if _, err := w.w.Write(bytes.TrimRight(data, " \t\r\n")); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush flushes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return iconvfile.ErrWriterClosed
	}
	return w.w.Flush()
}

// Close flushes any remaining data and closes the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
