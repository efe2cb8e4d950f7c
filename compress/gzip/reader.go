// Package gzip provides gzip framing for iconvfile streams.
//
// Every write produced by Frame is a complete gzip member. A file built by
// appending members is still a valid gzip stream, and Reader decodes all
// members back to back.
package gzip

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Reader decodes a file made of appended gzip members. An empty file is
// an empty stream. Errors name the member they occurred in, so a member
// cut short by a crash mid-append is easy to locate.
type Reader struct {
	src     *bufio.Reader
	gr      *gzip.Reader
	closer  io.Closer
	members int
	done    bool
	closed  bool
	mu      sync.Mutex
}

// NewReader reads the first member header from r. It fails only when r
// holds something other than gzip data.
func NewReader(r io.ReadCloser) (*Reader, error) {
	zr := &Reader{
		src:    bufio.NewReader(r),
		closer: r,
	}
	if err := zr.nextMember(); err != nil {
		return nil, err
	}
	return zr, nil
}

// nextMember positions the reader on the following member, or marks it
// done at a clean end of input.
func (r *Reader) nextMember() error {
	var err error
	if r.gr == nil {
		r.gr, err = gzip.NewReader(r.src)
	} else {
		err = r.gr.Reset(r.src)
	}
	if errors.Is(err, io.EOF) {
		r.done = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("gzip: member %d: %w", r.members+1, err)
	}
	r.gr.Multistream(false)
	r.members++
	return nil
}

// Read reads decompressed data, crossing member boundaries transparently.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}

	for {
		if r.done {
			return 0, io.EOF
		}
		n, err := r.gr.Read(p)
		switch {
		case errors.Is(err, io.EOF):
			if err := r.nextMember(); err != nil {
				return n, err
			}
			if n > 0 {
				return n, nil
			}
		case err != nil:
			return n, fmt.Errorf("gzip: member %d: %w", r.members, err)
		default:
			return n, nil
		}
	}
}

// Members returns the number of members started so far.
func (r *Reader) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members
}

// Close closes the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.gr != nil {
		if err := r.gr.Close(); err != nil {
			_ = r.closer.Close()
			return err
		}
	}
	return r.closer.Close()
}

var _ io.ReadCloser = (*Reader)(nil)
