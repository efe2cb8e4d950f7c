package zstd

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type testReadCloser struct {
	*bytes.Reader
	closed bool
}

func (r *testReadCloser) Close() error {
	r.closed = true
	return nil
}

func TestFrameRoundTrip(t *testing.T) {
	levels := []CompressionLevel{
		SpeedFastest,
		SpeedDefault,
		SpeedBetterCompression,
		SpeedBestCompression,
	}
	data := strings.Repeat("zstd frame data ", 200)

	for _, level := range levels {
		frame, err := Frame([]byte(data), level)
		if err != nil {
			t.Fatalf("Frame(level %d) failed: %v", level, err)
		}

		src := &testReadCloser{Reader: bytes.NewReader(frame)}
		r, err := NewReader(src)
		if err != nil {
			t.Fatalf("NewReader failed: %v", err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if string(got) != data {
			t.Errorf("level %d: decoded %d bytes, want %d", level, len(got), len(data))
		}
		if err := r.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if !src.closed {
			t.Error("underlying reader not closed")
		}
	}
}

func TestReaderClosed(t *testing.T) {
	frame, err := Frame([]byte("x"), SpeedDefault)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	r, err := NewReader(&testReadCloser{Reader: bytes.NewReader(frame)})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	_ = r.Close()

	if _, err := r.Read(make([]byte, 1)); err != io.ErrClosedPipe {
		t.Errorf("Read after Close error = %v, want %v", err, io.ErrClosedPipe)
	}
}
