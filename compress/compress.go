// Package compress selects the optional compression applied to files read
// by filein and written by fileout.
package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/grokify/iconvfile/compress/gzip"
	"github.com/grokify/iconvfile/compress/zstd"
)

// Kind names a compression format.
type Kind string

const (
	None Kind = "none"
	Gzip Kind = "gzip"
	Zstd Kind = "zstd"
)

// ParseKind parses a compression name. The empty string means None.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", None:
		return None, nil
	case Gzip, "gz":
		return Gzip, nil
	case Zstd, "zst":
		return Zstd, nil
	default:
		return "", fmt.Errorf("compress: unknown kind %q", s)
	}
}

// NewReader wraps r with a decompressor for k. None returns r unchanged.
func (k Kind) NewReader(r io.ReadCloser) (io.ReadCloser, error) {
	switch k {
	case "", None:
		return r, nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("compress: unknown kind %q", string(k))
	}
}

// Frame compresses data as one self-contained unit, so frames can be
// appended to an existing file. None returns data unchanged.
func (k Kind) Frame(data []byte) ([]byte, error) {
	switch k {
	case "", None:
		return data, nil
	case Gzip:
		return gzip.Frame(data, gzip.DefaultCompression)
	case Zstd:
		return zstd.Frame(data, zstd.SpeedDefault)
	default:
		return nil, fmt.Errorf("compress: unknown kind %q", string(k))
	}
}
