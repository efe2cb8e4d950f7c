package gzip

import (
	"bytes"
	"compress/gzip"
)

// CompressionLevel represents gzip compression levels.
type CompressionLevel int

const (
	BestSpeed          CompressionLevel = gzip.BestSpeed
	BestCompression    CompressionLevel = gzip.BestCompression
	DefaultCompression CompressionLevel = gzip.DefaultCompression
)

// Frame compresses data into a single self-contained gzip member.
func Frame(data []byte, level CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, int(level))
	if err != nil {
		return nil, err
	}
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
