package zstd

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionLevel represents zstd compression levels.
type CompressionLevel int

const (
	SpeedFastest CompressionLevel = iota + 1
	SpeedDefault
	SpeedBetterCompression
	SpeedBestCompression
)

func (l CompressionLevel) toZstdLevel() zstd.EncoderLevel {
	switch l {
	case SpeedFastest:
		return zstd.SpeedFastest
	case SpeedBetterCompression:
		return zstd.SpeedBetterCompression
	case SpeedBestCompression:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

var (
	encodersMu sync.Mutex
	encoders   = make(map[CompressionLevel]*zstd.Encoder)
)

// encoder returns a shared encoder for level. EncodeAll is safe for
// concurrent use, so one encoder per level is enough.
func encoder(level CompressionLevel) (*zstd.Encoder, error) {
	encodersMu.Lock()
	defer encodersMu.Unlock()

	if enc, ok := encoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level.toZstdLevel()))
	if err != nil {
		return nil, err
	}
	encoders[level] = enc
	return enc, nil
}

// Frame compresses data into a single self-contained zstd frame.
func Frame(data []byte, level CompressionLevel) ([]byte, error) {
	enc, err := encoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}
