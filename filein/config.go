package filein

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/grokify/mogo/log/slogutil"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/charset"
	"github.com/grokify/iconvfile/compress"
)

// Format selects how a file is split into records.
type Format string

const (
	// FormatWholeBuffer emits the whole file as one binary record.
	FormatWholeBuffer Format = "whole-buffer"

	// FormatWholeString emits the whole file as one decoded text record.
	FormatWholeString Format = "whole-string"

	// FormatLines emits one text record per line.
	FormatLines Format = "lines"

	// FormatStream emits raw chunks of at most HighWaterMark bytes.
	FormatStream Format = "stream"
)

// DefaultHighWaterMark is the default stream chunk size.
const DefaultHighWaterMark = 64 * 1024

// ParseFormat parses a format name. "utf8" and "string" select
// FormatWholeString, "buffer" and "" select FormatWholeBuffer.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatWholeString, "utf8", "string":
		return FormatWholeString, nil
	case FormatWholeBuffer, "buffer", "":
		return FormatWholeBuffer, nil
	case FormatLines, FormatStream:
		return f, nil
	default:
		return "", fmt.Errorf("filein: unknown format %q", s)
	}
}

// Config configures a Reader.
type Config struct {
	// Filename is read for every request. When empty, each request must
	// name its own file.
	Filename string

	// Format selects the splitting mode. The zero value selects
	// FormatWholeBuffer; DefaultConfig uses FormatWholeString.
	Format Format

	// Charset decodes text formats. Empty means charset.Default.
	Charset string

	// SendError emits an error record when a read fails. The zero value
	// only returns the error; DefaultConfig turns it on.
	SendError bool

	// HighWaterMark is the chunk size for reads. Default: DefaultHighWaterMark.
	HighWaterMark int

	// Compression is undone before splitting.
	Compression compress.Kind

	// Offset and Limit restrict reads to a byte range of the stored file.
	// Zero means from the start and to the end. Backends without
	// Features.RangeRead reject a non-zero range. With Compression set the
	// range applies to the compressed bytes.
	Offset int64
	Limit  int64

	// Logger for structured logging. If nil, no logging is performed.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Format:        FormatWholeString,
		Charset:       charset.Default,
		SendError:     true,
		HighWaterMark: DefaultHighWaterMark,
		Compression:   compress.None,
	}
}

// ConfigFromMap creates a Config from a string map.
// Supported keys:
//   - filename: static path
//   - format: whole-buffer, whole-string (utf8, string), lines, stream
//   - charset: encoding name; "none" or empty means utf8
//   - senderror: bool (default: true)
//   - highwatermark: chunk size in bytes
//   - compression: none, gzip, zstd
//   - offset, limit: byte range in the stored file
func ConfigFromMap(m map[string]string) (Config, error) {
	config := DefaultConfig()

	if v, ok := m["filename"]; ok {
		config.Filename = v
	}
	if v, ok := m["format"]; ok {
		f, err := ParseFormat(v)
		if err != nil {
			return config, err
		}
		config.Format = f
	}
	if v, ok := m["charset"]; ok && v != "" && v != "none" {
		config.Charset = v
	}
	if v, ok := m["senderror"]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return config, fmt.Errorf("filein: senderror: %w", err)
		}
		config.SendError = b
	}
	if v, ok := m["highwatermark"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return config, fmt.Errorf("filein: invalid highwatermark %q", v)
		}
		config.HighWaterMark = n
	}
	if v, ok := m["compression"]; ok {
		k, err := compress.ParseKind(v)
		if err != nil {
			return config, err
		}
		config.Compression = k
	}
	for key, dst := range map[string]*int64{"offset": &config.Offset, "limit": &config.Limit} {
		v, ok := m[key]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return config, fmt.Errorf("filein: invalid %s %q", key, v)
		}
		*dst = n
	}

	return config, nil
}

// Validate checks the static parts of the configuration. Charset support
// is checked per request.
func (c Config) Validate() error {
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if c.HighWaterMark < 0 {
		return fmt.Errorf("filein: negative highwatermark %d", c.HighWaterMark)
	}
	if c.Offset < 0 || c.Limit < 0 {
		return fmt.Errorf("filein: negative range %d+%d", c.Offset, c.Limit)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slogutil.Null()
}

func (c Config) readerOptions() []iconvfile.ReaderOption {
	var opts []iconvfile.ReaderOption
	if c.Offset > 0 {
		opts = append(opts, iconvfile.WithOffset(c.Offset))
	}
	if c.Limit > 0 {
		opts = append(opts, iconvfile.WithLimit(c.Limit))
	}
	return opts
}

func (c Config) charset() string {
	if c.Charset == "" {
		return charset.Default
	}
	return c.Charset
}

func (c Config) highWaterMark() int {
	if c.HighWaterMark <= 0 {
		return DefaultHighWaterMark
	}
	return c.HighWaterMark
}
