package fileout

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/grokify/mogo/log/slogutil"

	"github.com/grokify/iconvfile/charset"
	"github.com/grokify/iconvfile/compress"
)

// Mode selects what a write does to the target file.
type Mode string

const (
	// ModeOverwrite truncates the file and writes the payload.
	ModeOverwrite Mode = "true"

	// ModeAppend appends the payload, reusing one handle for a static target.
	ModeAppend Mode = "false"

	// ModeDelete removes the file. Payloads are ignored.
	ModeDelete Mode = "delete"
)

// ParseMode parses an overwritefile value. "overwrite" and "append" are
// accepted as synonyms; "" means ModeAppend.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOverwrite, "overwrite":
		return ModeOverwrite, nil
	case ModeAppend, "append", "":
		return ModeAppend, nil
	case ModeDelete:
		return ModeDelete, nil
	default:
		return "", fmt.Errorf("fileout: unknown mode %q", s)
	}
}

// LineEnding is appended to text payloads when AppendNewline is set.
var LineEnding = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Config configures a Serializer.
type Config struct {
	// Filename is written for every request. When empty, each request must
	// name its own file and append handles are not reused.
	Filename string

	// Mode is overwrite, append or delete. Default: ModeAppend.
	Mode Mode

	// Charset encodes text payloads. Empty means charset.Default.
	Charset string

	// AppendNewline adds LineEnding to text payloads.
	AppendNewline bool

	// CreateDir creates the target's parent directory before writing.
	CreateDir bool

	// Compression frames every write as a self-contained unit.
	Compression compress.Kind

	// OnResult, if set, receives every Result from the worker goroutine in
	// submission order, before the next request starts.
	OnResult func(Result)

	// Logger for structured logging. If nil, no logging is performed.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeAppend,
		Charset:     charset.Default,
		Compression: compress.None,
	}
}

// ConfigFromMap creates a Config from a string map.
// Supported keys:
//   - filename: static path
//   - overwritefile: true, false, delete
//   - charset: encoding name; "none" or empty means utf8
//   - appendnewline: bool
//   - createdir: bool
//   - compression: none, gzip, zstd
func ConfigFromMap(m map[string]string) (Config, error) {
	config := DefaultConfig()

	if v, ok := m["filename"]; ok {
		config.Filename = v
	}
	if v, ok := m["overwritefile"]; ok {
		mode, err := ParseMode(v)
		if err != nil {
			return config, err
		}
		config.Mode = mode
	}
	if v, ok := m["charset"]; ok && v != "" && v != "none" {
		config.Charset = v
	}
	for key, dst := range map[string]*bool{
		"appendnewline": &config.AppendNewline,
		"createdir":     &config.CreateDir,
	} {
		v, ok := m[key]
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return config, fmt.Errorf("fileout: %s: %w", key, err)
		}
		*dst = b
	}
	if v, ok := m["compression"]; ok {
		k, err := compress.ParseKind(v)
		if err != nil {
			return config, err
		}
		config.Compression = k
	}

	return config, nil
}

// Validate checks the static parts of the configuration. Charset support
// is checked per request.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if _, err := compress.ParseKind(string(c.Compression)); err != nil {
		return err
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slogutil.Null()
}

func (c Config) charset() string {
	if c.Charset == "" {
		return charset.Default
	}
	return c.Charset
}
