// Package filein reads files through an iconvfile.Backend and splits them
// into OutputRecords.
//
// A Reader is configured once and opened per request:
//
//	r, err := filein.New(backend, filein.Config{Format: filein.FormatLines})
//	session, err := r.Open(ctx, iconvfile.Request{Filename: "/var/log/app.log"})
//	for rec, err := range session.Records() {
//	    ...
//	}
//
// Lines are decoded incrementally, so a multi-byte character split across
// two reads is delivered intact. Stream chunks are exactly HighWaterMark
// bytes except the last; the final record of a split sequence carries
// Parts.Count.
package filein

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/charset"
)

// Reader opens read sessions against a backend.
type Reader struct {
	backend iconvfile.Backend
	config  Config
	logger  *slog.Logger
}

// New creates a Reader. A zero Format selects FormatWholeBuffer.
func New(backend iconvfile.Backend, config Config) (*Reader, error) {
	if backend == nil {
		return nil, errors.New("filein: nil backend")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Format, _ = ParseFormat(string(config.Format))
	return &Reader{
		backend: backend,
		config:  config,
		logger:  config.logger(),
	}, nil
}

// Open resolves the filename, checks the charset and opens the file.
// No records are produced when Open fails.
func (r *Reader) Open(ctx context.Context, req iconvfile.Request) (*Session, error) {
	filename := r.config.Filename
	if filename == "" {
		filename = req.Filename
	}
	if filename == "" {
		r.logger.Warn("no filename specified", "id", req.ID)
		return nil, iconvfile.ErrNoFilename
	}

	cs := r.config.charset()
	if !charset.Supports(cs) {
		err := fmt.Errorf("%w: %s", iconvfile.ErrUnsupportedCharset, cs)
		r.logger.Error("unsupported charset", "id", req.ID, "filename", filename, "charset", cs)
		return nil, err
	}

	opts := r.config.readerOptions()
	if len(opts) > 0 && !r.backend.Features().RangeRead {
		r.logger.Error("range read not supported", "id", req.ID, "filename", filename)
		return nil, iconvfile.NewOpError(iconvfile.OpRead, filename, iconvfile.ErrNotSupported)
	}

	raw, err := r.backend.NewReader(ctx, filename, opts...)
	if err != nil {
		opErr := iconvfile.NewOpError(iconvfile.OpRead, filename, err)
		r.logger.Error("open failed", "id", req.ID, "filename", filename, "error", err)
		return nil, opErr
	}

	// Decompressors close raw along with themselves.
	src, err := r.config.Compression.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		opErr := iconvfile.NewOpError(iconvfile.OpRead, filename, err)
		r.logger.Error("open failed", "id", req.ID, "filename", filename, "error", err)
		return nil, opErr
	}

	s := &Session{
		ctx:      ctx,
		reader:   r,
		req:      req,
		filename: filename,
		partsID:  req.ID,
		src:      src,
		hwm:      r.config.highWaterMark(),
	}
	if s.partsID == "" {
		s.partsID = uuid.NewString()
	}
	if r.config.Format == FormatLines {
		s.buf = make([]byte, s.hwm)
		s.dec, err = charset.NewDecoder(cs)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("%w: %s", iconvfile.ErrUnsupportedCharset, cs)
		}
	}

	r.logger.Debug("read session opened", "id", req.ID, "filename", filename, "format", string(r.config.Format))
	return s, nil
}

// ReadAll runs a whole session. On failure the error record (when
// SendError is set) is the last element of the returned slice.
func (r *Reader) ReadAll(ctx context.Context, req iconvfile.Request) ([]*iconvfile.OutputRecord, error) {
	s, err := r.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	var records []*iconvfile.OutputRecord
	for rec, err := range s.Records() {
		if rec != nil {
			records = append(records, rec)
		}
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

// Session is one pass over one file. It is not safe for concurrent use
// and cannot be restarted.
type Session struct {
	ctx      context.Context
	reader   *Reader
	req      iconvfile.Request
	filename string
	partsID  string
	src      io.ReadCloser
	dec      *charset.Decoder
	hwm      int
	buf      []byte

	index   int
	pending string
	queue   []*iconvfile.OutputRecord
	done    bool
}

// Filename returns the resolved filename.
func (s *Session) Filename() string { return s.filename }

// Next returns the next record, or io.EOF after the last one. On a read
// failure Next returns an *iconvfile.OpError, together with an error record
// when SendError is set; the session is finished afterwards.
func (s *Session) Next() (*iconvfile.OutputRecord, error) {
	for len(s.queue) == 0 {
		if s.done {
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return s.fail(err)
		}

		var err error
		switch s.reader.config.Format {
		case FormatLines:
			err = s.readLines()
		case FormatStream:
			err = s.readChunk()
		default:
			err = s.readWhole()
		}
		if err != nil {
			return s.fail(err)
		}
	}

	rec := s.queue[0]
	s.queue = s.queue[1:]
	return rec, nil
}

// Records iterates the remaining records. Iteration stops after the first
// error; breaking out early closes the session.
func (s *Session) Records() iter.Seq2[*iconvfile.OutputRecord, error] {
	return func(yield func(*iconvfile.OutputRecord, error) bool) {
		defer func() { _ = s.Close() }()
		for {
			rec, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying file. It is safe to call more than once.
func (s *Session) Close() error {
	s.done = true
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

func (s *Session) readWhole() error {
	data, err := io.ReadAll(s.src)
	if err != nil {
		return err
	}

	var payload iconvfile.Payload
	if s.reader.config.Format == FormatWholeString {
		text, err := charset.Decode(data, s.reader.config.charset())
		if err != nil {
			return err
		}
		payload = iconvfile.Text(text)
	} else {
		payload = iconvfile.Bytes(data)
	}

	s.emit(payload, nil)
	return s.finish()
}

// readLines reuses s.buf; the decoder copies what it keeps.
func (s *Session) readLines() error {
	n, readErr := s.src.Read(s.buf)
	if n > 0 {
		text, err := s.dec.Write(s.buf[:n])
		if err != nil {
			return err
		}
		s.splitLines(text)
	}

	switch {
	case readErr == nil:
		return nil
	case errors.Is(readErr, io.EOF):
		tail, err := s.dec.Flush()
		if err != nil {
			return err
		}
		s.splitLines(tail)
		s.emit(iconvfile.Text(s.pending), s.terminal())
		s.pending = ""
		return s.finish()
	default:
		return readErr
	}
}

// splitLines queues every complete line and keeps the remainder pending.
func (s *Session) splitLines(text string) {
	if text == "" {
		return
	}
	s.pending += text
	for {
		i := strings.IndexByte(s.pending, '\n')
		if i < 0 {
			return
		}
		s.emit(iconvfile.Text(s.pending[:i]), s.parts())
		s.pending = s.pending[i+1:]
	}
}

// readChunk allocates per chunk since emitted payloads own their bytes.
func (s *Session) readChunk() error {
	buf := make([]byte, s.hwm)
	n, err := io.ReadFull(s.src, buf)
	switch {
	case err == nil:
		s.emit(iconvfile.Bytes(buf), s.parts())
		return nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.emit(iconvfile.Bytes(buf[:n]), s.terminal())
		return s.finish()
	case errors.Is(err, io.EOF):
		// The last chunk was full-sized, or the file is empty.
		count := s.index
		s.emit(iconvfile.Payload{}, &iconvfile.Parts{
			Index: count,
			Count: &count,
			Type:  iconvfile.PartBuffer,
			ID:    s.partsID,
		})
		return s.finish()
	default:
		return err
	}
}

func (s *Session) parts() *iconvfile.Parts {
	p := &iconvfile.Parts{Index: s.index, ID: s.partsID}
	if s.reader.config.Format == FormatLines {
		p.Ch = "\n"
		p.Type = iconvfile.PartString
	} else {
		p.Type = iconvfile.PartBuffer
	}
	return p
}

func (s *Session) terminal() *iconvfile.Parts {
	p := s.parts()
	count := s.index + 1
	p.Count = &count
	return p
}

func (s *Session) emit(payload iconvfile.Payload, parts *iconvfile.Parts) {
	s.queue = append(s.queue, &iconvfile.OutputRecord{
		Payload:  payload,
		Filename: s.filename,
		Topic:    s.req.Topic,
		Parts:    parts,
	})
	if parts != nil {
		s.index++
	}
}

func (s *Session) finish() error {
	s.reader.logger.Debug("read session complete", "id", s.req.ID, "filename", s.filename, "records", s.index)
	return s.Close()
}

func (s *Session) fail(cause error) (*iconvfile.OutputRecord, error) {
	_ = s.Close()
	s.queue = nil

	err := iconvfile.NewOpError(iconvfile.OpRead, s.filename, cause)
	s.reader.logger.Error("read failed", "id", s.req.ID, "filename", s.filename, "error", cause)

	if !s.reader.config.SendError {
		return nil, err
	}
	return &iconvfile.OutputRecord{
		Filename: s.filename,
		Topic:    s.req.Topic,
		Error:    err,
	}, err
}
