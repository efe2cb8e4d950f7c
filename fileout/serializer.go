// Package fileout writes requests to files through an iconvfile.Backend,
// one at a time and in submission order.
//
// Basic usage:
//
//	s, err := fileout.New(backend, fileout.Config{
//	    Filename:      "/var/log/app.log",
//	    Mode:          fileout.ModeAppend,
//	    AppendNewline: true,
//	})
//	res := <-s.Submit(iconvfile.Request{Payload: iconvfile.Text("hello")})
//	err = s.Close(ctx)
//
// In append mode with a static Filename the serializer keeps one handle open
// across requests. Before each write it compares the FileID of the path with
// the one recorded at open; when the file has been rotated away the handle
// is closed and a new one opened. The check is not atomic with the write, so
// a rotation between the two is caught on the following write.
package fileout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/charset"
)

// Result is the outcome of one request.
type Result struct {
	// Request is the submitted request.
	Request iconvfile.Request

	// Forwarded is the request to pass downstream. It is nil for no-ops
	// and failures.
	Forwarded *iconvfile.Request

	// Err is the failure, if any.
	Err error
}

type task struct {
	req    iconvfile.Request
	result chan Result
}

// handle is an open append writer and the identity of the file it was
// opened on.
type handle struct {
	path string
	w    io.WriteCloser
	id   iconvfile.FileID
}

// Serializer processes write requests on a single worker goroutine.
type Serializer struct {
	backend  iconvfile.Backend
	config   Config
	logger   *slog.Logger
	ctx      context.Context
	features iconvfile.Features

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*task
	closing bool

	// Owned by the worker.
	handle *handle

	done     chan struct{}
	closeErr error
}

// New creates a Serializer and starts its worker.
func New(backend iconvfile.Backend, config Config) (*Serializer, error) {
	if backend == nil {
		return nil, errors.New("fileout: nil backend")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Mode, _ = ParseMode(string(config.Mode))

	s := &Serializer{
		backend:  backend,
		config:   config,
		logger:   config.logger(),
		ctx:      context.Background(),
		features: backend.Features(),
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s, nil
}

// Submit enqueues req. The returned channel receives exactly one Result
// once req and every earlier request have been processed.
func (s *Serializer) Submit(req iconvfile.Request) <-chan Result {
	ch := make(chan Result, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		ch <- Result{Request: req, Err: iconvfile.ErrSerializerClosed}
		close(ch)
		return ch
	}
	s.queue = append(s.queue, &task{req: req, result: ch})
	s.cond.Signal()
	return ch
}

// Write submits req and waits for its Result.
func (s *Serializer) Write(ctx context.Context, req iconvfile.Request) (Result, error) {
	select {
	case res := <-s.Submit(req):
		return res, res.Err
	case <-ctx.Done():
		return Result{Request: req}, ctx.Err()
	}
}

// Close stops accepting requests, waits for the queue to drain and closes
// the open handle. If ctx ends first Close returns its error; draining
// continues in the background.
func (s *Serializer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case <-s.done:
		return s.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the serializer has drained and released its handle.
func (s *Serializer) Done() <-chan struct{} {
	return s.done
}

func (s *Serializer) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			s.finalize()
			return
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		res, fault := s.safeProcess(t.req)
		if fault != nil {
			s.abort(t, fault)
			continue
		}
		s.deliver(t, res)
	}
}

func (s *Serializer) finalize() {
	var path string
	if s.handle != nil {
		path = s.handle.path
	}
	if err := s.closeHandle(); err != nil {
		s.closeErr = iconvfile.NewOpError(iconvfile.OpAppend, path, err)
		s.logger.Error("closing handle failed", "filename", path, "error", err)
	}
	s.logger.Debug("serializer closed")
}

// safeProcess turns a panic into a fault that aborts the queue.
func (s *Serializer) safeProcess(req iconvfile.Request) (res Result, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("%w: %v", iconvfile.ErrQueueAborted, r)
		}
	}()
	return s.process(req), nil
}

// abort fails t with fault and discards every queued request.
func (s *Serializer) abort(t *task, fault error) {
	s.mu.Lock()
	discarded := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.logger.Error("write worker fault, queue aborted",
		"id", t.req.ID, "discarded", len(discarded), "error", fault)

	// The handle may be mid-write; drop it.
	_ = s.closeHandle()

	s.deliver(t, Result{Request: t.req, Err: fault})
	for _, d := range discarded {
		s.deliver(d, Result{Request: d.req, Err: iconvfile.ErrQueueAborted})
	}
}

func (s *Serializer) deliver(t *task, res Result) {
	if s.config.OnResult != nil {
		s.config.OnResult(res)
	}
	t.result <- res
	close(t.result)
}

func (s *Serializer) process(req iconvfile.Request) Result {
	res := Result{Request: req}

	target := s.config.Filename
	if target == "" {
		target = req.Filename
	}
	if target == "" {
		s.logger.Warn("no filename specified", "id", req.ID)
		res.Err = iconvfile.ErrNoFilename
		return res
	}

	if s.config.Mode == ModeDelete {
		if err := s.backend.Delete(s.ctx, target); err != nil {
			res.Err = s.fail(req, iconvfile.OpDelete, target, err)
			return res
		}
		s.logger.Debug("deleted file", "id", req.ID, "filename", target)
		res.Forwarded = &req
		return res
	}

	if req.Payload.IsZero() {
		return res
	}

	cs := s.config.charset()
	if !charset.Supports(cs) {
		s.logger.Error("unsupported charset", "id", req.ID, "filename", target, "charset", cs)
		res.Err = fmt.Errorf("%w: %s", iconvfile.ErrUnsupportedCharset, cs)
		return res
	}

	if s.config.CreateDir {
		if dir := filepath.Dir(target); dir != "." && dir != string(filepath.Separator) {
			if err := s.backend.Mkdir(s.ctx, dir); err != nil {
				res.Err = s.fail(req, iconvfile.OpMkdir, dir, err)
				return res
			}
		}
	}

	op := iconvfile.OpWrite
	if s.config.Mode == ModeAppend {
		op = iconvfile.OpAppend
	}

	data, err := s.encode(req.Payload, cs)
	if err != nil {
		res.Err = s.fail(req, op, target, err)
		return res
	}

	if s.config.Mode == ModeOverwrite {
		err = s.overwrite(target, data)
	} else {
		err = s.append(req, target, data)
	}
	if err != nil {
		res.Err = s.fail(req, op, target, err)
		return res
	}

	s.logger.Debug("wrote file", "id", req.ID, "filename", target, "bytes", len(data))
	res.Forwarded = &req
	return res
}

// encode resolves the payload into the bytes written to the file.
func (s *Serializer) encode(p iconvfile.Payload, cs string) ([]byte, error) {
	p, err := p.Resolve()
	if err != nil {
		return nil, err
	}

	var data []byte
	if p.IsBinary() {
		data = p.Data()
	} else {
		text := p.String()
		if s.config.AppendNewline {
			text += LineEnding
		}
		if data, err = charset.Encode(text, cs); err != nil {
			return nil, err
		}
	}

	return s.config.Compression.Frame(data)
}

func (s *Serializer) overwrite(target string, data []byte) error {
	w, err := s.backend.NewWriter(s.ctx, target)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *Serializer) append(req iconvfile.Request, target string, data []byte) error {
	if !s.features.Append {
		return fmt.Errorf("%w: backend cannot append", iconvfile.ErrNotSupported)
	}

	static := s.config.Filename != ""

	if static && s.handle != nil && s.rotated() {
		s.logger.Info("file rotated, reopening", "id", req.ID, "filename", target)
		_ = s.closeHandle()
	}

	if s.handle == nil {
		h, err := s.open(target)
		if err != nil {
			return err
		}
		s.handle = h
	}

	if _, err := s.handle.w.Write(data); err != nil {
		_ = s.closeHandle()
		return err
	}

	if !static {
		return s.closeHandle()
	}
	return nil
}

// rotated reports whether the path no longer names the file the handle
// was opened on. A handle with no recorded identity is never rotated.
func (s *Serializer) rotated() bool {
	if !s.features.Identity || s.handle.id.IsZero() {
		return false
	}
	info, err := s.backend.Stat(s.ctx, s.handle.path)
	if err != nil {
		return true
	}
	return info.ID() != s.handle.id
}

func (s *Serializer) open(target string) (*handle, error) {
	w, err := s.backend.NewWriter(s.ctx, target, iconvfile.WithAppend())
	if err != nil {
		return nil, err
	}
	h := &handle{path: target, w: w}
	if s.features.Identity {
		if info, err := s.backend.Stat(s.ctx, target); err == nil {
			h.id = info.ID()
		}
	}
	return h, nil
}

func (s *Serializer) closeHandle() error {
	if s.handle == nil {
		return nil
	}
	h := s.handle
	s.handle = nil
	return h.w.Close()
}

func (s *Serializer) fail(req iconvfile.Request, op iconvfile.Op, path string, err error) error {
	opErr := iconvfile.NewOpError(op, path, err)
	s.logger.Error("write failed", "id", req.ID, "filename", path, "op", string(op), "error", err)
	return opErr
}
