package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/fileout"
	"github.com/grokify/iconvfile/format/ndjson"
)

var writeKeys = map[string]string{
	"filename":      "filename",
	"mode":          "overwritefile",
	"charset":       "charset",
	"appendnewline": "appendnewline",
	"createdir":     "createdir",
	"compression":   "compression",
}

// maxLineSize bounds one stdin line.
const maxLineSize = 1 << 20

// writeResult is printed for every request that was not a no-op.
type writeResult struct {
	ID        string             `json:"_msgid,omitempty"`
	Filename  string             `json:"filename,omitempty"`
	Forwarded *iconvfile.Request `json:"forwarded,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write stdin to a file, one request per line",
		Long: `Write each stdin line as one request, in order.

Plain lines become text payloads. With --json every line is a request
object: {"filename": ..., "payload": ..., "_msgid": ..., "topic": ...}.
Each completed request is printed as a JSON line.`,
		RunE: runWrite,
	}

	f := cmd.Flags()
	f.String("filename", "", "static filename; requests must name a file when empty")
	f.String("mode", "append", "overwrite, append or delete")
	f.String("charset", "utf8", "target encoding")
	f.Bool("appendnewline", false, "add a line ending to text payloads")
	f.Bool("createdir", false, "create the parent directory before writing")
	f.String("compression", "none", "none, gzip or zstd")
	f.Bool("json", false, "read stdin as JSON request lines")
	f.String("topic", "", "topic for requests that carry none")
	return cmd
}

func runWrite(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	config, err := fileout.ConfigFromMap(configMap(cmd, writeKeys))
	if err != nil {
		return err
	}
	config.Logger = logger.With("component", "fileout")

	backend, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	out := ndjson.NewWriter(cmd.OutOrStdout())
	var failed, total int
	var outErr error
	config.OnResult = func(res fileout.Result) {
		if res.Err == nil && res.Forwarded == nil {
			return
		}
		line := writeResult{ID: res.Request.ID, Filename: res.Request.Filename, Forwarded: res.Forwarded}
		if res.Err != nil {
			failed++
			line.Error = res.Err.Error()
		}
		if err := out.Encode(line); err != nil && outErr == nil {
			outErr = err
		}
	}

	s, err := fileout.New(backend, config)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	topic, _ := cmd.Flags().GetString("topic")
	next := lineSource(cmd.InOrStdin(), asJSON)

	var readErr error
	for {
		req, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if req.Topic == "" {
			req.Topic = topic
		}
		total++
		s.Submit(req)
	}

	// Close waits for the queue; OnResult state is safe to read after it.
	if err := s.Close(context.Background()); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	switch {
	case readErr != nil:
		return fmt.Errorf("write: reading input: %w", readErr)
	case outErr != nil:
		return outErr
	case failed > 0:
		return fmt.Errorf("write: %d of %d requests failed", failed, total)
	}
	return nil
}

// lineSource returns a function yielding one request per input line.
func lineSource(r io.Reader, asJSON bool) func() (iconvfile.Request, error) {
	if asJSON {
		in := ndjson.NewReaderSize(r, maxLineSize)
		return func() (iconvfile.Request, error) {
			var req iconvfile.Request
			err := in.Decode(&req)
			return req, err
		}
	}

	// Plain text keeps blank lines, so it scans directly.
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return func() (iconvfile.Request, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return iconvfile.Request{}, err
			}
			return iconvfile.Request{}, io.EOF
		}
		return iconvfile.Request{Payload: iconvfile.Text(scanner.Text())}, nil
	}
}
