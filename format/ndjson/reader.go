package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Reader decodes one value per line. Empty lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultBufferSize)
}

// NewReaderSize creates a Reader. bufferSize bounds the line length.
func NewReaderSize(r io.Reader, bufferSize int) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufferSize), bufferSize)
	return &Reader{scanner: scanner}
}

// Read returns a copy of the next non-empty line, or io.EOF.
func (r *Reader) Read() ([]byte, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return bytes.Clone(line), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Decode unmarshals the next non-empty line into v.
func (r *Reader) Decode(v any) error {
	line, err := r.Read()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("ndjson: line %d: %w", r.line, err)
	}
	return nil
}

// Line returns the number of the line last read.
func (r *Reader) Line() int { return r.line }
