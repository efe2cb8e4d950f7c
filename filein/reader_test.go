package filein

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/backend/file"
	"github.com/grokify/iconvfile/backend/memory"
	"github.com/grokify/iconvfile/charset"
	"github.com/grokify/iconvfile/compress"
)

func newReader(t *testing.T, backend iconvfile.Backend, config Config) *Reader {
	t.Helper()
	r, err := New(backend, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func payloads(records []*iconvfile.OutputRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Payload.String()
	}
	return out
}

func TestLinesScenario(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("/in.txt", []byte("a\nb\nc"))

	r := newReader(t, mem, Config{Format: FormatLines})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "/in.txt", ID: "m1", Topic: "t"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if got := payloads(records); strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("payloads = %q, want a, b, c", got)
	}
	for i, rec := range records {
		if rec.Parts == nil {
			t.Fatalf("record %d has no parts", i)
		}
		if rec.Parts.Index != i {
			t.Errorf("record %d Index = %d", i, rec.Parts.Index)
		}
		if rec.Parts.Ch != "\n" || rec.Parts.Type != iconvfile.PartString || rec.Parts.ID != "m1" {
			t.Errorf("record %d parts = %+v", i, rec.Parts)
		}
		if rec.Filename != "/in.txt" || rec.Topic != "t" {
			t.Errorf("record %d Filename/Topic = %q/%q", i, rec.Filename, rec.Topic)
		}
		count, terminal := rec.Parts.Total()
		if terminal != (i == 2) {
			t.Errorf("record %d terminal = %v", i, terminal)
		}
		if terminal && count != 3 {
			t.Errorf("Count = %d, want 3", count)
		}
	}
}

func TestLinesRejoin(t *testing.T) {
	texts := []string{
		"",
		"no newline",
		"trailing\n",
		"\n\n",
		"añb€c😀d\nline two 世界\n\nlast",
		strings.Repeat("x", 37) + "\n" + strings.Repeat("é", 20),
	}
	charsets := []string{"utf8", "utf16le", "latin1"}

	for _, cs := range charsets {
		for _, text := range texts {
			raw, err := charset.Encode(text, cs)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, _ := charset.Decode(raw, cs)

			for _, hwm := range []int{1, 2, 3, 5, 64} {
				mem := memory.New()
				mem.WriteFile("f", raw)

				r := newReader(t, mem, Config{Format: FormatLines, Charset: cs, HighWaterMark: hwm})
				records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
				if err != nil {
					t.Fatalf("ReadAll failed: %v", err)
				}
				if got := strings.Join(payloads(records), "\n"); got != decoded {
					t.Errorf("%s hwm=%d: rejoined %q, want %q", cs, hwm, got, decoded)
				}
				last := records[len(records)-1]
				if count, ok := last.Parts.Total(); !ok || count != len(records) {
					t.Errorf("%s hwm=%d: terminal Count = %d/%v, want %d", cs, hwm, count, ok, len(records))
				}
			}
		}
	}
}

func TestStreamChunks(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantSizes []int
		wantEmpty bool
	}{
		{"short final chunk", 10, []int{4, 4, 2}, false},
		{"exact multiple", 8, []int{4, 4, 0}, true},
		{"smaller than mark", 3, []int{3}, false},
		{"empty file", 0, []int{0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xff}, tt.size)
			mem := memory.New()
			mem.WriteFile("bin", data)

			r := newReader(t, mem, Config{Format: FormatStream, HighWaterMark: 4})
			records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "bin", ID: "s"})
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(records) != len(tt.wantSizes) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.wantSizes))
			}

			var joined []byte
			for i, rec := range records {
				if len(rec.Payload.Data()) != tt.wantSizes[i] {
					t.Errorf("record %d size = %d, want %d", i, len(rec.Payload.Data()), tt.wantSizes[i])
				}
				if rec.Parts.Index != i || rec.Parts.Type != iconvfile.PartBuffer || rec.Parts.Ch != "" {
					t.Errorf("record %d parts = %+v", i, rec.Parts)
				}
				_, terminal := rec.Parts.Total()
				if terminal != (i == len(records)-1) {
					t.Errorf("record %d terminal = %v", i, terminal)
				}
				joined = append(joined, rec.Payload.Data()...)
			}
			if !bytes.Equal(joined, data) {
				t.Errorf("joined chunks differ from file content")
			}

			last := records[len(records)-1]
			if tt.wantEmpty {
				if !last.Payload.IsZero() {
					t.Errorf("terminal record payload = %v, want none", last.Payload.Kind())
				}
				if count, _ := last.Parts.Total(); count != last.Parts.Index {
					t.Errorf("empty terminal Count = %d, want Index %d", count, last.Parts.Index)
				}
			} else if count, _ := last.Parts.Total(); count != len(records) {
				t.Errorf("Count = %d, want %d", count, len(records))
			}
		})
	}
}

func TestWholeFormats(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("latin.txt", []byte{'c', 'a', 'f', 0xe9})
	ctx := context.Background()

	r := newReader(t, mem, Config{Format: FormatWholeString, Charset: "latin1"})
	records, err := r.ReadAll(ctx, iconvfile.Request{Filename: "latin.txt"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 1 || records[0].Payload.String() != "café" || records[0].Parts != nil {
		t.Errorf("whole-string records = %+v", records)
	}

	r = newReader(t, mem, Config{Format: FormatWholeBuffer})
	records, err = r.ReadAll(ctx, iconvfile.Request{Filename: "latin.txt"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 1 || !records[0].Payload.IsBinary() || len(records[0].Payload.Data()) != 4 {
		t.Errorf("whole-buffer records = %+v", records)
	}
}

func TestZeroFormat(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("raw"))

	records, err := newReader(t, mem, Config{}).ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 1 || !records[0].Payload.IsBinary() {
		t.Errorf("zero Format records = %+v, want one binary record", records)
	}
	if DefaultConfig().Format != FormatWholeString {
		t.Errorf("DefaultConfig().Format = %q, want %q", DefaultConfig().Format, FormatWholeString)
	}
}

func TestConfiguredFilenameWins(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("configured", []byte("yes"))
	mem.WriteFile("requested", []byte("no"))

	r := newReader(t, mem, Config{Filename: "configured", Format: FormatWholeString})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "requested"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if records[0].Payload.String() != "yes" || records[0].Filename != "configured" {
		t.Errorf("record = %q from %q", records[0].Payload.String(), records[0].Filename)
	}
}

func TestOpenErrors(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("x"))
	ctx := context.Background()

	r := newReader(t, mem, DefaultConfig())
	if _, err := r.Open(ctx, iconvfile.Request{}); !iconvfile.IsNoFilename(err) {
		t.Errorf("Open without filename error = %v, want ErrNoFilename", err)
	}

	r = newReader(t, mem, Config{Charset: "klingon"})
	if _, err := r.Open(ctx, iconvfile.Request{Filename: "f"}); !iconvfile.IsUnsupportedCharset(err) {
		t.Errorf("Open with bad charset error = %v, want ErrUnsupportedCharset", err)
	}

	r = newReader(t, mem, DefaultConfig())
	_, err := r.Open(ctx, iconvfile.Request{Filename: "missing"})
	var opErr *iconvfile.OpError
	if !errors.As(err, &opErr) || opErr.Op != iconvfile.OpRead {
		t.Fatalf("Open missing file error = %v, want read OpError", err)
	}
	if !errors.Is(err, iconvfile.ErrRead) || !iconvfile.IsNotFound(err) {
		t.Errorf("Open missing file error = %v, want ErrRead and ErrNotFound", err)
	}
}

func TestReadFailureMidStream(t *testing.T) {
	boom := errors.New("device gone")
	reads := 0
	mem := memory.New(memory.WithFault(func(op, path string) error {
		if op == memory.OpRead {
			reads++
			if reads > 2 {
				return boom
			}
		}
		return nil
	}))
	mem.WriteFile("f", []byte("one\ntwo\nthree\nfour\n"))

	r := newReader(t, mem, Config{Format: FormatLines, HighWaterMark: 4, SendError: true})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f", Topic: "tp"})
	if !errors.Is(err, iconvfile.ErrRead) || !errors.Is(err, boom) {
		t.Fatalf("ReadAll error = %v, want read failure wrapping %v", err, boom)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 2 lines plus error record", len(records))
	}
	last := records[2]
	if last.Error == nil || !last.Payload.IsZero() || last.Topic != "tp" || last.Filename != "f" {
		t.Errorf("error record = %+v", last)
	}
}

func TestReadFailureWithoutSendError(t *testing.T) {
	boom := errors.New("device gone")
	mem := memory.New(memory.WithFault(func(op, path string) error {
		if op == memory.OpRead {
			return boom
		}
		return nil
	}))
	mem.WriteFile("f", []byte("data"))

	config := DefaultConfig()
	config.SendError = false
	r := newReader(t, mem, config)

	s, err := r.Open(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec, err := s.Next()
	if rec != nil || !errors.Is(err, boom) {
		t.Errorf("Next = %v, %v; want nil record and %v", rec, err, boom)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after failure error = %v, want EOF", err)
	}
}

func TestZeroConfigOmitsErrorRecord(t *testing.T) {
	boom := errors.New("device gone")
	mem := memory.New(memory.WithFault(func(op, path string) error {
		if op == memory.OpRead {
			return boom
		}
		return nil
	}))
	mem.WriteFile("f", []byte("data"))

	r := newReader(t, mem, Config{Format: FormatLines})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
	if !errors.Is(err, boom) {
		t.Fatalf("ReadAll error = %v, want %v", err, boom)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want none", len(records))
	}
}

func TestRangeRead(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("skip\nkeep1\nkeep2\ntail"))

	r := newReader(t, mem, Config{Format: FormatLines, Offset: 5, Limit: 12})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if got := payloads(records); strings.Join(got, "|") != "keep1|keep2|" {
		t.Errorf("payloads = %q, want keep1, keep2 and an empty terminal", got)
	}

	r = newReader(t, mem, Config{Format: FormatStream, Offset: 17, HighWaterMark: 2})
	records, err = r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if got := payloads(records); strings.Join(got, "|") != "ta|il|" {
		t.Errorf("payloads = %q, want ta, il and an empty terminal", got)
	}
}

// noRange hides the memory backend's range support.
type noRange struct{ *memory.Backend }

func (noRange) Features() iconvfile.Features { return iconvfile.Features{} }

func TestRangeReadNotSupported(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("data"))

	r := newReader(t, noRange{mem}, Config{Limit: 2})
	_, err := r.Open(context.Background(), iconvfile.Request{Filename: "f"})
	if !errors.Is(err, iconvfile.ErrRead) || !iconvfile.IsNotSupported(err) {
		t.Errorf("Open error = %v, want read failure wrapping ErrNotSupported", err)
	}

	r = newReader(t, noRange{mem}, Config{})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil || len(records) != 1 {
		t.Errorf("ReadAll without range = %d records, %v", len(records), err)
	}

	if _, err := New(mem, Config{Offset: -1}); err == nil {
		t.Error("New with a negative offset should fail")
	}
}

func TestCanceledContext(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("a\nb\n"))

	ctx, cancel := context.WithCancel(context.Background())
	r := newReader(t, mem, Config{Format: FormatLines})
	s, err := r.Open(ctx, iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	cancel()

	if _, err := s.Next(); !errors.Is(err, context.Canceled) {
		t.Errorf("Next error = %v, want %v", err, context.Canceled)
	}
}

func TestCompressedInput(t *testing.T) {
	for _, kind := range []compress.Kind{compress.Gzip, compress.Zstd} {
		t.Run(string(kind), func(t *testing.T) {
			first, err := kind.Frame([]byte("alpha\nbe"))
			if err != nil {
				t.Fatalf("Frame failed: %v", err)
			}
			second, err := kind.Frame([]byte("ta\ngamma"))
			if err != nil {
				t.Fatalf("Frame failed: %v", err)
			}

			mem := memory.New()
			mem.WriteFile("f", append(first, second...))

			r := newReader(t, mem, Config{Format: FormatLines, Compression: kind})
			records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "f"})
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if got := strings.Join(payloads(records), "|"); got != "alpha|beta|gamma" {
				t.Errorf("payloads = %q", got)
			}
		})
	}
}

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("x\ny"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	r := newReader(t, file.New(file.Config{}), Config{Format: FormatLines})
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: path})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if got := strings.Join(payloads(records), "|"); got != "x|y" {
		t.Errorf("payloads = %q", got)
	}
	if records[0].Parts.ID == "" {
		t.Error("parts ID should be generated when the request has none")
	}
	if records[0].Parts.ID != records[1].Parts.ID {
		t.Error("parts ID differs within one sequence")
	}
}

func TestEarlyBreakClosesSession(t *testing.T) {
	mem := memory.New()
	mem.WriteFile("f", []byte("1\n2\n3\n"))

	r := newReader(t, mem, Config{Format: FormatLines})
	s, err := r.Open(context.Background(), iconvfile.Request{Filename: "f"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for range s.Records() {
		break
	}
	if s.src != nil {
		t.Error("session not closed after early break")
	}
}

func TestConfigFromMap(t *testing.T) {
	config, err := ConfigFromMap(map[string]string{
		"filename":      "/tmp/x",
		"format":        "utf8",
		"charset":       "none",
		"senderror":     "false",
		"highwatermark": "1024",
		"compression":   "gz",
		"offset":        "10",
		"limit":         "20",
	})
	if err != nil {
		t.Fatalf("ConfigFromMap failed: %v", err)
	}
	if config.Filename != "/tmp/x" || config.Format != FormatWholeString {
		t.Errorf("config = %+v", config)
	}
	if config.Charset != charset.Default || config.SendError || config.HighWaterMark != 1024 {
		t.Errorf("config = %+v", config)
	}
	if config.Compression != compress.Gzip {
		t.Errorf("Compression = %q, want gzip", config.Compression)
	}
	if config.Offset != 10 || config.Limit != 20 {
		t.Errorf("range = %d+%d, want 10+20", config.Offset, config.Limit)
	}

	bad := []map[string]string{
		{"format": "xml"},
		{"senderror": "maybe"},
		{"highwatermark": "-1"},
		{"compression": "lz4"},
		{"offset": "-5"},
		{"limit": "lots"},
	}
	for _, m := range bad {
		if _, err := ConfigFromMap(m); err == nil {
			t.Errorf("ConfigFromMap(%v) should fail", m)
		}
	}
}
