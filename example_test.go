package iconvfile_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grokify/iconvfile"
	_ "github.com/grokify/iconvfile/backend/file"
	"github.com/grokify/iconvfile/backend/memory"
	"github.com/grokify/iconvfile/filein"
	"github.com/grokify/iconvfile/fileout"
)

// Write latin1-encoded lines and read them back one record per line.
func Example() {
	ctx := context.Background()
	backend := memory.New()

	s, err := fileout.New(backend, fileout.Config{
		Filename: "greetings.txt",
		Mode:     fileout.ModeAppend,
		Charset:  "latin1",
	})
	if err != nil {
		panic(err)
	}
	for _, line := range []string{"grüß dich\n", "olá\n"} {
		if _, err := s.Write(ctx, iconvfile.Request{Payload: iconvfile.Text(line)}); err != nil {
			panic(err)
		}
	}
	if err := s.Close(ctx); err != nil {
		panic(err)
	}

	raw, _ := backend.ReadFile("greetings.txt")
	fmt.Println("bytes on disk:", len(raw))

	r, err := filein.New(backend, filein.Config{
		Filename: "greetings.txt",
		Format:   filein.FormatLines,
		Charset:  "latin1",
	})
	if err != nil {
		panic(err)
	}
	records, err := r.ReadAll(ctx, iconvfile.Request{ID: "req-1"})
	if err != nil {
		panic(err)
	}
	for _, rec := range records {
		n, last := rec.Parts.Total()
		fmt.Printf("%d %q last=%v total=%d\n", rec.Parts.Index, rec.Payload.String(), last, n)
	}

	// Output:
	// bytes on disk: 14
	// 0 "grüß dich" last=false total=0
	// 1 "olá" last=false total=0
	// 2 "" last=true total=3
}

// Stream a file in fixed-size chunks.
func Example_stream() {
	dir, err := os.MkdirTemp("", "iconvfile-example")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := os.WriteFile(filepath.Join(dir, "data.bin"), []byte("0123456789"), 0600); err != nil {
		panic(err)
	}

	backend, err := iconvfile.Open("file", map[string]string{"root": dir})
	if err != nil {
		panic(err)
	}
	defer func() { _ = backend.Close() }()

	r, err := filein.New(backend, filein.Config{Format: filein.FormatStream, HighWaterMark: 4})
	if err != nil {
		panic(err)
	}
	records, err := r.ReadAll(context.Background(), iconvfile.Request{Filename: "data.bin", ID: "chunks"})
	if err != nil {
		panic(err)
	}
	for _, rec := range records {
		_, last := rec.Parts.Total()
		fmt.Printf("%s last=%v\n", rec.Payload.Data(), last)
	}

	// Output:
	// 0123 last=false
	// 4567 last=false
	// 89 last=true
}

// The backends compiled into a binary register themselves by name.
func ExampleBackends() {
	for _, name := range iconvfile.Backends() {
		if name == "file" || name == "memory" {
			fmt.Println(name)
		}
	}

	// Output:
	// file
	// memory
}
