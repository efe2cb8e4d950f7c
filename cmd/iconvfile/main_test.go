package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grokify/iconvfile/fileout"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	root := "root=" + dir

	out, err := execute(t, "alpha\nbeta\n",
		"write", "--backend-opt", root, "--filename", "out.txt", "--appendnewline", "--charset", "latin1")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if results := decodeLines(t, out); len(results) != 2 {
		t.Fatalf("write printed %d results, want 2", len(results))
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if want := "alpha" + fileout.LineEnding + "beta" + fileout.LineEnding; string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}

	out, err = execute(t, "", "read", "--backend-opt", root, "--format", "lines", "--charset", "latin1", "out.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	records := decodeLines(t, out)
	if len(records) != 3 {
		t.Fatalf("read printed %d records, want 3", len(records))
	}
	if got := strings.TrimRight(records[0]["payload"].(string), "\r"); got != "alpha" {
		t.Errorf("first payload = %q, want %q", got, "alpha")
	}
	parts := records[2]["parts"].(map[string]any)
	if parts["count"] != float64(3) {
		t.Errorf("terminal count = %v, want 3", parts["count"])
	}
}

func TestWriteJSONRequests(t *testing.T) {
	dir := t.TempDir()
	input := `{"filename":"a.json","payload":{"x":1},"_msgid":"m1"}
{"filename":"b.txt","payload":"text"}
`
	out, err := execute(t, input, "write", "--backend-opt", "root="+dir, "--json", "--mode", "overwrite")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	results := decodeLines(t, out)
	if len(results) != 2 || results[0]["_msgid"] != "m1" {
		t.Fatalf("results = %v", results)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "a.json")); string(data) != `{"x":1}` {
		t.Errorf("a.json = %q", data)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "b.txt")); string(data) != "text" {
		t.Errorf("b.txt = %q", data)
	}
}

func TestWriteFailureReported(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, `{"filename":"missing.txt"}`+"\n",
		"write", "--backend-opt", "root="+dir, "--json", "--mode", "delete")
	if err == nil {
		t.Fatal("expected an error for a failed delete")
	}
	results := decodeLines(t, out)
	if len(results) != 1 || results[0]["error"] == nil {
		t.Errorf("results = %v, want one error line", results)
	}
}

func TestReadMissingFile(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "read", "--backend-opt", "root="+dir, "nope.txt")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if strings.TrimSpace(out) != "" {
		t.Errorf("open failure printed records: %q", out)
	}
}

func TestReadRange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in.txt"), []byte("hello world!"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := execute(t, "", "read", "--backend-opt", "root="+dir, "--offset", "6", "--limit", "5", "in.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	records := decodeLines(t, out)
	if len(records) != 1 || records[0]["payload"] != "world" {
		t.Errorf("records = %v, want one record with payload world", records)
	}
}

func TestReadNoFile(t *testing.T) {
	if _, err := execute(t, "", "read"); err == nil {
		t.Error("expected an error without a file")
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := execute(t, "", "read", "--backend", "tape", "f"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, err := execute(t, "", "read", "--log-level", "loud", "f"); err == nil {
		t.Error("expected an error for a bad log level")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version = %q, want %q", out, version)
	}
}
