package iconvfile

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPayloadKinds(t *testing.T) {
	tests := []struct {
		name   string
		p      Payload
		kind   PayloadKind
		binary bool
		text   string
	}{
		{"zero", Payload{}, PayloadNone, false, ""},
		{"bytes", Bytes([]byte("ab")), PayloadBinary, true, "ab"},
		{"text", Text("hi"), PayloadText, false, "hi"},
		{"value string", Value("s"), PayloadText, false, "s"},
		{"value bytes", Value([]byte{1}), PayloadBinary, true, "\x01"},
		{"value map", Value(map[string]int{"x": 1}), PayloadStructured, false, ""},
		{"value payload", Value(Text("t")), PayloadText, false, "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.p.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.p.Kind(), tt.kind)
			}
			if tt.p.IsBinary() != tt.binary {
				t.Errorf("IsBinary() = %v", tt.p.IsBinary())
			}
			if tt.p.IsZero() != (tt.kind == PayloadNone) {
				t.Errorf("IsZero() = %v", tt.p.IsZero())
			}
			if tt.p.String() != tt.text {
				t.Errorf("String() = %q, want %q", tt.p.String(), tt.text)
			}
		})
	}
}

func TestPayloadResolve(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{42, "42"},
		{1.5, "1.5"},
		{false, "false"},
		{nil, "null"},
		{map[string]any{"x": 1}, `{"x":1}`},
		{[]int{1, 2}, "[1,2]"},
		{map[string]string{"h": "<a&b>"}, `{"h":"<a&b>"}`},
	}

	for _, tt := range tests {
		p, err := Value(tt.value).Resolve()
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", tt.value, err)
		}
		if p.Kind() != PayloadText || p.String() != tt.want {
			t.Errorf("Resolve(%v) = %q (%v), want %q", tt.value, p.String(), p.Kind(), tt.want)
		}
	}

	text := Text("keep")
	if p, _ := text.Resolve(); p.String() != "keep" {
		t.Error("Resolve changed a text payload")
	}

	if _, err := Value(make(chan int)).Resolve(); err == nil {
		t.Error("Resolve of an unserializable value should fail")
	}
}

func TestPayloadJSON(t *testing.T) {
	for _, tt := range []struct {
		p    Payload
		want string
	}{
		{Payload{}, "null"},
		{Text("a"), `"a"`},
		{Bytes([]byte("a")), `"YQ=="`},
		{Value(map[string]int{"n": 2}), `{"n":2}`},
	} {
		b, err := json.Marshal(tt.p)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal = %s, want %s", b, tt.want)
		}
	}

	var p Payload
	if err := json.Unmarshal([]byte(`"text"`), &p); err != nil || p.Kind() != PayloadText {
		t.Errorf("Unmarshal string = %v, %v", p.Kind(), err)
	}
	if err := json.Unmarshal([]byte(`[1]`), &p); err != nil || p.Kind() != PayloadStructured {
		t.Errorf("Unmarshal array = %v, %v", p.Kind(), err)
	}
	if err := json.Unmarshal([]byte(`null`), &p); err != nil || !p.IsZero() {
		t.Errorf("Unmarshal null = %v, %v", p.Kind(), err)
	}
}

func TestPartsTotal(t *testing.T) {
	var nilParts *Parts
	if _, ok := nilParts.Total(); ok {
		t.Error("nil Parts reported a total")
	}
	if _, ok := (&Parts{Index: 3}).Total(); ok {
		t.Error("non-terminal Parts reported a total")
	}
	count := 4
	if n, ok := (&Parts{Index: 3, Count: &count}).Total(); !ok || n != 4 {
		t.Errorf("Total() = %d, %v; want 4, true", n, ok)
	}
}

func TestOutputRecordJSON(t *testing.T) {
	rec := OutputRecord{Filename: "f", Topic: "t", Error: errors.New("boom")}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"payload":null,"filename":"f","topic":"t","error":"boom"}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}
}
