package iconvfile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind tags the representation held by a Payload.
type PayloadKind int

const (
	// PayloadNone is an absent payload. Writes treat it as a no-op.
	PayloadNone PayloadKind = iota
	// PayloadBinary holds raw bytes that bypass charset encoding.
	PayloadBinary
	// PayloadText holds a string that is charset-encoded before writing.
	PayloadText
	// PayloadStructured holds an arbitrary value serialized to text on write.
	PayloadStructured
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadBinary:
		return "binary"
	case PayloadText:
		return "text"
	case PayloadStructured:
		return "structured"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// Payload is a tagged union over {none, binary, text, structured}.
// The zero value is an absent payload.
type Payload struct {
	kind  PayloadKind
	data  []byte
	text  string
	value any
}

// Bytes returns a binary payload.
func Bytes(b []byte) Payload {
	return Payload{kind: PayloadBinary, data: b}
}

// Text returns a text payload.
func Text(s string) Payload {
	return Payload{kind: PayloadText, text: s}
}

// Value returns a structured payload. []byte and string values are
// stored as binary and text payloads respectively.
func Value(v any) Payload {
	switch t := v.(type) {
	case []byte:
		return Bytes(t)
	case string:
		return Text(t)
	case Payload:
		return t
	}
	return Payload{kind: PayloadStructured, value: v}
}

// Kind returns the payload's tag.
func (p Payload) Kind() PayloadKind { return p.kind }

// IsZero reports whether the payload is absent.
func (p Payload) IsZero() bool { return p.kind == PayloadNone }

// IsBinary reports whether the payload holds raw bytes.
func (p Payload) IsBinary() bool { return p.kind == PayloadBinary }

// Data returns the raw bytes of a binary payload, or nil.
func (p Payload) Data() []byte { return p.data }

// String returns the text of a text payload. Binary payloads are returned
// as their bytes interpreted as a string; other kinds return "".
func (p Payload) String() string {
	switch p.kind {
	case PayloadText:
		return p.text
	case PayloadBinary:
		return string(p.data)
	default:
		return ""
	}
}

// Resolve collapses a structured payload into text: strings stay as they
// are, and everything else (numbers, booleans, objects, nil) becomes its
// JSON text. Other kinds are returned unchanged.
func (p Payload) Resolve() (Payload, error) {
	if p.kind != PayloadStructured {
		return p, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p.value); err != nil {
		return Payload{}, fmt.Errorf("serializing payload: %w", err)
	}
	return Text(string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))), nil
}

// MarshalJSON renders text as a JSON string, binary as base64 and
// structured values as themselves. Absent payloads render as null.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case PayloadBinary:
		return json.Marshal(p.data)
	case PayloadText:
		return json.Marshal(p.text)
	case PayloadStructured:
		return json.Marshal(p.value)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes strings as text, null as absent and anything else
// as a structured value. Binary payloads have no JSON form.
func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = Payload{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Text(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Payload{kind: PayloadStructured, value: v}
	return nil
}

// Request is one unit of work for the read or write pipeline.
type Request struct {
	// Filename is used when the pipeline has no configured filename.
	Filename string `json:"filename,omitempty"`

	// Payload is the data to write. Reads ignore it.
	Payload Payload `json:"payload"`

	// ID is an opaque correlation id copied to every output record.
	ID string `json:"_msgid,omitempty"`

	// Topic is passed through unchanged.
	Topic string `json:"topic,omitempty"`
}

// PartType is the logical payload kind of a split sequence.
type PartType string

const (
	PartString PartType = "string"
	PartBuffer PartType = "buffer"
)

// Parts describes a record's position in a split sequence.
type Parts struct {
	// Index is the zero-based position in the sequence.
	Index int `json:"index"`

	// Count is the total number of records. Only the terminal record has it.
	Count *int `json:"count,omitempty"`

	// Ch is the separator used for splitting: "\n" for lines, "" for chunks.
	Ch string `json:"ch"`

	// Type is "string" or "buffer".
	Type PartType `json:"type"`

	// ID is the correlation id of the triggering Request.
	ID string `json:"id"`
}

// Total returns Count and whether this is the terminal record.
func (p *Parts) Total() (int, bool) {
	if p == nil || p.Count == nil {
		return 0, false
	}
	return *p.Count, true
}

// OutputRecord is one record emitted by a pipeline.
type OutputRecord struct {
	Payload  Payload `json:"payload"`
	Filename string  `json:"filename,omitempty"`
	Topic    string  `json:"topic,omitempty"`
	Error    error   `json:"-"`
	Parts    *Parts  `json:"parts,omitempty"`
}

// MarshalJSON adds the error text when present.
func (r OutputRecord) MarshalJSON() ([]byte, error) {
	type plain OutputRecord
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}
