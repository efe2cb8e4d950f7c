// Package charset converts between named text encodings and Go strings.
//
// Names are resolved the way iconv-style tools resolve them: lookups are
// case-insensitive and ignore punctuation, so "UTF-8", "utf8" and "Utf_8"
// are the same charset. Common short names (latin1, win1252, ucs2, ...) are
// recognized first, then WHATWG labels, then IANA names.
//
// Decoding replaces invalid input with U+FFFD. Encoding replaces runes the
// target charset cannot represent with the charset's substitution byte.
package charset

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Default is the charset used when none is configured.
const Default = "utf8"

// ErrUnsupported is returned for charset names that cannot be resolved.
var ErrUnsupported = errors.New("charset: unsupported")

type codec struct {
	decode encoding.Encoding
	encode encoding.Encoding
}

func same(e encoding.Encoding) codec { return codec{decode: e, encode: e} }

// aliases are keyed by canonical name (see canonical). UTF-8 input may
// start with a BOM; it is dropped on decode and never written.
var aliases = map[string]codec{
	"utf8":        {decode: xunicode.UTF8BOM, encode: xunicode.UTF8},
	"ucs2":        same(xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)),
	"utf16le":     same(xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)),
	"utf16be":     same(xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM)),
	"utf16":       same(xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM)),
	"latin1":      same(charmap.ISO8859_1),
	"binary":      same(charmap.ISO8859_1),
	"iso88591":    same(charmap.ISO8859_1),
	"l1":          same(charmap.ISO8859_1),
	"latin2":      same(charmap.ISO8859_2),
	"iso88592":    same(charmap.ISO8859_2),
	"iso885915":   same(charmap.ISO8859_15),
	"latin9":      same(charmap.ISO8859_15),
	"win1250":     same(charmap.Windows1250),
	"cp1250":      same(charmap.Windows1250),
	"win1251":     same(charmap.Windows1251),
	"cp1251":      same(charmap.Windows1251),
	"win1252":     same(charmap.Windows1252),
	"cp1252":      same(charmap.Windows1252),
	"windows1252": same(charmap.Windows1252),
	"cp437":       same(charmap.CodePage437),
	"cp850":       same(charmap.CodePage850),
	"cp866":       same(charmap.CodePage866),
	"koi8r":       same(charmap.KOI8R),
	"koi8u":       same(charmap.KOI8U),
	"macintosh":   same(charmap.Macintosh),
}

// canonical lowercases name and drops everything but letters and digits.
func canonical(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lookup(name string) (codec, error) {
	if name == "" {
		name = Default
	}
	if c, ok := aliases[canonical(name)]; ok {
		return c, nil
	}
	label := strings.ToLower(strings.TrimSpace(name))
	if e, err := htmlindex.Get(label); err == nil && e != nil {
		return same(e), nil
	}
	// ianaindex returns a nil Encoding for names it knows but cannot encode.
	if e, err := ianaindex.IANA.Encoding(label); err == nil && e != nil {
		return same(e), nil
	}
	return codec{}, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// Supports reports whether name resolves to a known charset.
// The empty name means Default and is always supported.
func Supports(name string) bool {
	_, err := lookup(name)
	return err == nil
}

// Decode converts b from the named charset to a string.
func Decode(b []byte, name string) (string, error) {
	c, err := lookup(name)
	if err != nil {
		return "", err
	}
	out, err := c.decode.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("charset: decoding %s: %w", name, err)
	}
	return string(out), nil
}

// Encode converts s to bytes in the named charset.
func Encode(s string, name string) ([]byte, error) {
	c, err := lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(c.encode.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("charset: encoding %s: %w", name, err)
	}
	return out, nil
}
