package charset

import (
	"errors"

	"golang.org/x/text/transform"
)

// Decoder decodes a byte stream delivered in arbitrary chunks. A multi-byte
// sequence cut by a chunk boundary is held back until the next chunk, so
// concatenating the results of every Write plus Flush equals decoding the
// whole stream at once.
type Decoder struct {
	t       transform.Transformer
	pending []byte
	buf     []byte
}

// NewDecoder returns a streaming decoder for the named charset.
func NewDecoder(name string) (*Decoder, error) {
	c, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &Decoder{t: c.decode.NewDecoder()}, nil
}

// Write decodes chunk and returns the text completed so far.
func (d *Decoder) Write(chunk []byte) (string, error) {
	return d.run(chunk, false)
}

// Flush decodes whatever is still held back. Incomplete trailing
// sequences decode to U+FFFD.
func (d *Decoder) Flush() (string, error) {
	return d.run(nil, true)
}

func (d *Decoder) run(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if need := 2*len(src) + 16; cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	dst := d.buf[:cap(d.buf)]

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			if len(src) == 0 || nSrc == 0 {
				if !atEOF && len(src) > 0 {
					d.pending = append([]byte(nil), src...)
				}
				return string(out), nil
			}
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc) && !atEOF:
			d.pending = append([]byte(nil), src...)
			return string(out), nil
		default:
			return string(out), err
		}
	}
}
