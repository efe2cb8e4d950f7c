package iconvfile

// Features describes the capabilities of a backend.
// The write serializer consults it before choosing a write path.
type Features struct {
	// Append indicates the backend can open files in append mode.
	// Object stores cannot; append requests fail with ErrNotSupported.
	Append bool

	// Identity indicates Stat reports a stable FileID, which enables
	// rotation detection for long-lived append handles.
	Identity bool

	// Mkdir indicates directories must exist before files are created in them.
	// Object stores report false and treat Mkdir as a no-op.
	Mkdir bool

	// RangeRead indicates WithOffset and WithLimit are honored.
	RangeRead bool
}

// CanDetectRotation reports whether append handles to this backend can be
// checked for rotation between writes.
func (f Features) CanDetectRotation() bool {
	return f.Append && f.Identity
}
