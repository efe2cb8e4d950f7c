package iconvfile

import (
	"fmt"
	"time"
)

// FileID is the filesystem identity of a file: device and inode on Unix,
// or any backend-specific pair that changes when the file at a path is
// replaced. The zero FileID means the backend cannot report identity.
type FileID struct {
	Dev uint64
	Ino uint64
}

// IsZero reports whether the identity is unknown.
func (id FileID) IsZero() bool {
	return id == FileID{}
}

func (id FileID) String() string {
	if id.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%d:%d", id.Dev, id.Ino)
}

// ObjectInfo provides metadata about a stored file.
type ObjectInfo interface {
	// Path returns the path as given to Stat.
	Path() string

	// Size returns the size in bytes, or -1 if unknown.
	Size() int64

	// ModTime returns the last modification time, or zero if unknown.
	ModTime() time.Time

	// IsDir returns true if the path is a directory.
	IsDir() bool

	// ID returns the filesystem identity of the file.
	ID() FileID
}

// BasicObjectInfo is a simple implementation of ObjectInfo for backends.
type BasicObjectInfo struct {
	ObjectPath    string
	ObjectSize    int64
	ObjectModTime time.Time
	ObjectIsDir   bool
	ObjectID      FileID
}

func (o *BasicObjectInfo) Path() string       { return o.ObjectPath }
func (o *BasicObjectInfo) Size() int64        { return o.ObjectSize }
func (o *BasicObjectInfo) ModTime() time.Time { return o.ObjectModTime }
func (o *BasicObjectInfo) IsDir() bool        { return o.ObjectIsDir }
func (o *BasicObjectInfo) ID() FileID         { return o.ObjectID }

var _ ObjectInfo = (*BasicObjectInfo)(nil)
