//go:build unix

package file

import (
	"os"
	"syscall"

	"github.com/grokify/iconvfile"
)

const identitySupported = true

// fileID extracts device and inode from file info.
func fileID(info os.FileInfo) iconvfile.FileID {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return iconvfile.FileID{}
	}
	return iconvfile.FileID{Dev: uint64(stat.Dev), Ino: uint64(stat.Ino)} //nolint:unconvert // Dev and Ino widths differ by platform
}
