//go:build !unix

package file

import (
	"os"

	"github.com/grokify/iconvfile"
)

const identitySupported = false

func fileID(os.FileInfo) iconvfile.FileID {
	return iconvfile.FileID{}
}
