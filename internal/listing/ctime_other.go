//go:build !linux

package listing

import (
	"io/fs"
	"time"
)

func createdAt(fi fs.FileInfo) time.Time { return fi.ModTime() }
