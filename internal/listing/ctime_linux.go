package listing

import (
	"io/fs"
	"syscall"
	"time"
)

// createdAt uses the inode change time, the closest thing Linux exposes
// through stat(2) to a creation time.
func createdAt(fi fs.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	}
	return fi.ModTime()
}
