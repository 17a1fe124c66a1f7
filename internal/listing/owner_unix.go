//go:build unix

package listing

import (
	"io/fs"
	"os/user"
	"strconv"
	"syscall"
)

func ownerOf(fi fs.FileInfo) string {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return "-"
	}
	uid := strconv.FormatUint(uint64(st.Uid), 10)
	gid := strconv.FormatUint(uint64(st.Gid), 10)
	u, uerr := user.LookupId(uid)
	g, gerr := user.LookupGroupId(gid)
	if uerr != nil || gerr != nil {
		return uid + ":" + gid
	}
	return u.Username + ":" + g.Name
}
