package extract

import (
	"os"
	"syscall"
	"time"
)

// linux does not expose birth time through stat(2); ctime is the closest stable value.
func statCreatedTime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
}
