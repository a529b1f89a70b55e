package scanner

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// stat(2) has no birth time on Linux, so it is read with statx. Filesystems
// that do not report one fall back to the modification time. The
// status-change time is never used: every rename resets it.
func fileTimes(path string, info os.FileInfo) (created, accessed time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return birthTime(path, info.ModTime()), time.Unix(st.Atim.Unix())
}

func birthTime(path string, fallback time.Time) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return fallback
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
