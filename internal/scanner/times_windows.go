package scanner

import (
	"os"
	"syscall"
	"time"
)

func fileTimes(_ string, info os.FileInfo) (created, accessed time.Time) {
	d, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(0, d.CreationTime.Nanoseconds()), time.Unix(0, d.LastAccessTime.Nanoseconds())
}
