//go:build !linux

package wickfs

import (
	"os"
	"time"
)

func changeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
