//go:build !linux && !darwin && !freebsd

package extract

import (
	"os"
	"time"
)

func statCreatedTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
