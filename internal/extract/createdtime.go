package extract

import (
	"os"
	"time"
)

// CreatedTime returns the best available creation time for path in UTC:
// birth time where the platform records it, else the status-change time,
// else the modification time. A failed stat yields the Unix epoch.
func CreatedTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return statCreatedTime(info).UTC()
}
