//go:build !linux && !darwin

package scanner

import (
	"os"
	"time"
)

func createdTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}
