package staging

import (
	"errors"
	"os"
	"syscall"
)

// isCrossDeviceError reports whether err is the OS's EXDEV, returned by
// rename(2) when src and dst live on different filesystems.
func isCrossDeviceError(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		err = linkErr.Err
	}
	errno, ok := err.(syscall.Errno)
	return ok && errno == syscall.EXDEV
}
