//go:build windows

package diskspace

import "golang.org/x/sys/windows"

func statfs(dir string) (free, total int64, err error) {
	pathPtr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return Unknown, Unknown, err
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return Unknown, Unknown, err
	}
	return int64(freeBytesAvailable), int64(totalBytes), nil
}
