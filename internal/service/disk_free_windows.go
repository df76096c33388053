//go:build windows

package service

import "golang.org/x/sys/windows"

func freeDiskSpace(dir string) int64 {
	ptr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0
	}

	var available, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &available, &total, &totalFree); err != nil {
		return 0
	}
	return int64(available)
}
