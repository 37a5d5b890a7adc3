//go:build windows

package grantcrypto

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mlock pins the pages backing data via VirtualLock. Reports whether the
// lock took; failure is not an error, the caller just loses the swap
// guarantee.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return windows.VirtualLock(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data))) == nil
}

func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = windows.VirtualUnlock(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}
