//go:build !windows

package grantcrypto

import "golang.org/x/sys/unix"

// mlock pins the pages backing data so they cannot be swapped out.
// Reports whether the lock took; failure is not an error, the caller
// just loses the swap guarantee.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

func munlock(data []byte) {
	if len(data) > 0 {
		_ = unix.Munlock(data)
	}
}
