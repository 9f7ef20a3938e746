//go:build !linux

package local

import "syscall"

// setReuseAddr is a no-op on platforms without a SO_REUSEPORT equivalent
// wired here; the bind-retry loop still covers quick-restart races.
func setReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
