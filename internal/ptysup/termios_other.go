//go:build !linux

package ptysup

import "os"

// writeSilentPlatform falls back to a plain write on platforms where the
// Linux-specific termios ioctls aren't available.
func writeSilentPlatform(file *os.File, data []byte) (int, error) {
	return file.Write(data)
}
