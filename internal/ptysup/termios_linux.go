//go:build linux

package ptysup

import (
	"os"

	"golang.org/x/sys/unix"
)

func writeSilentPlatform(file *os.File, data []byte) (int, error) {
	fd := int(file.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return file.Write(data)
	}
	original := *termios
	silenced := *termios
	silenced.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &silenced); err != nil {
		return file.Write(data)
	}

	n, writeErr := file.Write(data)

	_ = unix.IoctlSetTermios(fd, unix.TCSETS, &original)
	return n, writeErr
}
