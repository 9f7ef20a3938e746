package fsworkspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// maxUploadBytes is the upload size constraint from spec §6.
const maxUploadBytes = 10 * 1024 * 1024

var allowedUploadExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".pdf": {}, ".txt": {}, ".md": {}, ".json": {}, ".log": {},
}

var (
	ErrUploadTooLarge     = errors.New("fsworkspace: upload exceeds 10 MiB")
	ErrUploadExtension    = errors.New("fsworkspace: upload extension not allowed")
	ErrUploadFilenamePath = errors.New("fsworkspace: filename must not contain path separators or \"..\"")
)

// ValidateUpload checks an inbound upload against spec §6's constraints:
// size, extension, and filename shape (no path separators or "..").
func ValidateUpload(filename string, size int) error {
	if size > maxUploadBytes {
		return ErrUploadTooLarge
	}
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return ErrUploadFilenamePath
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		return ErrUploadExtension
	}
	return nil
}

// StageUpload writes validated upload content into a per-process temp
// subdirectory, returning the path written.
func StageUpload(tempSubdir, filename string, data []byte) (string, error) {
	if err := ValidateUpload(filename, len(data)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(tempSubdir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(tempSubdir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
