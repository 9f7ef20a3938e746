package fsworkspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath_RejectsDotDot(t *testing.T) {
	home := t.TempDir()
	w := New(home)
	_, err := w.resolvePath("../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestResolvePath_RejectsSymlinkEscape(t *testing.T) {
	home := t.TempDir()
	// The OS temp directory is itself an admitted root, so the link target
	// must lie outside both home and the temp directory.
	outside := "/"
	require.NoError(t, os.Symlink(outside, filepath.Join(home, "escape")))

	w := New(home)
	_, err := w.resolvePath(filepath.Join(home, "escape"))
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestResolvePath_AllowsPathWithinHome(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(home, "proj"), 0o755))

	w := New(home)
	resolved, err := w.resolvePath(filepath.Join(home, "proj"))
	require.NoError(t, err)
	assert.True(t, w.within(resolved))
}

func TestValidateUpload(t *testing.T) {
	assert.NoError(t, ValidateUpload("diagram.png", 100))
	assert.ErrorIs(t, ValidateUpload("huge.png", maxUploadBytes+1), ErrUploadTooLarge)
	assert.ErrorIs(t, ValidateUpload("../escape.png", 10), ErrUploadFilenamePath)
	assert.ErrorIs(t, ValidateUpload("binary.exe", 10), ErrUploadExtension)
}
