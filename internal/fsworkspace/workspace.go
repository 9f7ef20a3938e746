// Package fsworkspace enforces path admission for subscriber-supplied
// filesystem paths: listing, directory creation, and upload all resolve
// under the user's home directory or /tmp (spec §6 "Path admission").
package fsworkspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrPathTraversal = errors.New("fsworkspace: path escapes admitted roots")
	ErrNotFound      = errors.New("fsworkspace: file or directory not found")
)

// FileInfo describes one filesystem entry for a directory_listing reply.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	IsDir   bool
	ModTime time.Time
	Mode    string
}

// Workspace resolves subscriber-supplied paths against the admitted root
// set: the user's home directory and the platform temp directory.
type Workspace struct {
	roots []string
}

// New constructs a Workspace admitting home and the OS temp directory.
func New(home string) *Workspace {
	roots := []string{resolveRoot(home), resolveRoot(os.TempDir())}
	return &Workspace{roots: roots}
}

func resolveRoot(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	abs, _ := filepath.Abs(path)
	return abs
}

// resolvePath rejects any path containing ".." outright, then requires the
// canonicalized result (symlinks resolved) to lie within one of the
// admitted roots. For a path that doesn't exist yet, its parent directory
// is checked instead, so new files can still be created.
func (w *Workspace) resolvePath(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", ErrPathTraversal
	}

	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(w.roots[0], cleaned)
	}

	resolved, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			parent := filepath.Dir(cleaned)
			resolvedParent, perr := filepath.EvalSymlinks(parent)
			if perr != nil {
				resolvedParent, perr = filepath.Abs(parent)
				if perr != nil {
					return "", perr
				}
			}
			if !w.within(resolvedParent) {
				return "", ErrPathTraversal
			}
			return filepath.Join(resolvedParent, filepath.Base(cleaned)), nil
		}
		return "", err
	}

	if !w.within(resolved) {
		return "", ErrPathTraversal
	}
	return resolved, nil
}

func (w *Workspace) within(path string) bool {
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// List returns the entries of a subscriber-supplied directory path.
func (w *Workspace) List(path string) ([]FileInfo, error) {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, toFileInfo(filepath.Join(path, e.Name()), info))
	}
	return out, nil
}

// Mkdir creates a directory (and its parents) at a subscriber-supplied path.
func (w *Workspace) Mkdir(path string) error {
	resolved, err := w.resolvePath(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(resolved, 0o755)
}

func toFileInfo(relPath string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Name:    info.Name(),
		Path:    relPath,
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().String(),
	}
}
