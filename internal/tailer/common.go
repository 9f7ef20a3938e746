// Package tailer produces canonical Activity events by observing each
// agent's native on-disk conversation log, per the three log formats
// described in the system's design (line-delimited JSON, whole-file JSON,
// and a distributed file tree).
package tailer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/hyperstream/sessiond/internal/model"
)

// dedupCapacity bounds the dedup set's memory for long-running sessions;
// the oldest-seen ids are evicted first once the cap is reached.
const dedupCapacity = 20000

// waitForParent polls for dir's existence up to 60s (200ms granularity),
// because agents typically create their log lazily after the subprocess
// starts. Returns an error if the directory never appears.
func waitForParent(dir string, stop <-chan struct{}) error {
	deadline := time.Now().Add(60 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(dir); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return os.ErrNotExist
		}
		select {
		case <-stop:
			return errStopped
		case <-ticker.C:
		}
	}
}

var errStopped = errStoppedErr{}

type errStoppedErr struct{}

func (errStoppedErr) Error() string { return "tailer: stopped before parent directory appeared" }

// Tailer is the common interface every format-specific implementation
// satisfies. Emit is called once per produced Activity; Close stops the
// underlying watch cleanly.
type Tailer interface {
	Run(emit func(model.Activity)) error
	Close() error
}

// dedupSet is a bounded in-memory set of source-native ids used to
// guarantee idempotence per spec §4.C(ii); it's an LRU rather than an
// unbounded map so a session tailed for days doesn't grow forever.
type dedupSet struct {
	cache *lru.Cache[string, struct{}]
}

func newDedupSet() *dedupSet {
	c, _ := lru.New[string, struct{}](dedupCapacity)
	return &dedupSet{cache: c}
}

// SeenBefore records id and reports whether it was already present.
func (d *dedupSet) SeenBefore(id string) bool {
	if id == "" {
		return false
	}
	if d.cache.Contains(id) {
		return true
	}
	d.cache.Add(id, struct{}{})
	return false
}

// newWatcher creates an fsnotify.Watcher and logs+swallows a failed Add,
// matching the defensive pattern in the pack's tail-claude reference
// watcher: a missing path at watch time is not fatal, later events from
// the parent directory still arrive once the file is created.
func newWatcher(path string, recursive bool) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if recursive {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if addErr := w.Add(p); addErr != nil {
					log.Debug().Err(addErr).Str("path", p).Msg("tailer: watch add failed")
				}
			}
			return nil
		})
	} else {
		err = w.Add(path)
	}
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("tailer: initial watch add failed")
	}
	return w, nil
}
