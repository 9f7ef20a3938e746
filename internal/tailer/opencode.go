package tailer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/hyperstream/sessiond/internal/model"
)

// opencodePart is the per-message-part file content under PartRoot.
type opencodePart struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // "text" | "reasoning" | "tool"
	Text  string `json:"text"`
	Tool  string `json:"tool"`
	State string `json:"state"` // "pending" | "completed", for tool parts
	Input json.RawMessage `json:"input"`
	Output string `json:"output"`
}

// OpenCodeTailer watches OpenCode's distributed session-file tree: a
// per-session message root (session metadata, watched non-recursively) and
// a part root holding one file per message part (watched recursively),
// per spec §4.C format 3.
type OpenCodeTailer struct {
	SessionID   string
	MessageRoot string
	PartRoot    string

	dedup     *dedupSet
	mu        sync.Mutex
	closeOnce sync.Once
	stopCh    chan struct{}
}

// NewOpenCodeTailer records the current directory membership of both roots
// so only files created after this point produce Activities.
func NewOpenCodeTailer(sessionID, messageRoot, partRoot string) *OpenCodeTailer {
	t := &OpenCodeTailer{
		SessionID: sessionID, MessageRoot: messageRoot, PartRoot: partRoot,
		dedup: newDedupSet(), stopCh: make(chan struct{}),
	}
	t.snapshotExisting()
	return t
}

// snapshotExisting marks every entry directly under either root as seen
// (not recursively). Run reacts only to creations, so files already deeper
// in the part tree produce no Activities either.
func (t *OpenCodeTailer) snapshotExisting() {
	for _, root := range []string{t.MessageRoot, t.PartRoot} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			t.dedup.SeenBefore(e.Name())
		}
	}
}

func (t *OpenCodeTailer) Run(emit func(model.Activity)) error {
	if err := waitForParent(t.PartRoot, t.stopCh); err != nil {
		return err
	}
	if err := waitForParent(t.MessageRoot, t.stopCh); err != nil {
		return err
	}

	partWatcher, err := newWatcher(t.PartRoot, true)
	if err != nil {
		return err
	}
	defer partWatcher.Close()

	msgWatcher, err := newWatcher(t.MessageRoot, false)
	if err != nil {
		return err
	}
	defer msgWatcher.Close()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	var queued []string

	flush := func() {
		for _, path := range queued {
			t.emitFromPart(path, emit)
		}
		queued = nil
	}

	for {
		select {
		case <-t.stopCh:
			return nil
		case ev, ok := <-partWatcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
				// A new per-message directory: watch it too, so its part
				// files are seen.
				_ = partWatcher.Add(ev.Name)
				continue
			}
			queued = append(queued, ev.Name)
			debounce.Reset(200 * time.Millisecond)
		case ev, ok := <-msgWatcher.Events:
			if !ok {
				return nil
			}
			_ = ev // session metadata changes don't themselves emit Activities
		case _, ok := <-partWatcher.Errors:
			if !ok {
				return nil
			}
		case _, ok := <-msgWatcher.Errors:
			if !ok {
				return nil
			}
		case <-debounce.C:
			flush()
		}
	}
}

func (t *OpenCodeTailer) Close() error {
	t.closeOnce.Do(func() { close(t.stopCh) })
	return nil
}

func (t *OpenCodeTailer) emitFromPart(path string, emit func(model.Activity)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	name := filepath.Base(path)
	if t.dedup.SeenBefore(name) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var part opencodePart
	if err := json.Unmarshal(data, &part); err != nil {
		return
	}
	if part.ID == "" {
		part.ID = ulid.Make().String()
	}

	now := time.Now()
	base := model.Activity{UUID: part.ID, Source: model.SourceOpenCode, Timestamp: now}

	switch part.Type {
	case "text":
		base.Tag = model.ActivityText
		base.Content = part.Text
	case "reasoning":
		base.Tag = model.ActivityThinking
		base.Content = part.Text
	case "tool":
		base.ToolName = part.Tool
		base.ToolParams = part.Input
		if part.State == "completed" {
			base.Tag = model.ActivityToolResult
			base.Content = part.Output
		} else {
			base.Tag = model.ActivityToolStart
		}
	default:
		return
	}

	emit(base)
}
