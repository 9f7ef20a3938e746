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

// geminiTranscript is the whole-file JSON shape Gemini CLI rewrites on
// every turn: a flat array of messages, each carrying an id unique within
// the file.
type geminiTranscript struct {
	Messages []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Tool    string `json:"tool"`
	Args    json.RawMessage `json:"args"`
}

// GeminiTailer tails a whole-file JSON transcript rewritten in full on
// every update. It remembers the message count last observed and, on
// modification, emits Activities only for messages beyond that count; a
// dedup set guards against re-emission if the file is rewritten without
// appending (spec §4.C format 2).
type GeminiTailer struct {
	Path string

	mu          sync.Mutex
	lastCount   int
	dedup       *dedupSet
	closeOnce   sync.Once
	stopCh      chan struct{}
}

// NewGeminiTailer records the transcript's current message count so only
// future messages are emitted once Run starts.
func NewGeminiTailer(path string) *GeminiTailer {
	t := &GeminiTailer{Path: path, dedup: newDedupSet(), stopCh: make(chan struct{})}
	if tr, err := readGeminiTranscript(path); err == nil {
		t.lastCount = len(tr.Messages)
	}
	return t
}

func (t *GeminiTailer) Run(emit func(model.Activity)) error {
	dir := filepath.Dir(t.Path)
	if err := waitForParent(dir, t.stopCh); err != nil {
		return err
	}

	w, err := newWatcher(dir, false)
	if err != nil {
		return err
	}
	defer w.Close()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-t.stopCh:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.Path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !pending {
				debounce.Reset(200 * time.Millisecond)
				pending = true
			}
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		case <-debounce.C:
			pending = false
			t.readAndEmit(emit)
		}
	}
}

func (t *GeminiTailer) Close() error {
	t.closeOnce.Do(func() { close(t.stopCh) })
	return nil
}

func (t *GeminiTailer) readAndEmit(emit func(model.Activity)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, err := readGeminiTranscript(t.Path)
	if err != nil {
		return
	}
	if len(tr.Messages) <= t.lastCount {
		// File was rewritten without growing (or truncated); nothing new.
		t.lastCount = len(tr.Messages)
		return
	}

	now := time.Now()
	for _, msg := range tr.Messages[t.lastCount:] {
		if msg.ID == "" {
			// Older Gemini CLI releases omit a message id; synthesize a
			// sortable one. A fresh id is made on every read, so dedup does
			// not recognise an id-less message seen on an earlier rewrite.
			msg.ID = ulid.Make().String()
		}
		if t.dedup.SeenBefore(msg.ID) {
			continue
		}
		emit(geminiActivity(msg, now))
	}
	t.lastCount = len(tr.Messages)
}

func geminiActivity(msg geminiMessage, now time.Time) model.Activity {
	base := model.Activity{
		UUID: msg.ID, Source: model.SourceGemini, Timestamp: now,
	}
	switch msg.Type {
	case "tool_call":
		base.Tag = model.ActivityToolStart
		base.ToolName = msg.Tool
		base.ToolParams = msg.Args
	case "tool_result":
		base.Tag = model.ActivityToolResult
		base.ToolName = msg.Tool
		base.Content = msg.Content
	case "thought":
		base.Tag = model.ActivityThinking
		base.Content = msg.Content
	default:
		if msg.Role == "user" {
			base.Tag = model.ActivityUserPrompt
		} else {
			base.Tag = model.ActivityText
		}
		base.Content = msg.Content
	}
	return base
}

func readGeminiTranscript(path string) (*geminiTranscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tr geminiTranscript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
