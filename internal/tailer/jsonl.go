package tailer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyperstream/sessiond/internal/model"
)

// jsonlRecord is the subset of a Claude/Codex transcript line this tailer
// understands. Agent transcripts carry more fields; unknown ones are
// ignored rather than erroring, since new record kinds appear over agent
// CLI releases.
type jsonlRecord struct {
	Type    string `json:"type"`
	UUID    string `json:"uuid"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
			// tool_result fields
			ToolUseID string          `json:"tool_use_id"`
			Content   json.RawMessage `json:"content"`
		} `json:"content"`
	} `json:"message"`
}

// pendingTool records a tool_start awaiting its matching tool_result,
// keyed by the tool-use id captured from the transcript.
type pendingTool struct {
	name string
	path string
}

// JSONLTailer tails a line-delimited JSON transcript (Claude or Codex
// format). Source distinguishes the two for Activity tagging; both share
// the same on-disk shape.
type JSONLTailer struct {
	Path   string
	Source model.ActivitySource

	offset int64
	dedup  *dedupSet
	mu     sync.Mutex
	pending map[string]pendingTool

	closeOnce sync.Once
	stopCh    chan struct{}
}

// NewClaudeTailer builds a tailer for Claude Code's line-delimited JSON
// transcript.
func NewClaudeTailer(path string) *JSONLTailer {
	return NewJSONLTailer(path, model.SourceJSONL)
}

// NewJSONLTailer constructs a tailer that, once Run, only emits Activities
// for bytes appended after the file's size at construction time (or after
// the file is created, if it doesn't exist yet).
func NewJSONLTailer(path string, source model.ActivitySource) *JSONLTailer {
	offset := int64(0)
	if fi, err := os.Stat(path); err == nil {
		offset = fi.Size()
	}
	return &JSONLTailer{
		Path:    path,
		Source:  source,
		offset:  offset,
		dedup:   newDedupSet(),
		pending: make(map[string]pendingTool),
		stopCh:  make(chan struct{}),
	}
}

// Run watches Path for appends and emits Activities via emit. Blocks until
// Close is called or the event bus is disconnected.
func (t *JSONLTailer) Run(emit func(model.Activity)) error {
	dir := filepath.Dir(t.Path)
	if err := waitForParent(dir, t.stopCh); err != nil {
		return err
	}

	w, err := newWatcher(dir, false)
	if err != nil {
		return err
	}
	defer w.Close()

	t.readAndEmit(emit)

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	debouncePending := false

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
			if !debouncePending {
				debounce.Reset(200 * time.Millisecond)
				debouncePending = true
			}
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		case <-debounce.C:
			debouncePending = false
			t.readAndEmit(emit)
		}
	}
}

// Close stops the tailer cleanly.
func (t *JSONLTailer) Close() error {
	t.closeOnce.Do(func() { close(t.stopCh) })
	return nil
}

func (t *JSONLTailer) readAndEmit(emit func(model.Activity)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.Path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 || (err != nil && len(bytes.TrimSpace(line)) == 0) {
			break
		}
		complete := err == nil
		if !complete {
			// Partial trailing line: leave it for the next read by not
			// advancing the offset past it.
			break
		}
		t.offset += int64(len(line))
		t.emitFromLine(line, emit)
		if err != nil {
			break
		}
	}
}

func (t *JSONLTailer) emitFromLine(line []byte, emit func(model.Activity)) {
	var rec jsonlRecord
	if err := json.Unmarshal(bytes.TrimSpace(line), &rec); err != nil {
		return
	}
	if t.dedup.SeenBefore(rec.UUID) {
		return
	}

	now := time.Now()
	for _, block := range rec.Message.Content {
		switch block.Type {
		case "text":
			emit(model.Activity{
				Tag: model.ActivityText, Content: block.Text,
				UUID: rec.UUID, Source: t.Source, Timestamp: now,
			})
		case "thinking":
			emit(model.Activity{
				Tag: model.ActivityThinking, Content: block.Text,
				UUID: rec.UUID, Source: t.Source, Timestamp: now,
			})
		case "tool_use":
			tag, path := classifyTool(block.Name, block.Input)
			t.pending[block.ID] = pendingTool{name: block.Name, path: path}
			content := toolUseContent(block.Name, block.Input)
			emit(model.Activity{
				Tag: tag, ToolName: block.Name, ToolParams: json.RawMessage(block.Input),
				Content: content, FilePath: path, UUID: rec.UUID, Source: t.Source, Timestamp: now,
			})
		case "tool_result":
			pt := t.pending[block.ToolUseID]
			delete(t.pending, block.ToolUseID)
			emit(model.Activity{
				Tag: model.ActivityToolResult, ToolName: pt.name,
				Content: string(block.Content), FilePath: pt.path,
				UUID: rec.UUID, Source: t.Source, Timestamp: now,
			})
		}
	}
}

// toolUseContent renders a human-legible content string for tool kinds
// that benefit from one: a unified diff for Edit/MultiEdit, and a parsed
// argv for Bash.
func toolUseContent(name string, input json.RawMessage) string {
	switch name {
	case "Edit", "MultiEdit":
		p := parseEditParams(input)
		return renderUnifiedDiff(p.OldString, p.NewString)
	case "Bash":
		var params struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal(input, &params)
		return strings.Join(splitBashArgv(params.Command), " ")
	default:
		return ""
	}
}

// classifyTool maps a raw tool_use block to a specialized Activity tag
// when the tool kind is recognizable, falling back to tool_start.
func classifyTool(name string, input json.RawMessage) (model.ActivityTag, string) {
	var params struct {
		FilePath  string `json:"file_path"`
		Command   string `json:"command"`
		OldString string `json:"old_string"`
	}
	_ = json.Unmarshal(input, &params)

	switch name {
	case "Read":
		return model.ActivityFileRead, params.FilePath
	case "Write":
		return model.ActivityFileWrite, params.FilePath
	case "Edit", "MultiEdit":
		return model.ActivityCodeDiff, params.FilePath
	case "Bash":
		return model.ActivityBashCommand, ""
	default:
		return model.ActivityToolStart, params.FilePath
	}
}
