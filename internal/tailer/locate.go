package tailer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperstream/sessiond/internal/agentkind"
)

// discoverTimeout bounds how long Locate waits for an agent's log
// directory to appear and be populated, matching waitForParent's budget.
const discoverTimeout = 60 * time.Second
const discoverPoll = 200 * time.Millisecond

// Locate derives kind's on-disk conversation log locator from the
// session's working directory and agent-assigned conversation id, per the
// three on-disk log layouts (spec §4.C, §9 "Log-file identity"):
//
//   - Claude: ~/.claude/projects/<dashed-working-dir>/<conversation-id>.jsonl.
//     Deterministic, since Claude names its transcript after the session id
//     sessiond itself assigns up front via --session-id.
//   - Codex: ~/.codex/sessions/YYYY/MM/DD/rollout-*.jsonl, a date-partitioned
//     directory whose exact filename Codex timestamps itself; Locate waits
//     for today's directory and returns its most recently modified rollout
//     file.
//   - Gemini: ~/.gemini/tmp/<sha256-of-working-dir>/chats/session-*.json,
//     the same discover-after-wait pattern once the hashed directory exists.
//   - OpenCode: rather than compute a project hash client-side (OpenCode's
//     own desktop watcher gives up on that and falls back to a scan),
//     Locate scans session/*/ under OpenCode's storage root for the most
//     recently modified session file and returns its session id as the
//     locator key.
//
// stop aborts an in-progress wait, for a session closed before its log
// ever appeared.
func Locate(kind agentkind.Kind, workingDir, conversationID string, stop <-chan struct{}) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch kind {
	case agentkind.Claude:
		dir := filepath.Join(home, ".claude", "projects", dashedPath(workingDir))
		return filepath.Join(dir, conversationID+".jsonl"), nil
	case agentkind.Codex:
		now := time.Now()
		dir := filepath.Join(home, ".codex", "sessions", now.Format("2006"), now.Format("01"), now.Format("02"))
		return discoverNewest(dir, "rollout-*.jsonl", stop)
	case agentkind.Gemini:
		sum := sha256.Sum256([]byte(absPath(workingDir)))
		dir := filepath.Join(home, ".gemini", "tmp", hex.EncodeToString(sum[:]), "chats")
		return discoverNewest(dir, "session-*.json", stop)
	case agentkind.OpenCode:
		return discoverOpenCodeSessionID(openCodeStorageDir(home), stop)
	default:
		return "", nil
	}
}

// NewTailer constructs the Tailer implementation for kind from the locator
// Locate produced, or nil for a kind with no log format (unknown/terminal).
func NewTailer(kind agentkind.Kind, locator, home string) Tailer {
	switch kind {
	case agentkind.Claude:
		return NewClaudeTailer(locator)
	case agentkind.Codex:
		return NewCodexTailer(locator)
	case agentkind.Gemini:
		return NewGeminiTailer(locator)
	case agentkind.OpenCode:
		storage := openCodeStorageDir(home)
		return NewOpenCodeTailer(locator,
			filepath.Join(storage, "message", locator),
			filepath.Join(storage, "part"))
	default:
		return nil
	}
}

func openCodeStorageDir(home string) string {
	return filepath.Join(home, ".local", "share", "opencode", "storage")
}

// dashedPath mirrors Claude Code's own encoding of a project's working
// directory into its projects/ subdirectory name: every path separator
// becomes a dash.
func dashedPath(workingDir string) string {
	return strings.ReplaceAll(absPath(workingDir), string(filepath.Separator), "-")
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// discoverNewest waits for dir to appear, then returns the most recently
// modified file in it matching pattern.
func discoverNewest(dir, pattern string, stop <-chan struct{}) (string, error) {
	if err := waitForParent(dir, stop); err != nil {
		return "", err
	}
	deadline := time.Now().Add(discoverTimeout)
	for {
		if path, ok := newestMatch(dir, pattern); ok {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", os.ErrNotExist
		}
		select {
		case <-stop:
			return "", errStopped
		case <-time.After(discoverPoll):
		}
	}
}

func newestMatch(dir, pattern string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		return modTime(matches[i]).After(modTime(matches[j]))
	})
	return matches[0], true
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

// openCodeSession is the subset of OpenCode's session metadata file this
// package needs: its own internal session id.
type openCodeSession struct {
	ID string `json:"id"`
}

// discoverOpenCodeSessionID scans storageDir/session/*/ for the most
// recently modified ses_*.json file and returns the session id recorded
// inside it.
func discoverOpenCodeSessionID(storageDir string, stop <-chan struct{}) (string, error) {
	sessionDir := filepath.Join(storageDir, "session")
	if err := waitForParent(sessionDir, stop); err != nil {
		return "", err
	}
	deadline := time.Now().Add(discoverTimeout)
	for {
		if id, ok := newestOpenCodeSessionID(sessionDir); ok {
			return id, nil
		}
		if time.Now().After(deadline) {
			return "", os.ErrNotExist
		}
		select {
		case <-stop:
			return "", errStopped
		case <-time.After(discoverPoll):
		}
	}
}

func newestOpenCodeSessionID(sessionDir string) (string, bool) {
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return "", false
	}
	var bestID string
	var bestTime time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(sessionDir, e.Name(), "ses_*.json"))
		for _, m := range matches {
			mt := modTime(m)
			if !mt.After(bestTime) {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				continue
			}
			var sess openCodeSession
			if err := json.Unmarshal(data, &sess); err != nil || sess.ID == "" {
				continue
			}
			bestTime = mt
			bestID = sess.ID
		}
	}
	return bestID, bestID != ""
}
