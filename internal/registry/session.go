// Package registry is the Session Registry: the single index from
// session_id to Session, with a bounded output-history ring per session.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperstream/sessiond/internal/agentkind"
	"github.com/hyperstream/sessiond/internal/model"
	"github.com/hyperstream/sessiond/internal/ptysup"
)

// historyCapBytes bounds the per-session output-history ring. Not specified
// numerically by the design; chosen generously enough to reconstruct a
// typical terminal's visible scrollback for a rejoining subscriber.
const historyCapBytes = 256 * 1024

// Session is a live or recently-live PTY-backed conversation. It
// exclusively owns its PTY handle and its output history ring (spec §3
// Ownership). The Log Tailer is not held here: the daemon keeps tailers in
// its own map keyed by session id.
type Session struct {
	ID          string
	DisplayName string
	WorkingDir  string
	AgentKind   agentkind.Kind
	SpawnCommand string
	LogLocator  string // kind-specific path or key, recorded via SetLogLocator once discovered
	ConversationID string

	CreatedAt    time.Time
	LastActivity time.Time

	mu     sync.RWMutex
	status model.SessionStatus
	sup    *ptysup.Supervisor
	waiting *model.WaitingState

	historyMu sync.Mutex
	history   []byte
}

// NewSession allocates a Session in the active state, bound to sup.
func NewSession(displayName, workingDir string, kind agentkind.Kind, spawnCommand, logLocator string, sup *ptysup.Supervisor) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		DisplayName:  displayName,
		WorkingDir:   workingDir,
		AgentKind:    kind,
		SpawnCommand: spawnCommand,
		LogLocator:   logLocator,
		CreatedAt:    now,
		LastActivity: now,
		status:       model.StatusActive,
		sup:          sup,
	}
}

// Status returns the session's current lifecycle state.
func (s *Session) Status() model.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsLive reports whether the session's PTY handle exists and its child has
// not exited (spec §4.D liveness probe).
func (s *Session) IsLive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sup == nil || s.status != model.StatusActive {
		return false
	}
	select {
	case <-s.sup.Done():
		return false
	default:
		return true
	}
}

// done returns the underlying supervisor's exit-signal channel, or nil if
// sup is nil (e.g. a closed/orphaned session restored from disk without a
// live PTY).
func (s *Session) done() <-chan struct{} {
	if s.sup == nil {
		return nil
	}
	return s.sup.Done()
}

// MarkClosed transitions the session to closed. Closing is monotonic: once
// closed, never re-activated (spec §3 invariant).
func (s *Session) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == model.StatusClosed {
		return
	}
	s.status = model.StatusClosed
}

// MarkOrphaned transitions an active session whose PID could not be
// resurrected on process restart to orphaned; Registry.ReconcileOnStart
// then closes it (spec §4.D: a prior-run `active` session with no
// resurrectable PID becomes `closed`).
func (s *Session) MarkOrphaned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == model.StatusActive {
		s.status = model.StatusOrphaned
	}
}

// Supervisor returns the session's PTY supervisor, or nil if none is live.
func (s *Session) Supervisor() *ptysup.Supervisor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sup
}

// Rename updates the session's display name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DisplayName = name
}

// SetConversationID records the agent-assigned conversation id, attached
// once the agent announces one (spec §3).
func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConversationID = id
}

// SetLogLocator records the Log Tailer's discovered locator, once resolved
// asynchronously after session creation.
func (s *Session) SetLogLocator(locator string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LogLocator = locator
}

// Rebind replaces a session's PTY supervisor and transitions it back to
// active, for resuming a closed or orphaned session onto a freshly spawned
// process (spec §3: resume rebinds the same session id to a new PTY).
func (s *Session) Rebind(sup *ptysup.Supervisor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sup = sup
	s.status = model.StatusActive
}

// Touch updates LastActivity to now.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
}

// WaitingState returns a copy of the session's current waiting state, or
// nil if none.
func (s *Session) WaitingState() *model.WaitingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.waiting == nil {
		return nil
	}
	cp := *s.waiting
	return &cp
}

// SetWaitingState installs a new WaitingState (or clears it, if ws is nil).
func (s *Session) SetWaitingState(ws *model.WaitingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = ws
}

// AppendHistory appends data to the output-history ring, evicting the
// oldest bytes once the cap is exceeded.
func (s *Session) AppendHistory(data []byte) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, data...)
	if over := len(s.history) - historyCapBytes; over > 0 {
		s.history = s.history[over:]
	}
}

// HistorySnapshot returns a copy of the current output history, for a
// subscriber joining mid-session.
func (s *Session) HistorySnapshot() []byte {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	cp := make([]byte, len(s.history))
	copy(cp, s.history)
	return cp
}
