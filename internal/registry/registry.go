package registry

import (
	"fmt"
	"sync"

	"github.com/hyperstream/sessiond/internal/model"
	"github.com/hyperstream/sessiond/internal/ptysup"
)

// PersistenceCollaborator is notified of lifecycle events so that an
// out-of-scope restart-recovery catalog can stay current. The registry
// itself keeps no disk state; a nil or no-op implementation is valid
// (spec §4.D).
type PersistenceCollaborator interface {
	OnCreate(s *Session)
	OnRename(s *Session)
	OnClose(s *Session)
	OnDelete(sessionID string)
	OnConversationID(s *Session)
}

// NoopPersistence is the default PersistenceCollaborator: it does nothing.
type NoopPersistence struct{}

func (NoopPersistence) OnCreate(*Session)          {}
func (NoopPersistence) OnRename(*Session)           {}
func (NoopPersistence) OnClose(*Session)            {}
func (NoopPersistence) OnDelete(string)              {}
func (NoopPersistence) OnConversationID(*Session)   {}

// Registry is the single index from session_id to Session.
type Registry struct {
	persist PersistenceCollaborator

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New constructs an empty Registry. A nil persist defaults to NoopPersistence.
func New(persist PersistenceCollaborator) *Registry {
	if persist == nil {
		persist = NoopPersistence{}
	}
	return &Registry{persist: persist, sessions: make(map[string]*Session)}
}

// Add registers a newly created session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.persist.OnCreate(s)
}

// Get looks up a session by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// ListLive returns every session currently passing the liveness probe.
func (r *Registry) ListLive() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.IsLive() {
			out = append(out, s)
		}
	}
	return out
}

// ListAll returns every registered session regardless of liveness.
func (r *Registry) ListAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Rename changes a session's display name.
func (r *Registry) Rename(sessionID, name string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.Rename(name)
	r.persist.OnRename(s)
	return nil
}

// Close marks a session closed and tears down its PTY. Closing is
// monotonic: a closed session is never re-activated (spec §3).
func (r *Registry) Close(sessionID string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if sup := s.Supervisor(); sup != nil {
		sup.Stop()
	}
	s.MarkClosed()
	r.persist.OnClose(s)
	return nil
}

// Delete removes a session from the index entirely. The caller must close
// it first if it may still be live.
func (r *Registry) Delete(sessionID string) error {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	r.persist.OnDelete(sessionID)
	return nil
}

// Resume rebinds an existing session to a freshly spawned supervisor,
// reactivating a closed or orphaned session under its original session id
// (spec §4.A "resume", §6 resume_session).
func (r *Registry) Resume(sessionID string, sup *ptysup.Supervisor) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.Rebind(sup)
	return nil
}

// SetConversationID records an agent-assigned conversation id and notifies
// the persistence collaborator.
func (r *Registry) SetConversationID(sessionID, conversationID string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.SetConversationID(conversationID)
	r.persist.OnConversationID(s)
	return nil
}

// ReconcileOnStart transitions every session marked active by a prior
// process run, but whose PID is not resurrectable, to closed (spec §4.D).
// resurrectable reports whether sessionID still has a live backing PTY
// (always false for the in-memory-only core, since PTYs don't survive a
// process restart; kept as a hook for a future persistence layer that
// might reattach to a surviving subprocess).
func (r *Registry) ReconcileOnStart(resurrectable func(sessionID string) bool) {
	for _, s := range r.ListAll() {
		if s.Status() != model.StatusActive {
			continue
		}
		if resurrectable == nil || !resurrectable(s.ID) {
			s.MarkOrphaned()
			s.MarkClosed()
		}
	}
}
