// Package notify is the Notification Adapter: it consumes WaitingState
// transitions and produces attention requests for an external dispatcher,
// without ever blocking the hub on delivery outcomes (spec §4.I).
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperstream/sessiond/internal/model"
)

// snippetTruncateLen bounds a clarifying_question notification body.
const snippetTruncateLen = 100

// Dispatcher delivers a constructed notification to whatever external
// channel the deployment uses (push service, desktop notifier, ...).
// Implementations must not block for long; Adapter never waits on Send's
// outcome beyond the call itself.
type Dispatcher interface {
	Send(title, body string, registrations []model.PushRegistration) error
}

// Notification is the constructed attention request for one WaitingState
// transition.
type Notification struct {
	SessionID string
	Title     string
	Body      string
}

// Adapter tracks a single-fire guard per (session_id, prompt_hash) and
// posts notifications to its Dispatcher.
type Adapter struct {
	dispatcher Dispatcher

	mu    sync.Mutex
	fired map[string]string // session_id -> last-fired prompt fingerprint
}

// New constructs an Adapter posting through d.
func New(d Dispatcher) *Adapter {
	return &Adapter{dispatcher: d, fired: make(map[string]string)}
}

// OnWaitingState is called whenever a session's WaitingState transitions.
// ws nil means waiting_cleared, which resets the guard so the next prompt
// (even an identical one) fires again.
func (a *Adapter) OnWaitingState(sessionID string, ws *model.WaitingState, registrations []model.PushRegistration) {
	if ws == nil {
		a.mu.Lock()
		delete(a.fired, sessionID)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	if a.fired[sessionID] == ws.PromptFingerprint {
		a.mu.Unlock()
		return
	}
	a.fired[sessionID] = ws.PromptFingerprint
	a.mu.Unlock()

	n := build(sessionID, ws)
	go func() {
		if err := a.dispatcher.Send(n.Title, n.Body, registrations); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("notify: dispatch failed")
		}
	}()
}

func build(sessionID string, ws *model.WaitingState) Notification {
	var title, body string
	switch ws.WaitKind {
	case model.WaitToolApproval:
		title = "Tool Approval Needed"
		body = ws.PromptSnippet
	case model.WaitPlanApproval:
		title = "Plan Approval Needed"
		body = ws.PromptSnippet
	case model.WaitClarifyingQuestion:
		title = "Question"
		body = truncate(ws.PromptSnippet, snippetTruncateLen)
	default:
		title = "Ready for input"
		body = ""
	}
	return Notification{SessionID: sessionID, Title: title, Body: body}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
