// Package hub is the Fan-out Hub: the routing fabric between sessions and
// connected subscribers. It owns two broadcast endpoints per session (one
// for OutputFrames, one for Activities) and each subscriber's outbound
// mailbox.
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/hyperstream/sessiond/internal/model"
	"github.com/hyperstream/sessiond/internal/registry"
)

// Default admission caps (spec §4.E): total concurrent connections and
// per-source-address connections.
const (
	DefaultMaxConnections = 50
	DefaultMaxPerIP       = 5
)

// mailboxSize bounds each subscriber's outbound frame queue before the hub
// starts dropping (OutputFrames) or disconnecting (Activities).
const mailboxSize = 256

// activityPrefixDefault is the default bounded prefix of recent Activities
// replayed to a newly subscribing client (spec §4.E state reconciliation).
const activityPrefixDefault = 120

// thinkingDropThreshold filters extended-thinking blocks above this length
// out of the replayed Activity prefix.
const thinkingDropThreshold = 500

// lateJoinWindow is how long a lifecycle event stays in the late-join
// replay queue.
const lateJoinWindow = 5 * time.Second

var (
	ErrAdmissionFull   = errors.New("hub: connection cap reached")
	ErrPerIPFull       = errors.New("hub: per-IP connection cap reached")
	ErrMailboxFull     = errors.New("hub: subscriber mailbox full")
)

// OutboundMessage is anything the hub places into a subscriber's mailbox:
// a raw OutputFrame, an Activity, a bulk listing, or a lifecycle/control
// event. Transports translate this into their own wire encoding.
type OutboundMessage struct {
	Kind    string // "pty_bytes" | "activity" | "waiting_for_input" | "waiting_cleared" | "lifecycle" | "sessions" | "messages" | "error" | ...
	Session string
	Frame   *model.OutputFrame
	Activity *model.Activity
	Waiting *model.WaitingState
	Lifecycle string // "created" | "resumed" | "closed" | "renamed" | "deleted"
	Error   string

	// Sessions and Activities carry one-shot bulk replies to get_sessions,
	// get_messages, and get_activities requests.
	Sessions   []SessionSummary
	Activities []model.Activity

	// Path, Filename carry a file_uploaded reply; TokenType, Platform carry
	// a push_token_registered reply.
	Path      string
	Filename  string
	TokenType string
	Platform  string

	// InputText, CursorPosition, SenderID carry a forwarded input_state
	// update (spec §6 sync_input_state).
	InputText      string
	CursorPosition int
	SenderID       string
}

// SessionSummary is the session-list item shape delivered in answer to a
// get_sessions request (spec §6 session list item).
type SessionSummary struct {
	ID          string
	Name        string
	Command     string
	ProjectPath string
	WSPort      int
	StartedAt   time.Time
	CLIType     string
}

// Subscriber is a connected client with its own outbound mailbox and
// subscription set.
type Subscriber struct {
	ID       string
	Addr     string // for per-IP admission
	mailbox  chan OutboundMessage

	mu   sync.Mutex
	subs map[string]struct{} // session IDs this subscriber wants

	closeOnce sync.Once
	closed    chan struct{}
}

func newSubscriber(id, addr string) *Subscriber {
	return &Subscriber{
		ID:      id,
		Addr:    addr,
		mailbox: make(chan OutboundMessage, mailboxSize),
		subs:    make(map[string]struct{}),
		closed:  make(chan struct{}),
	}
}

// Mailbox returns the channel transports should drain to deliver messages.
func (s *Subscriber) Mailbox() <-chan OutboundMessage { return s.mailbox }

// Closed returns a channel closed when the subscriber is disconnected.
func (s *Subscriber) Closed() <-chan struct{} { return s.closed }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Subscriber) isSubscribed(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[sessionID]
	return ok
}

// lifecycleEvent is a late-join-replayable session lifecycle notification.
type lifecycleEvent struct {
	sessionID string
	kind      string
	at        time.Time
}

// Hub is the central fan-out router.
type Hub struct {
	registry *registry.Registry

	maxConnections int
	maxPerIP       int

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	byIP        map[string]int
	bySession   map[string]map[string]*Subscriber // session ID -> subscriber ID -> *Subscriber

	lifecycleMu sync.Mutex
	lifecycle   []lifecycleEvent

	activityMu     sync.Mutex
	recentActivity map[string][]model.Activity // session ID -> bounded recent Activities
}

// New constructs a Hub with default admission caps.
func New(reg *registry.Registry) *Hub {
	return &Hub{
		registry:       reg,
		maxConnections: DefaultMaxConnections,
		maxPerIP:       DefaultMaxPerIP,
		subscribers:    make(map[string]*Subscriber),
		byIP:           make(map[string]int),
		bySession:      make(map[string]map[string]*Subscriber),
		recentActivity: make(map[string][]model.Activity),
	}
}

// NewWithLimits constructs a Hub with explicit admission caps (spec §4.E:
// "configurable"); a non-positive value falls back to the package default,
// so a zero-value config threads straight through.
func NewWithLimits(reg *registry.Registry, maxConnections, maxPerIP int) *Hub {
	h := New(reg)
	if maxConnections > 0 {
		h.maxConnections = maxConnections
	}
	if maxPerIP > 0 {
		h.maxPerIP = maxPerIP
	}
	return h
}

// Connect admits a new subscriber, enforcing the total and per-IP caps.
func (h *Hub) Connect(id, addr string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subscribers) >= h.maxConnections {
		return nil, ErrAdmissionFull
	}
	if h.byIP[addr] >= h.maxPerIP {
		return nil, ErrPerIPFull
	}

	sub := newSubscriber(id, addr)
	h.subscribers[id] = sub
	h.byIP[addr]++
	return sub, nil
}

// Disconnect removes a subscriber from all bookkeeping.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	h.byIP[sub.Addr]--
	if h.byIP[sub.Addr] <= 0 {
		delete(h.byIP, sub.Addr)
	}
	for sessionID, subs := range h.bySession {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.bySession, sessionID)
		}
	}
	sub.close()
}

// Subscribe attaches sub to sessionID and performs state reconciliation:
// the current output-history snapshot, a bounded Activity prefix, and the
// current WaitingState (spec §4.E).
func (h *Hub) Subscribe(sub *Subscriber, sessionID string) {
	sub.mu.Lock()
	sub.subs[sessionID] = struct{}{}
	sub.mu.Unlock()

	h.mu.Lock()
	if h.bySession[sessionID] == nil {
		h.bySession[sessionID] = make(map[string]*Subscriber)
	}
	h.bySession[sessionID][sub.ID] = sub
	h.mu.Unlock()

	sess, ok := h.registry.Get(sessionID)
	if !ok {
		return
	}

	h.deliver(sub, OutboundMessage{
		Kind: "pty_bytes", Session: sessionID,
		Frame: &model.OutputFrame{SessionID: sessionID, Data: sess.HistorySnapshot()},
	})

	for _, a := range h.activityPrefix(sessionID) {
		act := a
		h.deliver(sub, OutboundMessage{Kind: "activity", Session: sessionID, Activity: &act})
	}

	if ws := sess.WaitingState(); ws != nil {
		h.deliver(sub, OutboundMessage{Kind: "waiting_for_input", Session: sessionID, Waiting: ws})
	}
}

// Unsubscribe detaches sub from sessionID.
func (h *Hub) Unsubscribe(sub *Subscriber, sessionID string) {
	sub.mu.Lock()
	delete(sub.subs, sessionID)
	sub.mu.Unlock()

	h.mu.Lock()
	if subs, ok := h.bySession[sessionID]; ok {
		delete(subs, sub.ID)
	}
	h.mu.Unlock()
}

// BroadcastFrame fans out an OutputFrame to every current subscriber of
// its session, dropping (not blocking) for any subscriber whose mailbox is
// full (spec §4.E back-pressure discipline).
func (h *Hub) BroadcastFrame(frame model.OutputFrame) {
	h.mu.RLock()
	subs := h.bySession[frame.SessionID]
	targets := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{Kind: "pty_bytes", Session: frame.SessionID, Frame: &frame}
	for _, sub := range targets {
		select {
		case sub.mailbox <- msg:
		default:
			// Drop this frame for this slow subscriber; producers never block.
		}
	}
}

// BroadcastActivity fans out an Activity. Unlike frames, Activities are
// never dropped for a subscriber with mailbox space; if the mailbox is
// full the subscriber is disconnected instead (spec §4.E).
func (h *Hub) BroadcastActivity(act model.Activity) {
	h.recordActivity(act)

	h.mu.RLock()
	subs := h.bySession[act.SessionID]
	targets := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{Kind: "activity", Session: act.SessionID, Activity: &act}
	for _, sub := range targets {
		select {
		case sub.mailbox <- msg:
		default:
			h.Disconnect(sub)
		}
	}
}

// BroadcastWaiting delivers a waiting_for_input or waiting_cleared event.
func (h *Hub) BroadcastWaiting(sessionID string, ws *model.WaitingState) {
	kind := "waiting_for_input"
	if ws == nil {
		kind = "waiting_cleared"
	}
	h.mu.RLock()
	subs := h.bySession[sessionID]
	targets := make([]*Subscriber, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{Kind: kind, Session: sessionID, Waiting: ws}
	for _, sub := range targets {
		select {
		case sub.mailbox <- msg:
		default:
			h.Disconnect(sub)
		}
	}
}

// PublishLifecycle records a session lifecycle event for late-join replay
// and fans it out to current subscribers of the session's listing.
func (h *Hub) PublishLifecycle(sessionID, kind string) {
	now := time.Now()
	h.lifecycleMu.Lock()
	h.lifecycle = append(h.lifecycle, lifecycleEvent{sessionID: sessionID, kind: kind, at: now})
	h.pruneLifecycleLocked(now)
	h.lifecycleMu.Unlock()

	h.mu.RLock()
	all := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		all = append(all, s)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{Kind: "lifecycle", Session: sessionID, Lifecycle: kind}
	for _, sub := range all {
		select {
		case sub.mailbox <- msg:
		default:
		}
	}
}

// ReplayRecentLifecycle returns lifecycle events recorded within the last
// lateJoinWindow, for a subscriber connecting microseconds after one fired.
func (h *Hub) ReplayRecentLifecycle() []OutboundMessage {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	h.pruneLifecycleLocked(time.Now())

	out := make([]OutboundMessage, 0, len(h.lifecycle))
	for _, ev := range h.lifecycle {
		out = append(out, OutboundMessage{Kind: "lifecycle", Session: ev.sessionID, Lifecycle: ev.kind})
	}
	return out
}

func (h *Hub) pruneLifecycleLocked(now time.Time) {
	cutoff := now.Add(-lateJoinWindow)
	i := 0
	for ; i < len(h.lifecycle); i++ {
		if h.lifecycle[i].at.After(cutoff) {
			break
		}
	}
	h.lifecycle = h.lifecycle[i:]
}

func (h *Hub) recordActivity(act model.Activity) {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	list := h.recentActivity[act.SessionID]
	list = append(list, act)
	if len(list) > activityPrefixDefault {
		list = list[len(list)-activityPrefixDefault:]
	}
	h.recentActivity[act.SessionID] = list
}

// activityPrefix returns the bounded recent-Activity replay for a
// subscribing client, filtering extended-thinking blocks over the drop
// threshold (spec §4.E).
func (h *Hub) activityPrefix(sessionID string) []model.Activity {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()

	src := h.recentActivity[sessionID]
	out := make([]model.Activity, 0, len(src))
	for _, a := range src {
		if a.Tag == model.ActivityThinking && len(a.Content) > thinkingDropThreshold {
			continue
		}
		out = append(out, a)
	}
	return out
}

// DeliverSessionList sends a one-shot "sessions" reply to sub, in answer
// to a get_sessions request.
func (h *Hub) DeliverSessionList(sub *Subscriber, sessions []SessionSummary) {
	h.deliver(sub, OutboundMessage{Kind: "sessions", Sessions: sessions})
}

// DeliverActivityList sends a one-shot "messages" or "activities" reply to
// sub, in answer to a get_messages/get_activities request.
func (h *Hub) DeliverActivityList(sub *Subscriber, kind, sessionID string, acts []model.Activity) {
	h.deliver(sub, OutboundMessage{Kind: kind, Session: sessionID, Activities: acts})
}

// RecentActivities returns up to limit of the session's bounded recent-
// Activity replay buffer, most recent last. limit<=0 returns the full
// buffer.
func (h *Hub) RecentActivities(sessionID string, limit int) []model.Activity {
	acts := h.activityPrefix(sessionID)
	if limit > 0 && len(acts) > limit {
		acts = acts[len(acts)-limit:]
	}
	return acts
}

// DeliverUploadResult sends a one-shot file_uploaded (errMsg empty) or
// upload_error (errMsg set) reply to sub, in answer to an upload_file
// request.
func (h *Hub) DeliverUploadResult(sub *Subscriber, path, filename, errMsg string) {
	if errMsg != "" {
		h.deliver(sub, OutboundMessage{Kind: "upload_error", Error: errMsg})
		return
	}
	h.deliver(sub, OutboundMessage{Kind: "file_uploaded", Path: path, Filename: filename})
}

// DeliverPushTokenRegistered sends a one-shot push_token_registered reply
// to sub, in answer to a register_push_token request.
func (h *Hub) DeliverPushTokenRegistered(sub *Subscriber, tokenType, platform string) {
	h.deliver(sub, OutboundMessage{Kind: "push_token_registered", TokenType: tokenType, Platform: platform})
}

// BroadcastInputState fans out a live input-field update (spec §6
// sync_input_state) to every other subscriber of sessionID, excluding the
// sender itself.
func (h *Hub) BroadcastInputState(sessionID, text string, cursorPosition int, senderID string) {
	h.mu.RLock()
	subs := h.bySession[sessionID]
	targets := make([]*Subscriber, 0, len(subs))
	for id, s := range subs {
		if id == senderID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{
		Kind: "input_state", Session: sessionID,
		InputText: text, CursorPosition: cursorPosition, SenderID: senderID,
	}
	for _, sub := range targets {
		select {
		case sub.mailbox <- msg:
		default:
		}
	}
}

func (h *Hub) deliver(sub *Subscriber, msg OutboundMessage) {
	select {
	case sub.mailbox <- msg:
	default:
	}
}
