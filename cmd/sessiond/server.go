package main

import (
	"encoding/base64"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperstream/sessiond/internal/agentkind"
	"github.com/hyperstream/sessiond/internal/classifier"
	"github.com/hyperstream/sessiond/internal/config"
	"github.com/hyperstream/sessiond/internal/fsworkspace"
	"github.com/hyperstream/sessiond/internal/hub"
	"github.com/hyperstream/sessiond/internal/inputcoord"
	"github.com/hyperstream/sessiond/internal/model"
	"github.com/hyperstream/sessiond/internal/notify"
	"github.com/hyperstream/sessiond/internal/ptysup"
	"github.com/hyperstream/sessiond/internal/registry"
	"github.com/hyperstream/sessiond/internal/tailer"
	"github.com/hyperstream/sessiond/internal/transport/local"
)

// logDispatcher is the stand-in Dispatcher used until a deployment wires a
// real push service; it logs and otherwise swallows failures per spec
// §4.I ("failures are logged and swallowed").
type logDispatcher struct{}

func (logDispatcher) Send(title, body string, _ []model.PushRegistration) error {
	log.Printf("notify: %s — %s", title, body)
	return nil
}

// daemon wires every component named in the module map together.
type daemon struct {
	cfg       config.Config
	reg       *registry.Registry
	h         *hub.Hub
	coord     *inputcoord.Coordinator
	notifier  *notify.Adapter
	workspace *fsworkspace.Workspace

	tailersMu sync.Mutex
	tailers   map[string]tailer.Tailer

	pushMu  sync.Mutex
	pushReg []model.PushRegistration
}

func runServe(bindAddrOverride string) error {
	stateDir, err := config.StateDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(stateDir + "/config.yaml")
	if err != nil {
		return err
	}
	if bindAddrOverride != "" {
		cfg.LocalBindAddr = bindAddrOverride
	}

	d := &daemon{
		cfg:     cfg,
		reg:     registry.New(nil),
		tailers: make(map[string]tailer.Tailer),
	}
	d.h = hub.NewWithLimits(d.reg, cfg.MaxConnections, cfg.MaxPerIP)
	d.coord = inputcoord.New(inputcoord.Events{
		OnTypingStart:    func(sessionID, senderID string) {},
		OnTypingStop:     func(sessionID, senderID string) {},
		OnWaitingCleared: d.onWaitingCleared,
	})
	d.notifier = notify.New(logDispatcher{})

	home, err := homeDir()
	if err != nil {
		return err
	}
	d.workspace = fsworkspace.New(home)

	go d.runRelay()

	server := local.NewServer(d.h, d.dispatch)
	server.AuthToken = cfg.AuthToken
	log.Printf("sessiond: listening on %s", cfg.LocalBindAddr)
	return server.ListenAndServe(cfg.LocalBindAddr)
}

func homeDir() (string, error) {
	return os.UserHomeDir()
}

// wsPort extracts the local transport's bound port from cfg.LocalBindAddr,
// for the session list item's ws_port field.
func (d *daemon) wsPort() int {
	_, portStr, err := net.SplitHostPort(d.cfg.LocalBindAddr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// dispatch translates one parsed ClientMessage into registry/hub/
// inputcoord operations, matching spec §6's client message set.
func (d *daemon) dispatch(sub *hub.Subscriber, msg local.ClientMessage) {
	switch msg.Type {
	case "subscribe":
		d.h.Subscribe(sub, msg.SessionID)

	case "unsubscribe":
		d.h.Unsubscribe(sub, msg.SessionID)

	case "send_input":
		d.coord.Submit(msg.SessionID, inputcoord.Submission{
			SenderID: sub.ID, Data: []byte(msg.Text), Raw: msg.Raw,
		})

	case "pty_resize":
		if sess, ok := d.reg.Get(msg.SessionID); ok {
			if sup := sess.Supervisor(); sup != nil {
				sup.Resize(msg.Cols, msg.Rows)
			}
		}

	case "tool_approval":
		d.handleToolApproval(msg)

	case "create_session":
		d.handleCreateSession(msg)

	case "resume_session":
		d.handleResumeSession(msg)

	case "close_session":
		d.coord.Drain(msg.SessionID)
		d.stopTailer(msg.SessionID)
		d.reg.Close(msg.SessionID)
		d.h.PublishLifecycle(msg.SessionID, "closed")

	case "rename_session":
		d.reg.Rename(msg.SessionID, msg.NewName)
		d.h.PublishLifecycle(msg.SessionID, "renamed")

	case "delete_session":
		d.coord.Drain(msg.SessionID)
		d.stopTailer(msg.SessionID)
		d.reg.Delete(msg.SessionID)
		d.h.PublishLifecycle(msg.SessionID, "deleted")

	case "list_directory":
		d.workspace.List(msg.Path)

	case "create_directory":
		d.workspace.Mkdir(msg.Path)

	case "upload_file":
		d.handleUploadFile(sub, msg)

	case "register_push_token":
		d.handleRegisterPushToken(sub, msg)

	case "sync_input_state":
		d.h.BroadcastInputState(msg.SessionID, msg.Text, msg.CursorPosition, sub.ID)

	case "get_sessions":
		d.h.DeliverSessionList(sub, d.sessionSummaries())

	case "get_messages":
		d.h.DeliverActivityList(sub, "messages", msg.SessionID, d.h.RecentActivities(msg.SessionID, msg.Limit))

	case "get_activities":
		d.h.DeliverActivityList(sub, "activities", msg.SessionID, d.h.RecentActivities(msg.SessionID, msg.Limit))

	case "ping":
		// No pong message is sent in reply. Connection liveness rests on the
		// local transport's WebSocket ping/pong control frames instead.
	}
}

// sessionSummaries builds the get_sessions reply payload from every
// registered session, regardless of liveness (spec §6 session list item).
func (d *daemon) sessionSummaries() []hub.SessionSummary {
	sessions := d.reg.ListAll()
	out := make([]hub.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, hub.SessionSummary{
			ID: s.ID, Name: s.DisplayName, Command: s.SpawnCommand,
			ProjectPath: s.WorkingDir, WSPort: d.wsPort(),
			StartedAt: s.CreatedAt, CLIType: string(s.AgentKind),
		})
	}
	return out
}

func (d *daemon) handleToolApproval(msg local.ClientMessage) {
	sess, ok := d.reg.Get(msg.SessionID)
	if !ok {
		return
	}
	ws := sess.WaitingState()
	if ws == nil {
		return
	}
	choice := classifier.ChoiceFirst
	switch msg.Response {
	case "yes_always":
		choice = classifier.ChoiceSecond
	case "no":
		choice = classifier.ChoiceDeny
	}
	keys := classifier.KeystrokesFor(ws.ApprovalModel, choice)
	d.coord.Submit(msg.SessionID, inputcoord.Submission{SenderID: "approval", Data: keys, Raw: true})
}

func (d *daemon) handleCreateSession(msg local.ClientMessage) {
	kind := agentkind.FromCommand(msg.CLIType)
	conversationID := ""
	if kind != agentkind.Unknown {
		conversationID = uuid.NewString()
	}
	command := ptysup.BuildCommand(kind, msg.CLIType, conversationID, false)

	sup, err := ptysup.NewSupervisor(ptysup.SpawnArgs{
		Command: command, Cols: 80, Rows: 24, Dir: msg.ProjectPath,
	})
	if err != nil {
		log.Printf("sessiond: spawn failed: %v", err)
		return
	}

	sess := registry.NewSession(msg.Name, msg.ProjectPath, kind, command, "", sup)
	sess.SetConversationID(conversationID)
	d.reg.Add(sess)

	d.bindSession(sess, sup, kind, command)
	d.h.PublishLifecycle(sess.ID, "created")
}

// handleResumeSession reconnects a closed or orphaned session to a freshly
// spawned PTY, reusing the session's original id and conversation id
// (spec §4.A "resume", §6 resume_session), rather than minting a new
// session.
func (d *daemon) handleResumeSession(msg local.ClientMessage) {
	sess, ok := d.reg.Get(msg.SessionID)
	if !ok {
		return
	}
	command := ptysup.BuildCommand(sess.AgentKind, sess.SpawnCommand, sess.ConversationID, true)

	sup, err := ptysup.NewSupervisor(ptysup.SpawnArgs{
		Command: command, Cols: 80, Rows: 24, Dir: sess.WorkingDir,
	})
	if err != nil {
		log.Printf("sessiond: resume spawn failed for %s: %v", sess.ID, err)
		return
	}

	if err := d.reg.Resume(sess.ID, sup); err != nil {
		log.Printf("sessiond: resume failed for %s: %v", sess.ID, err)
		return
	}

	d.bindSession(sess, sup, sess.AgentKind, command)
	d.h.PublishLifecycle(sess.ID, "resumed")
}

// bindSession wires a freshly spawned supervisor into the Input
// Coordinator, the Output Classifier's waiting-prompt detection, the Fan-
// out Hub, and (for a recognized agent) the Log Tailer. Shared by session
// creation and resume, since both need identical wiring around a new PTY.
func (d *daemon) bindSession(sess *registry.Session, sup *ptysup.Supervisor, kind agentkind.Kind, command string) {
	d.coord.BindWriter(sess.ID, sup)

	tr := classifier.NewIdentityTracker()
	tr.ObserveCommand(command)

	sup.Run(func(frame []byte) {
		sess.Touch()
		sess.AppendHistory(frame)
		d.h.BroadcastFrame(model.OutputFrame{SessionID: sess.ID, Data: frame})

		tr.ObserveText(classifier.Strip(frame))
		if evt := classifier.DetectWaiting(classifier.Strip(sess.HistorySnapshot()), time.Now()); evt != nil {
			if classifier.ShouldPromote(sess.WaitingState(), evt) {
				ws := &model.WaitingState{
					WaitKind: evt.WaitKind, ApprovalModel: evt.ApprovalModel,
					PromptSnippet: evt.Snippet, PromptFingerprint: evt.Fingerprint,
					DetectedAt: evt.DetectedAt,
				}
				sess.SetWaitingState(ws)
				d.h.BroadcastWaiting(sess.ID, ws)
				d.notifier.OnWaitingState(sess.ID, ws, d.pushRegistrations())
			}
		}
	}, func(exitCode int) {
		d.coord.Drain(sess.ID)
		d.stopTailer(sess.ID)
		sess.MarkClosed()
		d.h.PublishLifecycle(sess.ID, "closed")
	})

	if kind != agentkind.Unknown && kind != agentkind.TerminalOnly {
		go d.startTailer(sess, kind)
	}
}

// startTailer discovers the session's on-disk conversation log (spec §4.C,
// §9) and runs the matching Log Tailer, feeding every produced Activity
// into the Fan-out Hub. It runs in its own goroutine because locating the
// log can block for up to a minute waiting for the agent to create it.
func (d *daemon) startTailer(sess *registry.Session, kind agentkind.Kind) {
	stop := make(chan struct{})
	d.tailersMu.Lock()
	d.tailers[sess.ID] = stopper{stop}
	d.tailersMu.Unlock()

	locator, err := tailer.Locate(kind, sess.WorkingDir, sess.ConversationID, stop)
	if err != nil {
		log.Printf("sessiond: log locator discovery failed for %s: %v", sess.ID, err)
		return
	}
	sess.SetLogLocator(locator)

	home, err := homeDir()
	if err != nil {
		return
	}
	t := tailer.NewTailer(kind, locator, home)
	if t == nil {
		return
	}

	d.tailersMu.Lock()
	if _, live := d.tailers[sess.ID]; !live {
		// Session was closed while the locator was still being discovered.
		d.tailersMu.Unlock()
		return
	}
	d.tailers[sess.ID] = t
	d.tailersMu.Unlock()

	if err := t.Run(func(act model.Activity) {
		act.SessionID = sess.ID
		d.h.BroadcastActivity(act)
	}); err != nil {
		log.Printf("sessiond: tailer for %s ended: %v", sess.ID, err)
	}
}

// stopper is the tailer.Tailer placeholder registered while a session's
// log is still being located, so a close arriving mid-discovery can still
// interrupt the wait via Close.
type stopper struct {
	stop chan struct{}
}

func (s stopper) Run(func(model.Activity)) error { return nil }
func (s stopper) Close() error {
	close(s.stop)
	return nil
}

func (d *daemon) stopTailer(sessionID string) {
	d.tailersMu.Lock()
	t, ok := d.tailers[sessionID]
	delete(d.tailers, sessionID)
	d.tailersMu.Unlock()
	if ok {
		t.Close()
	}
}

func (d *daemon) pushRegistrations() []model.PushRegistration {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()
	out := make([]model.PushRegistration, len(d.pushReg))
	copy(out, d.pushReg)
	return out
}

// uploadRoot is the per-daemon staging directory for inbound uploads.
func uploadRoot() string {
	return filepath.Join(os.TempDir(), "sessiond-uploads")
}

func (d *daemon) handleUploadFile(sub *hub.Subscriber, msg local.ClientMessage) {
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		d.h.DeliverUploadResult(sub, "", "", "invalid base64 payload")
		return
	}
	path, err := fsworkspace.StageUpload(uploadRoot(), msg.Filename, data)
	if err != nil {
		d.h.DeliverUploadResult(sub, "", "", err.Error())
		return
	}
	d.h.DeliverUploadResult(sub, path, msg.Filename, "")
}

func (d *daemon) handleRegisterPushToken(sub *hub.Subscriber, msg local.ClientMessage) {
	reg := model.PushRegistration{Token: msg.Token, Vendor: msg.TokenType, Platform: msg.Platform}

	d.pushMu.Lock()
	replaced := false
	for i, existing := range d.pushReg {
		if existing.Token == reg.Token {
			d.pushReg[i] = reg
			replaced = true
			break
		}
	}
	if !replaced {
		d.pushReg = append(d.pushReg, reg)
	}
	d.pushMu.Unlock()

	d.h.DeliverPushTokenRegistered(sub, msg.TokenType, msg.Platform)
}

func (d *daemon) onWaitingCleared(sessionID string) {
	if sess, ok := d.reg.Get(sessionID); ok {
		sess.SetWaitingState(nil)
	}
	d.h.BroadcastWaiting(sessionID, nil)
	d.notifier.OnWaitingState(sessionID, nil, d.pushRegistrations())
}
