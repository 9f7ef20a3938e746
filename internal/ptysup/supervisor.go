package ptysup

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hyperstream/sessiond/internal/agentkind"
)

// readBufferSize is the chunk size used by the PTY reader task (spec §4.A).
const readBufferSize = 4096

// spawnRetries and the backoff schedule below implement spec §4.A's spawn
// retry policy: 100ms, 200ms, 400ms.
const spawnRetries = 3

// Supervisor owns one PTY's lifecycle: spawn-with-retry, a reader task, a
// child-waiter task, and serialized writes.
type Supervisor struct {
	pty *PTY

	writeMu sync.Mutex // serializes writers; concurrent callers observe FIFO order

	stopOnce sync.Once
	stopCh   chan struct{}
}

// SpawnArgs describes how to launch a session's subprocess.
type SpawnArgs struct {
	Command        string
	Cols, Rows     uint16
	Dir            string
	Env            map[string]string
}

// BuildCommand returns the shell command line to spawn for the given agent
// kind. With resume set, every recognized kind gets its resume argument for
// conversationID; a fresh spawn adds --session-id for Claude only, and the
// other recognized kinds run baseCommand unmodified. Unknown agents,
// terminal-only sessions and an empty conversationID always run baseCommand
// unmodified (spec §4.A, §9 "Log-file identity").
func BuildCommand(kind agentkind.Kind, baseCommand string, conversationID string, resume bool) string {
	if baseCommand == "" {
		baseCommand = DefaultShell()
	}
	if conversationID == "" {
		return baseCommand
	}
	switch kind {
	case agentkind.Claude:
		if resume {
			return fmt.Sprintf("%s --resume %s", baseCommand, conversationID)
		}
		return fmt.Sprintf("%s --session-id %s", baseCommand, conversationID)
	case agentkind.Codex:
		if resume {
			return fmt.Sprintf("%s resume %s", baseCommand, conversationID)
		}
		return baseCommand
	case agentkind.Gemini:
		if resume {
			return fmt.Sprintf("%s --resume %s", baseCommand, conversationID)
		}
		return baseCommand
	case agentkind.OpenCode:
		if resume {
			return fmt.Sprintf("%s --session %s", baseCommand, conversationID)
		}
		return baseCommand
	default:
		return baseCommand
	}
}

// NewSupervisor spawns args.Command inside a fresh PTY, retrying transient
// spawn failures up to spawnRetries times with exponential backoff
// (100ms, 200ms, 400ms).
func NewSupervisor(args SpawnArgs) (*Supervisor, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall clock
	retrier := backoff.WithMaxRetries(b, spawnRetries)

	var p *PTY
	err := backoff.Retry(func() error {
		var spawnErr error
		p, spawnErr = Spawn(args.Command, args.Cols, args.Rows, args.Dir, args.Env)
		return spawnErr
	}, retrier)
	if err != nil {
		return nil, fmt.Errorf("spawn_failed: %w", err)
	}

	return &Supervisor{pty: p, stopCh: make(chan struct{})}, nil
}

// ID returns the underlying PTY's identifier.
func (s *Supervisor) ID() string { return s.pty.ID }

// Run starts the reader and child-waiter tasks. onFrame is called with each
// raw chunk read from the PTY (never from more than one goroutine at a
// time); onEnded is called exactly once when the child exits or the PTY
// read loop hits a non-transient error.
func (s *Supervisor) Run(onFrame func([]byte), onEnded func(exitCode int)) {
	go s.readLoop(onFrame, onEnded)
}

func (s *Supervisor) readLoop(onFrame func([]byte), onEnded func(exitCode int)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			onFrame(frame)
		}
		if err != nil {
			// Any read error here is terminal for the session: the PTY
			// master is gone (child exited) or closed by us. Non-EINTR
			// transient errors don't occur on a PTY master read in
			// practice; treat every error as session-ending per spec.
			break
		}
	}
	<-s.pty.Done()
	onEnded(s.pty.ExitCode())
}

// WriteInput writes data to the PTY. Non-raw submissions get a trailing
// carriage return; raw submissions (e.g. control sequences, resize acks)
// pass through unmodified. Concurrent callers are serialized FIFO by
// writeMu.
func (s *Supervisor) WriteInput(data []byte, raw bool) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !raw {
		data = append(append([]byte{}, data...), '\r')
	}
	return s.pty.Write(data)
}

// WriteSilent behaves like WriteInput but suppresses local echo, for
// approval keystrokes translated from a classifier verdict.
func (s *Supervisor) WriteSilent(data []byte, raw bool) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !raw {
		data = append(append([]byte{}, data...), '\r')
	}
	return s.pty.WriteSilent(data)
}

// Resize changes the PTY window size. Best-effort and idempotent.
func (s *Supervisor) Resize(cols, rows uint16) error {
	return s.pty.Resize(cols, rows)
}

// Kill terminates the child with escalating signals: SIGINT three times
// (500ms apart), then SIGTERM (1s), then SIGKILL — giving agent CLIs a
// chance to flush their conversation log before the hard stop.
func (s *Supervisor) Kill() {
	done := s.pty.Done()

	for i := 0; i < 3; i++ {
		s.pty.Signal(SIGINT)
		select {
		case <-done:
			s.pty.Close()
			return
		case <-time.After(500 * time.Millisecond):
		}
	}

	s.pty.Signal(SIGTERM)
	select {
	case <-done:
		s.pty.Close()
		return
	case <-time.After(1 * time.Second):
	}

	s.pty.Signal(SIGKILL)
	select {
	case <-done:
	case <-time.After(1 * time.Second):
	}
	s.pty.Close()
}

// Stop is an alias for Kill kept for callers that stop a session without
// caring whether the child exited gracefully.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.Kill()
	})
}
