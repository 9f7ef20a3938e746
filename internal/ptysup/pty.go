// Package ptysup is the PTY Supervisor: it acquires pseudo-terminals, spawns
// agent/shell subprocesses in them, and exposes write, resize, and kill.
package ptysup

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// Signal is a process signal deliverable to a PTY's child.
type Signal int

const (
	SIGINT  Signal = Signal(syscall.SIGINT)
	SIGTERM Signal = Signal(syscall.SIGTERM)
	SIGKILL Signal = Signal(syscall.SIGKILL)
	SIGSTOP Signal = Signal(syscall.SIGSTOP)
	SIGCONT Signal = Signal(syscall.SIGCONT)
)

// PTY wraps a single pseudo-terminal and the child process running in it.
type PTY struct {
	ID   string
	file *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	closed bool

	doneOnce sync.Once
	doneChan chan struct{}
}

// Spawn starts cmdLine (a whitespace-split command plus args) inside a new
// PTY of the given size, in dir (if non-empty), with env appended to the
// process's inherited environment. TERM is always set so agents render
// correctly.
func Spawn(cmdLine string, cols, rows uint16, dir string, env map[string]string) (*PTY, error) {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		parts = []string{DefaultShell()}
	}
	cmd := exec.Command(parts[0], parts[1:]...)

	full := append(os.Environ(), "TERM=xterm-256color")
	for k, v := range env {
		full = append(full, k+"="+v)
	}
	cmd.Env = full
	if dir != "" {
		cmd.Dir = dir
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, err
	}
	return &PTY{
		ID:   uuid.NewString(),
		file: ptmx,
		cmd:  cmd,
	}, nil
}

// DefaultShell returns the preferred shell for unknown-command sessions.
// Honors $SHELL when set, otherwise falls back to /bin/bash or /bin/sh.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// Read reads raw bytes from the PTY master.
func (p *PTY) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	f := p.file
	p.mu.Unlock()
	return f.Read(buf)
}

// Write sends bytes to the PTY master (child's stdin).
func (p *PTY) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	f := p.file
	p.mu.Unlock()
	return f.Write(data)
}

// WriteSilent writes data with local echo disabled for the duration of the
// write, used for approval keystrokes that shouldn't visibly echo twice.
func (p *PTY) WriteSilent(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	f := p.file
	p.mu.Unlock()
	return writeSilentPlatform(f, data)
}

// Resize changes the PTY window size. Best-effort and idempotent.
func (p *PTY) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}
	return pty.Setsize(p.file, &pty.Winsize{Cols: cols, Rows: rows})
}

// Signal delivers a signal to the child process.
func (p *PTY) Signal(sig Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}
	if p.cmd.Process == nil {
		return os.ErrProcessDone
	}
	return p.cmd.Process.Signal(syscall.Signal(sig))
}

// Close kills the child (if still running) and closes the PTY master.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return p.file.Close()
}

// Done returns a channel closed when the child process exits.
func (p *PTY) Done() <-chan struct{} {
	p.doneOnce.Do(func() {
		p.doneChan = make(chan struct{})
		go func() {
			if p.cmd != nil {
				p.cmd.Wait()
			}
			close(p.doneChan)
		}()
	})
	return p.doneChan
}

// ExitCode returns the child's exit code. Only meaningful after Done()
// has fired; returns -1 if the process hasn't exited or exit status is
// unavailable.
func (p *PTY) ExitCode() int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
