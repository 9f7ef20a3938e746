package ptysup

import (
	"bytes"
	"testing"
	"time"

	"github.com/hyperstream/sessiond/internal/agentkind"
)

func TestBuildCommand_UnknownAgentRunsBaseCommandUnmodified(t *testing.T) {
	got := BuildCommand(agentkind.Unknown, "/bin/bash", "conv-1", false)
	if got != "/bin/bash" {
		t.Errorf("got %q, want unmodified base command", got)
	}
}

func TestBuildCommand_NoConversationIDRunsBaseCommandUnmodified(t *testing.T) {
	got := BuildCommand(agentkind.Claude, "claude", "", false)
	if got != "claude" {
		t.Errorf("got %q, want unmodified base command", got)
	}
}

func TestBuildCommand_ClaudeResume(t *testing.T) {
	got := BuildCommand(agentkind.Claude, "claude", "conv-1", true)
	want := "claude --resume conv-1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCommand_ClaudeFreshConversation(t *testing.T) {
	got := BuildCommand(agentkind.Claude, "claude", "conv-1", false)
	want := "claude --session-id conv-1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCommand_GeminiResume(t *testing.T) {
	got := BuildCommand(agentkind.Gemini, "gemini", "conv-1", true)
	want := "gemini --resume conv-1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultShell_ReturnsNonEmpty(t *testing.T) {
	if DefaultShell() == "" {
		t.Error("DefaultShell() returned empty string")
	}
}

// TestWriteInput_AppendsTrailingCarriageReturn spawns a real PTY running
// `cat` and checks that a non-raw WriteInput is echoed back with a
// trailing carriage return, per spec's CR-append invariant.
func TestWriteInput_AppendsTrailingCarriageReturn(t *testing.T) {
	sup, err := NewSupervisor(SpawnArgs{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	defer sup.Kill()

	var buf bytes.Buffer
	frames := make(chan struct{}, 64)
	sup.Run(func(b []byte) {
		buf.Write(b)
		select {
		case frames <- struct{}{}:
		default:
		}
	}, func(int) {})

	if _, err := sup.WriteInput([]byte("hello"), false); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !bytes.Contains(buf.Bytes(), []byte("hello\r")) {
		select {
		case <-frames:
		case <-deadline:
			t.Fatalf("timed out waiting for echoed input, got %q", buf.String())
		}
	}
}

// TestWriteInput_RawBypassesCarriageReturnAppend checks a raw submission is
// forwarded byte-for-byte with no trailing CR added. The PTY's output
// processing renders each echoed or printed "\n" as "\r\n"; an appended CR
// would show up as a second, empty echoed line right after the first.
func TestWriteInput_RawBypassesCarriageReturnAppend(t *testing.T) {
	sup, err := NewSupervisor(SpawnArgs{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	defer sup.Kill()

	var buf bytes.Buffer
	frames := make(chan struct{}, 64)
	sup.Run(func(b []byte) {
		buf.Write(b)
		select {
		case frames <- struct{}{}:
		default:
		}
	}, func(int) {})

	if _, err := sup.WriteInput([]byte("raw-bytes\n"), true); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !bytes.Contains(buf.Bytes(), []byte("raw-bytes\r\n")) {
		select {
		case <-frames:
		case <-deadline:
			t.Fatalf("timed out waiting for echoed input, got %q", buf.String())
		}
	}
	if bytes.Contains(buf.Bytes(), []byte("raw-bytes\r\n\r\n")) {
		t.Errorf("raw submission should not gain a trailing carriage return, got %q", buf.String())
	}
}
