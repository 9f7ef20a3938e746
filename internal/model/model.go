// Package model holds the data types shared across the session-streaming
// core: SessionStatus, WaitingState, Activity, OutputFrame and
// PushRegistration. The Session type lives in package registry and the
// Subscriber type in package hub.
package model

import "time"

// SessionStatus is a Session's lifecycle state. Closing is monotonic: once
// closed, a session is never re-activated.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusClosed   SessionStatus = "closed"
	StatusOrphaned SessionStatus = "orphaned"
)

// WaitKind categorizes what a session is blocked on.
type WaitKind string

const (
	WaitToolApproval       WaitKind = "tool_approval"
	WaitPlanApproval       WaitKind = "plan_approval"
	WaitClarifyingQuestion WaitKind = "clarifying_question"
	WaitAwaitingResponse   WaitKind = "awaiting_response"
)

// ApprovalModel is the input convention an agent uses for approval prompts.
type ApprovalModel string

const (
	ApprovalNumbered ApprovalModel = "numbered"
	ApprovalYesNo    ApprovalModel = "yes_no"
	ApprovalArrow    ApprovalModel = "arrow"
	ApprovalNone     ApprovalModel = "none"
)

// WaitingState records that a session is blocked on a specific kind of
// input. Cleared atomically whenever any input is delivered into the
// session (spec invariant); an unchanged PromptFingerprint must not re-fire
// a notification.
type WaitingState struct {
	WaitKind         WaitKind
	ApprovalModel    ApprovalModel
	PromptSnippet    string // last <=300 chars, control sequences stripped
	PromptFingerprint string // stable hash of PromptSnippet
	DetectedAt       time.Time
}

// ActivityTag categorizes a structured event derived from an agent's log
// (or, while streaming, from PTY heuristics).
type ActivityTag string

const (
	ActivityUserPrompt  ActivityTag = "user_prompt"
	ActivityText        ActivityTag = "text"
	ActivityThinking    ActivityTag = "thinking"
	ActivityToolStart   ActivityTag = "tool_start"
	ActivityToolResult  ActivityTag = "tool_result"
	ActivityFileRead    ActivityTag = "file_read"
	ActivityFileWrite   ActivityTag = "file_write"
	ActivityBashCommand ActivityTag = "bash_command"
	ActivityCodeDiff    ActivityTag = "code_diff"
	ActivityProgress    ActivityTag = "progress"
	ActivitySummary     ActivityTag = "summary"
)

// ActivitySource marks which log format an Activity was derived from, so
// subscribers can reconcile streaming PTY activities with authoritative
// log-derived ones sharing a UUID.
type ActivitySource string

const (
	SourceJSONL    ActivitySource = "jsonl"
	SourceGemini   ActivitySource = "gemini"
	SourceCodex    ActivitySource = "codex"
	SourceOpenCode ActivitySource = "opencode"
	SourcePTY      ActivitySource = "" // streaming, not yet reconciled with a log
)

// Activity is an append-only, monotonically timestamped event derived from
// an agent's on-disk log (or, when Streaming is true, from PTY heuristics
// pending log confirmation). Log-derived activities are idempotent keyed
// on UUID; duplicates must be suppressed by the caller.
type Activity struct {
	SessionID   string
	Tag         ActivityTag
	Content     string
	ToolName    string
	ToolParams  any
	FilePath    string
	UUID        string // stable id from the source log, empty if none assigned
	Streaming   bool   // true only for interim PTY-derived activities
	Source      ActivitySource
	Timestamp   time.Time
}

// OutputFrame is a raw byte slice produced by a session's PTY. Frames are
// ordered per session by production time; across sessions no order is
// defined. A frame is never rewritten.
type OutputFrame struct {
	SessionID string
	Data      []byte
	Seq       uint64
}

// PushRegistration is an opaque device token for notification delivery,
// deduplicated by Token. Lifetime is the process lifetime; no disk
// persistence is required of the core.
type PushRegistration struct {
	Token    string
	Vendor   string
	Platform string
}
