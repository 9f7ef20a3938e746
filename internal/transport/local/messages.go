// Package local is the Local Transport: a framed full-duplex WebSocket
// channel between a subscriber and the Fan-out Hub, bound on a local TCP
// port (spec §4.G).
package local

// ClientMessage is the discriminated envelope every inbound subscriber
// message is parsed into (spec §6 client message set).
type ClientMessage struct {
	Type string `json:"type"`

	ClientVersion string `json:"client_version,omitempty"`
	AuthToken     string `json:"auth_token,omitempty"`

	SessionID string `json:"session_id,omitempty"`

	Text        string `json:"text,omitempty"`
	Raw         bool   `json:"raw,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`

	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`

	Limit int `json:"limit,omitempty"`

	ProjectPath           string `json:"project_path,omitempty"`
	Name                  string `json:"name,omitempty"`
	CLIType               string `json:"cli_type,omitempty"`
	ClaudeSkipPermissions bool   `json:"claude_skip_permissions,omitempty"`
	CodexApprovalPolicy   string `json:"codex_approval_policy,omitempty"`

	NewName string `json:"new_name,omitempty"`

	Response string `json:"response,omitempty"` // yes | yes_always | no

	Path string `json:"path,omitempty"`

	Filename string `json:"filename,omitempty"`
	Data     string `json:"data,omitempty"` // base64
	MimeType string `json:"mime_type,omitempty"`

	CursorPosition int    `json:"cursor_position,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`

	Token     string `json:"token,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// ServerMessage is the discriminated envelope every outbound message is
// serialized from (spec §6 server message set).
type ServerMessage struct {
	Type string `json:"type"`

	ServerVersion string `json:"server_version,omitempty"`
	Authenticated bool   `json:"authenticated,omitempty"`

	Sessions []SessionListItem `json:"sessions,omitempty"`
	Session  *SessionListItem  `json:"session,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	NewName   string `json:"new_name,omitempty"`

	Messages   []ActivityWire `json:"messages,omitempty"`
	Activities []ActivityWire `json:"activities,omitempty"`

	Data   string `json:"data,omitempty"` // base64 pty bytes
	Output string `json:"output,omitempty"`

	Timestamp      string `json:"timestamp,omitempty"`
	PromptContent  string `json:"prompt_content,omitempty"`
	WaitType       string `json:"wait_type,omitempty"`
	CLIType        string `json:"cli_type,omitempty"`
	Response       string `json:"response,omitempty"`

	ActivityType string `json:"activity_type,omitempty"`
	Content      string `json:"content,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ToolParams   any    `json:"tool_params,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	IsStreaming  bool   `json:"is_streaming,omitempty"`
	UUID         string `json:"uuid,omitempty"`
	Source       string `json:"source,omitempty"`

	Path    string            `json:"path,omitempty"`
	Entries []DirectoryEntry  `json:"entries,omitempty"`
	Success bool              `json:"success,omitempty"`

	Filename string `json:"filename,omitempty"`

	Text           string `json:"text,omitempty"`
	CursorPosition int    `json:"cursor_position,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`

	TokenType string `json:"token_type,omitempty"`
	Platform  string `json:"platform,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SessionListItem mirrors spec §6's session list item shape.
type SessionListItem struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	ProjectPath string `json:"project_path"`
	WSPort      int    `json:"ws_port"`
	StartedAt   string `json:"started_at"`
	CLIType     string `json:"cli_type"`
}

// ActivityWire is the wire shape of a model.Activity for the activities
// list reply.
type ActivityWire struct {
	UUID         string `json:"uuid,omitempty"`
	ActivityType string `json:"activity_type"`
	Content      string `json:"content"`
	ToolName     string `json:"tool_name,omitempty"`
	ToolParams   any    `json:"tool_params,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	IsStreaming  bool   `json:"is_streaming"`
	Timestamp    string `json:"timestamp"`
	Source       string `json:"source,omitempty"`
}

// DirectoryEntry is one entry in a directory_listing reply.
type DirectoryEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}
