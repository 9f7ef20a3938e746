package local

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperstream/sessiond/internal/hub"
	"github.com/hyperstream/sessiond/internal/model"
)

// Pump timing constants, adapted from the teacher's WebSocket client pump.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// sendTimeout is the per-subscriber send timeout (spec §5): if an outbound
// send blocks longer than this, the subscriber is disconnected.
const sendTimeout = 500 * time.Millisecond

// Client owns one subscriber's WebSocket connection and bridges it to the
// Fan-out Hub's Subscriber mailbox.
type Client struct {
	conn *websocket.Conn
	sub  *hub.Subscriber

	handle func(ClientMessage)
}

// NewClient wraps conn for a given hub.Subscriber. handle is invoked for
// every parsed inbound ClientMessage.
func NewClient(conn *websocket.Conn, sub *hub.Subscriber, handle func(ClientMessage)) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{conn: conn, sub: sub, handle: handle}
}

// ReadPump reads inbound frames until the connection closes. Binary frames
// carry raw PTY bytes for a subscriber that opted into the binary path;
// text frames are parsed as ClientMessage JSON.
func (c *Client) ReadPump() {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			// Raw PTY input bytes, bypassing the JSON envelope.
			c.handle(ClientMessage{Type: "send_input", Raw: true, Data: base64.StdEncoding.EncodeToString(data)})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

// WritePump drains the subscriber's mailbox and a ping ticker, serializing
// every OutboundMessage, pty_bytes included, to a JSON text frame; there is
// no binary output path.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Mailbox():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			wire := ToServerMessage(msg)
			payload, err := json.Marshal(wire)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.sub.Closed():
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ToServerMessage translates a hub.OutboundMessage into its wire shape.
// Exported so other transports (e.g. the Relay Transport) sharing this
// subscriber can reuse the same encoding instead of re-deriving it.
func ToServerMessage(msg hub.OutboundMessage) ServerMessage {
	out := ServerMessage{Type: msg.Kind, SessionID: msg.Session}
	if msg.Frame != nil {
		out.Data = base64.StdEncoding.EncodeToString(msg.Frame.Data)
	}
	if msg.Activity != nil {
		a := msg.Activity
		out.ActivityType = string(a.Tag)
		out.Content = a.Content
		out.ToolName = a.ToolName
		out.ToolParams = a.ToolParams
		out.FilePath = a.FilePath
		out.IsStreaming = a.Streaming
		out.UUID = a.UUID
		out.Source = string(a.Source)
		out.Timestamp = ""
		if !a.Timestamp.IsZero() {
			out.Timestamp = a.Timestamp.Format(time.RFC3339)
		}
	}
	if msg.Waiting != nil {
		out.WaitType = string(msg.Waiting.WaitKind)
		out.PromptContent = msg.Waiting.PromptSnippet
		out.Timestamp = msg.Waiting.DetectedAt.Format(time.RFC3339)
	}
	if msg.Lifecycle != "" {
		out.Type = "session_" + msg.Lifecycle
	}
	if msg.Error != "" {
		out.Message = msg.Error
	}
	if msg.Sessions != nil {
		out.Sessions = make([]SessionListItem, len(msg.Sessions))
		for i, s := range msg.Sessions {
			out.Sessions[i] = SessionListItem{
				SessionID: s.ID, Name: s.Name, Command: s.Command,
				ProjectPath: s.ProjectPath, WSPort: s.WSPort,
				StartedAt: s.StartedAt.Format(time.RFC3339), CLIType: s.CLIType,
			}
		}
	}
	if msg.Activities != nil {
		wires := make([]ActivityWire, len(msg.Activities))
		for i, a := range msg.Activities {
			wires[i] = activityWire(a)
		}
		switch msg.Kind {
		case "messages":
			out.Messages = wires
		default:
			out.Activities = wires
		}
	}
	if msg.Kind == "file_uploaded" || msg.Kind == "upload_error" {
		out.Path = msg.Path
		out.Filename = msg.Filename
	}
	if msg.Kind == "push_token_registered" {
		out.TokenType = msg.TokenType
		out.Platform = msg.Platform
	}
	if msg.Kind == "input_state" {
		out.Text = msg.InputText
		out.CursorPosition = msg.CursorPosition
		out.SenderID = msg.SenderID
		out.Timestamp = time.Now().Format(time.RFC3339)
	}
	return out
}

func activityWire(a model.Activity) ActivityWire {
	w := ActivityWire{
		UUID: a.UUID, ActivityType: string(a.Tag), Content: a.Content,
		ToolName: a.ToolName, ToolParams: a.ToolParams, FilePath: a.FilePath,
		IsStreaming: a.Streaming, Source: string(a.Source),
	}
	if !a.Timestamp.IsZero() {
		w.Timestamp = a.Timestamp.Format(time.RFC3339)
	}
	return w
}
