package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hyperstream/sessiond/internal/hub"
	"github.com/hyperstream/sessiond/internal/model"
)

func TestToServerMessage_Frame(t *testing.T) {
	msg := hub.OutboundMessage{
		Kind: "pty_bytes", Session: "s1",
		Frame: &model.OutputFrame{SessionID: "s1", Data: []byte("hello")},
	}
	out := ToServerMessage(msg)
	assert.Equal(t, "pty_bytes", out.Type)
	assert.Equal(t, "aGVsbG8=", out.Data)
}

func TestToServerMessage_Activity(t *testing.T) {
	now := time.Now()
	msg := hub.OutboundMessage{
		Kind: "activity", Session: "s1",
		Activity: &model.Activity{
			SessionID: "s1", Tag: model.ActivityText, Content: "hi",
			UUID: "u1", Source: model.SourceJSONL, Timestamp: now,
		},
	}
	out := ToServerMessage(msg)
	assert.Equal(t, "text", out.ActivityType)
	assert.Equal(t, "hi", out.Content)
	assert.Equal(t, "u1", out.UUID)
	assert.Equal(t, "jsonl", out.Source)
}

func TestToServerMessage_Lifecycle(t *testing.T) {
	msg := hub.OutboundMessage{Kind: "lifecycle", Session: "s1", Lifecycle: "closed"}
	out := ToServerMessage(msg)
	assert.Equal(t, "session_closed", out.Type)
	assert.Equal(t, "s1", out.SessionID)
}
