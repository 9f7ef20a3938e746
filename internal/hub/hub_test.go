package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperstream/sessiond/internal/agentkind"
	"github.com/hyperstream/sessiond/internal/model"
	"github.com/hyperstream/sessiond/internal/registry"
)

func TestHub_ConnectEnforcesPerIPCap(t *testing.T) {
	h := New(registry.New(nil))
	h.maxPerIP = 2

	_, err := h.Connect("a", "1.2.3.4")
	require.NoError(t, err)
	_, err = h.Connect("b", "1.2.3.4")
	require.NoError(t, err)
	_, err = h.Connect("c", "1.2.3.4")
	assert.ErrorIs(t, err, ErrPerIPFull)
}

func TestHub_ConnectEnforcesTotalCap(t *testing.T) {
	h := New(registry.New(nil))
	h.maxConnections = 1

	_, err := h.Connect("a", "1.2.3.4")
	require.NoError(t, err)
	_, err = h.Connect("b", "5.6.7.8")
	assert.ErrorIs(t, err, ErrAdmissionFull)
}

func TestHub_BroadcastFrameDropsWhenMailboxFull(t *testing.T) {
	reg := registry.New(nil)
	sess := registry.NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	reg.Add(sess)
	h := New(reg)
	sub, err := h.Connect("a", "1.2.3.4")
	require.NoError(t, err)
	h.Subscribe(sub, sess.ID)

	// Drain the reconciliation pty_bytes message Subscribe queued.
	<-sub.Mailbox()

	for i := 0; i < mailboxSize+10; i++ {
		h.BroadcastFrame(model.OutputFrame{SessionID: sess.ID, Data: []byte("x")})
	}

	// The producer must not have blocked; mailbox holds at most its cap.
	count := 0
	for {
		select {
		case <-sub.Mailbox():
			count++
		default:
			assert.LessOrEqual(t, count, mailboxSize)
			return
		}
	}
}

func TestHub_BroadcastActivityDisconnectsOnFullMailbox(t *testing.T) {
	reg := registry.New(nil)
	sess := registry.NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	reg.Add(sess)
	h := New(reg)
	sub, err := h.Connect("a", "1.2.3.4")
	require.NoError(t, err)
	h.Subscribe(sub, sess.ID)
	<-sub.Mailbox()

	for i := 0; i < mailboxSize+1; i++ {
		h.BroadcastActivity(model.Activity{SessionID: sess.ID, Tag: model.ActivityText})
	}

	select {
	case <-sub.Closed():
	default:
		t.Fatal("expected subscriber to be disconnected once its activity mailbox filled")
	}
}
