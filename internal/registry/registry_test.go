package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperstream/sessiond/internal/agentkind"
	"github.com/hyperstream/sessiond/internal/model"
)

func TestRegistry_CreateGetClose(t *testing.T) {
	r := New(nil)
	s := NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	r.Add(s)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, got)

	require.NoError(t, r.Close(s.ID))
	assert.Equal(t, model.StatusClosed, got.Status())

	// Closing is monotonic: a second close is a no-op, not an error.
	require.NoError(t, r.Close(s.ID))
	assert.Equal(t, model.StatusClosed, got.Status())
}

func TestRegistry_DeleteUnknownSessionErrors(t *testing.T) {
	r := New(nil)
	err := r.Delete("does-not-exist")
	assert.Error(t, err)
}

func TestSession_HistoryRingEvictsOldestBytes(t *testing.T) {
	s := NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	s.AppendHistory(make([]byte, historyCapBytes-10))
	s.AppendHistory(make([]byte, 20))

	snap := s.HistorySnapshot()
	assert.Len(t, snap, historyCapBytes)
}

func TestSession_WaitingStateClearOnNil(t *testing.T) {
	s := NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	assert.Nil(t, s.WaitingState())

	s.SetWaitingState(&model.WaitingState{WaitKind: model.WaitAwaitingResponse})
	require.NotNil(t, s.WaitingState())

	s.SetWaitingState(nil)
	assert.Nil(t, s.WaitingState())
}

func TestRegistry_ReconcileOnStart_OrphansUnresurrectableActive(t *testing.T) {
	r := New(nil)
	s := NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	r.Add(s)

	r.ReconcileOnStart(func(string) bool { return false })
	assert.Equal(t, model.StatusClosed, s.Status())
}

func TestRegistry_Resume_RebindsClosedSessionToActive(t *testing.T) {
	r := New(nil)
	s := NewSession("term", "/tmp", agentkind.Unknown, "/bin/bash", "", nil)
	r.Add(s)
	require.NoError(t, r.Close(s.ID))
	require.Equal(t, model.StatusClosed, s.Status())

	require.NoError(t, r.Resume(s.ID, nil))
	assert.Equal(t, model.StatusActive, s.Status())
}

func TestRegistry_Resume_UnknownSessionErrors(t *testing.T) {
	r := New(nil)
	err := r.Resume("does-not-exist", nil)
	assert.Error(t, err)
}
