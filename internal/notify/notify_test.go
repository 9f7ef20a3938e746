package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperstream/sessiond/internal/model"
)

type captureDispatcher struct {
	mu    sync.Mutex
	sends []string
}

func (c *captureDispatcher) Send(title, body string, _ []model.PushRegistration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, title)
	return nil
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func TestAdapter_SingleFirePerPromptFingerprint(t *testing.T) {
	d := &captureDispatcher{}
	a := New(d)

	ws := &model.WaitingState{WaitKind: model.WaitToolApproval, PromptFingerprint: "fp1"}
	a.OnWaitingState("s1", ws, nil)
	a.OnWaitingState("s1", ws, nil) // identical transition must not re-fire

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.count())
}

func TestAdapter_WaitingClearedResetsGuard(t *testing.T) {
	d := &captureDispatcher{}
	a := New(d)

	ws := &model.WaitingState{WaitKind: model.WaitAwaitingResponse, PromptFingerprint: "fp1"}
	a.OnWaitingState("s1", ws, nil)
	a.OnWaitingState("s1", nil, nil) // waiting_cleared
	a.OnWaitingState("s1", ws, nil)  // same fingerprint again, after a clear

	require.Eventually(t, func() bool { return d.count() == 2 }, time.Second, time.Millisecond)
}

func TestBuild_ClarifyingQuestionTruncatesBody(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	ws := &model.WaitingState{WaitKind: model.WaitClarifyingQuestion, PromptSnippet: string(long)}
	n := build("s1", ws)
	assert.Equal(t, "Question", n.Title)
	assert.Len(t, n.Body, snippetTruncateLen)
}
