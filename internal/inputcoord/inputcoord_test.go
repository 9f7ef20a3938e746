package inputcoord

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

func (f *fakeWriter) WriteInput(data []byte, raw bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return len(data), nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestCoordinator_SameSenderExecutesImmediately(t *testing.T) {
	c := New(Events{})
	defer c.Stop()
	w := &fakeWriter{}
	c.BindWriter("s1", w)

	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("a")})
	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("b")})

	require.Eventually(t, func() bool { return w.count() == 2 }, time.Second, time.Millisecond)
}

func TestCoordinator_DifferentSenderWithinWindowQueues(t *testing.T) {
	c := New(Events{})
	defer c.Stop()
	w := &fakeWriter{}
	c.BindWriter("s1", w)

	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("a")})
	c.Submit("s1", Submission{SenderID: "bob", Data: []byte("b")})

	// bob's submission should not execute immediately.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, w.count())

	// ...but should execute once the debounce window elapses.
	require.Eventually(t, func() bool { return w.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinator_RawBypassesDebounce(t *testing.T) {
	c := New(Events{})
	defer c.Stop()
	w := &fakeWriter{}
	c.BindWriter("s1", w)

	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("a")})
	c.Submit("s1", Submission{SenderID: "bob", Data: []byte("resize"), Raw: true})

	require.Eventually(t, func() bool { return w.count() == 2 }, time.Second, time.Millisecond)
}

func TestCoordinator_DrainClearsQueueAndTracker(t *testing.T) {
	c := New(Events{})
	defer c.Stop()
	w := &fakeWriter{}
	c.BindWriter("s1", w)

	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("a")})
	c.Submit("s1", Submission{SenderID: "bob", Data: []byte("b")})
	c.Drain("s1")

	time.Sleep(DebounceWindow + 100*time.Millisecond)
	assert.Equal(t, 1, w.count(), "queued submission must not execute after drain")
}

func TestCoordinator_WaitingClearedFiresOnEverySubmission(t *testing.T) {
	var cleared []string
	var mu sync.Mutex
	c := New(Events{OnWaitingCleared: func(sessionID string) {
		mu.Lock()
		defer mu.Unlock()
		cleared = append(cleared, sessionID)
	}})
	defer c.Stop()
	w := &fakeWriter{}
	c.BindWriter("s1", w)

	c.Submit("s1", Submission{SenderID: "alice", Data: []byte("a")})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cleared) == 1
	}, time.Second, time.Millisecond)
}
