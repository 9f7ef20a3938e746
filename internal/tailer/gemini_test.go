package tailer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperstream/sessiond/internal/model"
)

func writeGeminiFile(t *testing.T, path string, messages string) {
	t.Helper()
	content := `{"messages":[` + messages + `]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGeminiTailer_OnlyEmitsMessagesBeyondInitialCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.json")
	writeGeminiFile(t, path, `{"id":"m1","role":"user","content":"hi"}`)

	tailer := NewGeminiTailer(path)
	require.Equal(t, 1, tailer.lastCount)

	writeGeminiFile(t, path,
		`{"id":"m1","role":"user","content":"hi"},{"id":"m2","role":"assistant","type":"text","content":"hello"}`)

	var got []model.Activity
	tailer.readAndEmit(func(a model.Activity) { got = append(got, a) })

	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].UUID)
	assert.Equal(t, model.ActivityText, got[0].Tag)
}

func TestGeminiTailer_DedupOnRewriteWithoutAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.json")
	writeGeminiFile(t, path, `{"id":"m1","role":"user","content":"hi"},{"id":"m2","role":"assistant","type":"text","content":"hello"}`)

	tailer := NewGeminiTailer(path)
	tailer.lastCount = 0 // simulate: tailer started before either message existed

	var got []model.Activity
	tailer.readAndEmit(func(a model.Activity) { got = append(got, a) })
	require.Len(t, got, 2)

	// Rewrite same content (e.g. agent re-saved without appending).
	writeGeminiFile(t, path, `{"id":"m1","role":"user","content":"hi"},{"id":"m2","role":"assistant","type":"text","content":"hello"}`)
	got = nil
	tailer.readAndEmit(func(a model.Activity) { got = append(got, a) })
	assert.Empty(t, got, "rewritten file without growth must not re-emit")
}

func TestJSONLTailer_OffsetOnlyReadsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"message","uuid":"u1","message":{"role":"assistant","content":[{"type":"text","text":"first"}]}}`+"\n"), 0o644))

	tailer := NewClaudeTailer(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"message","uuid":"u2","message":{"role":"assistant","content":[{"type":"text","text":"second"}]}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []model.Activity
	tailer.readAndEmit(func(a model.Activity) { got = append(got, a) })

	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].UUID)
	assert.Equal(t, "second", got[0].Content)
}
