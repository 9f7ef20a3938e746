package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte(`{"type":"send_input","text":"hello"}`)
	blob, err := Seal(key, plaintext)
	require.NoError(t, err)

	got, err := Open(key, blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpen_MismatchedKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	blob, err := Seal(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(key2, blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpen_TamperedCiphertextFails(t *testing.T) {
	key, _ := GenerateKey()
	blob, err := Seal(key, []byte("secret"))
	require.NoError(t, err)

	tampered := blob[:len(blob)-4] + "AAAA"
	_, err = Open(key, tampered)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestRoom_AcceptsAtMostOneClient(t *testing.T) {
	room, err := NewRoom()
	require.NoError(t, err)

	assert.True(t, room.TryJoin())
	assert.False(t, room.TryJoin())
}

func TestRateLimiter_EnforcesPerIPLimit(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	for i := 0; i < roomCreateLimit; i++ {
		assert.True(t, rl.Allow("1.2.3.4", now))
	}
	assert.False(t, rl.Allow("1.2.3.4", now))
	assert.True(t, rl.Allow("5.6.7.8", now), "a different source IP must have its own budget")
}
