package local

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperstream/sessiond/internal/hub"
	"github.com/hyperstream/sessiond/internal/registry"
)

func newTestServer(t *testing.T, authToken string) (*httptest.Server, *Server) {
	t.Helper()
	reg := registry.New(nil)
	h := hub.New(reg)
	srv := NewServer(h, func(sub *hub.Subscriber, msg ClientMessage) {})
	srv.AuthToken = authToken

	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	return ts, srv
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleWS_NoAuthTokenConfigured_AlwaysAuthenticated(t *testing.T) {
	ts, _ := newTestServer(t, "")
	conn := dial(t, ts)

	var welcome ServerMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.True(t, welcome.Authenticated)
}

func TestHandleWS_CorrectAuthToken_Authenticated(t *testing.T) {
	ts, _ := newTestServer(t, "s3cr3t")
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "hello", AuthToken: "s3cr3t"}))

	var welcome ServerMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.True(t, welcome.Authenticated)
}

func TestHandleWS_WrongAuthToken_NotAuthenticated(t *testing.T) {
	ts, _ := newTestServer(t, "s3cr3t")
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "hello", AuthToken: "wrong"}))

	var welcome ServerMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.False(t, welcome.Authenticated)
}

func TestHandleWS_MissingHello_NotAuthenticatedWhenTokenConfigured(t *testing.T) {
	orig := helloTimeout
	helloTimeout = 100 * time.Millisecond
	t.Cleanup(func() { helloTimeout = orig })

	ts, _ := newTestServer(t, "s3cr3t")
	conn := dial(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome ServerMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.False(t, welcome.Authenticated)
}
