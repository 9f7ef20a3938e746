package local

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperstream/sessiond/internal/hub"
)

// bindRetries and the initial backoff match spec §4.G: "five attempts
// starting at 500 ms".
const bindRetries = 5

// helloTimeout bounds how long awaitHello waits for a leading hello frame
// when AuthToken is configured. Var rather than const so tests can shrink
// it.
var helloTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts inbound subscriber connections and upgrades them to a
// framed full-duplex channel over the Fan-out Hub.
type Server struct {
	Hub *hub.Hub

	// Dispatch is called for every parsed inbound ClientMessage, with the
	// hub.Subscriber it arrived from. It owns translating client messages
	// into hub/registry/inputcoord operations.
	Dispatch func(sub *hub.Subscriber, msg ClientMessage)

	// AuthToken, when non-empty, is compared against every connection's
	// hello.auth_token before welcome.authenticated is set true. Left
	// empty (the default for a local daemon), every hello is treated as
	// authenticated.
	AuthToken string

	mux *http.ServeMux
}

// NewServer builds a Server wired to h.
func NewServer(h *hub.Hub, dispatch func(sub *hub.Subscriber, msg ClientMessage)) *Server {
	s := &Server{Hub: h, Dispatch: dispatch, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	return s
}

// ListenAndServe binds addr with retry-with-backoff (five attempts
// starting at 500ms), enabling SO_REUSEADDR (and SO_REUSEPORT where
// available) so the daemon survives quick restarts, then serves until the
// listener is closed.
func (s *Server) ListenAndServe(addr string) error {
	var lc net.ListenConfig
	lc.Control = setReuseAddr

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	retrier := backoff.WithMaxRetries(b, bindRetries-1)

	var ln net.Listener
	err := backoff.Retry(func() error {
		var bindErr error
		ln, bindErr = lc.Listen(context.Background(), "tcp", addr)
		if bindErr != nil {
			log.Warn().Err(bindErr).Str("addr", addr).Msg("local transport: bind attempt failed")
		}
		return bindErr
	}, retrier)
	if err != nil {
		return fmt.Errorf("bind_failed: %w", err)
	}

	return http.Serve(ln, s.mux)
}

// awaitHello reads a single leading hello frame (if the client sends one
// as its first message) and reports whether the connection is
// authenticated. An empty s.AuthToken makes every connection authenticated
// (auth is opt-in per spec §6); with a token configured, a missing or
// malformed hello, or a wrong token, is not authenticated.
func (s *Server) awaitHello(conn *websocket.Conn) bool {
	if s.AuthToken == "" {
		return true
	}

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msgType, data, err := conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		return false
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "hello" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(msg.AuthToken), []byte(s.AuthToken)) == 1
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	sub, err := s.Hub.Connect(fmt.Sprintf("%p", conn), addr)
	if err != nil {
		conn.WriteJSON(ServerMessage{Type: "error", Code: "admission_denied", Message: err.Error()})
		conn.Close()
		return
	}
	defer s.Hub.Disconnect(sub)

	client := NewClient(conn, sub, func(msg ClientMessage) {
		s.Dispatch(sub, msg)
	})

	authenticated := s.awaitHello(conn)

	welcome := ServerMessage{Type: "welcome", ServerVersion: "1.0", Authenticated: authenticated}
	conn.WriteJSON(welcome)

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()
	client.ReadPump()
	<-done
}
