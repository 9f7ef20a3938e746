package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// ControlFrame is a plaintext room-control message the rendezvous may send
// or receive; these are never encrypted (spec §4.H wire format).
type ControlFrame struct {
	Type    string `json:"type"` // room_created | client_joined | client_left | host_left | error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// reconnectInitial, reconnectCap match spec §4.H: "initial 1s, doubling,
// cap 30s".
const (
	reconnectInitial = 1 * time.Second
	reconnectCap     = 30 * time.Second
)

// HostConn maintains the host side of a relay channel: connect to a
// rendezvous URL, establish a room, and exchange encrypted application
// messages while transparently reconnecting on transport loss.
type HostConn struct {
	URLs []string // primary rendezvous URL plus configured backups, tried in order

	Key  []byte
	Code string

	conn *websocket.Conn
}

// Connect opens a channel to the first reachable rendezvous in h.URLs and
// waits for its room_created control frame.
func (h *HostConn) Connect(ctx context.Context) error {
	var lastErr error
	for _, url := range h.URLs {
		conn, _, err := websocket.Dial(ctx, url+"/host", nil)
		if err != nil {
			lastErr = err
			continue
		}
		h.conn = conn

		var frame ControlFrame
		if err := wsjson(ctx, conn, &frame); err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			lastErr = err
			continue
		}
		if frame.Type != "room_created" {
			conn.Close(websocket.StatusInternalError, "unexpected control frame")
			lastErr = ErrUnexpectedControlFrame
			continue
		}
		h.Code = frame.Code
		return nil
	}
	return lastErr
}

// ErrUnexpectedControlFrame is returned when the rendezvous's first frame
// isn't room_created.
var ErrUnexpectedControlFrame = roomErr("relay: expected room_created control frame")

type roomErr string

func (e roomErr) Error() string { return string(e) }

// SendEncrypted seals plaintext under h.Key and writes it as a text frame.
func (h *HostConn) SendEncrypted(ctx context.Context, plaintext []byte) error {
	blob, err := Seal(h.Key, plaintext)
	if err != nil {
		return err
	}
	return h.conn.Write(ctx, websocket.MessageText, []byte(blob))
}

// ReceiveEncrypted reads one frame and decrypts it. A ControlFrame arrives
// as plaintext JSON and is returned via the second return value instead.
func (h *HostConn) ReceiveEncrypted(ctx context.Context) (plaintext []byte, control *ControlFrame, err error) {
	_, data, err := h.conn.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	var cf ControlFrame
	if json.Unmarshal(data, &cf) == nil && cf.Type != "" {
		return nil, &cf, nil
	}
	plaintext, err = Open(h.Key, string(data))
	return plaintext, nil, err
}

// RunWithReconnect keeps the host channel alive, reconnecting with
// exponential backoff (1s doubling, 30s cap) across h.URLs on transport
// loss, until ctx is cancelled. onConnected, if non-nil, is called with the
// room code after every successful (re)connect, since a reconnect mints a
// fresh room.
func (h *HostConn) RunWithReconnect(ctx context.Context, onFrame func([]byte), onControl func(ControlFrame), onConnected func(code string)) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitial
	b.MaxInterval = reconnectCap
	b.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.Connect(ctx); err != nil {
			wait := b.NextBackOff()
			log.Warn().Err(err).Dur("retry_in", wait).Msg("relay: reconnect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		if onConnected != nil {
			onConnected(h.Code)
		}

		for {
			plaintext, control, err := h.ReceiveEncrypted(ctx)
			if errors.Is(err, ErrDecryptFailed) {
				// Not a transport loss: drop the frame and keep the channel.
				log.Debug().Err(err).Msg("relay: dropping undecryptable frame")
				continue
			}
			if err != nil {
				break
			}
			if control != nil {
				onControl(*control)
				continue
			}
			onFrame(plaintext)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func wsjson(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
