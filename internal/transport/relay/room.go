package relay

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// roomCodeAlphabet is a 31-character non-confusable alphabet (no 0/O,
// 1/I/L ambiguity) matching spec §4.H's "room codes have ≥75 bits of
// entropy" (31^16 ≈ 2^79.3 > 2^75; 15 characters would give only ≈ 2^74.3).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const roomCodeLength = 16

// Room expiry policy (spec §4.H admission).
const (
	unjoinedExpiry = 10 * time.Minute
	idleExpiry     = 1 * time.Hour
)

// GenerateRoomCode produces a random room code from the non-confusable
// alphabet.
func GenerateRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Room is a single host<->client rendezvous pairing. A room accepts at
// most one client.
type Room struct {
	Code string
	Key  []byte

	createdAt time.Time

	mu          sync.Mutex
	lastActive  time.Time
	clientJoined bool
}

// NewRoom allocates a room with a fresh code and key.
func NewRoom() (*Room, error) {
	code, err := GenerateRoomCode()
	if err != nil {
		return nil, err
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Room{Code: code, Key: key, createdAt: now, lastActive: now}, nil
}

// TryJoin admits a client if the room has none yet. Returns false if a
// client already joined.
func (r *Room) TryJoin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clientJoined {
		return false
	}
	r.clientJoined = true
	r.lastActive = time.Now()
	return true
}

// Touch records activity, resetting the idle-expiry clock.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()
}

// Expired reports whether the room should be torn down: no client ever
// joined within unjoinedExpiry, or idle beyond idleExpiry after joining.
func (r *Room) Expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.clientJoined {
		return now.Sub(r.createdAt) > unjoinedExpiry
	}
	return now.Sub(r.lastActive) > idleExpiry
}

// Registry tracks live rooms and expires them on a schedule.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry constructs an empty room Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create allocates and registers a new room.
func (reg *Registry) Create() (*Room, error) {
	room, err := NewRoom()
	if err != nil {
		return nil, err
	}
	reg.mu.Lock()
	reg.rooms[room.Code] = room
	reg.mu.Unlock()
	return room, nil
}

// Get looks up a room by code.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// Sweep removes every expired room, returning the codes removed.
func (reg *Registry) Sweep(now time.Time) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var removed []string
	for code, r := range reg.rooms {
		if r.Expired(now) {
			delete(reg.rooms, code)
			removed = append(removed, code)
		}
	}
	return removed
}
