// Package p2p relays WebRTC signalling between two browsers so they can
// open a direct data channel. The server only stores and replays messages.
package p2p

import (
	"errors"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

const (
	DefaultIdleTTL = 30 * time.Minute
	// MaxSignals bounds one room; a handshake needs a few dozen at most.
	MaxSignals = 512
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

type room struct {
	mu      sync.Mutex
	signals []types.P2PSignal
}

// Rooms holds signalling rooms. A room expires after it has seen no signal
// for the idle TTL.
type Rooms struct {
	cache *ttlworker.Cache[string, *room]
}

func NewRooms(idle time.Duration) *Rooms {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	return &Rooms{cache: ttlworker.NewCache[string, *room](idle)}
}

// Create opens an empty room and returns its id.
func (r *Rooms) Create() string {
	id := tool.GenerateShortID()
	r.cache.Set(id, &room{})
	tool.DefaultLogger.Debugf("[P2P] Room %s created", id)
	return id
}

// Signal appends a message to the room and keeps the room alive.
func (r *Rooms) Signal(roomID string, sig types.P2PSignal) error {
	rm := r.cache.Get(roomID)
	if rm == nil {
		return ErrRoomNotFound
	}
	rm.mu.Lock()
	if len(rm.signals) >= MaxSignals {
		rm.mu.Unlock()
		return ErrRoomFull
	}
	rm.signals = append(rm.signals, sig)
	rm.mu.Unlock()

	r.cache.Set(roomID, rm) // refresh expiry
	tool.DefaultLogger.Debugf("[P2P] Room %s: %s from %s", roomID, sig.Type, sig.From)
	return nil
}

// Poll returns the signals from index since on that were not sent by role,
// and the index to poll from next.
func (r *Rooms) Poll(roomID, role string, since int) ([]types.P2PSignal, int, error) {
	rm := r.cache.Get(roomID)
	if rm == nil {
		return nil, 0, ErrRoomNotFound
	}
	if since < 0 {
		since = 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]types.P2PSignal, 0)
	for i := since; i < len(rm.signals); i++ {
		if rm.signals[i].From != role {
			out = append(out, rm.signals[i])
		}
	}
	return out, len(rm.signals), nil
}
