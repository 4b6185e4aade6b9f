// Package stream serves one long-lived push stream per connection.
//
// A Session moves CONNECTING -> OPEN -> CLOSED. Opening attaches a subscription,
// sends the peers snapshot and announces the device if it had no other open
// session; while open it writes queued
// frames and a keepalive whenever the queue stays quiet for the keepalive
// interval; closing detaches the subscription.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moyoez/snapshare/eventbus"
	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// DefaultKeepalive is the longest a stream stays silent.
const DefaultKeepalive = 20 * time.Second

// ErrNotOpen is returned by Run on a session that is not open.
var ErrNotOpen = errors.New("stream: session not open")

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// FrameWriter is the transport under a session.
type FrameWriter interface {
	// WriteFrame writes one encoded event frame and flushes it.
	WriteFrame(frame []byte) error
	// WriteKeepalive writes a non-event frame that keeps the connection alive.
	WriteKeepalive() error
	// Transport names the transport for metrics and logs.
	Transport() string
}

// Presence is the part of the device registry a session needs.
type Presence interface {
	Register(id, userAgent, ip string) types.DeviceInfo
	Get(id string) (types.DeviceInfo, bool)
	Touch(id string) bool
	List(excludeID string) []types.DeviceInfo
	Attach(id string) *eventbus.Subscription
}

// Broadcaster publishes an event to every device but excludeID.
type Broadcaster interface {
	Broadcast(eventType string, payload any, excludeID string) int
}

// Streamer opens sessions against one registry and bus.
//
// A device is announced with device-joined when its first session opens and
// with device-left when its last open session closes. Both decisions and
// their broadcasts happen under mu, so peers never see them out of order.
type Streamer struct {
	presence  Presence
	bus       Broadcaster
	keepalive time.Duration

	mu   sync.Mutex
	open map[string]int // open sessions per device
}

func NewStreamer(presence Presence, bus Broadcaster, keepalive time.Duration) *Streamer {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	return &Streamer{
		presence:  presence,
		bus:       bus,
		keepalive: keepalive,
		open:      make(map[string]int),
	}
}

// OpenSessions returns the number of open sessions of deviceID.
func (s *Streamer) OpenSessions(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[deviceID]
}

func (s *Streamer) joined(info types.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[info.ID]++
	if s.open[info.ID] == 1 {
		s.bus.Broadcast(types.EventDeviceJoined, info, info.ID)
	}
}

func (s *Streamer) left(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[deviceID]--
	if s.open[deviceID] > 0 {
		return
	}
	delete(s.open, deviceID)
	s.bus.Broadcast(types.EventDeviceLeft, types.DeviceLeftPayload{ID: deviceID}, deviceID)
}

// Session is one open push stream of one device.
type Session struct {
	streamer *Streamer
	info     types.DeviceInfo
	w        FrameWriter
	sub      *eventbus.Subscription
	state    atomic.Int32
}

// Open moves a new session to OPEN. Unknown ids are registered from userAgent
// and ip first. If the snapshot cannot be written the session is closed and
// the write error returned.
func (s *Streamer) Open(deviceID, userAgent, ip string, w FrameWriter) (*Session, error) {
	sess := &Session{streamer: s, w: w}
	sess.state.Store(int32(StateConnecting))

	info, ok := s.presence.Get(deviceID)
	if !ok {
		info = s.presence.Register(deviceID, userAgent, ip)
		tool.DefaultLogger.Debugf("[Stream] Auto-registered %s (%s)", deviceID, info.Name)
	}
	sess.info = info

	sub := s.presence.Attach(deviceID)
	if sub == nil {
		// evicted between register and attach; register again
		s.presence.Register(deviceID, userAgent, ip)
		if sub = s.presence.Attach(deviceID); sub == nil {
			sess.state.Store(int32(StateClosed))
			return nil, fmt.Errorf("attach %s: device not registered", deviceID)
		}
	}
	sess.sub = sub

	frame, err := eventbus.Encode(types.EventPeers, s.presence.List(deviceID))
	if err == nil {
		err = w.WriteFrame(frame)
	}
	if err != nil {
		// never announced, so nothing to take back
		sub.Close()
		sess.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("write peers snapshot: %w", err)
	}

	sess.state.Store(int32(StateOpen))
	metrics.StreamOpened(w.Transport())
	tool.DefaultLogger.Infof("[Stream] %s %s (%s) connected", w.Transport(), info.Name, deviceID)

	s.joined(info)
	return sess, nil
}

// Info returns the identity of the session's device.
func (sess *Session) Info() types.DeviceInfo { return sess.info }

func (sess *Session) State() State { return State(sess.state.Load()) }

// Run writes queued frames until ctx is done, the subscription is closed or a
// write fails, then closes the session. A failed write means the peer went
// away and is not reported as an error.
func (sess *Session) Run(ctx context.Context) error {
	if sess.State() != StateOpen {
		return ErrNotOpen
	}
	defer sess.Close()

	keepalive := sess.streamer.keepalive
	timer := time.NewTimer(keepalive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.sub.Done():
			return nil
		case frame := <-sess.sub.C():
			if err := sess.w.WriteFrame(frame); err != nil {
				tool.DefaultLogger.Debugf("[Stream] Write to %s failed: %v", sess.info.ID, err)
				return nil
			}
		case <-timer.C:
			if err := sess.w.WriteKeepalive(); err != nil {
				tool.DefaultLogger.Debugf("[Stream] Keepalive to %s failed: %v", sess.info.ID, err)
				return nil
			}
			sess.streamer.presence.Touch(sess.info.ID)
		}
		timer.Reset(keepalive)
	}
}

// Close moves the session to CLOSED and detaches its subscription. When that
// was the device's last open session, the other devices are told it left.
func (sess *Session) Close() {
	if !sess.state.CompareAndSwap(int32(StateOpen), int32(StateClosed)) {
		sess.state.CompareAndSwap(int32(StateConnecting), int32(StateClosed))
		return
	}
	if sess.sub.Close() {
		tool.DefaultLogger.Debugf("[Stream] %s has no subscriptions left", sess.info.ID)
	}
	metrics.StreamClosed(sess.w.Transport())
	tool.DefaultLogger.Infof("[Stream] %s %s (%s) disconnected", sess.w.Transport(), sess.info.Name, sess.info.ID)
	sess.streamer.left(sess.info.ID)
}
