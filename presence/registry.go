// Package presence tracks which devices are on the network and which of
// them currently hold an open event stream.
package presence

import (
	"sync"
	"time"

	"github.com/moyoez/snapshare/eventbus"
	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/types"
)

// DefaultTTL is how long a device stays listed without activity.
const DefaultTTL = 60 * time.Second

type device struct {
	info      types.DeviceInfo
	ip        string
	userAgent string
	lastSeen  time.Time
	subs      map[*eventbus.Subscription]struct{}
}

// Registry maps device ids to their identity, liveness and subscriptions.
//
// Every method takes the one registry lock for map work only. Nothing is sent
// or written while it is held; callers get snapshots back.
type Registry struct {
	mu       sync.Mutex
	devices  map[string]*device
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTTL sets the presence TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithQueueCapacity sets the queue depth of subscriptions created by Attach.
func WithQueueCapacity(capacity int) Option {
	return func(r *Registry) {
		if capacity > 0 {
			r.capacity = capacity
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		devices:  make(map[string]*device),
		ttl:      DefaultTTL,
		capacity: eventbus.DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the presence TTL in use.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Register creates the device on first sight and refreshes lastSeen and the
// source address afterwards. Name and icon never change for an id.
func (r *Registry) Register(id, userAgent, ip string) types.DeviceInfo {
	// derived outside the lock, hashing is not map work
	info := types.DeviceInfo{
		ID:   id,
		Name: DeviceName(id),
		Icon: DeviceIcon(id),
		Type: DetectDeviceType(userAgent),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if d, ok := r.devices[id]; ok {
		d.lastSeen = now
		d.ip = ip
		return d.info
	}
	r.devices[id] = &device{
		info:      info,
		ip:        ip,
		userAgent: userAgent,
		lastSeen:  now,
		subs:      make(map[*eventbus.Subscription]struct{}),
	}
	metrics.SetDevicesRegistered(len(r.devices))
	return info
}

// Touch refreshes lastSeen of id. It reports false for unknown ids.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if ok {
		d.lastSeen = r.now()
	}
	return ok
}

// Get returns the identity of id.
func (r *Registry) Get(id string) (types.DeviceInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return types.DeviceInfo{}, false
	}
	return d.info, true
}

// List returns the devices seen within the TTL, without excludeID.
// Order is not significant.
func (r *Registry) List(excludeID string) []types.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]types.DeviceInfo, 0, len(r.devices))
	for id, d := range r.devices {
		if id == excludeID || now.Sub(d.lastSeen) >= r.ttl {
			continue
		}
		out = append(out, d.info)
	}
	return out
}

// Len returns the number of devices held, listed or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Attach opens a new subscription for id and refreshes lastSeen. It returns
// nil when id is not registered. Closing the subscription detaches it again.
func (r *Registry) Attach(id string) *eventbus.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil
	}
	var sub *eventbus.Subscription
	sub = eventbus.NewSubscription(id, r.capacity, func() bool { return r.detach(id, sub) })
	d.subs[sub] = struct{}{}
	d.lastSeen = r.now()
	return sub
}

// detach reports whether sub was the last subscription of id.
func (r *Registry) detach(id string, sub *eventbus.Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return false
	}
	if _, held := d.subs[sub]; !held {
		return false
	}
	delete(d.subs, sub)
	return len(d.subs) == 0
}

// SubscriptionCount returns the number of open subscriptions of id.
func (r *Registry) SubscriptionCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[id]; ok {
		return len(d.subs)
	}
	return 0
}

// Subscriptions implements eventbus.Directory.
func (r *Registry) Subscriptions(deviceID string) []*eventbus.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil
	}
	out := make([]*eventbus.Subscription, 0, len(d.subs))
	for sub := range d.subs {
		out = append(out, sub)
	}
	return out
}

// SubscriptionsExcept implements eventbus.Directory.
func (r *Registry) SubscriptionsExcept(excludeID string) []*eventbus.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*eventbus.Subscription
	for id, d := range r.devices {
		if id == excludeID {
			continue
		}
		for sub := range d.subs {
			out = append(out, sub)
		}
	}
	return out
}

// Expired returns the ids that are past the TTL and hold no subscription.
func (r *Registry) Expired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var out []string
	for id, d := range r.devices {
		if r.evictable(d, now) {
			out = append(out, id)
		}
	}
	return out
}

// Remove deletes id if it is still stale and unsubscribed. A device that
// registered or attached since Expired was called survives.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok || !r.evictable(d, r.now()) {
		return false
	}
	delete(r.devices, id)
	metrics.SetDevicesRegistered(len(r.devices))
	return true
}

func (r *Registry) evictable(d *device, now time.Time) bool {
	return len(d.subs) == 0 && now.Sub(d.lastSeen) > r.ttl
}
