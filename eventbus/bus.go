// Package eventbus fans typed events out to per-device stream subscriptions.
//
// Delivery is at-most-once and best effort: every subscription has a bounded
// queue and a full queue drops the new frame. Publishers never block.
package eventbus

import (
	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/tool"
)

// Directory resolves which subscriptions an event reaches.
// Implementations return snapshots; the bus offers frames after the
// directory has released any lock it holds.
type Directory interface {
	// Subscriptions returns the open subscriptions of one device.
	Subscriptions(deviceID string) []*Subscription
	// SubscriptionsExcept returns the subscriptions of every device but excludeID.
	// An empty excludeID excludes nobody.
	SubscriptionsExcept(excludeID string) []*Subscription
}

// Bus publishes events to the subscriptions known to a Directory.
type Bus struct {
	dir Directory
}

// New returns a bus over dir.
func New(dir Directory) *Bus {
	return &Bus{dir: dir}
}

// Broadcast sends the event to every device except excludeID and returns the
// number of subscriptions it was queued on.
func (b *Bus) Broadcast(eventType string, payload any, excludeID string) int {
	frame, err := Encode(eventType, payload)
	if err != nil {
		tool.DefaultLogger.Errorf("[EventBus] Broadcast %s: %v", eventType, err)
		return 0
	}
	return b.fanout(eventType, frame, b.dir.SubscriptionsExcept(excludeID))
}

// Notify sends the event to every subscription of deviceID and returns the
// number of subscriptions it was queued on.
func (b *Bus) Notify(deviceID, eventType string, payload any) int {
	frame, err := Encode(eventType, payload)
	if err != nil {
		tool.DefaultLogger.Errorf("[EventBus] Notify %s to %s: %v", eventType, deviceID, err)
		return 0
	}
	return b.fanout(eventType, frame, b.dir.Subscriptions(deviceID))
}

func (b *Bus) fanout(eventType string, frame []byte, subs []*Subscription) int {
	delivered, dropped := 0, 0
	for _, sub := range subs {
		if sub.Offer(frame) {
			delivered++
			continue
		}
		dropped++
		tool.DefaultLogger.Debugf("[EventBus] Dropped %s for %s (queue full or closed)", eventType, sub.DeviceID())
	}
	metrics.RecordEventFanout(eventType, delivered, dropped)
	return delivered
}
