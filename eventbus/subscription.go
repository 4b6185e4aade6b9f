package eventbus

import "sync"

// DefaultCapacity is the queue depth of a subscription.
const DefaultCapacity = 200

// Subscription is one open push stream's bounded queue of encoded frames.
//
// Publishers call Offer, which never blocks. The owning stream reads C and calls
// Close exactly when it stops reading; Close runs the release hook given at
// construction, which is how a subscription removes itself from whatever holds it.
type Subscription struct {
	deviceID string
	queue    chan []byte
	done     chan struct{}

	once    sync.Once
	release func() bool
	last    bool
}

// NewSubscription builds a subscription with the given capacity. release is run
// once on Close and reports whether it was the device's last subscription.
func NewSubscription(deviceID string, capacity int, release func() bool) *Subscription {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Subscription{
		deviceID: deviceID,
		queue:    make(chan []byte, capacity),
		done:     make(chan struct{}),
		release:  release,
	}
}

// DeviceID returns the id of the device owning this subscription.
func (s *Subscription) DeviceID() string { return s.deviceID }

// C delivers queued frames in publish order.
func (s *Subscription) C() <-chan []byte { return s.queue }

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Len returns the number of frames waiting to be written.
func (s *Subscription) Len() int { return len(s.queue) }

// Offer queues frame without blocking. It returns false when the queue is full
// or the subscription is closed; the frame is then dropped.
//
// The queue channel is never closed, so a publisher holding a stale snapshot of
// subscriptions can still call Offer safely.
func (s *Subscription) Offer(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

// Close detaches the subscription. It is idempotent; only the first call
// reports whether the owning device has no subscriptions left.
func (s *Subscription) Close() bool {
	first := false
	s.once.Do(func() {
		first = true
		close(s.done)
		if s.release != nil {
			s.last = s.release()
		}
	})
	return first && s.last
}
