package eventbus

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moyoez/snapshare/types"
)

// memDirectory is a Directory over a plain map.
type memDirectory struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func newMemDirectory() *memDirectory {
	return &memDirectory{subs: make(map[string][]*Subscription)}
}

func (d *memDirectory) add(deviceID string, capacity int) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sub *Subscription
	sub = NewSubscription(deviceID, capacity, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.subs[deviceID]
		for i, s := range list {
			if s == sub {
				d.subs[deviceID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		return len(d.subs[deviceID]) == 0
	})
	d.subs[deviceID] = append(d.subs[deviceID], sub)
	return sub
}

func (d *memDirectory) Subscriptions(deviceID string) []*Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Subscription(nil), d.subs[deviceID]...)
}

func (d *memDirectory) SubscriptionsExcept(excludeID string) []*Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Subscription
	for id, list := range d.subs {
		if id != excludeID {
			out = append(out, list...)
		}
	}
	return out
}

func receive(t *testing.T, sub *Subscription) string {
	t.Helper()
	select {
	case frame := <-sub.C():
		return string(frame)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame on %s", sub.DeviceID())
		return ""
	}
}

func TestBroadcastExcludesEverySubscriptionOfDevice(t *testing.T) {
	dir := newMemDirectory()
	bus := New(dir)

	x1 := dir.add("x", 10)
	x2 := dir.add("x", 10)
	x3 := dir.add("x", 10)
	y := dir.add("y", 10)
	z := dir.add("z", 10)

	delivered := bus.Broadcast(types.EventSharedUpdate, types.SharedUpdatePayload{}, "x")
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	for _, sub := range []*Subscription{x1, x2, x3} {
		if sub.Len() != 0 {
			t.Errorf("excluded subscription received %d frames", sub.Len())
		}
	}
	for _, sub := range []*Subscription{y, z} {
		if got := receive(t, sub); !strings.HasPrefix(got, "event: shared-update\n") {
			t.Errorf("unexpected frame %q", got)
		}
	}
}

func TestBroadcastWithoutExclude(t *testing.T) {
	dir := newMemDirectory()
	bus := New(dir)
	a := dir.add("a", 10)
	b := dir.add("b", 10)

	if n := bus.Broadcast(types.EventDeviceLeft, types.DeviceLeftPayload{ID: "c"}, ""); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	receive(t, a)
	receive(t, b)
}

func TestNotifyReachesOnlyTarget(t *testing.T) {
	dir := newMemDirectory()
	bus := New(dir)
	a1 := dir.add("a", 10)
	a2 := dir.add("a", 10)
	b := dir.add("b", 10)

	payload := types.FileSentPayload{Filename: "x.txt", Size: 3, FromName: "Someone", FromIcon: "📎"}
	if n := bus.Notify("a", types.EventFileSent, payload); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	want := "event: file-sent\ndata: {\"filename\":\"x.txt\",\"size\":3,\"from_name\":\"Someone\",\"from_icon\":\"📎\"}\n\n"
	for _, sub := range []*Subscription{a1, a2} {
		if got := receive(t, sub); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if b.Len() != 0 {
		t.Errorf("non-target received %d frames", b.Len())
	}
}

func TestNotifyUnknownDevice(t *testing.T) {
	bus := New(newMemDirectory())
	if n := bus.Notify("ghost", types.EventSharedUpdate, types.SharedUpdatePayload{}); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	dir := newMemDirectory()
	bus := New(dir)
	slow := dir.add("slow", 3)
	fast := dir.add("fast", 100)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Broadcast(types.EventSharedUpdate, types.SharedUpdatePayload{}, "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscription")
	}
	if slow.Len() != 3 {
		t.Errorf("expected slow queue to hold 3 frames, got %d", slow.Len())
	}
	if fast.Len() != 10 {
		t.Errorf("expected fast queue to hold 10 frames, got %d", fast.Len())
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	dir := newMemDirectory()
	bus := New(dir)
	sub := dir.add("a", 10)

	bus.Notify("a", types.EventDeviceLeft, types.DeviceLeftPayload{ID: "1"})
	bus.Notify("a", types.EventDeviceLeft, types.DeviceLeftPayload{ID: "2"})

	if got := receive(t, sub); !strings.Contains(got, `"1"`) {
		t.Errorf("expected first frame for id 1, got %q", got)
	}
	if got := receive(t, sub); !strings.Contains(got, `"2"`) {
		t.Errorf("expected second frame for id 2, got %q", got)
	}
}
