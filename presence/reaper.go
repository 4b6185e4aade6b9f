package presence

import (
	"context"
	"time"

	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// DefaultReapInterval is the period between sweeps.
const DefaultReapInterval = 15 * time.Second

// Broadcaster publishes an event to every device but excludeID.
type Broadcaster interface {
	Broadcast(eventType string, payload any, excludeID string) int
}

// Reaper evicts devices that are stale and hold no stream, and announces
// each departure.
type Reaper struct {
	registry *Registry
	bus      Broadcaster
	interval time.Duration
}

func NewReaper(registry *Registry, bus Broadcaster, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{registry: registry, bus: bus, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (rp *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()
	tool.DefaultLogger.Debugf("[Reaper] Started, interval %s", rp.interval)
	for {
		select {
		case <-ctx.Done():
			tool.DefaultLogger.Debug("[Reaper] Stopped")
			return
		case <-ticker.C:
			rp.Sweep()
		}
	}
}

// Sweep runs one eviction pass and returns the evicted ids.
func (rp *Reaper) Sweep() []string {
	var evicted []string
	for _, id := range rp.registry.Expired() {
		if rp.registry.Remove(id) {
			evicted = append(evicted, id)
		}
	}
	// registry lock is released by now
	for _, id := range evicted {
		tool.DefaultLogger.Infof("[Reaper] Device %s went away", id)
		rp.bus.Broadcast(types.EventDeviceLeft, types.DeviceLeftPayload{ID: id}, "")
	}
	if len(evicted) > 0 {
		metrics.RecordDevicesReaped(len(evicted))
	}
	return evicted
}
