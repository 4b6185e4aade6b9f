package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/moyoez/snapshare/eventbus"
	"github.com/moyoez/snapshare/presence"
	"github.com/moyoez/snapshare/types"
)

type chanWriter struct {
	frames chan string
	fail   atomic.Bool
}

func newChanWriter() *chanWriter {
	return &chanWriter{frames: make(chan string, 256)}
}

func (w *chanWriter) WriteFrame(frame []byte) error {
	if w.fail.Load() {
		return errors.New("broken pipe")
	}
	select {
	case w.frames <- string(frame):
	default:
	}
	return nil
}

func (w *chanWriter) WriteKeepalive() error {
	return w.WriteFrame(eventbus.Keepalive)
}

func (w *chanWriter) Transport() string { return "test" }

// next returns the next frame, skipping keepalives when skipKeepalive is set.
func (w *chanWriter) next(t *testing.T, skipKeepalive bool) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-w.frames:
			if skipKeepalive && f == string(eventbus.Keepalive) {
				continue
			}
			return f
		case <-deadline:
			t.Fatal("timed out waiting for frame")
			return ""
		}
	}
}

func (w *chanWriter) nextEvent(t *testing.T, eventType string) string {
	t.Helper()
	for {
		f := w.next(t, true)
		if strings.HasPrefix(f, "event: "+eventType+"\n") {
			return f
		}
	}
}

func frameData(t *testing.T, frame string) string {
	t.Helper()
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("frame without data line: %q", frame)
	return ""
}

type harness struct {
	reg      *presence.Registry
	streamer *Streamer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newHarness(t *testing.T, keepalive time.Duration, opts ...presence.Option) *harness {
	reg := presence.NewRegistry(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		reg:      reg,
		streamer: NewStreamer(reg, eventbus.New(reg), keepalive),
		ctx:      ctx,
		cancel:   cancel,
	}
	t.Cleanup(func() {
		cancel()
		h.wg.Wait()
	})
	return h
}

// open registers id, opens a session and runs it in the background.
func (h *harness) open(t *testing.T, id string) (*Session, *chanWriter, context.CancelFunc) {
	t.Helper()
	h.reg.Register(id, "", "127.0.0.1")
	w := newChanWriter()
	sess, err := h.streamer.Open(id, "", "127.0.0.1", w)
	if err != nil {
		t.Fatalf("Open(%s): %v", id, err)
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sess.Run(ctx)
	}()
	return sess, w, cancel
}

func TestOpenSendsSnapshotWithoutSelf(t *testing.T) {
	h := newHarness(t, time.Minute)
	_, wa, _ := h.open(t, "A")

	var peers []types.DeviceInfo
	if err := sonic.UnmarshalString(frameData(t, wa.nextEvent(t, types.EventPeers)), &peers); err != nil {
		t.Fatalf("decode peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", peers)
	}

	sessB, wb, _ := h.open(t, "B")
	if sessB.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", sessB.State())
	}
	if err := sonic.UnmarshalString(frameData(t, wb.nextEvent(t, types.EventPeers)), &peers); err != nil {
		t.Fatalf("decode peers: %v", err)
	}
	if len(peers) != 1 || peers[0].ID != "A" {
		t.Fatalf("expected snapshot [A], got %+v", peers)
	}

	var joined types.DeviceInfo
	if err := sonic.UnmarshalString(frameData(t, wa.nextEvent(t, types.EventDeviceJoined)), &joined); err != nil {
		t.Fatalf("decode device-joined: %v", err)
	}
	if joined.ID != "B" || joined.Name != presence.DeviceName("B") || joined.Icon != presence.DeviceIcon("B") {
		t.Fatalf("unexpected device-joined %+v", joined)
	}

	// B must not hear about itself
	select {
	case f := <-wb.frames:
		if strings.Contains(f, types.EventDeviceJoined) {
			t.Fatalf("B received its own join: %q", f)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenAutoRegistersUnknownDevice(t *testing.T) {
	h := newHarness(t, time.Minute)
	w := newChanWriter()
	sess, err := h.streamer.Open("new", "Mozilla/5.0 (iPad)", "10.0.0.9", w)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()
	info, ok := h.reg.Get("new")
	if !ok {
		t.Fatal("device was not registered")
	}
	if info.Type != presence.TypeTablet || sess.Info() != info {
		t.Fatalf("unexpected info %+v / %+v", info, sess.Info())
	}
}

func TestQueuedEventsAreWritten(t *testing.T) {
	h := newHarness(t, time.Minute)
	bus := eventbus.New(h.reg)
	_, wa, _ := h.open(t, "A")
	wa.nextEvent(t, types.EventPeers)

	bus.Notify("A", types.EventFileSent, types.FileSentPayload{Filename: "report.pdf", Size: 10, FromName: "Someone", FromIcon: "📎"})
	f := wa.nextEvent(t, types.EventFileSent)
	var p types.FileSentPayload
	if err := sonic.UnmarshalString(frameData(t, f), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Filename != "report.pdf" || p.Size != 10 {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestKeepaliveTouchesDevice(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	h := newHarness(t, 10*time.Millisecond, presence.WithClock(clock))
	h.reg.Register("watcher", "", "")
	_, w, _ := h.open(t, "A")
	w.nextEvent(t, types.EventPeers)
	if f := w.next(t, false); f != string(eventbus.Keepalive) {
		t.Fatalf("expected keepalive on a quiet stream, got %q", f)
	}

	advance(50 * time.Second)
	// several keepalives fire at the advanced time
	time.Sleep(100 * time.Millisecond)
	advance(50 * time.Second)

	found := false
	for _, d := range h.reg.List("watcher") {
		if d.ID == "A" {
			found = true
		}
	}
	if !found {
		t.Fatal("keepalive did not refresh lastSeen")
	}
}

// expectNo fails if a frame of eventType arrives within d.
func (w *chanWriter) expectNo(t *testing.T, eventType string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case f := <-w.frames:
			if strings.HasPrefix(f, "event: "+eventType+"\n") {
				t.Fatalf("unexpected %s frame: %q", eventType, f)
			}
		case <-deadline:
			return
		}
	}
}

func TestJoinAndLeaveAnnouncedOncePerDevice(t *testing.T) {
	h := newHarness(t, time.Minute)
	_, wObs, _ := h.open(t, "observer")
	wObs.nextEvent(t, types.EventPeers)

	s1, _, cancel1 := h.open(t, "multi")
	s2, _, cancel2 := h.open(t, "multi")
	var joined types.DeviceInfo
	if err := sonic.UnmarshalString(frameData(t, wObs.nextEvent(t, types.EventDeviceJoined)), &joined); err != nil || joined.ID != "multi" {
		t.Fatalf("expected device-joined for multi, got %+v (%v)", joined, err)
	}
	wObs.expectNo(t, types.EventDeviceJoined, 50*time.Millisecond)
	if n := h.streamer.OpenSessions("multi"); n != 2 {
		t.Fatalf("expected 2 open sessions, got %d", n)
	}

	cancel1()
	waitState(t, s1, StateClosed)
	wObs.expectNo(t, types.EventDeviceLeft, 50*time.Millisecond)

	cancel2()
	waitState(t, s2, StateClosed)
	var left types.DeviceLeftPayload
	if err := sonic.UnmarshalString(frameData(t, wObs.nextEvent(t, types.EventDeviceLeft)), &left); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if left.ID != "multi" {
		t.Fatalf("unexpected device-left %+v", left)
	}
	if h.reg.SubscriptionCount("multi") != 0 || h.streamer.OpenSessions("multi") != 0 {
		t.Fatal("sessions not detached")
	}

	// coming back is a fresh join
	h.open(t, "multi")
	wObs.nextEvent(t, types.EventDeviceJoined)
}

func TestTabSwapKeepsAnnouncementOrder(t *testing.T) {
	h := newHarness(t, time.Minute)
	_, wObs, _ := h.open(t, "observer")
	wObs.nextEvent(t, types.EventPeers)

	old, _, cancelOld := h.open(t, "swap")
	wObs.nextEvent(t, types.EventDeviceJoined)

	// a reload: the new tab opens before the old one is gone
	h.open(t, "swap")
	cancelOld()
	waitState(t, old, StateClosed)

	wObs.expectNo(t, types.EventDeviceLeft, 50*time.Millisecond)
	found := false
	for _, d := range h.reg.List("observer") {
		if d.ID == "swap" {
			found = true
		}
	}
	if !found || h.streamer.OpenSessions("swap") != 1 {
		t.Fatal("device with an open tab should stay present")
	}
}

func TestWriteFailureClosesSession(t *testing.T) {
	h := newHarness(t, 5*time.Millisecond)
	sess, w, _ := h.open(t, "A")
	w.nextEvent(t, types.EventPeers)
	w.fail.Store(true)
	waitState(t, sess, StateClosed)
	if h.reg.SubscriptionCount("A") != 0 {
		t.Fatal("subscription still attached after write failure")
	}
}

func TestOpenSnapshotFailure(t *testing.T) {
	h := newHarness(t, time.Minute)
	w := newChanWriter()
	w.fail.Store(true)
	if _, err := h.streamer.Open("A", "", "", w); err == nil {
		t.Fatal("expected error when snapshot write fails")
	}
	if h.reg.SubscriptionCount("A") != 0 || h.streamer.OpenSessions("A") != 0 {
		t.Fatal("subscription leaked after failed open")
	}
}

func TestRunOnClosedSession(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.reg.Register("A", "", "")
	sess, err := h.streamer.Open("A", "", "", newChanWriter())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sess.Close()
	sess.Close()
	if err := sess.Run(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for sess.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected state %s, got %s", want, sess.State())
		}
		time.Sleep(time.Millisecond)
	}
}
