package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"
)

type fakeConn struct {
	in      chan *protocol.Envelope
	drop    chan error
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written []*protocol.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan *protocol.Envelope, 16),
		drop:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read() (*protocol.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case err := <-c.drop:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Write(env *protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sent() []*protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.Envelope(nil), c.written...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	err    error
	tokens []string
}

func (d *fakeDialer) Dial(_ context.Context, token string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeInbox struct {
	mu     sync.Mutex
	items  map[notification.ID]*notification.Notification
	cursor notification.ID
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{items: make(map[notification.ID]*notification.Notification)}
}

func (b *fakeInbox) AddNotification(n *notification.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[n.ID]; ok {
		return false
	}
	b.items[n.ID] = n
	return true
}

func (b *fakeInbox) AddNotifications(ns []*notification.Notification) int {
	added := 0
	for _, n := range ns {
		if b.AddNotification(n) {
			added++
		}
	}
	return added
}

func (b *fakeInbox) SetLastSyncID(id notification.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !id.IsServerAssigned() || notification.CompareIDs(id, b.cursor) <= 0 {
		return false
	}
	b.cursor = id
	return true
}

func (b *fakeInbox) LastSyncID() notification.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *fakeInbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

type syncFunc func(ctx context.Context, since notification.ID) ([]*notification.Notification, notification.ID, error)

func (f syncFunc) SyncMissed(ctx context.Context, since notification.ID) ([]*notification.Notification, notification.ID, error) {
	return f(ctx, since)
}

// fakeTimers replaces time.AfterFunc so tests fire retries by hand.
type fakeTimers struct {
	mu    sync.Mutex
	armed []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	ft.armed = append(ft.armed, t)
	return t
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.armed)
}

func (ft *fakeTimers) delay(i int) time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.armed[i].delay
}

func (ft *fakeTimers) fire(i int) {
	ft.mu.Lock()
	t := ft.armed[i]
	ft.mu.Unlock()
	t.fn()
}

type statusRecorder struct {
	mu   sync.Mutex
	seen []ConnectionStatus
}

func (r *statusRecorder) listen(s ConnectionStatus) {
	r.mu.Lock()
	r.seen = append(r.seen, s)
	r.mu.Unlock()
}

func (r *statusRecorder) statuses() []ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionStatus(nil), r.seen...)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	mgr    *Manager
	dialer *fakeDialer
	inbox  *fakeInbox
	timers *fakeTimers
	rec    *statusRecorder
}

func newHarness(t *testing.T, syncer Syncer) *harness {
	t.Helper()
	h := &harness{
		dialer: &fakeDialer{},
		inbox:  newFakeInbox(),
		timers: &fakeTimers{},
		rec:    &statusRecorder{},
	}
	h.mgr = NewManager(Options{
		Dialer:    h.dialer,
		Syncer:    syncer,
		Inbox:     h.inbox,
		Router:    NewEventRouter(h.inbox, nil, nil),
		Heartbeat: time.Hour,
	})
	h.mgr.afterFunc = h.timers.afterFunc
	h.mgr.AddListener(h.rec.listen)
	t.Cleanup(h.mgr.Close)
	return h
}

func frame(t *testing.T, event string, payload any) *protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestManager_ConnectSyncsThenRoutes(t *testing.T) {
	synced := []*notification.Notification{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}}
	h := newHarness(t, syncFunc(func(_ context.Context, since notification.ID) ([]*notification.Notification, notification.ID, error) {
		if since != "" {
			t.Errorf("first sync since = %q, want empty", since)
		}
		return synced, "2", nil
	}))

	if err := h.mgr.Connect("tok"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "connected", func() bool { return h.mgr.Status() == StatusConnected })

	want := []ConnectionStatus{StatusConnecting, StatusSyncing, StatusConnected}
	got := h.rec.statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
	if h.inbox.len() != 2 || h.inbox.LastSyncID() != "2" {
		t.Fatalf("inbox len %d cursor %q", h.inbox.len(), h.inbox.LastSyncID())
	}

	conn := h.dialer.conn(0)
	conn.in <- frame(t, protocol.EventNotification, &notification.Notification{ID: "3", Title: "c"})
	eventually(t, "pushed notification", func() bool { return h.inbox.LastSyncID() == "3" })

	if err := h.mgr.Subscribe("UPS123"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sent := conn.sent()
	if len(sent) != 1 || sent[0].Event != protocol.EventSubscribeShipment {
		t.Fatalf("sent = %+v", sent)
	}
	var sub protocol.ShipmentSubscription
	if err := json.Unmarshal(sent[0].Data, &sub); err != nil || sub.TrackingNumber != "UPS123" {
		t.Errorf("subscription payload = %s", sent[0].Data)
	}

	stats := h.mgr.Stats()
	if !stats.Connected || stats.Attempts != 0 || stats.MaxAttempts != 5 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestManager_SendWhileDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.mgr.Send(protocol.EventPing, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestManager_ServerCloseDoesNotReconnect(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.Connect("tok")
	eventually(t, "connected", func() bool { return h.mgr.Status() == StatusConnected })

	h.dialer.conn(0).drop <- &CloseError{Code: protocol.CloseSessionEnded, Reason: "session ended"}
	eventually(t, "disconnected", func() bool { return h.mgr.Status() == StatusDisconnected })

	time.Sleep(20 * time.Millisecond)
	if n := h.timers.count(); n != 0 {
		t.Errorf("%d reconnect timers armed after session end", n)
	}
	if n := h.dialer.dials(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}
	if err := h.mgr.Send(protocol.EventPing, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after close = %v", err)
	}
}

func TestManager_DropReconnects(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.Connect("tok")
	eventually(t, "connected", func() bool { return h.mgr.Status() == StatusConnected })

	h.dialer.conn(0).drop <- errors.New("connection reset by peer")
	eventually(t, "retry timer", func() bool { return h.timers.count() == 1 })

	if d := h.timers.delay(0); d != time.Second {
		t.Errorf("first retry delay = %v, want 1s", d)
	}
	if got := h.mgr.Stats().Attempts; got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}

	h.timers.fire(0)
	eventually(t, "reconnected", func() bool { return h.mgr.Status() == StatusConnected && h.dialer.dials() == 2 })
	if got := h.mgr.Stats().Attempts; got != 0 {
		t.Errorf("attempts after reconnect = %d, want 0", got)
	}
	if !h.dialer.conn(0).isClosed() {
		t.Error("dropped connection was not closed")
	}
}

func TestManager_DialFailureGivesUp(t *testing.T) {
	h := newHarness(t, nil)
	h.dialer.err = errors.New("connection refused")

	h.mgr.Connect("tok")
	for i := 0; i < 5; i++ {
		eventually(t, "retry timer", func() bool { return h.timers.count() == i+1 })
		h.timers.fire(i)
	}
	eventually(t, "gave up", func() bool { return h.dialer.dials() == 6 && h.mgr.Status() == StatusError })

	time.Sleep(20 * time.Millisecond)
	if n := h.timers.count(); n != 5 {
		t.Errorf("timers armed = %d, want 5", n)
	}

	h.dialer.mu.Lock()
	h.dialer.err = nil
	h.dialer.mu.Unlock()
	h.mgr.Reconnect()
	eventually(t, "manual reconnect", func() bool { return h.mgr.Status() == StatusConnected })
}

func TestManager_StaleSyncIsDropped(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, syncFunc(func(context.Context, notification.ID) ([]*notification.Notification, notification.ID, error) {
		<-release
		return []*notification.Notification{{ID: "9"}}, "9", nil
	}))

	h.mgr.Connect("tok")
	eventually(t, "syncing", func() bool { return h.mgr.Status() == StatusSyncing })

	h.mgr.Disconnect()
	eventually(t, "disconnected", func() bool { return h.mgr.Status() == StatusDisconnected })
	close(release)

	time.Sleep(50 * time.Millisecond)
	if h.inbox.len() != 0 || h.inbox.LastSyncID() != "" {
		t.Errorf("stale sync merged: len %d cursor %q", h.inbox.len(), h.inbox.LastSyncID())
	}
}

func TestManager_ListenerRemovedDuringFanout(t *testing.T) {
	h := newHarness(t, nil)

	var mu sync.Mutex
	calls := map[string]int{}
	record := func(name string) {
		mu.Lock()
		calls[name]++
		mu.Unlock()
	}

	var second ListenerID
	h.mgr.AddListener(func(ConnectionStatus) {
		record("first")
		h.mgr.RemoveListener(second)
	})
	second = h.mgr.AddListener(func(ConnectionStatus) { record("second") })
	h.mgr.AddListener(func(ConnectionStatus) { record("third") })

	h.mgr.Connect("tok")
	eventually(t, "connected", func() bool { return h.mgr.Status() == StatusConnected })

	mu.Lock()
	defer mu.Unlock()
	if calls["second"] != 0 {
		t.Errorf("removed listener called %d times", calls["second"])
	}
	if calls["first"] != 3 || calls["third"] != 3 {
		t.Errorf("calls = %v, want first and third once per transition", calls)
	}
}

func TestManager_ClosedRejectsCalls(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.Close()
	if err := h.mgr.Connect("tok"); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}
