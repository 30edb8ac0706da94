package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"
)

var (
	// ErrNotConnected is returned when emitting while the channel is down.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("realtime: manager closed")
)

// Syncer fetches notifications missed while offline.
type Syncer interface {
	// SyncMissed returns notifications newer than since in ascending ID order
	// and the newest ID among them.
	SyncMissed(ctx context.Context, since notification.ID) ([]*notification.Notification, notification.ID, error)
}

// Listener is called on every status transition.
type Listener func(ConnectionStatus)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Options configures a Manager.
type Options struct {
	Dialer    Dialer
	Syncer    Syncer
	Inbox     Inbox
	Router    *EventRouter
	Policy    Policy
	Heartbeat time.Duration
}

// timer is the subset of *time.Timer the manager needs.
type timer interface {
	Stop() bool
}

// evMessage carries an inbound frame. It shares the event queue with the
// machine's events so frames and drops are handled in arrival order.
type evMessage struct {
	epoch uint64
	env   *protocol.Envelope
}

// Manager owns the real-time channel. All state changes run on a single
// dispatch goroutine; public methods only enqueue events.
type Manager struct {
	dialer    Dialer
	syncer    Syncer
	inbox     Inbox
	router    *EventRouter
	heartbeat time.Duration
	afterFunc func(time.Duration, func()) timer

	events      chan any
	quit        chan struct{}
	stopped     chan struct{}
	once        sync.Once
	dispatching atomic.Bool

	// Owned by the dispatch goroutine.
	m          *machine
	conn       Conn
	retry      timer
	ticker     *time.Ticker
	cancelDial context.CancelFunc
	cancelSync context.CancelFunc

	lmu       sync.Mutex
	listeners []*listenerEntry
	nextID    ListenerID

	smu   sync.RWMutex
	stats Stats
	live  Conn
}

// NewManager creates a manager and starts its dispatch goroutine.
func NewManager(opts Options) *Manager {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	mgr := &Manager{
		dialer:    opts.Dialer,
		syncer:    opts.Syncer,
		inbox:     opts.Inbox,
		router:    opts.Router,
		heartbeat: opts.Heartbeat,
		afterFunc: func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) },
		events:    make(chan any, 64),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		m:         newMachine(opts.Policy),
	}
	mgr.stats = mgr.m.stats()
	go mgr.run()
	return mgr
}

// Connect opens the channel with token. It does nothing while connected or syncing.
func (mgr *Manager) Connect(token string) error {
	return mgr.request(evConnect{token: token})
}

// Disconnect closes the channel and cancels any pending reconnect. It is idempotent.
func (mgr *Manager) Disconnect() error {
	return mgr.request(evDisconnect{})
}

// Reconnect restarts the connection with the last token and a fresh attempt
// budget. Use it after the manager gave up.
func (mgr *Manager) Reconnect() error {
	return mgr.request(evReconnect{})
}

// request enqueues a caller's event. Calls made from a listener run on the
// dispatch goroutine and must not block on the queue it drains.
func (mgr *Manager) request(ev any) error {
	if mgr.dispatching.Load() {
		select {
		case <-mgr.quit:
			return ErrClosed
		default:
		}
		return mgr.submitAsync(ev)
	}
	return mgr.submit(ev)
}

// Close disconnects and stops the dispatch goroutine.
func (mgr *Manager) Close() {
	mgr.once.Do(func() {
		_ = mgr.submit(evDisconnect{})
		close(mgr.quit)
	})
	<-mgr.stopped
}

// Status returns the current connection status.
func (mgr *Manager) Status() ConnectionStatus {
	return mgr.Stats().Status
}

// Stats returns a snapshot of the connection state.
func (mgr *Manager) Stats() Stats {
	mgr.smu.RLock()
	defer mgr.smu.RUnlock()
	return mgr.stats
}

// Send emits a frame on the channel.
func (mgr *Manager) Send(event string, payload any) error {
	mgr.smu.RLock()
	conn := mgr.live
	mgr.smu.RUnlock()

	if conn == nil {
		slog.Warn("cannot emit, channel not connected", "event", event)
		return ErrNotConnected
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return conn.Write(env)
}

// Subscribe asks the gateway for updates on one shipment.
func (mgr *Manager) Subscribe(trackingNumber string) error {
	return mgr.Send(protocol.EventSubscribeShipment, protocol.ShipmentSubscription{TrackingNumber: trackingNumber})
}

// Unsubscribe stops updates for one shipment.
func (mgr *Manager) Unsubscribe(trackingNumber string) error {
	return mgr.Send(protocol.EventUnsubscribeShipment, protocol.ShipmentSubscription{TrackingNumber: trackingNumber})
}

// AddListener registers fn for status transitions. Listeners run in
// registration order on the dispatch goroutine and must not block.
func (mgr *Manager) AddListener(fn Listener) ListenerID {
	mgr.lmu.Lock()
	defer mgr.lmu.Unlock()
	mgr.nextID++
	mgr.listeners = append(mgr.listeners, &listenerEntry{id: mgr.nextID, fn: fn})
	return mgr.nextID
}

// RemoveListener unregisters a listener. Removing an unknown id is a no-op.
func (mgr *Manager) RemoveListener(id ListenerID) {
	mgr.lmu.Lock()
	defer mgr.lmu.Unlock()
	for i, l := range mgr.listeners {
		if l.id == id {
			mgr.listeners = append(mgr.listeners[:i:i], mgr.listeners[i+1:]...)
			return
		}
	}
}

func (mgr *Manager) submit(ev any) error {
	select {
	case <-mgr.quit:
		return ErrClosed
	default:
	}
	select {
	case mgr.events <- ev:
		return nil
	case <-mgr.quit:
		return ErrClosed
	}
}

func (mgr *Manager) run() {
	defer close(mgr.stopped)
	for {
		var tick <-chan time.Time
		if mgr.ticker != nil {
			tick = mgr.ticker.C
		}

		select {
		case ev := <-mgr.events:
			mgr.dispatch(ev)
		case <-tick:
			mgr.ping()
		case <-mgr.quit:
			mgr.drain()
			return
		}
	}
}

// drain applies events queued before Close so the final disconnect runs.
func (mgr *Manager) drain() {
	for {
		select {
		case ev := <-mgr.events:
			mgr.dispatch(ev)
		default:
			mgr.dispatch(evDisconnect{})
			return
		}
	}
}

func (mgr *Manager) dispatch(ev any) {
	mgr.dispatching.Store(true)
	defer mgr.dispatching.Store(false)

	switch ev := ev.(type) {
	case evMessage:
		if ev.epoch == mgr.m.epoch && mgr.m.attached && mgr.router != nil {
			mgr.router.Route(ev.env)
		}
		return
	case evDisconnect:
		if mgr.cancelDial != nil {
			mgr.cancelDial()
			mgr.cancelDial = nil
		}
	}

	for _, act := range mgr.m.apply(ev) {
		mgr.perform(act)
	}
	mgr.smu.Lock()
	mgr.stats = mgr.m.stats()
	mgr.smu.Unlock()
}

func (mgr *Manager) perform(act any) {
	switch a := act.(type) {
	case actStatus:
		mgr.smu.Lock()
		mgr.stats = mgr.m.stats()
		mgr.smu.Unlock()
		slog.Info("realtime status changed", "status", a.status, "attempts", mgr.m.attempts)
		mgr.notify(a.status)

	case actDial:
		mgr.dial(a.epoch, a.token)

	case actAttach:
		mgr.conn = a.conn
		mgr.setLive(a.conn)
		go mgr.readLoop(mgr.m.epoch, a.conn)

	case actDiscard:
		if a.conn != nil {
			_ = a.conn.Close()
		}

	case actClose:
		if mgr.cancelSync != nil {
			mgr.cancelSync()
			mgr.cancelSync = nil
		}
		mgr.setLive(nil)
		if mgr.conn != nil {
			_ = mgr.conn.Close()
			mgr.conn = nil
		}

	case actArmTimer:
		slog.Info("scheduling reconnect", "attempt", mgr.m.attempts, "delay", a.delay)
		id := a.id
		mgr.retry = mgr.afterFunc(a.delay, func() { _ = mgr.submit(evRetry{timer: id}) })

	case actCancelTimer:
		if mgr.retry != nil {
			mgr.retry.Stop()
			mgr.retry = nil
		}

	case actHeartbeat:
		if mgr.ticker != nil {
			mgr.ticker.Stop()
			mgr.ticker = nil
		}
		if a.on {
			mgr.ticker = time.NewTicker(mgr.heartbeat)
		}

	case actSync:
		mgr.sync(a.epoch)

	case actMerge:
		// Merge before advancing so the cursor never points past what the inbox holds.
		mgr.inbox.AddNotifications(a.items)
		if a.lastID != "" {
			mgr.inbox.SetLastSyncID(a.lastID)
		}
		slog.Info("missed notifications synced", "count", len(a.items), "last_id", a.lastID)

	case actLogSyncErr:
		slog.Error("missed notification sync failed", "error", a.err)
	}
}

func (mgr *Manager) notify(status ConnectionStatus) {
	mgr.lmu.Lock()
	snapshot := make([]*listenerEntry, len(mgr.listeners))
	copy(snapshot, mgr.listeners)
	mgr.lmu.Unlock()

	for _, l := range snapshot {
		if !mgr.registered(l) {
			continue
		}
		l.fn(status)
	}
}

func (mgr *Manager) registered(entry *listenerEntry) bool {
	mgr.lmu.Lock()
	defer mgr.lmu.Unlock()
	for _, l := range mgr.listeners {
		if l == entry {
			return true
		}
	}
	return false
}

func (mgr *Manager) setLive(conn Conn) {
	mgr.smu.Lock()
	mgr.live = conn
	mgr.smu.Unlock()
}

func (mgr *Manager) dial(epoch uint64, token string) {
	if mgr.cancelDial != nil {
		mgr.cancelDial()
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.cancelDial = cancel

	go func() {
		defer cancel()
		conn, err := mgr.dialer.Dial(ctx, token)
		if err != nil {
			slog.Warn("realtime dial failed", "error", err)
			_ = mgr.submit(evDialFailed{epoch: epoch, err: err})
			return
		}
		if err := mgr.submit(evDialed{epoch: epoch, conn: conn}); err != nil {
			_ = conn.Close()
		}
	}()
}

func (mgr *Manager) sync(epoch uint64) {
	if mgr.syncer == nil {
		_ = mgr.submitAsync(evSyncDone{epoch: epoch})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.cancelSync = cancel
	since := mgr.inbox.LastSyncID()

	go func() {
		defer cancel()
		items, lastID, err := mgr.syncer.SyncMissed(ctx, since)
		_ = mgr.submit(evSyncDone{epoch: epoch, items: items, lastID: lastID, err: err})
	}()
}

// submitAsync enqueues from the dispatch goroutine without risking a
// deadlock on a full queue.
func (mgr *Manager) submitAsync(ev any) error {
	go func() { _ = mgr.submit(ev) }()
	return nil
}

func (mgr *Manager) readLoop(epoch uint64, conn Conn) {
	for {
		env, err := conn.Read()
		if err != nil {
			if code, ok := closeCode(err); ok {
				slog.Info("channel closed by gateway", "code", code)
			} else {
				slog.Warn("channel read failed", "error", err)
			}
			_ = mgr.submit(evDropped{epoch: epoch, err: err})
			return
		}
		if err := mgr.submit(evMessage{epoch: epoch, env: env}); err != nil {
			return
		}
	}
}

func (mgr *Manager) ping() {
	if mgr.conn == nil {
		return
	}
	env, _ := protocol.NewEnvelope(protocol.EventPing, map[string]any{"timestamp": time.Now().UTC()})
	if err := mgr.conn.Write(env); err != nil {
		slog.Warn("heartbeat ping failed", "error", err)
	}
}
