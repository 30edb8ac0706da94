package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"
	"shipnotify/internal/realtime"
)

type pipeConn struct {
	in     chan *protocol.Envelope
	closed chan struct{}
	once   sync.Once
}

func (c *pipeConn) Read() (*protocol.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *pipeConn) Write(*protocol.Envelope) error { return nil }

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type pipeDialer struct {
	mu   sync.Mutex
	last *pipeConn
}

func (d *pipeDialer) Dial(context.Context, string) (realtime.Conn, error) {
	c := &pipeConn{in: make(chan *protocol.Envelope, 8), closed: make(chan struct{})}
	d.mu.Lock()
	d.last = c
	d.mu.Unlock()
	return c, nil
}

func (d *pipeDialer) current() *pipeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Notifications created while the client is offline arrive exactly once
// through the reconnect sync, even when the gateway also pushes one of them.
func TestCatchUpAfterReconnect(t *testing.T) {
	srv := &syncServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	inbox := NewInbox()
	dialer := &pipeDialer{}
	mgr := realtime.NewManager(realtime.Options{
		Dialer:    dialer,
		Syncer:    newTestAPI(ts.URL, 2),
		Inbox:     inbox,
		Router:    realtime.NewEventRouter(inbox, NewQueryCache(), nil),
		Heartbeat: time.Hour,
	})
	defer mgr.Close()
	mgr.AddListener(inbox.SetConnectionStatus)

	mgr.Connect("tok")
	waitFor(t, "first connect", func() bool { return mgr.Status() == realtime.StatusConnected })
	if inbox.LastSyncID() != "" || inbox.Len() != 0 {
		t.Fatalf("empty server synced len %d cursor %q", inbox.Len(), inbox.LastSyncID())
	}

	mgr.Disconnect()
	waitFor(t, "disconnect", func() bool { return inbox.ConnectionLabel() == LabelOffline })

	srv.publish(5)

	mgr.Connect("tok")
	waitFor(t, "reconnect", func() bool { return mgr.Status() == realtime.StatusConnected })

	if got := inbox.LastSyncID(); got != "5" {
		t.Errorf("cursor = %q, want 5", got)
	}
	if got := inbox.Len(); got != 5 {
		t.Errorf("inbox holds %d, want 5", got)
	}
	if inbox.ConnectionLabel() != LabelOnline {
		t.Errorf("label = %q, want online", inbox.ConnectionLabel())
	}

	dup, err := protocol.NewEnvelope(protocol.EventNotification, &notification.Notification{ID: "5", Title: "Shipment update 5"})
	if err != nil {
		t.Fatal(err)
	}
	dialer.current().in <- dup
	next, _ := protocol.NewEnvelope(protocol.EventNotification, &notification.Notification{ID: "6", Title: "live"})
	dialer.current().in <- next

	waitFor(t, "live push", func() bool { return inbox.LastSyncID() == "6" })
	if got := inbox.Len(); got != 6 {
		t.Errorf("inbox holds %d after duplicate push, want 6", got)
	}
}
