package shipment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shipnotify/internal/common"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/protocol"
)

type memHistory struct {
	mu     sync.Mutex
	events map[string][]TrackingEvent
	err    error
}

func newMemHistory() *memHistory {
	return &memHistory{events: make(map[string][]TrackingEvent)}
}

func (h *memHistory) Append(_ context.Context, trackingNumber string, e TrackingEvent) ([]TrackingEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	h.events[trackingNumber] = append(h.events[trackingNumber], e)
	return append([]TrackingEvent(nil), h.events[trackingNumber]...), nil
}

func (h *memHistory) History(_ context.Context, trackingNumber string) ([]TrackingEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[trackingNumber], h.err
}

type fakePublisher struct {
	reqs []*notification.PublishRequest
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, req *notification.PublishRequest) (*notification.Notification, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.reqs = append(p.reqs, req)
	return &notification.Notification{ID: notification.FormatID(int64(len(p.reqs)))}, nil
}

type roomPush struct {
	target  notification.Target
	event   string
	payload any
}

type fakePusher struct {
	pushes []roomPush
	err    error
}

func (p *fakePusher) Push(_ context.Context, target notification.Target, event string, payload any) error {
	p.pushes = append(p.pushes, roomPush{target, event, payload})
	return p.err
}

type countingObserver map[string]int

func (o countingObserver) ShipmentEvent(source, result string) { o[source+"/"+result]++ }

type processorFixture struct {
	proc      *Processor
	history   *memHistory
	publisher *fakePublisher
	pusher    *fakePusher
	observed  countingObserver
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		history:   newMemHistory(),
		publisher: &fakePublisher{},
		pusher:    &fakePusher{},
		observed:  countingObserver{},
	}
	f.proc = NewProcessor(f.publisher, f.history, f.pusher, f.observed)
	f.proc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestProcessor_Process(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	for _, st := range []Status{StatusPickedUp, StatusInTransit} {
		err := f.proc.Process(ctx, "rabbitmq", &StatusEvent{
			TrackingNumber: "UPS123",
			OwnerID:        "u1",
			Status:         st,
			Location:       "Hamburg",
		})
		if err != nil {
			t.Fatalf("Process(%s): %v", st, err)
		}
	}

	if len(f.pusher.pushes) != 4 {
		t.Fatalf("pushes = %d, want 4", len(f.pusher.pushes))
	}
	for _, p := range f.pusher.pushes {
		if p.target.Room != protocol.ShipmentRoom("UPS123") {
			t.Errorf("push target = %+v", p.target)
		}
	}
	last := f.pusher.pushes[3]
	if last.event != protocol.EventTrackingUpdate {
		t.Fatalf("last event = %s", last.event)
	}
	if update := last.payload.(TrackingUpdate); len(update.History) != 2 {
		t.Errorf("history pushed = %d entries, want 2", len(update.History))
	}
	if s := f.pusher.pushes[2].payload.(*Shipment); s.Status != StatusInTransit || s.UpdatedAt.IsZero() {
		t.Errorf("shipment pushed = %+v", s)
	}

	if len(f.publisher.reqs) != 2 {
		t.Fatalf("published = %d", len(f.publisher.reqs))
	}
	req := f.publisher.reqs[1]
	if req.UserID != "u1" || req.RelatedEntityID != "UPS123" || req.Message != "Shipment UPS123 is now in transit (Hamburg)" {
		t.Errorf("publish request = %+v", req)
	}
	if f.observed["rabbitmq/ok"] != 2 {
		t.Errorf("observed = %v", f.observed)
	}
}

func TestProcessor_InvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		e    StatusEvent
	}{
		{"no tracking number", StatusEvent{OwnerID: "u1", Status: StatusInTransit}},
		{"no owner", StatusEvent{TrackingNumber: "UPS1", Status: StatusInTransit}},
		{"unknown status", StatusEvent{TrackingNumber: "UPS1", OwnerID: "u1", Status: "teleported"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProcessorFixture()
			err := f.proc.Process(context.Background(), "kafka", &tt.e)
			var ve *common.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want ValidationError", err)
			}
			if len(f.pusher.pushes) != 0 || f.observed["kafka/invalid"] != 1 {
				t.Errorf("pushes %d, observed %v", len(f.pusher.pushes), f.observed)
			}
		})
	}
}

func TestProcessor_Failures(t *testing.T) {
	event := func() *StatusEvent {
		return &StatusEvent{TrackingNumber: "UPS1", OwnerID: "u1", Status: StatusDelivered}
	}

	t.Run("history store down", func(t *testing.T) {
		f := newProcessorFixture()
		f.history.err = errors.New("redis down")
		if err := f.proc.Process(context.Background(), "http", event()); err == nil {
			t.Fatal("expected error")
		}
		if f.observed["http/error"] != 1 {
			t.Errorf("observed = %v", f.observed)
		}
	})

	t.Run("push failure is not fatal", func(t *testing.T) {
		f := newProcessorFixture()
		f.pusher.err = errors.New("redis down")
		if err := f.proc.Process(context.Background(), "http", event()); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if len(f.publisher.reqs) != 1 {
			t.Error("notification not published")
		}
	})

	t.Run("rate limited owner", func(t *testing.T) {
		f := newProcessorFixture()
		f.publisher.err = common.NewRateLimitError("user u1")
		if err := f.proc.Process(context.Background(), "http", event()); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if f.observed["http/ok"] != 1 {
			t.Errorf("observed = %v", f.observed)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		f := newProcessorFixture()
		f.publisher.err = errors.New("database is locked")
		if err := f.proc.Process(context.Background(), "http", event()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestProcessor_History(t *testing.T) {
	f := newProcessorFixture()
	ctx := context.Background()

	var nf *common.NotFoundError
	if _, err := f.proc.History(ctx, "UPS404"); !errors.As(err, &nf) {
		t.Errorf("err = %v, want NotFoundError", err)
	}

	f.proc.Process(ctx, "http", &StatusEvent{TrackingNumber: "UPS1", OwnerID: "u1", Status: StatusCreated})
	update, err := f.proc.History(ctx, "UPS1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(update.History) != 1 || !update.History[0].Timestamp.Equal(f.proc.now()) {
		t.Errorf("history = %+v", update.History)
	}
}
