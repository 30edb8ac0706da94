package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"shipnotify/internal/common"
	"shipnotify/internal/protocol"
)

func newTestService() (*Service, *memStore, *recordingEnqueuer, *recordingPusher) {
	store, enq, pusher := newMemStore(), &recordingEnqueuer{}, &recordingPusher{}
	return NewService(store, store, enq, nil, pusher), store, enq, pusher
}

func publishN(t *testing.T, s *Service, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Publish(context.Background(), &PublishRequest{
			UserID:  userID,
			Type:    TypeShipmentStatus,
			Title:   "Shipment update",
			Message: "in transit",
		})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
}

func TestService_Publish(t *testing.T) {
	s, store, enq, _ := newTestService()

	n, err := s.Publish(context.Background(), &PublishRequest{
		UserID:  "u1",
		Type:    TypeShipmentStatus,
		Title:   "Shipment delayed",
		Message: "UPS123 is delayed",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n.ID != "1" || n.Priority != PriorityMedium || n.Status != StatusUnread {
		t.Errorf("notification = %+v", n)
	}
	if len(enq.ids) != 1 || enq.ids[0] != n.ID {
		t.Errorf("enqueued = %v", enq.ids)
	}
	if got, _ := store.GetByID(context.Background(), n.ID); got == nil {
		t.Error("notification not persisted")
	}
}

func TestService_PublishValidation(t *testing.T) {
	s, _, _, _ := newTestService()

	tests := []struct {
		name string
		req  PublishRequest
	}{
		{"unknown type", PublishRequest{UserID: "u1", Type: "fax", Title: "t", Message: "m"}},
		{"unknown priority", PublishRequest{UserID: "u1", Type: TypeUserMessage, Priority: "urgent", Title: "t", Message: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Publish(context.Background(), &tt.req)
			var ve *common.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestService_PublishRateLimited(t *testing.T) {
	store := newMemStore()
	s := NewService(store, store, &recordingEnqueuer{}, stubLimiter{allowed: false}, &recordingPusher{})

	_, err := s.Publish(context.Background(), &PublishRequest{UserID: "u1", Type: TypeUserMessage, Title: "t", Message: "m"})
	var rl *common.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if len(store.items) != 0 {
		t.Error("rate-limited notification was persisted")
	}
}

func TestService_PublishFailsOpen(t *testing.T) {
	store := newMemStore()
	enq := &recordingEnqueuer{err: errors.New("redis: connection refused")}
	s := NewService(store, store, enq, stubLimiter{err: errors.New("redis: connection refused")}, &recordingPusher{})

	n, err := s.Publish(context.Background(), &PublishRequest{UserID: "u1", Type: TypeUserMessage, Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n.ID == "" || len(store.items) != 1 {
		t.Error("notification not persisted when redis is down")
	}
}

func TestService_SyncPages(t *testing.T) {
	s, _, _, _ := newTestService()
	publishN(t, s, "u1", 5)
	publishN(t, s, "u2", 2)
	ctx := context.Background()

	first, err := s.Sync(ctx, "u1", "", 2)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(first.Notifications) != 2 || !first.HasMore || first.LastID != "2" {
		t.Errorf("first page = %d items, hasMore %v, lastId %q", len(first.Notifications), first.HasMore, first.LastID)
	}

	rest, err := s.Sync(ctx, "u1", first.LastID, 10)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rest.Notifications) != 3 || rest.HasMore || rest.LastID != "5" {
		t.Errorf("rest = %d items, hasMore %v, lastId %q", len(rest.Notifications), rest.HasMore, rest.LastID)
	}

	empty, err := s.Sync(ctx, "u1", "5", 10)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if empty.Notifications == nil || len(empty.Notifications) != 0 || empty.LastID != "5" {
		t.Errorf("caught-up sync = %+v", empty)
	}
}

func TestService_SyncRejectsBadCursor(t *testing.T) {
	s, _, _, _ := newTestService()
	_, err := s.Sync(context.Background(), "u1", "shipment_UPS1_1", 10)
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestService_SyncStoreFailure(t *testing.T) {
	s, store, _, _ := newTestService()
	store.failList = true
	if _, err := s.Sync(context.Background(), "u1", "", 10); err == nil {
		t.Error("expected error")
	}
}

func TestService_ReadState(t *testing.T) {
	s, _, _, _ := newTestService()
	publishN(t, s, "u1", 3)
	ctx := context.Background()

	if err := s.MarkRead(ctx, "u1", "1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	var nf *common.NotFoundError
	if err := s.MarkRead(ctx, "u2", "1"); !errors.As(err, &nf) {
		t.Errorf("MarkRead of another user's notification = %v, want NotFoundError", err)
	}
	if err := s.Archive(ctx, "u1", "2"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n, err := s.MarkAllRead(ctx, "u1"); err != nil || n != 1 {
		t.Errorf("MarkAllRead = %d, %v", n, err)
	}
	if _, err := s.MarkManyRead(ctx, "u1", nil); err == nil {
		t.Error("MarkManyRead with no ids succeeded")
	}

	stats, err := s.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCount != 2 || stats.UnreadCount != 0 {
		t.Errorf("stats = %+v", stats)
	}

	if err := s.Delete(ctx, "u1", "3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", "3"); !errors.As(err, &nf) {
		t.Errorf("second Delete = %v, want NotFoundError", err)
	}
}

func TestService_List(t *testing.T) {
	s, _, _, _ := newTestService()
	publishN(t, s, "u1", 25)

	resp, err := s.List(context.Background(), "u1", ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 25 || len(resp.Notifications) != 20 || !resp.HasMore || resp.Page != 1 {
		t.Errorf("page 1 = total %d, len %d, hasMore %v", resp.Total, len(resp.Notifications), resp.HasMore)
	}
	if resp.Notifications[0].ID != "25" {
		t.Errorf("first = %s, want newest", resp.Notifications[0].ID)
	}

	resp, err = s.List(context.Background(), "u1", ListFilter{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(resp.Notifications) != 5 || resp.HasMore {
		t.Errorf("page 2 = len %d, hasMore %v", len(resp.Notifications), resp.HasMore)
	}
}

func TestService_Preferences(t *testing.T) {
	s, _, _, _ := newTestService()
	ctx := context.Background()

	p, err := s.Preferences(ctx, "u1")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if !p.EnablePushNotifications || !p.Wants(TypeShipmentStatus) {
		t.Errorf("defaults = %+v", p)
	}

	_, err = s.UpdatePreferences(ctx, &Preferences{UserID: "u1", QuietHoursStart: "22:00"})
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("invalid update err = %v", err)
	}

	saved, err := s.UpdatePreferences(ctx, &Preferences{UserID: "u1", EnableEmailNotifications: true, Email: "a@b.c"})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if len(saved.NotificationTypes) != len(AllTypes()) {
		t.Errorf("types not defaulted: %v", saved.NotificationTypes)
	}
	got, _ := s.Preferences(ctx, "u1")
	if !got.EnableEmailNotifications || got.Email != "a@b.c" {
		t.Errorf("stored = %+v", got)
	}
}

func TestService_BroadcastAlert(t *testing.T) {
	s, _, _, pusher := newTestService()
	ctx := context.Background()

	alert, err := s.BroadcastAlert(ctx, &AlertRequest{Message: "Maintenance tonight"})
	if err != nil {
		t.Fatalf("BroadcastAlert: %v", err)
	}
	if alert.Priority != PriorityHigh || alert.ID.IsServerAssigned() {
		t.Errorf("alert = %+v", alert)
	}
	if len(pusher.pushes) != 1 {
		t.Fatalf("pushes = %d", len(pusher.pushes))
	}
	p := pusher.pushes[0]
	if !p.target.Broadcast || p.event != protocol.EventSystemAlert {
		t.Errorf("push = %+v", p)
	}

	past := time.Now().Add(-time.Minute)
	if _, err := s.BroadcastAlert(ctx, &AlertRequest{Message: "late", ExpiresAt: &past}); err == nil {
		t.Error("expired alert accepted")
	}

	pusher.err = errors.New("redis down")
	var pe *common.ProviderError
	if _, err := s.BroadcastAlert(ctx, &AlertRequest{Message: "x"}); !errors.As(err, &pe) {
		t.Errorf("err = %v, want ProviderError", err)
	}
}

func TestService_SendTest(t *testing.T) {
	s, _, enq, _ := newTestService()
	n, err := s.SendTest(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SendTest: %v", err)
	}
	if n.Type != TypeUserMessage || n.Priority != PriorityLow || len(enq.ids) != 1 {
		t.Errorf("test notification = %+v", n)
	}
}
