package notification

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// memStore is an in-memory NotificationStore and PreferencesStore.
type memStore struct {
	mu    sync.Mutex
	seq   int64
	items []*Notification
	prefs map[string]*Preferences
	now   func() time.Time

	failList bool
}

func newMemStore() *memStore {
	return &memStore{prefs: make(map[string]*Preferences), now: time.Now}
}

func (s *memStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	n.ID = FormatID(s.seq)
	n.Timestamp = s.now()
	c := *n
	s.items = append(s.items, &c)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id ID) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			c := *n
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListSince(_ context.Context, userID string, since ID, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("database is locked")
	}
	var out []*Notification
	for _, n := range s.items {
		if n.UserID == userID && CompareIDs(n.ID, since) > 0 && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, userID string, f ListFilter) ([]*Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Notification
	for _, n := range s.items {
		if n.UserID == userID && f.Match(n) {
			all = append(all, n)
		}
	}
	slices.Reverse(all)
	start := min((f.Page-1)*f.Limit, len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func (s *memStore) UpdateStatus(_ context.Context, userID string, ids []ID, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, n := range s.items {
		if n.UserID == userID && slices.Contains(ids, n.ID) {
			n.Status = status
			changed++
		}
	}
	return changed, nil
}

func (s *memStore) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, n := range s.items {
		if n.UserID == userID && n.Status == StatusUnread {
			n.Status = StatusRead
			changed++
		}
	}
	return changed, nil
}

func (s *memStore) Delete(_ context.Context, userID string, id ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.UserID == userID && n.ID == id {
			s.items = slices.Delete(s.items, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarkDelivered(_ context.Context, id ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			n.DeliveredAt = &at
		}
	}
	return nil
}

func (s *memStore) ListUndelivered(_ context.Context, olderThan time.Time, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("database is locked")
	}
	var out []*Notification
	for _, n := range s.items {
		if n.DeliveredAt == nil && n.Timestamp.Before(olderThan) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) Stats(_ context.Context, userID string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &Stats{CountByType: map[string]int{}, CountByPriority: map[string]int{}}
	for _, n := range s.items {
		if n.UserID != userID || n.Status == StatusArchived {
			continue
		}
		st.TotalCount++
		if n.Status == StatusUnread {
			st.UnreadCount++
		}
		st.CountByType[string(n.Type)]++
		st.CountByPriority[string(n.Priority)]++
	}
	return st, nil
}

func (s *memStore) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs[userID], nil
}

func (s *memStore) SavePreferences(_ context.Context, p *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.UserID] = p
	return nil
}

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []ID
	err error
}

func (e *recordingEnqueuer) EnqueueDelivery(_ context.Context, id ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.ids = append(e.ids, id)
	return nil
}

type push struct {
	target  Target
	event   string
	payload any
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (p *recordingPusher) Push(_ context.Context, target Target, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pushes = append(p.pushes, push{target, event, payload})
	return nil
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (l stubLimiter) Allow(context.Context, string) (bool, error) { return l.allowed, l.err }

type stubProvider struct {
	sent []*Message
	err  error
}

func (p *stubProvider) Send(_ context.Context, msg *Message) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	return "msg_1", nil
}

func (p *stubProvider) Channel() Channel { return ChannelEmail }

type stubRenderer struct{}

func (stubRenderer) Render(n *Notification) (string, string, string, error) {
	return n.Title, "<p>" + n.Message + "</p>", n.Message, nil
}
