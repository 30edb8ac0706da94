// Package client holds the front-end state fed by the real-time channel: the
// notification inbox, the query cache and the REST client for the gateway.
package client

import (
	"slices"
	"sync"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/realtime"
)

// ConnectionLabel is the connection indicator shown to the user.
type ConnectionLabel string

const (
	LabelOnline  ConnectionLabel = "online"
	LabelSyncing ConnectionLabel = "syncing"
	LabelOffline ConnectionLabel = "offline"
)

// LabelFor maps a channel status to its indicator.
func LabelFor(s realtime.ConnectionStatus) ConnectionLabel {
	switch s {
	case realtime.StatusConnected:
		return LabelOnline
	case realtime.StatusSyncing:
		return LabelSyncing
	default:
		return LabelOffline
	}
}

var _ realtime.Inbox = (*Inbox)(nil)

// Inbox is the client-side notification store. Entries are keyed by ID, so
// the same notification arriving by push and by sync is kept once.
type Inbox struct {
	mu         sync.RWMutex
	items      map[notification.ID]*notification.Notification
	lastSyncID notification.ID
	label      ConnectionLabel
	now        func() time.Time
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{
		items: make(map[notification.ID]*notification.Notification),
		label: LabelOffline,
		now:   time.Now,
	}
}

// AddNotification inserts n if its ID is new and reports whether it did. A
// copy of an entry that is still unread refreshes its content; the read
// state the user set locally is kept.
func (b *Inbox) AddNotification(n *notification.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(n)
}

// AddNotifications adds a batch and returns how many were new.
func (b *Inbox) AddNotifications(ns []*notification.Notification) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	added := 0
	for _, n := range ns {
		if b.add(n) {
			added++
		}
	}
	return added
}

func (b *Inbox) add(n *notification.Notification) bool {
	if n == nil || n.ID == "" {
		return false
	}
	cur, ok := b.items[n.ID]
	if !ok {
		c := *n
		if c.Status == "" {
			c.Status = notification.StatusUnread
		}
		b.items[n.ID] = &c
		return true
	}
	if cur.Status == notification.StatusUnread {
		cur.Title = n.Title
		cur.Message = n.Message
		cur.Priority = n.Priority
		cur.Data = n.Data
		cur.Actions = n.Actions
		cur.ExpiresAt = n.ExpiresAt
	}
	return false
}

// SetLastSyncID advances the sync cursor to id. IDs not newer than the
// cursor, and locally synthesized IDs, are ignored.
func (b *Inbox) SetLastSyncID(id notification.ID) bool {
	if !id.IsServerAssigned() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if notification.CompareIDs(id, b.lastSyncID) <= 0 {
		return false
	}
	b.lastSyncID = id
	return true
}

// LastSyncID returns the sync cursor.
func (b *Inbox) LastSyncID() notification.ID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSyncID
}

// SetConnectionStatus updates the connection indicator. It has the shape of
// a realtime.Listener.
func (b *Inbox) SetConnectionStatus(s realtime.ConnectionStatus) {
	b.mu.Lock()
	b.label = LabelFor(s)
	b.mu.Unlock()
}

// ConnectionLabel returns the connection indicator.
func (b *Inbox) ConnectionLabel() ConnectionLabel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.label
}

// Get returns a copy of the entry with id.
func (b *Inbox) Get(id notification.ID) (*notification.Notification, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.items[id]
	if !ok {
		return nil, false
	}
	c := *n
	return &c, true
}

// MarkAsRead marks one entry read. Unknown IDs are ignored.
func (b *Inbox) MarkAsRead(id notification.ID) bool {
	return b.setStatus(id, notification.StatusRead)
}

// Archive archives one entry. Unknown IDs are ignored.
func (b *Inbox) Archive(id notification.ID) bool {
	return b.setStatus(id, notification.StatusArchived)
}

func (b *Inbox) setStatus(id notification.ID, status notification.Status) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.items[id]
	if !ok {
		return false
	}
	n.Status = status
	return true
}

// MarkAllAsRead marks every unread entry read and returns how many changed.
func (b *Inbox) MarkAllAsRead() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := 0
	for _, n := range b.items {
		if n.Status == notification.StatusUnread {
			n.Status = notification.StatusRead
			changed++
		}
	}
	return changed
}

// Remove deletes one entry.
func (b *Inbox) Remove(id notification.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return false
	}
	delete(b.items, id)
	return true
}

// ClearExpired drops entries past their expiry and returns how many went.
func (b *Inbox) ClearExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	removed := 0
	for id, n := range b.items {
		if n.Expired(now) {
			delete(b.items, id)
			removed++
		}
	}
	return removed
}

// UnreadCount returns the number of unread entries.
func (b *Inbox) UnreadCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, n := range b.items {
		if n.Status == notification.StatusUnread {
			count++
		}
	}
	return count
}

// Len returns the number of entries.
func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// List returns copies of the entries matching f, newest first.
func (b *Inbox) List(f notification.Filters) []*notification.Notification {
	b.mu.RLock()
	out := make([]*notification.Notification, 0, len(b.items))
	for _, n := range b.items {
		if f.Match(n) {
			c := *n
			out = append(out, &c)
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(out, func(x, y *notification.Notification) int {
		if c := y.Timestamp.Compare(x.Timestamp); c != 0 {
			return c
		}
		return notification.CompareIDs(y.ID, x.ID)
	})
	return out
}

// Reset empties the inbox and the cursor, as on logout.
func (b *Inbox) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make(map[notification.ID]*notification.Notification)
	b.lastSyncID = ""
	b.label = LabelOffline
}
