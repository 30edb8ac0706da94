package store

import "shipnotify/internal/domain/notification"

// statsBuilder accumulates per-user counters from (type, priority, status) rows.
type statsBuilder struct {
	*notification.Stats
}

func newStats() statsBuilder {
	return statsBuilder{&notification.Stats{
		CountByType:     map[string]int{},
		CountByPriority: map[string]int{},
	}}
}

func (b statsBuilder) add(typ, priority, status string) {
	b.TotalCount++
	if status == string(notification.StatusUnread) {
		b.UnreadCount++
	}
	b.CountByType[typ]++
	b.CountByPriority[priority]++
}
