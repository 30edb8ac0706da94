package store

import (
	"fmt"

	"shipnotify/internal/config"
	"shipnotify/internal/domain/notification"
)

// Store is a backend holding both notifications and preferences.
type Store interface {
	notification.NotificationStore
	notification.PreferencesStore
}

// Open returns the backend selected by cfg.Store.Driver and a function that
// releases it.
func Open(cfg *config.Config) (Store, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "supabase", "":
		s, err := NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
