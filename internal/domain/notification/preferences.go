package notification

import (
	"fmt"
	"time"
)

// Preferences are a user's delivery settings.
type Preferences struct {
	UserID                   string                    `json:"-"`
	EnablePushNotifications  bool                      `json:"enablePushNotifications"`
	EnableEmailNotifications bool                      `json:"enableEmailNotifications"`
	EnableSMSNotifications   bool                      `json:"enableSMSNotifications"`
	Email                    string                    `json:"email,omitempty"`
	NotificationTypes        map[NotificationType]bool `json:"notificationTypes"`
	QuietHoursStart          string                    `json:"quietHoursStart,omitempty"` // HH:MM
	QuietHoursEnd            string                    `json:"quietHoursEnd,omitempty"`   // HH:MM
}

// DefaultPreferences enables push for every type and nothing else.
func DefaultPreferences(userID string) *Preferences {
	types := make(map[NotificationType]bool, len(validTypes))
	for _, t := range AllTypes() {
		types[t] = true
	}
	return &Preferences{
		UserID:                  userID,
		EnablePushNotifications: true,
		NotificationTypes:       types,
	}
}

// Validate checks type keys and the quiet-hours window format.
func (p *Preferences) Validate() error {
	for t := range p.NotificationTypes {
		if !IsValidType(t) {
			return fmt.Errorf("unsupported notification type: %s", t)
		}
	}
	if (p.QuietHoursStart == "") != (p.QuietHoursEnd == "") {
		return fmt.Errorf("quiet hours need both start and end")
	}
	if p.QuietHoursStart == "" {
		return nil
	}
	if _, err := time.Parse("15:04", p.QuietHoursStart); err != nil {
		return fmt.Errorf("invalid quietHoursStart %q: want HH:MM", p.QuietHoursStart)
	}
	if _, err := time.Parse("15:04", p.QuietHoursEnd); err != nil {
		return fmt.Errorf("invalid quietHoursEnd %q: want HH:MM", p.QuietHoursEnd)
	}
	return nil
}

// Wants reports whether the user accepts notifications of type t.
// Types absent from the map are accepted.
func (p *Preferences) Wants(t NotificationType) bool {
	enabled, ok := p.NotificationTypes[t]
	return !ok || enabled
}

// InQuietHours reports whether now falls in the user's quiet window.
// Windows may wrap midnight (22:00-07:00).
func (p *Preferences) InQuietHours(now time.Time) bool {
	if p.QuietHoursStart == "" || p.QuietHoursEnd == "" {
		return false
	}
	start, err1 := time.Parse("15:04", p.QuietHoursStart)
	end, err2 := time.Parse("15:04", p.QuietHoursEnd)
	if err1 != nil || err2 != nil {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()

	if s == e {
		return false
	}
	if s < e {
		return minute >= s && minute < e
	}
	return minute >= s || minute < e
}
