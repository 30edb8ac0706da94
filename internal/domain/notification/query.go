package notification

// DefaultSyncLimit is the page size used for missed-notification catch-up.
const DefaultSyncLimit = 100

// ListFilter defines pagination and filtering options for listing a user's notifications.
type ListFilter struct {
	Filters
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// normalize applies pagination defaults.
func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// ListResponse wraps a paginated list of notifications.
type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	Limit         int             `json:"limit"`
	HasMore       bool            `json:"hasMore"`
}

// SyncResponse is the catch-up payload: notifications newer than the
// requested cursor in ascending ID order, plus the newest ID included.
type SyncResponse struct {
	Notifications []*Notification `json:"notifications"`
	HasMore       bool            `json:"hasMore"`
	LastID        ID              `json:"lastId"`
}

// Stats summarizes a user's notifications.
type Stats struct {
	UnreadCount     int            `json:"unreadCount"`
	TotalCount      int            `json:"totalCount"`
	CountByType     map[string]int `json:"countByType"`
	CountByPriority map[string]int `json:"countByPriority"`
}

// BulkReadRequest is the payload for marking several notifications read.
type BulkReadRequest struct {
	NotificationIDs []ID `json:"notificationIds" binding:"required,min=1"`
}
