package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shipnotify/internal/auth"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, _, _, _ := newTestService()
	h := NewHandler(s)

	r := gin.New()
	user := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.ContextUserID, c.GetHeader("X-Test-User"))
		c.Next()
	})
	h.RegisterUserRoutes(user)
	h.RegisterServiceRoutes(r.Group("/api/v1"))
	return r, s
}

func do(r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_PublishThenSync(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodPost, "/api/v1/notifications", "",
			`{"userId":"u1","type":"shipment_status","title":"Shipment delayed","message":"UPS123 is delayed"}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("publish status = %d: %s", w.Code, w.Body)
		}
	}

	w := do(r, http.MethodGet, "/api/notifications/sync?since=1&limit=1", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d: %s", w.Code, w.Body)
	}
	var resp SyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].ID != "2" || !resp.HasMore || resp.LastID != "2" {
		t.Errorf("sync = %+v", resp)
	}

	w = do(r, http.MethodGet, "/api/notifications/sync", "u2", "")
	if !strings.Contains(w.Body.String(), `"notifications":[]`) {
		t.Errorf("other user's sync = %s", w.Body)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing title", http.MethodPost, "/api/v1/notifications", `{"userId":"u1","type":"shipment_status","message":"m"}`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/v1/notifications", `{"userId":"u1","type":"fax","title":"t","message":"m"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/notifications/sync?limit=ten", "", http.StatusBadRequest},
		{"bad cursor", http.MethodGet, "/api/notifications/sync?since=alert_1", "", http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/notifications?dateFrom=yesterday", "", http.StatusBadRequest},
		{"unknown id", http.MethodPatch, "/api/notifications/99/read", "", http.StatusNotFound},
		{"empty bulk", http.MethodPatch, "/api/notifications/bulk/read", `{"notificationIds":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, "u1", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestHandler_ReadStateAndStats(t *testing.T) {
	r, s := newTestRouter(t)
	publishN(t, s, "u1", 3)

	if w := do(r, http.MethodPatch, "/api/notifications/1/read", "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("mark read = %d", w.Code)
	}
	w := do(r, http.MethodPatch, "/api/notifications/bulk/read", "u1", `{"notificationIds":["2"]}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"updated":1`) {
		t.Fatalf("bulk read = %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/api/notifications/stats", "u1", "")
	var stats Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.UnreadCount != 1 || stats.TotalCount != 3 || stats.CountByType["shipment_status"] != 3 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(r, http.MethodGet, "/api/notifications?status=unread&limit=10", "u1", "")
	var list ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Notifications[0].ID != "3" {
		t.Errorf("list = %+v", list)
	}

	if w := do(r, http.MethodDelete, "/api/notifications/3", "u1", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestHandler_Preferences(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPut, "/api/user/notification-preferences", "u1",
		`{"enablePushNotifications":true,"enableEmailNotifications":true,"email":"a@b.c","quietHoursStart":"22:00","quietHoursEnd":"07:00"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/api/user/notification-preferences", "u1", "")
	var p Preferences
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if !p.EnableEmailNotifications || p.QuietHoursStart != "22:00" {
		t.Errorf("prefs = %+v", p)
	}

	w = do(r, http.MethodPut, "/api/user/notification-preferences", "u1", `{"quietHoursStart":"25:00","quietHoursEnd":"07:00"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid update = %d", w.Code)
	}
}

func TestHandler_BroadcastAlert(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/v1/alerts", "", `{"message":"Carrier API degraded","priority":"critical"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("alert = %d: %s", w.Code, w.Body)
	}
	var env struct {
		Success bool        `json:"success"`
		Data    SystemAlert `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success || env.Data.Priority != PriorityCritical || !strings.HasPrefix(string(env.Data.ID), "alert_") {
		t.Errorf("response = %+v", env)
	}
}
