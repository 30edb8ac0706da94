package notification

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shipnotify/internal/auth"
	"shipnotify/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Publish handles POST /api/v1/notifications
// Persists a notification for a user and enqueues it for delivery.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := h.service.Publish(c.Request.Context(), &req)
	if err != nil {
		slog.Error("publish notification failed",
			"error", err,
			"type", req.Type,
			"user_id", req.UserID,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, n)
}

// BroadcastAlert handles POST /api/v1/alerts
func (h *Handler) BroadcastAlert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	alert, err := h.service.BroadcastAlert(c.Request.Context(), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, alert)
}

// Sync handles GET /api/notifications/sync?since=<id>&limit=<n>
func (h *Handler) Sync(c *gin.Context) {
	limit, err := intQuery(c, "limit", DefaultSyncLimit)
	if err != nil {
		common.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Sync(c.Request.Context(), c.GetString(auth.ContextUserID), ID(c.Query("since")), limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Raw(c, http.StatusOK, resp)
}

// List handles GET /api/notifications
func (h *Handler) List(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.service.List(c.Request.Context(), c.GetString(auth.ContextUserID), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Raw(c, http.StatusOK, resp)
}

// MarkRead handles PATCH /api/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.GetString(auth.ContextUserID), ID(c.Param("id"))); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkManyRead handles PATCH /api/notifications/bulk/read
func (h *Handler) MarkManyRead(c *gin.Context) {
	var req BulkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := h.service.MarkManyRead(c.Request.Context(), c.GetString(auth.ContextUserID), req.NotificationIDs)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, gin.H{"updated": n})
}

// MarkAllRead handles PATCH /api/notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, gin.H{"updated": n})
}

// Archive handles PATCH /api/notifications/:id/archive
func (h *Handler) Archive(c *gin.Context) {
	if err := h.service.Archive(c.Request.Context(), c.GetString(auth.ContextUserID), ID(c.Param("id"))); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/notifications/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.GetString(auth.ContextUserID), ID(c.Param("id"))); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/notifications/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, stats)
}

// SendTest handles POST /api/notifications/test
func (h *Handler) SendTest(c *gin.Context) {
	n, err := h.service.SendTest(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusAccepted, n)
}

// GetPreferences handles GET /api/user/notification-preferences
func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.service.Preferences(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/user/notification-preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var prefs Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	prefs.UserID = c.GetString(auth.ContextUserID)

	saved, err := h.service.UpdatePreferences(c.Request.Context(), &prefs)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, saved)
}

// RegisterUserRoutes registers end-user routes (JWT protected) on the given group.
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.GET("/notifications/sync", h.Sync)
	rg.GET("/notifications/stats", h.Stats)
	rg.POST("/notifications/test", h.SendTest)
	rg.PATCH("/notifications/read-all", h.MarkAllRead)
	rg.PATCH("/notifications/bulk/read", h.MarkManyRead)
	rg.PATCH("/notifications/:id/read", h.MarkRead)
	rg.PATCH("/notifications/:id/archive", h.Archive)
	rg.DELETE("/notifications/:id", h.Delete)
	rg.GET("/user/notification-preferences", h.GetPreferences)
	rg.PUT("/user/notification-preferences", h.UpdatePreferences)
}

// RegisterServiceRoutes registers service-to-service routes (API key protected).
func (h *Handler) RegisterServiceRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Publish)
	rg.POST("/alerts", h.BroadcastAlert)
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError("invalid " + key + ": " + raw)
	}
	return v, nil
}

func parseListFilter(c *gin.Context) (ListFilter, error) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, err
	}

	for _, t := range splitCSV(c.Query("types")) {
		filter.Types = append(filter.Types, NotificationType(t))
	}
	for _, p := range splitCSV(c.Query("priorities")) {
		filter.Priorities = append(filter.Priorities, Priority(p))
	}

	var err error
	if filter.DateFrom, err = timeQuery(c, "dateFrom"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = timeQuery(c, "dateTo"); err != nil {
		return filter, err
	}
	return filter, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, common.NewValidationError("invalid " + key + ": want RFC3339")
	}
	return &t, nil
}
