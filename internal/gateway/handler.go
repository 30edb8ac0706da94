package gateway

import (
	"log/slog"
	"net/http"
	"slices"

	"shipnotify/internal/auth"
	"shipnotify/internal/common"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/middleware"
	"shipnotify/internal/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests to WebSocket connections and
// exposes session control to other services.
type Handler struct {
	hub      *Hub
	jwt      *auth.JWTManager
	pusher   notification.Pusher
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. pusher fans session control out to
// every gateway; allowedOrigins empty means any origin.
func NewHandler(hub *Hub, jwt *auth.JWTManager, pusher notification.Pusher, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		jwt:    jwt,
		pusher: pusher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWS handles GET /ws. The token comes from the Authorization header or
// the token query parameter, since browsers cannot set headers on upgrade.
func (h *Handler) ServeWS(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		common.Error(c, http.StatusUnauthorized, "token is required")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		common.Error(c, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", claims.UserID(), "error", err)
		return
	}

	client := newClient(h.hub, conn, claims.UserID(), claims.ID)
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// revokeRequest is the body of POST /api/v1/sessions/revoke.
type revokeRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Revoke handles POST /api/v1/sessions/revoke. Every connection of the user
// is closed with the session-ended code and will not reconnect on its own.
func (h *Handler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	target := notification.Target{UserID: req.UserID}
	if err := h.pusher.Push(c.Request.Context(), target, protocol.EventSessionEnded, nil); err != nil {
		common.HandleError(c, common.NewProviderError("push", err.Error()))
		return
	}

	slog.Info("sessions revoked", "user_id", req.UserID)
	common.Success(c, http.StatusAccepted, gin.H{"userId": req.UserID})
}

// RegisterServiceRoutes registers service-to-service routes on the given group.
func (h *Handler) RegisterServiceRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions/revoke", h.Revoke)
}
