package shipment

import (
	"net/http"

	"shipnotify/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler exposes shipment events and tracking history over HTTP.
type Handler struct {
	processor *Processor
}

// NewHandler creates a new shipment handler.
func NewHandler(processor *Processor) *Handler {
	return &Handler{processor: processor}
}

// Ingest handles POST /api/v1/shipments/events
func (h *Handler) Ingest(c *gin.Context) {
	var e StatusEvent
	if err := c.ShouldBindJSON(&e); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.processor.Process(c.Request.Context(), "http", &e); err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusAccepted, gin.H{"trackingNumber": e.TrackingNumber})
}

// History handles GET /api/shipments/:trackingNumber/history
func (h *Handler) History(c *gin.Context) {
	update, err := h.processor.History(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Raw(c, http.StatusOK, update)
}

// RegisterUserRoutes registers end-user routes on the given group.
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/shipments/:trackingNumber/history", h.History)
}

// RegisterServiceRoutes registers service-to-service routes on the given group.
func (h *Handler) RegisterServiceRoutes(rg *gin.RouterGroup) {
	rg.POST("/shipments/events", h.Ingest)
}
