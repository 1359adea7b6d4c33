package handlers

import (
	"net/http"
	"reportrelay/internal/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	svc *services.ReportService
}

func NewHealthHandler(svc *services.ReportService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Health reports the chain id and the configured contract address.
func (h *HealthHandler) Health(c *gin.Context) {
	health, err := h.svc.Health(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}
