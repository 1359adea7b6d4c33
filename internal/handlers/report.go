package handlers

import (
	"net/http"
	"reportrelay/internal/models"
	"reportrelay/internal/services"
	"reportrelay/internal/utils"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	svc *services.ReportService
}

func NewReportHandler(svc *services.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Submit relays a report to the contract and answers once it is mined.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RenderError(c, bindingError(err))
		return
	}

	receipt, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		RenderError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SubmitResult{
		Success:         true,
		TransactionHash: receipt.TxHash.Hex(),
		BlockNumber:     receipt.BlockNumber,
	})
}

// Count returns the number of reports the contract holds.
func (h *ReportHandler) Count(c *gin.Context) {
	n, err := h.svc.Count(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, err := utils.ParseReportID(c.Param("id"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	view, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
