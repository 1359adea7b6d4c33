package handlers

import (
	"net/http"
	"reportrelay/internal/models"
	"reportrelay/internal/services"
	"reportrelay/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type SubmissionHandler struct {
	svc *services.ReportService
}

func NewSubmissionHandler(svc *services.ReportService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// SubmissionPage is one page of the submission journal.
type SubmissionPage struct {
	Items   []models.Submission `json:"items"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"perPage"`
}

// List 分页查询提交记录，最新的在前
func (h *SubmissionHandler) List(c *gin.Context) {
	page := utils.StringToInt(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := utils.StringToInt(c.DefaultQuery("per_page", "20"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	items, total, err := h.svc.Submissions(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		RenderError(c, err)
		return
	}
	if items == nil {
		items = []models.Submission{}
	}

	c.JSON(http.StatusOK, SubmissionPage{Items: items, Total: total, Page: page, PerPage: perPage})
}

// Get looks a submission up by transaction hash.
func (h *SubmissionHandler) Get(c *gin.Context) {
	row, err := h.svc.Submission(c.Request.Context(), c.Param("hash"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
