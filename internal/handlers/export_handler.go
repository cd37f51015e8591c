package handlers

import (
	"net/http"

	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	BaseHandler
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler:   NewBaseHandler(logger),
		exportService: exportService,
	}
}

// ExportQuizResults streams the quiz's attempt results as an xlsx file
func (h *ExportHandler) ExportQuizResults(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Exporting quiz results", "quiz_id", quizID)

	data, filename, err := h.exportService.ExportQuizResults(c.Request.Context(), quizID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
