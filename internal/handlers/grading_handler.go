package handlers

import (
	"net/http"

	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// RecordManualGrade stores a grader's score for one essay answer and
// returns the attempt's recomputed results.
func (h *GradingHandler) RecordManualGrade(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	graderID := h.learnerID(c)
	if graderID == "" {
		return
	}

	var req services.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Recording manual grade",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"grader_id", graderID,
	)

	result, err := h.gradingService.RecordManualGrade(c.Request.Context(), attemptID, &req, graderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
