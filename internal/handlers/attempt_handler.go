package handlers

import (
	"errors"
	"net/http"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt opens a new attempt on a quiz for the calling learner
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", quizID, "learner_id", learnerID)

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, learnerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// GetActiveAttempt resumes the learner's in-progress attempt on a quiz
func (h *AttemptHandler) GetActiveAttempt(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	attempt, err := h.attemptService.GetActive(c.Request.Context(), quizID, learnerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAnswer saves or replaces the learner's answer to one question
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, &req, learnerID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// SubmitAttempt finalizes the attempt and returns its results
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID, "learner_id", learnerID)

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, learnerID)
	if errors.Is(err, services.ErrAttemptAlreadyFinalized) {
		// Duplicate submit (retry, double click) is benign: hand back
		// the payload the first submit produced.
		result, err = h.attemptService.GetResults(c.Request.Context(), attemptID, learnerID)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AbandonAttempt voids the attempt without scoring it
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	if err := h.attemptService.Abandon(c.Request.Context(), attemptID, learnerID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt abandoned"})
}

// GetResults returns the finalized result payload for an attempt
func (h *AttemptHandler) GetResults(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	result, err := h.attemptService.GetResults(c.Request.Context(), attemptID, learnerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMyAttempts lists the calling learner's attempt history
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	learnerID := h.learnerID(c)
	if learnerID == "" {
		return
	}

	filters := attemptFilters(c)

	attempts, total, err := h.attemptService.ListByLearner(c.Request.Context(), learnerID, filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: attempts, Total: total})
}

// ListQuizAttempts lists all attempts on a quiz for its creator
func (h *AttemptHandler) ListQuizAttempts(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	filters := attemptFilters(c)
	if learner := c.Query("learner_id"); learner != "" {
		filters.LearnerID = &learner
	}

	attempts, total, err := h.attemptService.ListByQuiz(c.Request.Context(), quizID, filters, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: attempts, Total: total})
}

// SweepExpiredAttempts closes every attempt past its deadline
func (h *AttemptHandler) SweepExpiredAttempts(c *gin.Context) {
	h.LogRequest(c, "Sweeping expired attempts")

	swept, err := h.attemptService.SweepExpired(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Sweep complete",
		Data:    map[string]int{"swept": swept},
	})
}

func attemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		s := models.AttemptStatus(status)
		filters.Status = &s
	}
	return filters
}
