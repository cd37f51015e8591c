package handlers

import (
	"net/http"

	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// CreateQuiz creates a quiz for a lesson
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	var req services.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating quiz", "lesson_id", req.LessonID)

	quiz, err := h.quizService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz returns a quiz without its questions
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), quizID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// GetQuizWithQuestions returns a quiz including its full question set
func (h *QuizHandler) GetQuizWithQuestions(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	quiz, err := h.quizService.GetByIDWithQuestions(c.Request.Context(), quizID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// GetQuizByLesson resolves the quiz attached to a lesson
func (h *QuizHandler) GetQuizByLesson(c *gin.Context) {
	lessonID := ParseStringIDParam(c, "lesson_id")
	if lessonID == "" {
		return
	}

	quiz, err := h.quizService.GetByLessonID(c.Request.Context(), lessonID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// ListQuizzes lists quizzes with pagination
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 10)

	filters := repositories.QuizFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if creator := c.Query("created_by"); creator != "" {
		filters.CreatedBy = &creator
	}

	quizzes, total, err := h.quizService.List(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: quizzes, Total: total})
}

// ListMyQuizzes lists the quizzes owned by the caller
func (h *QuizHandler) ListMyQuizzes(c *gin.Context) {
	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 10)

	filters := repositories.QuizFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	quizzes, total, err := h.quizService.ListMine(c.Request.Context(), userID, filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: quizzes, Total: total})
}

// UpdateQuiz updates quiz settings
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	var req services.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// DeleteQuiz soft-deletes a quiz
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), quizID, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz deleted"})
}

// ===== QUESTION MANAGEMENT =====

// AddQuestion appends a question to a quiz
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	question, err := h.quizService.AddQuestion(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion replaces a question's content and option set
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	questionID := parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	question, err := h.quizService.UpdateQuestion(c.Request.Context(), quizID, questionID, &req, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// RemoveQuestion removes a question from a quiz
func (h *QuizHandler) RemoveQuestion(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}
	questionID := parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	if err := h.quizService.RemoveQuestion(c.Request.Context(), quizID, questionID, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question removed"})
}

// ReorderQuestions rewrites the authored question order
func (h *QuizHandler) ReorderQuestions(c *gin.Context) {
	quizID := parseIDParam(c, "id")
	if quizID == 0 {
		return
	}

	userID := h.learnerID(c)
	if userID == "" {
		return
	}

	var req struct {
		Orders []repositories.QuestionOrder `json:"orders" validate:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.quizService.ReorderQuestions(c.Request.Context(), quizID, req.Orders, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions reordered"})
}
