package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/gin-gonic/gin"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return 0
	}
	return uint(id)
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors onto HTTP statuses: validation
// 400, missing 404, permission 403, state conflicts 409.
func handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "VALIDATION_FAILED",
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
			Code: "FORBIDDEN",
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
			Code: "BUSINESS_RULE",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuizNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: err.Error(),
			Code:    "NOT_FOUND",
		})

	case errors.Is(err, services.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "ATTEMPT_IN_PROGRESS",
		})

	case errors.Is(err, services.ErrAttemptLimitExceeded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "ATTEMPT_LIMIT_EXCEEDED",
		})

	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "ATTEMPT_NOT_ACTIVE",
		})

	case errors.Is(err, services.ErrAttemptAlreadyFinalized):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "ATTEMPT_ALREADY_FINALIZED",
		})

	case errors.Is(err, services.ErrQuizDuplicateLesson),
		errors.Is(err, services.ErrQuizNotDeletable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "CONFLICT",
		})

	case errors.Is(err, services.ErrAttemptNotFinalized):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: err.Error(),
			Code:    "ATTEMPT_NOT_FINALIZED",
		})

	case errors.Is(err, services.ErrQuestionNotInAttempt):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
			Code:    "QUESTION_NOT_IN_ATTEMPT",
		})

	case errors.Is(err, services.ErrEmptyQuiz):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: err.Error(),
			Code:    "EMPTY_QUIZ",
		})

	case errors.Is(err, services.ErrGradingNotAllowed),
		errors.Is(err, services.ErrGradingNotGradable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: err.Error(),
			Code:    "GRADING_NOT_ALLOWED",
		})

	case errors.Is(err, services.ErrGradingInvalidScore),
		errors.Is(err, services.ErrAnswerMissingValue),
		errors.Is(err, services.ErrQuestionWrongQuiz),
		services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
			Code:    "VALIDATION_FAILED",
		})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Code:    "INTERNAL",
		})
	}
}
