package services

import (
	"errors"
	"fmt"

	apperrors "github.com/coursekit/quiz-engine/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Quiz specific errors
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizDuplicateLesson = errors.New("lesson already has a quiz")
	ErrQuizNotDeletable    = errors.New("quiz cannot be deleted - has active attempts")
	ErrEmptyQuiz           = errors.New("quiz has no questions")

	// Question specific errors
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionInvalidType = errors.New("invalid question type")
	ErrQuestionWrongQuiz   = errors.New("question does not belong to quiz")

	// Attempt specific errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptInProgress       = errors.New("an attempt is already in progress")
	ErrAttemptLimitExceeded    = errors.New("maximum attempts exceeded")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrAttemptNotFinalized     = errors.New("attempt is still in progress")
	ErrQuestionNotInAttempt    = errors.New("question is not part of this attempt")
	ErrAnswerMissingValue      = errors.New("answer carries no value for the question type")

	// Grading specific errors
	ErrGradingNotAllowed   = errors.New("manual grading only applies to essay questions")
	ErrGradingInvalidScore = errors.New("points exceed the question's maximum")
	ErrGradingNotGradable  = errors.New("attempt is not awaiting grades")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrQuestionInvalidType) ||
		errors.Is(err, ErrAnswerMissingValue) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrQuizDuplicateLesson) ||
		errors.Is(err, ErrQuizNotDeletable) ||
		errors.Is(err, ErrAttemptInProgress) ||
		errors.Is(err, ErrAttemptLimitExceeded) ||
		errors.Is(err, ErrAttemptNotActive) ||
		errors.Is(err, ErrAttemptAlreadyFinalized)
}
