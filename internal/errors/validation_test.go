package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("passing_score", "must be between 0 and 100", 120)

	if err.Field != "passing_score" {
		t.Errorf("Expected field to be 'passing_score', got '%s'", err.Field)
	}

	if err.Message != "must be between 0 and 100" {
		t.Errorf("Expected message to be 'must be between 0 and 100', got '%s'", err.Message)
	}

	if err.Value != 120 {
		t.Errorf("Expected value to be 120, got '%v'", err.Value)
	}

	expected := "validation error on field 'passing_score': must be between 0 and 100"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("title", "is required", nil))
	expected := "validation failed: title is required"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("points", "must be at least 1", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("type", "must be a valid question type", "question_type", "matching")

	if err.Rule != "question_type" {
		t.Errorf("Expected rule to be 'question_type', got '%s'", err.Rule)
	}

	if err.Field != "type" {
		t.Errorf("Expected field to be 'type', got '%s'", err.Field)
	}
}
