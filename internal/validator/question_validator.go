package validator

import (
	"fmt"
	"strings"

	"github.com/coursekit/quiz-engine/internal/models"
)

// QuestionValidator checks a fully built Question+Options value as a
// unit before anything is persisted. A question is never stored in a
// partially valid state.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

func questionError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// ValidateQuestion validates a complete question for its declared type.
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if strings.TrimSpace(question.Text) == "" {
		return questionError("text", "question text is required")
	}

	if question.Points < 1 {
		return questionError("points", "question points must be positive")
	}

	switch question.Type {
	case models.MultipleChoice:
		return v.validateMultipleChoice(question)
	case models.TrueFalse:
		return v.validateTrueFalse(question)
	case models.ShortAnswer:
		return v.validateShortAnswer(question)
	case models.Essay:
		return v.validateEssay(question)
	default:
		return questionError("type", fmt.Sprintf("unsupported question type: %s", question.Type))
	}
}

func (v *QuestionValidator) validateMultipleChoice(question *models.Question) error {
	if len(question.Options) < 2 {
		return questionError("options", "multiple choice questions must have at least 2 options")
	}

	if len(question.Options) > 10 {
		return questionError("options", "multiple choice questions cannot have more than 10 options")
	}

	return v.validateOptionSet(question)
}

func (v *QuestionValidator) validateTrueFalse(question *models.Question) error {
	if len(question.Options) != 2 {
		return questionError("options", "true/false questions must have exactly 2 options")
	}

	return v.validateOptionSet(question)
}

// validateOptionSet enforces the exactly-one-correct invariant server
// side; option exclusivity is never trusted from client input.
func (v *QuestionValidator) validateOptionSet(question *models.Question) error {
	correct := 0
	for i, option := range question.Options {
		if strings.TrimSpace(option.Text) == "" {
			return questionError("options", fmt.Sprintf("option %d text cannot be empty", i+1))
		}
		if option.IsCorrect {
			correct++
		}
	}

	if correct != 1 {
		return questionError("options", fmt.Sprintf("exactly one option must be marked correct, got %d", correct))
	}

	return nil
}

func (v *QuestionValidator) validateShortAnswer(question *models.Question) error {
	if len(question.Options) > 0 {
		return questionError("options", "short answer questions cannot have options")
	}

	answers, err := question.AcceptedAnswerList()
	if err != nil {
		return questionError("accepted_answers", "accepted answers are not a valid string list")
	}

	for i, answer := range answers {
		if strings.TrimSpace(answer) == "" {
			return questionError("accepted_answers", fmt.Sprintf("accepted answer %d cannot be empty", i+1))
		}
	}

	return nil
}

func (v *QuestionValidator) validateEssay(question *models.Question) error {
	// An essay has no automatic answer key; options or accepted answers
	// would imply auto-grading contradictions.
	if len(question.Options) > 0 {
		return questionError("options", "essay questions cannot have options")
	}

	if answers, err := question.AcceptedAnswerList(); err != nil {
		return questionError("accepted_answers", "accepted answers are not a valid string list")
	} else if len(answers) > 0 {
		return questionError("accepted_answers", "essay questions cannot have accepted answers")
	}

	return nil
}
