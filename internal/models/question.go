package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// AutoGraded reports whether answers of this type are scored without
// human review.
func (t QuestionType) AutoGraded() bool {
	return t != Essay
}

// HasOptions reports whether this type carries an option set.
func (t QuestionType) HasOptions() bool {
	return t == MultipleChoice || t == TrueFalse
}

// Question belongs to exactly one quiz. Choice types own an ordered option
// set; short_answer carries its accepted answers as a jsonb string array;
// essay has no key at all.
type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	QuizID      uint         `json:"quiz_id" gorm:"not null;index"`
	Text        string       `json:"text" gorm:"not null;type:text" validate:"required"`
	Type        QuestionType `json:"type" gorm:"not null;size:20" validate:"required,question_type"`
	Points      int          `json:"points" gorm:"not null" validate:"required,min=1"`
	Explanation *string      `json:"explanation,omitempty" gorm:"type:text"`
	OrderIndex  int          `json:"order_index" gorm:"not null;default:0"`

	// Accepted answers for short_answer questions ([]string as jsonb).
	AcceptedAnswers datatypes.JSON `json:"accepted_answers,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Options []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOption returns the single correct option for choice types, nil
// otherwise.
func (q *Question) CorrectOption() *QuestionOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// OptionByID resolves an option of this question by its id.
func (q *Question) OptionByID(id uint) *QuestionOption {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

// AcceptedAnswerList decodes the stored accepted answers. An empty column
// yields an empty list.
func (q *Question) AcceptedAnswerList() ([]string, error) {
	if len(q.AcceptedAnswers) == 0 {
		return nil, nil
	}
	var answers []string
	if err := json.Unmarshal(q.AcceptedAnswers, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// QuestionOption is one selectable answer of a choice question.
type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null;type:text" validate:"required"`
	IsCorrect  bool   `json:"is_correct" gorm:"not null;default:false"`
	OrderIndex int    `json:"order_index" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
