package models

import (
	"time"

	"gorm.io/gorm"
)

// Quiz is the assessment definition for a single lesson. A lesson has at
// most one quiz (unique index on lesson_id). MaxAttempts == 0 means the
// learner may retry without limit.
type Quiz struct {
	ID                 uint    `json:"id" gorm:"primaryKey"`
	LessonID           string  `json:"lesson_id" gorm:"not null;size:255;uniqueIndex" validate:"required"`
	Title              string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description        *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes    int     `json:"duration_minutes" gorm:"not null" validate:"required,min=1"`
	PassingScore       int     `json:"passing_score" gorm:"not null" validate:"min=0,max=100"`
	MaxAttempts        int     `json:"max_attempts" gorm:"default:0" validate:"min=0"`
	ShuffleQuestions   bool    `json:"shuffle_questions" gorm:"default:false"`
	ShowCorrectAnswers bool    `json:"show_correct_answers" gorm:"default:true"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count,omitempty" gorm:"-"`
	TotalPoints    int `json:"total_points,omitempty" gorm:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// AllowsMoreAttempts reports whether a learner with priorAttempts may
// start another one.
func (q *Quiz) AllowsMoreAttempts(priorAttempts int) bool {
	return q.MaxAttempts == 0 || priorAttempts < q.MaxAttempts
}

// Deadline returns the instant an attempt started at the given time must
// be finished by.
func (q *Quiz) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(q.DurationMinutes) * time.Minute)
}
