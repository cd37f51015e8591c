package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether the status is an end state. Attempts only move
// forward: in_progress -> completed | abandoned.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

// AttemptSnapshot is the presentation order frozen at start time: the
// question sequence and, for shuffled option sets, the option order per
// question. Later quiz edits never change it.
type AttemptSnapshot struct {
	QuestionIDs []uint          `json:"question_ids"`
	OptionOrder map[uint][]uint `json:"option_order,omitempty"`
}

// Contains reports whether the question is part of the frozen snapshot.
func (s AttemptSnapshot) Contains(questionID uint) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Attempt is one learner's run through a quiz. Rows are never deleted;
// they are the audit trail.
//
// Two uniqueness guarantees live at the persistence layer: at most one
// in_progress attempt per (quiz, learner), and a gapless attempt_number
// sequence per (quiz, learner).
type Attempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QuizID        uint          `json:"quiz_id" gorm:"not null;uniqueIndex:idx_quiz_learner_active,where:status = 'in_progress';uniqueIndex:idx_quiz_learner_number"`
	LearnerID     string        `json:"learner_id" gorm:"not null;size:255;uniqueIndex:idx_quiz_learner_active,where:status = 'in_progress';uniqueIndex:idx_quiz_learner_number"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_learner_number"`
	Status        AttemptStatus `json:"status" gorm:"not null;default:in_progress;index"`

	// Scoring; null until finalized, provisional while essays are ungraded.
	Score       *int  `json:"score"`
	Passed      *bool `json:"passed"`
	FullyGraded bool  `json:"fully_graded" gorm:"not null;default:false"`

	// Timing
	StartedAt        time.Time  `json:"started_at" gorm:"not null"`
	CompletedAt      *time.Time `json:"completed_at"`
	TimeSpentSeconds *int       `json:"time_spent_seconds"`

	// Frozen presentation order (AttemptSnapshot as jsonb).
	Snapshot datatypes.JSON `json:"-" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz           `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
	Answers []AnswerRecord `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) SetSnapshot(snap AttemptSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	a.Snapshot = raw
	return nil
}

func (a *Attempt) GetSnapshot() (AttemptSnapshot, error) {
	var snap AttemptSnapshot
	if len(a.Snapshot) == 0 {
		return snap, nil
	}
	err := json.Unmarshal(a.Snapshot, &snap)
	return snap, err
}

// AnswerRecord is the learner's answer to one question of one attempt.
// At most one record exists per (attempt, question); resubmission while
// the attempt is in progress overwrites it.
type AnswerRecord struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`

	// Exactly one of these carries the answer, depending on question type.
	SelectedOptionID *uint   `json:"selected_option_id"`
	AnswerText       *string `json:"answer_text" gorm:"type:text"`

	// Grading; null for essays until a manual grade is recorded.
	IsCorrect    *bool      `json:"is_correct"`
	PointsEarned *int       `json:"points_earned"`
	GradedAt     *time.Time `json:"graded_at"`
	GradedBy     *string    `json:"graded_by" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}

// Graded reports whether points have been assigned to this record.
func (r *AnswerRecord) Graded() bool {
	return r.PointsEarned != nil
}
