package events

import (
	"fmt"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
)

// AttemptEventType identifies what happened to an attempt.
type AttemptEventType string

const (
	AttemptCompletedEvent AttemptEventType = "attempt.completed"
	AttemptAbandonedEvent AttemptEventType = "attempt.abandoned"
	AttemptGradedEvent    AttemptEventType = "attempt.graded"
)

// AttemptEvent is the payload published when an attempt reaches a
// terminal state or receives its final grade. Downstream consumers
// (progress tracking, certificates) key off Type.
type AttemptEvent struct {
	ID        string           `json:"id"`
	Type      AttemptEventType `json:"type"`
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`

	AttemptID     uint   `json:"attempt_id"`
	QuizID        uint   `json:"quiz_id"`
	LessonID      string `json:"lesson_id,omitempty"`
	LearnerID     string `json:"learner_id"`
	AttemptNumber int    `json:"attempt_number"`
	Score         *int   `json:"score,omitempty"`
	Passed        *bool  `json:"passed,omitempty"`
	FullyGraded   bool   `json:"fully_graded"`
}

// NewAttemptEvent builds the envelope for one attempt transition.
func NewAttemptEvent(eventType AttemptEventType, attempt *models.Attempt, lessonID string) *AttemptEvent {
	now := time.Now().UTC()
	return &AttemptEvent{
		ID:            fmt.Sprintf("%s-%d-%d", eventType, attempt.ID, now.UnixNano()),
		Type:          eventType,
		Source:        "quiz-engine",
		Version:       "1.0",
		Timestamp:     now,
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		LessonID:      lessonID,
		LearnerID:     attempt.LearnerID,
		AttemptNumber: attempt.AttemptNumber,
		Score:         attempt.Score,
		Passed:        attempt.Passed,
		FullyGraded:   attempt.FullyGraded,
	}
}
