package services

import (
	"context"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
)

// ServiceManager bundles the domain services behind one handle for
// wiring into the HTTP layer.
type ServiceManager interface {
	Quiz() QuizService
	Attempt() AttemptService
	Grading() GradingService
	Export() ExportService
}

// QuizService manages quiz definitions and their question sets.
type QuizService interface {
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*models.Quiz, error)
	Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*models.Quiz, error)
	Delete(ctx context.Context, id uint, userID string) error
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
	GetByLessonID(ctx context.Context, lessonID string) (*models.Quiz, error)
	List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error)
	ListMine(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error)

	// Question management
	AddQuestion(ctx context.Context, quizID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, quizID, questionID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	RemoveQuestion(ctx context.Context, quizID, questionID uint, userID string) error
	ReorderQuestions(ctx context.Context, quizID uint, orders []repositories.QuestionOrder, userID string) error
}

// AttemptService runs the attempt lifecycle from start to results.
type AttemptService interface {
	Start(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error)
	SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, learnerID string) error
	Submit(ctx context.Context, attemptID uint, learnerID string) (*AttemptResult, error)
	Abandon(ctx context.Context, attemptID uint, learnerID string) error
	GetResults(ctx context.Context, attemptID uint, learnerID string) (*AttemptResult, error)
	GetActive(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error)
	ListByLearner(ctx context.Context, learnerID string, filters repositories.AttemptFilters) ([]*AttemptSummary, int64, error)
	ListByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptSummary, int64, error)

	// SweepExpired finalizes every in_progress attempt whose deadline has
	// passed and returns how many it closed.
	SweepExpired(ctx context.Context) (int, error)
}

// GradingService records manual grades for essay answers.
type GradingService interface {
	RecordManualGrade(ctx context.Context, attemptID uint, req *ManualGradeRequest, graderID string) (*AttemptResult, error)
}

// ExportService renders quiz results as downloadable spreadsheets.
type ExportService interface {
	ExportQuizResults(ctx context.Context, quizID uint, userID string) ([]byte, string, error)
}

// ===== REQUEST STRUCTS =====

type CreateQuizRequest struct {
	LessonID           string  `json:"lesson_id" validate:"required"`
	Title              string  `json:"title" validate:"required,min=1,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes    int     `json:"duration_minutes" validate:"required,min=1"`
	PassingScore       int     `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts        int     `json:"max_attempts" validate:"min=0"`
	ShuffleQuestions   bool    `json:"shuffle_questions"`
	ShowCorrectAnswers *bool   `json:"show_correct_answers"`
}

type UpdateQuizRequest struct {
	Title              *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description        *string `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes    *int    `json:"duration_minutes" validate:"omitempty,min=1"`
	PassingScore       *int    `json:"passing_score" validate:"omitempty,min=0,max=100"`
	MaxAttempts        *int    `json:"max_attempts" validate:"omitempty,min=0"`
	ShuffleQuestions   *bool   `json:"shuffle_questions"`
	ShowCorrectAnswers *bool   `json:"show_correct_answers"`
}

type CreateQuestionRequest struct {
	Text            string              `json:"text" validate:"required"`
	Type            models.QuestionType `json:"type" validate:"required,question_type"`
	Points          int                 `json:"points" validate:"required,min=1"`
	Explanation     *string             `json:"explanation"`
	OrderIndex      *int                `json:"order_index"`
	Options         []OptionInput       `json:"options" validate:"omitempty,dive"`
	AcceptedAnswers []string            `json:"accepted_answers"`
}

type OptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type SubmitAnswerRequest struct {
	QuestionID       uint    `json:"question_id" validate:"required"`
	SelectedOptionID *uint   `json:"selected_option_id"`
	AnswerText       *string `json:"answer_text"`
}

type ManualGradeRequest struct {
	QuestionID   uint `json:"question_id" validate:"required"`
	PointsEarned int  `json:"points_earned" validate:"min=0"`
}

// ===== RESPONSE STRUCTS =====

// StartAttemptResponse is the learner's view of a running attempt:
// questions in the frozen presentation order, option keys stripped.
type StartAttemptResponse struct {
	AttemptID       uint              `json:"attempt_id"`
	QuizID          uint              `json:"quiz_id"`
	AttemptNumber   int               `json:"attempt_number"`
	StartedAt       time.Time         `json:"started_at"`
	Deadline        time.Time         `json:"deadline"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []AttemptQuestion `json:"questions"`
}

type AttemptQuestion struct {
	ID      uint                `json:"id"`
	Text    string              `json:"text"`
	Type    models.QuestionType `json:"type"`
	Points  int                 `json:"points"`
	Options []AttemptOption     `json:"options,omitempty"`
}

type AttemptOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// AttemptResult is the finalized view of an attempt. Score and Passed
// stay null while manual grading is outstanding or the attempt was
// abandoned; answers come back in the frozen presentation order.
type AttemptResult struct {
	AttemptID        uint                 `json:"attempt_id"`
	QuizID           uint                 `json:"quiz_id"`
	QuizTitle        string               `json:"quiz_title"`
	LearnerID        string               `json:"learner_id"`
	AttemptNumber    int                  `json:"attempt_number"`
	Status           models.AttemptStatus `json:"status"`
	Score            *int                 `json:"score"`
	Passed           *bool                `json:"passed"`
	FullyGraded      bool                 `json:"fully_graded"`
	PassingScore     int                  `json:"passing_score"`
	TotalPoints      int                  `json:"total_points"`
	EarnedPoints     int                  `json:"earned_points"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      *time.Time           `json:"completed_at"`
	TimeSpentSeconds *int                 `json:"time_spent_seconds"`
	Answers          []AnswerResult       `json:"answers"`
}

type AnswerResult struct {
	QuestionID       uint                `json:"question_id"`
	QuestionText     string              `json:"question_text"`
	QuestionType     models.QuestionType `json:"question_type"`
	Points           int                 `json:"points"`
	SelectedOptionID *uint               `json:"selected_option_id,omitempty"`
	AnswerText       *string             `json:"answer_text,omitempty"`
	IsCorrect        *bool               `json:"is_correct"`
	PointsEarned     *int                `json:"points_earned"`
	Options          []AttemptOption     `json:"options,omitempty"`

	// Only present when the quiz reveals its key.
	CorrectOptionID *uint   `json:"correct_option_id,omitempty"`
	Explanation     *string `json:"explanation,omitempty"`
}

// AttemptSummary is the list-view shape of an attempt.
type AttemptSummary struct {
	AttemptID        uint                 `json:"attempt_id"`
	QuizID           uint                 `json:"quiz_id"`
	LearnerID        string               `json:"learner_id"`
	AttemptNumber    int                  `json:"attempt_number"`
	Status           models.AttemptStatus `json:"status"`
	Score            *int                 `json:"score"`
	Passed           *bool                `json:"passed"`
	FullyGraded      bool                 `json:"fully_graded"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      *time.Time           `json:"completed_at"`
	TimeSpentSeconds *int                 `json:"time_spent_seconds"`
}
