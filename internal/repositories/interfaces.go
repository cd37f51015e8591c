package repositories

import (
	"context"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
)

// Repository aggregates per-entity repositories behind one handle.
// WithTransaction runs fn against a transaction-bound Repository; the
// transaction commits when fn returns nil and rolls back otherwise.
type Repository interface {
	Quiz() QuizRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// QuizRepository interface for quiz definition operations
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
	GetByLessonID(ctx context.Context, lessonID string) (*models.Quiz, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id uint) error // Soft delete

	// Query operations
	List(ctx context.Context, filters QuizFilters) ([]*models.Quiz, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters QuizFilters) ([]*models.Quiz, int64, error)

	// Validation helpers
	ExistsByLessonID(ctx context.Context, lessonID string, excludeID *uint) (bool, error)
	HasActiveAttempts(ctx context.Context, id uint) (bool, error)
}

// QuestionRepository interface for question and option operations
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error // Soft delete

	// Query operations
	GetByQuiz(ctx context.Context, quizID uint) ([]*models.Question, error)
	// GetByIDs resolves questions including soft-deleted ones, so finished
	// attempts can still render their frozen question set.
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)

	// Ordering
	Reorder(ctx context.Context, quizID uint, orders []QuestionOrder) error

	// Aggregates
	CountByQuiz(ctx context.Context, quizID uint) (int64, error)
	TotalPoints(ctx context.Context, quizID uint) (int, error)
}

// AttemptRepository interface for attempt lifecycle operations
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error)
	Update(ctx context.Context, attempt *models.Attempt) error

	// Query operations
	GetByLearner(ctx context.Context, learnerID string, filters AttemptFilters) ([]*models.Attempt, int64, error)
	GetByQuiz(ctx context.Context, quizID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// Active attempt management
	GetActive(ctx context.Context, quizID uint, learnerID string) (*models.Attempt, error)
	CountByLearner(ctx context.Context, quizID uint, learnerID string) (int, error)

	// Finalize moves an in_progress attempt into a terminal state and
	// writes score, passed, fully_graded, completed_at and time spent in
	// one statement guarded on the current status. It reports false when
	// the attempt was already terminal.
	Finalize(ctx context.Context, id uint, update AttemptFinalize) (bool, error)

	// UpdateScore rewrites the scoring columns of a terminal attempt
	// after a manual grade lands. Passed stays null while grading is
	// still outstanding.
	UpdateScore(ctx context.Context, id uint, score *int, passed *bool, fullyGraded bool) error

	// GetExpired returns in_progress attempts whose quiz duration elapsed
	// before the given instant.
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*models.Attempt, error)
}

// AnswerRepository interface for answer record operations
type AnswerRepository interface {
	GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error)
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AnswerRecord, error)
	GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.AnswerRecord, error)

	// Upsert inserts the record or, when one exists for the same
	// (attempt, question), overwrites its answer columns atomically.
	Upsert(ctx context.Context, answer *models.AnswerRecord) error

	// Grading operations
	UpdateGrades(ctx context.Context, attemptID uint, grades []AnswerGrade) error
	RecordGrade(ctx context.Context, attemptID, questionID uint, pointsEarned int, isCorrect bool, gradedBy string) error
}

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	CreatedBy *string `json:"created_by"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "title"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	LearnerID *string               `json:"learner_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED HELPER STRUCTS =====

type QuestionOrder struct {
	QuestionID uint `json:"question_id"`
	Order      int  `json:"order"`
}

type AnswerGrade struct {
	QuestionID   uint  `json:"question_id"`
	PointsEarned *int  `json:"points_earned"`
	IsCorrect    *bool `json:"is_correct"`
}

// AttemptFinalize carries the terminal-state columns written by
// AttemptRepository.Finalize.
type AttemptFinalize struct {
	Status           models.AttemptStatus
	Score            *int
	Passed           *bool
	FullyGraded      bool
	CompletedAt      time.Time
	TimeSpentSeconds int
}
