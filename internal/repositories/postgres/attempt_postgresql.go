package postgres

import (
	"context"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (a AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Preload("Answers").
		Preload("Quiz", func(db *gorm.DB) *gorm.DB {
			// The quiz may have been removed since the attempt finished.
			return db.Unscoped()
		}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (a AttemptPostgreSQL) Update(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Save(attempt).Error
}

func (a AttemptPostgreSQL) GetByLearner(ctx context.Context, learnerID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	filters.LearnerID = &learnerID
	return a.list(ctx, a.db.WithContext(ctx).Model(&models.Attempt{}), filters)
}

func (a AttemptPostgreSQL) GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.Attempt{}).Where("quiz_id = ?", quizID)
	return a.list(ctx, query, filters)
}

func (a AttemptPostgreSQL) list(ctx context.Context, query *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.LearnerID != nil {
		query = query.Where("learner_id = ?", *filters.LearnerID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		map[string]bool{"created_at": true, "started_at": true, "attempt_number": true})

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a AttemptPostgreSQL) GetActive(ctx context.Context, quizID uint, learnerID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("quiz_id = ? AND learner_id = ? AND status = ?", quizID, learnerID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (a AttemptPostgreSQL) CountByLearner(ctx context.Context, quizID uint, learnerID string) (int, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Count(&count).Error

	return int(count), err
}

// Finalize is a compare-and-set on the status column: only the caller
// that observes in_progress wins, so concurrent submit/sweep runs score
// an attempt exactly once.
func (a AttemptPostgreSQL) Finalize(ctx context.Context, id uint, update repositories.AttemptFinalize) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":             update.Status,
			"score":              update.Score,
			"passed":             update.Passed,
			"fully_graded":       update.FullyGraded,
			"completed_at":       update.CompletedAt,
			"time_spent_seconds": update.TimeSpentSeconds,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (a AttemptPostgreSQL) UpdateScore(ctx context.Context, id uint, score *int, passed *bool, fullyGraded bool) error {
	return a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"score":        score,
			"passed":       passed,
			"fully_graded": fullyGraded,
		}).Error
}

func (a AttemptPostgreSQL) GetExpired(ctx context.Context, now time.Time, limit int) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	query := a.db.WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
		Where("attempts.status = ?", models.AttemptInProgress).
		Where("attempts.started_at + quizzes.duration_minutes * interval '1 minute' <= ?", now).
		Order("attempts.started_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}
