package postgres

import (
	"context"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type QuizPostgreSQL struct {
	db *gorm.DB
}

func NewQuizPostgreSQL(db *gorm.DB) repositories.QuizRepository {
	return &QuizPostgreSQL{db: db}
}

func (q QuizPostgreSQL) Create(ctx context.Context, quiz *models.Quiz) error {
	return q.db.WithContext(ctx).Create(quiz).Error
}

func (q QuizPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := q.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, err
	}

	return &quiz, nil
}

func (q QuizPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := q.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.order_index ASC")
		}).
		First(&quiz, id).Error; err != nil {
		return nil, err
	}

	return &quiz, nil
}

func (q QuizPostgreSQL) GetByLessonID(ctx context.Context, lessonID string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := q.db.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		First(&quiz).Error; err != nil {
		return nil, err
	}

	return &quiz, nil
}

func (q QuizPostgreSQL) Update(ctx context.Context, quiz *models.Quiz) error {
	return q.db.WithContext(ctx).Save(quiz).Error
}

func (q QuizPostgreSQL) Delete(ctx context.Context, id uint) error {
	return q.db.WithContext(ctx).Delete(&models.Quiz{}, id).Error
}

func (q QuizPostgreSQL) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	var quizzes []*models.Quiz
	var total int64

	query := q.db.WithContext(ctx).Model(&models.Quiz{})
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		map[string]bool{"created_at": true, "title": true})

	if err := query.Find(&quizzes).Error; err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

func (q QuizPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	filters.CreatedBy = &creatorID
	return q.List(ctx, filters)
}

func (q QuizPostgreSQL) ExistsByLessonID(ctx context.Context, lessonID string, excludeID *uint) (bool, error) {
	var count int64
	query := q.db.WithContext(ctx).
		Model(&models.Quiz{}).
		Where("lesson_id = ?", lessonID)

	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	if err := query.Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (q QuizPostgreSQL) HasActiveAttempts(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := q.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND status = ?", id, models.AttemptInProgress).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
