package postgres

import (
	"context"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	return q.db.WithContext(ctx).Create(question).Error
}

func (q QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.order_index ASC")
		}).
		First(&question, id).Error; err != nil {
		return nil, err
	}

	return &question, nil
}

func (q QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	return q.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(question).Error
}

func (q QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	return q.db.WithContext(ctx).Delete(&models.Question{}, id).Error
}

func (q QuestionPostgreSQL) GetByQuiz(ctx context.Context, quizID uint) ([]*models.Question, error) {
	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("order_index ASC").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.order_index ASC")
		}).
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

// GetByIDs resolves questions through Unscoped so attempts finished
// before a question was removed can still show their full history.
func (q QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Unscoped().
		Where("id IN ?", ids).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().Order("question_options.order_index ASC")
		}).
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (q QuestionPostgreSQL) Reorder(ctx context.Context, quizID uint, orders []repositories.QuestionOrder) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range orders {
			if err := tx.Model(&models.Question{}).
				Where("id = ? AND quiz_id = ?", o.QuestionID, quizID).
				Update("order_index", o.Order).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (q QuestionPostgreSQL) CountByQuiz(ctx context.Context, quizID uint) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("quiz_id = ?", quizID).
		Count(&count).Error

	return count, err
}

func (q QuestionPostgreSQL) TotalPoints(ctx context.Context, quizID uint) (int, error) {
	var total int64
	err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("quiz_id = ?", quizID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error

	return int(total), err
}
