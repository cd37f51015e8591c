package postgres

import (
	"context"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a AnswerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error) {
	var answer models.AnswerRecord
	if err := a.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, err
	}

	return &answer, nil
}

func (a AnswerPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AnswerRecord, error) {
	var answers []*models.AnswerRecord
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (a AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.AnswerRecord, error) {
	var answer models.AnswerRecord
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		return nil, err
	}

	return &answer, nil
}

// Upsert relies on the unique index over (attempt_id, question_id): a
// resubmission overwrites the answer columns in place, so two racing
// submissions can never produce two rows and the later write wins whole.
func (a AnswerPostgreSQL) Upsert(ctx context.Context, answer *models.AnswerRecord) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_option_id", "answer_text", "updated_at",
			}),
		}).
		Create(answer).Error
}

func (a AnswerPostgreSQL) UpdateGrades(ctx context.Context, attemptID uint, grades []repositories.AnswerGrade) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, g := range grades {
			if err := tx.Model(&models.AnswerRecord{}).
				Where("attempt_id = ? AND question_id = ?", attemptID, g.QuestionID).
				Updates(map[string]interface{}{
					"points_earned": g.PointsEarned,
					"is_correct":    g.IsCorrect,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (a AnswerPostgreSQL) RecordGrade(ctx context.Context, attemptID, questionID uint, pointsEarned int, isCorrect bool, gradedBy string) error {
	return a.db.WithContext(ctx).
		Model(&models.AnswerRecord{}).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		Updates(map[string]interface{}{
			"points_earned": pointsEarned,
			"is_correct":    isCorrect,
			"graded_at":     time.Now().UTC(),
			"graded_by":     gradedBy,
		}).Error
}
