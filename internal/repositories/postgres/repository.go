package postgres

import (
	"context"
	"fmt"

	"github.com/coursekit/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type gormRepository struct {
	db       *gorm.DB
	quiz     repositories.QuizRepository
	question repositories.QuestionRepository
	answer   repositories.AnswerRepository
	attempt  repositories.AttemptRepository
}

// New wires the per-entity repositories around one gorm handle.
func New(db *gorm.DB) repositories.Repository {
	return &gormRepository{
		db:       db,
		quiz:     NewQuizPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
		answer:   NewAnswerPostgreSQL(db),
		attempt:  NewAttemptPostgreSQL(db),
	}
}

func (r *gormRepository) Quiz() repositories.QuizRepository         { return r.quiz }
func (r *gormRepository) Question() repositories.QuestionRepository { return r.question }
func (r *gormRepository) Answer() repositories.AnswerRepository     { return r.answer }
func (r *gormRepository) Attempt() repositories.AttemptRepository   { return r.attempt }

func (r *gormRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

// applyPaginationAndSort applies the shared limit/offset/order clauses.
// sortBy is checked against a column whitelist so filters never reach
// the ORDER BY clause unescaped.
func applyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int, allowed map[string]bool) *gorm.DB {
	if sortBy != "" && allowed[sortBy] {
		order := "desc"
		if sortOrder == "asc" {
			order = "asc"
		}
		query = query.Order(fmt.Sprintf("%s %s", sortBy, order))
	} else {
		query = query.Order("created_at desc")
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
