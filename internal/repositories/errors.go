package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	// Postgres constraint names the schema declares; callers use them to
	// tell which uniqueness rule a 23505 violated.
	ConstraintActiveAttempt  = "idx_quiz_learner_active"
	ConstraintAttemptNumber  = "idx_quiz_learner_number"
	ConstraintAnswerQuestion = "idx_attempt_question"
	ConstraintQuizLesson     = "idx_quizzes_lesson_id"
)

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ViolatedConstraint returns the name of the constraint behind a unique
// violation, or "" when err is not one.
func ViolatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}
