package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursekit/quiz-engine/internal/cache"
	"github.com/coursekit/quiz-engine/internal/events"
	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/scoring"
	"github.com/coursekit/quiz-engine/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	cache     cache.CacheService
	attempts  AttemptService
}

func NewGradingService(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	attempts AttemptService,
) GradingService {
	return &gradingService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		cache:     cacheService,
		attempts:  attempts,
	}
}

// RecordManualGrade assigns points to one essay answer of a finished
// attempt, then recomputes the attempt's aggregate score. Once the last
// essay is graded the provisional score becomes final and pass/fail is
// settled.
func (s *gradingService) RecordManualGrade(ctx context.Context, attemptID uint, req *ManualGradeRequest, graderID string) (*AttemptResult, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	// Swept attempts land as abandoned but are scored, so their essays
	// are gradable too; only a live attempt is off limits.
	if !attempt.Status.Terminal() {
		return nil, ErrGradingNotGradable
	}

	if attempt.Quiz.CreatedBy != graderID {
		return nil, NewPermissionError(graderID, attemptID, "attempt", "grade", "not the quiz owner")
	}

	snapshot, err := attempt.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if !snapshot.Contains(req.QuestionID) {
		return nil, ErrQuestionNotInAttempt
	}

	questions, err := s.repo.Question().GetByIDs(ctx, snapshot.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	var graded *models.Question
	for _, q := range questions {
		if q.ID == req.QuestionID {
			graded = q
			break
		}
	}
	if graded == nil {
		return nil, ErrQuestionNotInAttempt
	}

	if graded.Type != models.Essay {
		return nil, ErrGradingNotAllowed
	}
	if req.PointsEarned < 0 || req.PointsEarned > graded.Points {
		return nil, ErrGradingInvalidScore
	}

	isCorrect := req.PointsEarned == graded.Points

	// An essay the learner never answered still needs a gradable row.
	if _, err := s.repo.Answer().GetByAttemptAndQuestion(ctx, attemptID, req.QuestionID); err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get answer: %w", err)
		}
		if err := s.repo.Answer().Upsert(ctx, &models.AnswerRecord{
			AttemptID:  attemptID,
			QuestionID: req.QuestionID,
		}); err != nil {
			return nil, fmt.Errorf("failed to create answer record: %w", err)
		}
	}

	if err := s.repo.Answer().RecordGrade(ctx, attemptID, req.QuestionID, req.PointsEarned, isCorrect, graderID); err != nil {
		return nil, fmt.Errorf("failed to record grade: %w", err)
	}

	if err := s.recomputeScore(ctx, attempt, questions); err != nil {
		return nil, err
	}

	s.logger.Info("Manual grade recorded",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"points_earned", req.PointsEarned,
		"grader_id", graderID)

	return s.attempts.GetResults(ctx, attemptID, graderID)
}

// recomputeScore re-runs the scoring pass over the frozen question set
// with the fresh grades folded in and rewrites the attempt's aggregate.
func (s *gradingService) recomputeScore(ctx context.Context, attempt *models.Attempt, questions []*models.Question) error {
	records, err := s.repo.Answer().GetByAttempt(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to load answers: %w", err)
	}

	answers := make(map[uint]*models.AnswerRecord, len(records))
	for _, r := range records {
		answers[r.QuestionID] = r
	}

	result := scoring.Grade(questions, answers, attempt.Quiz.PassingScore)

	if err := s.repo.Attempt().UpdateScore(ctx, attempt.ID, result.Score, result.Passed, result.FullyGraded); err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}

	if err := s.cache.Delete(ctx, resultCacheKey(attempt.ID)); err != nil {
		s.logger.Warn("Failed to invalidate cached result", "attempt_id", attempt.ID, "error", err)
	}

	if result.FullyGraded && s.publisher != nil {
		attempt.Score = result.Score
		attempt.Passed = result.Passed
		attempt.FullyGraded = true
		event := events.NewAttemptEvent(events.AttemptGradedEvent, attempt, attempt.Quiz.LessonID)
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish graded event", "attempt_id", attempt.ID, "error", err)
		}
	}

	return nil
}
