package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursekit/quiz-engine/internal/cache"
	"github.com/coursekit/quiz-engine/internal/events"
	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/sequencer"
	"github.com/coursekit/quiz-engine/internal/validator"
)

// startAttemptRetries bounds the recreate loop when two racing starts
// collide on the attempt number.
const startAttemptRetries = 3

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	cache     cache.CacheService
}

func NewAttemptService(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
) AttemptService {
	return &attemptService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		cache:     cacheService,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error) {
	s.logger.Info("Starting attempt", "quiz_id", quizID, "learner_id", learnerID)

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return nil, ErrEmptyQuiz
	}

	if _, err := s.repo.Attempt().GetActive(ctx, quizID, learnerID); err == nil {
		return nil, ErrAttemptInProgress
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}

	var attempt *models.Attempt
	for retry := 0; ; retry++ {
		attempt, err = s.createAttempt(ctx, quiz, learnerID)
		if err == nil {
			break
		}
		// A racing start may have taken our attempt number; recount and
		// try again. The active-attempt index is not retryable.
		if repositories.ViolatedConstraint(err) == repositories.ConstraintAttemptNumber && retry < startAttemptRetries {
			continue
		}
		if repositories.ViolatedConstraint(err) == repositories.ConstraintActiveAttempt {
			return nil, ErrAttemptInProgress
		}
		return nil, err
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"learner_id", learnerID,
		"attempt_number", attempt.AttemptNumber)

	return s.buildStartResponse(quiz, attempt)
}

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, learnerID string) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, learnerID, "submit_answer")
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}

	snapshot, err := attempt.GetSnapshot()
	if err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if !snapshot.Contains(req.QuestionID) {
		return ErrQuestionNotInAttempt
	}

	// Resolve through the snapshot path: an edit may have soft-deleted
	// the question row, but the frozen set still answers against it.
	loaded, err := s.repo.Question().GetByIDs(ctx, []uint{req.QuestionID})
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}
	if len(loaded) == 0 {
		return ErrQuestionNotInAttempt
	}
	question := loaded[0]

	record, err := s.buildAnswerRecord(attempt, question, req)
	if err != nil {
		return err
	}

	if err := s.repo.Answer().Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Info("Answer submitted",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"learner_id", learnerID)

	return nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID uint, learnerID string) (*AttemptResult, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "learner_id", learnerID)

	attempt, err := s.getOwnedAttempt(ctx, attemptID, learnerID, "submit")
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadyFinalized
	}

	if err := s.finalizeAttempt(ctx, attempt, time.Now().UTC(), models.AttemptCompleted); err != nil {
		return nil, err
	}

	return s.GetResults(ctx, attemptID, learnerID)
}

func (s *attemptService) Abandon(ctx context.Context, attemptID uint, learnerID string) error {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, learnerID, "abandon")
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptAlreadyFinalized
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, attempt.QuizID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	now := time.Now().UTC()
	ok, err := s.repo.Attempt().Finalize(ctx, attempt.ID, repositories.AttemptFinalize{
		Status:           models.AttemptAbandoned,
		CompletedAt:      now,
		TimeSpentSeconds: capTimeSpent(s.timeSpent(attempt, now), quiz),
	})
	if err != nil {
		return fmt.Errorf("failed to abandon attempt: %w", err)
	}
	if !ok {
		return ErrAttemptAlreadyFinalized
	}

	attempt.Status = models.AttemptAbandoned
	s.publishEvent(ctx, events.AttemptAbandonedEvent, attempt)

	s.logger.Info("Attempt abandoned", "attempt_id", attemptID, "learner_id", learnerID)
	return nil
}

func (s *attemptService) GetActive(ctx context.Context, quizID uint, learnerID string) (*StartAttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetActive(ctx, quizID, learnerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	return s.buildStartResponse(quiz, attempt)
}

// ===== LIST OPERATIONS =====

func (s *attemptService) ListByLearner(ctx context.Context, learnerID string, filters repositories.AttemptFilters) ([]*AttemptSummary, int64, error) {
	attempts, total, err := s.repo.Attempt().GetByLearner(ctx, learnerID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return buildSummaries(attempts), total, nil
}

func (s *attemptService) ListByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptSummary, int64, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, 0, ErrQuizNotFound
		}
		return nil, 0, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, 0, NewPermissionError(userID, quizID, "quiz", "view_attempts", "not the quiz owner")
	}

	attempts, total, err := s.repo.Attempt().GetByQuiz(ctx, quizID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return buildSummaries(attempts), total, nil
}

// ===== EXPIRY SWEEP =====

// SweepExpired is the only authority that times attempts out: answers
// submitted after the deadline but before the sweep still count.
func (s *attemptService) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	expired, err := s.repo.Attempt().GetExpired(ctx, now, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	swept := 0
	for _, attempt := range expired {
		// A timed-out attempt is still scored, but lands as abandoned:
		// the learner never handed it in.
		if err := s.finalizeAttempt(ctx, attempt, now, models.AttemptAbandoned); err != nil {
			// A racing submit finalized it first; nothing left to do.
			if err == ErrAttemptAlreadyFinalized {
				continue
			}
			s.logger.Error("Failed to sweep attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("Swept expired attempts", "count", swept)
	}

	return swept, nil
}

// ===== SEQUENCED RESPONSE BUILDING =====

func (s *attemptService) createAttempt(ctx context.Context, quiz *models.Quiz, learnerID string) (*models.Attempt, error) {
	var attempt *models.Attempt

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		count, err := txRepo.Attempt().CountByLearner(ctx, quiz.ID, learnerID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if !quiz.AllowsMoreAttempts(count) {
			return ErrAttemptLimitExceeded
		}

		attempt = &models.Attempt{
			QuizID:        quiz.ID,
			LearnerID:     learnerID,
			AttemptNumber: count + 1,
			Status:        models.AttemptInProgress,
			StartedAt:     time.Now().UTC(),
		}

		if err := txRepo.Attempt().Create(ctx, attempt); err != nil {
			return err
		}

		// The snapshot seed is the attempt id, so it can only be built
		// once the row exists.
		questions := make([]*models.Question, len(quiz.Questions))
		for i := range quiz.Questions {
			questions[i] = &quiz.Questions[i]
		}
		snapshot := sequencer.BuildSnapshot(attempt.ID, questions, quiz.ShuffleQuestions)
		if err := attempt.SetSnapshot(snapshot); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		return txRepo.Attempt().Update(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

func (s *attemptService) buildStartResponse(quiz *models.Quiz, attempt *models.Attempt) (*StartAttemptResponse, error) {
	snapshot, err := attempt.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	byID := make(map[uint]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		byID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	resp := &StartAttemptResponse{
		AttemptID:       attempt.ID,
		QuizID:          quiz.ID,
		AttemptNumber:   attempt.AttemptNumber,
		StartedAt:       attempt.StartedAt,
		Deadline:        quiz.Deadline(attempt.StartedAt),
		DurationMinutes: quiz.DurationMinutes,
		Questions:       make([]AttemptQuestion, 0, len(snapshot.QuestionIDs)),
	}

	for _, qid := range snapshot.QuestionIDs {
		q, ok := byID[qid]
		if !ok {
			continue
		}
		resp.Questions = append(resp.Questions, AttemptQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Points:  q.Points,
			Options: orderedOptions(q, snapshot.OptionOrder[qid]),
		})
	}

	return resp, nil
}

func buildSummaries(attempts []*models.Attempt) []*AttemptSummary {
	summaries := make([]*AttemptSummary, len(attempts))
	for i, a := range attempts {
		summaries[i] = &AttemptSummary{
			AttemptID:        a.ID,
			QuizID:           a.QuizID,
			LearnerID:        a.LearnerID,
			AttemptNumber:    a.AttemptNumber,
			Status:           a.Status,
			Score:            a.Score,
			Passed:           a.Passed,
			FullyGraded:      a.FullyGraded,
			StartedAt:        a.StartedAt,
			CompletedAt:      a.CompletedAt,
			TimeSpentSeconds: a.TimeSpentSeconds,
		}
	}
	return summaries
}

// orderedOptions projects a question's options into the frozen order,
// without the correctness flag.
func orderedOptions(q *models.Question, order []uint) []AttemptOption {
	if !q.Type.HasOptions() {
		return nil
	}

	options := make([]AttemptOption, 0, len(q.Options))
	if len(order) == 0 {
		for _, opt := range q.Options {
			options = append(options, AttemptOption{ID: opt.ID, Text: opt.Text})
		}
		return options
	}

	for _, id := range order {
		if opt := q.OptionByID(id); opt != nil {
			options = append(options, AttemptOption{ID: opt.ID, Text: opt.Text})
		}
	}
	return options
}
