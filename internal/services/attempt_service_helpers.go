package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coursekit/quiz-engine/internal/events"
	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/scoring"
)

const resultCacheTTL = 15 * time.Minute

func resultCacheKey(attemptID uint) string {
	return fmt.Sprintf("attempt_result:%d", attemptID)
}

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, learnerID, action string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.LearnerID != learnerID {
		return nil, NewPermissionError(learnerID, attemptID, "attempt", action, "not the attempt owner")
	}

	return attempt, nil
}

// buildAnswerRecord checks the answer's shape against the question type
// before it is stored: choice answers must point at one of the
// question's own options, text answers must carry text.
func (s *attemptService) buildAnswerRecord(attempt *models.Attempt, question *models.Question, req *SubmitAnswerRequest) (*models.AnswerRecord, error) {
	record := &models.AnswerRecord{
		AttemptID:  attempt.ID,
		QuestionID: question.ID,
	}

	if question.Type.HasOptions() {
		if req.SelectedOptionID == nil {
			return nil, ErrAnswerMissingValue
		}
		if question.OptionByID(*req.SelectedOptionID) == nil {
			return nil, ErrAnswerMissingValue
		}
		record.SelectedOptionID = req.SelectedOptionID
		return record, nil
	}

	if req.AnswerText == nil {
		return nil, ErrAnswerMissingValue
	}
	record.AnswerText = req.AnswerText
	return record, nil
}

func (s *attemptService) timeSpent(attempt *models.Attempt, now time.Time) int {
	elapsed := int(now.Sub(attempt.StartedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// capTimeSpent bounds the recorded duration at the quiz limit so a late
// sweep or abandon never reports more time than the attempt could have
// used.
func capTimeSpent(elapsed int, quiz *models.Quiz) int {
	limit := quiz.DurationMinutes * 60
	if elapsed > limit {
		return limit
	}
	return elapsed
}

// finalizeAttempt runs the single scoring pass of an attempt: grade the
// frozen question set, then compare-and-set the given terminal state
// (completed for a learner submit, abandoned for a timeout sweep; both
// are scored). Exactly one caller wins the CAS; the loser gets
// ErrAttemptAlreadyFinalized.
func (s *attemptService) finalizeAttempt(ctx context.Context, attempt *models.Attempt, now time.Time, status models.AttemptStatus) error {
	quiz, questions, answers, err := s.loadAttemptContext(ctx, attempt)
	if err != nil {
		return err
	}

	result := scoring.Grade(questions, answers, quiz.PassingScore)

	elapsed := capTimeSpent(s.timeSpent(attempt, now), quiz)

	ok, err := s.repo.Attempt().Finalize(ctx, attempt.ID, repositories.AttemptFinalize{
		Status:           status,
		Score:            result.Score,
		Passed:           result.Passed,
		FullyGraded:      result.FullyGraded,
		CompletedAt:      now,
		TimeSpentSeconds: elapsed,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize attempt: %w", err)
	}
	if !ok {
		return ErrAttemptAlreadyFinalized
	}

	// Persist the per-question outcomes for rows that exist; unanswered
	// questions have no row and score zero implicitly.
	grades := make([]repositories.AnswerGrade, 0, len(result.PerQuestion))
	for _, qr := range result.PerQuestion {
		if !qr.Graded {
			continue
		}
		if _, answered := answers[qr.QuestionID]; !answered {
			continue
		}
		grades = append(grades, repositories.AnswerGrade{
			QuestionID:   qr.QuestionID,
			PointsEarned: qr.PointsEarned,
			IsCorrect:    qr.IsCorrect,
		})
	}
	if len(grades) > 0 {
		if err := s.repo.Answer().UpdateGrades(ctx, attempt.ID, grades); err != nil {
			return fmt.Errorf("failed to store grades: %w", err)
		}
	}

	attempt.Status = status
	attempt.Score = result.Score
	attempt.Passed = result.Passed
	attempt.FullyGraded = result.FullyGraded
	attempt.CompletedAt = &now

	s.invalidateResult(ctx, attempt.ID)

	eventType := events.AttemptCompletedEvent
	if status == models.AttemptAbandoned {
		eventType = events.AttemptAbandonedEvent
	}
	s.publishEvent(ctx, eventType, attempt)

	s.logger.Info("Attempt finalized",
		"attempt_id", attempt.ID,
		"status", status,
		"score", result.Score,
		"fully_graded", result.FullyGraded)

	return nil
}

// ===== RESULTS =====

func (s *attemptService) GetResults(ctx context.Context, attemptID uint, learnerID string) (*AttemptResult, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if !attempt.Status.Terminal() {
		return nil, ErrAttemptNotFinalized
	}

	quiz, questions, answers, err := s.loadAttemptContext(ctx, attempt)
	if err != nil {
		return nil, err
	}

	if attempt.LearnerID != learnerID && quiz.CreatedBy != learnerID {
		return nil, NewPermissionError(learnerID, attemptID, "attempt", "read_results", "not the attempt owner")
	}

	var cached AttemptResult
	if err := s.cache.Get(ctx, resultCacheKey(attemptID), &cached); err == nil {
		return &cached, nil
	}

	result := s.buildAttemptResult(attempt, quiz, questions, answers)

	// Only settled results are worth caching; provisional ones change
	// as manual grades land.
	if attempt.FullyGraded {
		if err := s.cache.Set(ctx, resultCacheKey(attemptID), result, resultCacheTTL); err != nil {
			s.logger.Warn("Failed to cache result", "attempt_id", attemptID, "error", err)
		}
	}

	return result, nil
}

// loadAttemptContext resolves the quiz and the frozen question set of an
// attempt, including soft-deleted rows, plus the stored answers keyed by
// question.
func (s *attemptService) loadAttemptContext(ctx context.Context, attempt *models.Attempt) (*models.Quiz, []*models.Question, map[uint]*models.AnswerRecord, error) {
	full, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	snapshot, err := attempt.GetSnapshot()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	loaded, err := s.repo.Question().GetByIDs(ctx, snapshot.QuestionIDs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load questions: %w", err)
	}

	// Reorder into the snapshot sequence.
	byID := make(map[uint]*models.Question, len(loaded))
	for _, q := range loaded {
		byID[q.ID] = q
	}
	questions := make([]*models.Question, 0, len(snapshot.QuestionIDs))
	for _, id := range snapshot.QuestionIDs {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}

	answers := make(map[uint]*models.AnswerRecord, len(full.Answers))
	for i := range full.Answers {
		answers[full.Answers[i].QuestionID] = &full.Answers[i]
	}

	return &full.Quiz, questions, answers, nil
}

func (s *attemptService) buildAttemptResult(attempt *models.Attempt, quiz *models.Quiz, questions []*models.Question, answers map[uint]*models.AnswerRecord) *AttemptResult {
	snapshot, _ := attempt.GetSnapshot()

	result := &AttemptResult{
		AttemptID:        attempt.ID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		LearnerID:        attempt.LearnerID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           attempt.Status,
		Score:            attempt.Score,
		Passed:           attempt.Passed,
		FullyGraded:      attempt.FullyGraded,
		PassingScore:     quiz.PassingScore,
		StartedAt:        attempt.StartedAt,
		CompletedAt:      attempt.CompletedAt,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
		Answers:          make([]AnswerResult, 0, len(questions)),
	}

	for _, q := range questions {
		result.TotalPoints += q.Points

		ar := AnswerResult{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			Points:       q.Points,
			Options:      orderedOptions(q, snapshot.OptionOrder[q.ID]),
		}

		if rec, ok := answers[q.ID]; ok {
			ar.SelectedOptionID = rec.SelectedOptionID
			ar.AnswerText = rec.AnswerText
			ar.IsCorrect = rec.IsCorrect
			ar.PointsEarned = rec.PointsEarned
			if rec.PointsEarned != nil {
				result.EarnedPoints += *rec.PointsEarned
			}
		}

		if quiz.ShowCorrectAnswers {
			if correct := q.CorrectOption(); correct != nil {
				id := correct.ID
				ar.CorrectOptionID = &id
			}
			ar.Explanation = q.Explanation
		}

		result.Answers = append(result.Answers, ar)
	}

	return result
}

// ===== SIDE EFFECTS =====

func (s *attemptService) invalidateResult(ctx context.Context, attemptID uint) {
	if err := s.cache.Delete(ctx, resultCacheKey(attemptID)); err != nil {
		s.logger.Warn("Failed to invalidate cached result", "attempt_id", attemptID, "error", err)
	}
}

func (s *attemptService) publishEvent(ctx context.Context, eventType events.AttemptEventType, attempt *models.Attempt) {
	if s.publisher == nil {
		return
	}

	lessonID := ""
	if quiz, err := s.repo.Quiz().GetByID(ctx, attempt.QuizID); err == nil {
		lessonID = quiz.LessonID
	}

	event := events.NewAttemptEvent(eventType, attempt, lessonID)
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt event",
			"attempt_id", attempt.ID,
			"event_type", eventType,
			"error", err)
	}
}
