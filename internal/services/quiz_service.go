package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuizService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) QuizService {
	return &quizService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *quizService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*models.Quiz, error) {
	s.logger.Info("Creating quiz", "lesson_id", req.LessonID, "creator_id", creatorID)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	exists, err := s.repo.Quiz().ExistsByLessonID(ctx, req.LessonID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check lesson: %w", err)
	}
	if exists {
		return nil, ErrQuizDuplicateLesson
	}

	showCorrect := true
	if req.ShowCorrectAnswers != nil {
		showCorrect = *req.ShowCorrectAnswers
	}

	quiz := &models.Quiz{
		LessonID:           req.LessonID,
		Title:              req.Title,
		Description:        req.Description,
		DurationMinutes:    req.DurationMinutes,
		PassingScore:       req.PassingScore,
		MaxAttempts:        req.MaxAttempts,
		ShuffleQuestions:   req.ShuffleQuestions,
		ShowCorrectAnswers: showCorrect,
		CreatedBy:          creatorID,
	}

	if err := s.repo.Quiz().Create(ctx, quiz); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, ErrQuizDuplicateLesson
		}
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID, "lesson_id", quiz.LessonID)
	return quiz, nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*models.Quiz, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	quiz, err := s.getOwnedQuiz(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = req.Description
	}
	if req.DurationMinutes != nil {
		quiz.DurationMinutes = *req.DurationMinutes
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.ShuffleQuestions != nil {
		quiz.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShowCorrectAnswers != nil {
		quiz.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}

	if err := s.repo.Quiz().Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz: %w", err)
	}

	s.logger.Info("Quiz updated", "quiz_id", quiz.ID, "user_id", userID)
	return quiz, nil
}

func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.getOwnedQuiz(ctx, id, userID, "delete"); err != nil {
		return err
	}

	active, err := s.repo.Quiz().HasActiveAttempts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if active {
		return ErrQuizNotDeletable
	}

	if err := s.repo.Quiz().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.logger.Info("Quiz deleted", "quiz_id", id, "user_id", userID)
	return nil
}

func (s *quizService) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.fillCounts(ctx, quiz); err != nil {
		return nil, err
	}

	return quiz, nil
}

func (s *quizService) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	quiz.QuestionsCount = len(quiz.Questions)
	for i := range quiz.Questions {
		quiz.TotalPoints += quiz.Questions[i].Points
	}

	return quiz, nil
}

func (s *quizService) GetByLessonID(ctx context.Context, lessonID string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByLessonID(ctx, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz by lesson: %w", err)
	}

	if err := s.fillCounts(ctx, quiz); err != nil {
		return nil, err
	}

	return quiz, nil
}

func (s *quizService) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	quizzes, total, err := s.repo.Quiz().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes: %w", err)
	}

	return quizzes, total, nil
}

func (s *quizService) ListMine(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	quizzes, total, err := s.repo.Quiz().GetByCreator(ctx, creatorID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes for creator %s: %w", creatorID, err)
	}

	return quizzes, total, nil
}

// ===== QUESTION MANAGEMENT =====

func (s *quizService) AddQuestion(ctx context.Context, quizID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "add_question"); err != nil {
		return nil, err
	}

	question, err := s.buildQuestion(quizID, req)
	if err != nil {
		return nil, err
	}

	if req.OrderIndex != nil {
		question.OrderIndex = *req.OrderIndex
	} else {
		count, err := s.repo.Question().CountByQuiz(ctx, quizID)
		if err != nil {
			return nil, fmt.Errorf("failed to count questions: %w", err)
		}
		question.OrderIndex = int(count)
	}

	if err := s.validator.Question().ValidateQuestion(question); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question added", "quiz_id", quizID, "question_id", question.ID, "type", question.Type)
	return question, nil
}

func (s *quizService) UpdateQuestion(ctx context.Context, quizID, questionID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "update_question"); err != nil {
		return nil, err
	}

	existing, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if existing.QuizID != quizID {
		return nil, ErrQuestionWrongQuiz
	}

	updated, err := s.buildQuestion(quizID, req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.OrderIndex = existing.OrderIndex
	if req.OrderIndex != nil {
		updated.OrderIndex = *req.OrderIndex
	}

	if err := s.validator.Question().ValidateQuestion(updated); err != nil {
		return nil, err
	}

	// Replace the option set wholesale; stale options would leak into
	// attempts otherwise.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Delete(ctx, existing.ID); err != nil {
			return err
		}
		updated.ID = 0
		return txRepo.Question().Create(ctx, updated)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated", "quiz_id", quizID, "question_id", updated.ID)
	return updated, nil
}

func (s *quizService) RemoveQuestion(ctx context.Context, quizID, questionID uint, userID string) error {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "remove_question"); err != nil {
		return err
	}

	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.QuizID != quizID {
		return ErrQuestionWrongQuiz
	}

	if err := s.repo.Question().Delete(ctx, questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question removed", "quiz_id", quizID, "question_id", questionID)
	return nil
}

func (s *quizService) ReorderQuestions(ctx context.Context, quizID uint, orders []repositories.QuestionOrder, userID string) error {
	if _, err := s.getOwnedQuiz(ctx, quizID, userID, "reorder_questions"); err != nil {
		return err
	}

	if err := s.repo.Question().Reorder(ctx, quizID, orders); err != nil {
		return fmt.Errorf("failed to reorder questions: %w", err)
	}

	return nil
}

// ===== HELPERS =====

func (s *quizService) getOwnedQuiz(ctx context.Context, id uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "quiz", action, "not the quiz owner")
	}

	return quiz, nil
}

func (s *quizService) fillCounts(ctx context.Context, quiz *models.Quiz) error {
	count, err := s.repo.Question().CountByQuiz(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	quiz.QuestionsCount = int(count)

	points, err := s.repo.Question().TotalPoints(ctx, quiz.ID)
	if err != nil {
		return fmt.Errorf("failed to total points: %w", err)
	}
	quiz.TotalPoints = points

	return nil
}

func (s *quizService) buildQuestion(quizID uint, req *CreateQuestionRequest) (*models.Question, error) {
	question := &models.Question{
		QuizID:      quizID,
		Text:        req.Text,
		Type:        req.Type,
		Points:      req.Points,
		Explanation: req.Explanation,
	}

	for i, opt := range req.Options {
		question.Options = append(question.Options, models.QuestionOption{
			Text:       opt.Text,
			IsCorrect:  opt.IsCorrect,
			OrderIndex: i,
		})
	}

	if len(req.AcceptedAnswers) > 0 {
		raw, err := json.Marshal(req.AcceptedAnswers)
		if err != nil {
			return nil, fmt.Errorf("failed to encode accepted answers: %w", err)
		}
		question.AcceptedAnswers = raw
	}

	return question, nil
}
