package services

import (
	"context"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// MockQuizRepository is a mock implementation of QuizRepository
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByLessonID(ctx context.Context, lessonID string) (*models.Quiz, error) {
	args := m.Called(ctx, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockQuizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuizRepository) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Quiz), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuizRepository) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	args := m.Called(ctx, creatorID, filters)
	return args.Get(0).([]*models.Quiz), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuizRepository) ExistsByLessonID(ctx context.Context, lessonID string, excludeID *uint) (bool, error) {
	args := m.Called(ctx, lessonID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuizRepository) HasActiveAttempts(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) Update(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByQuiz(ctx context.Context, quizID uint) ([]*models.Question, error) {
	args := m.Called(ctx, quizID)
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) Reorder(ctx context.Context, quizID uint, orders []repositories.QuestionOrder) error {
	args := m.Called(ctx, quizID, orders)
	return args.Error(0)
}

func (m *MockQuestionRepository) CountByQuiz(ctx context.Context, quizID uint) (int64, error) {
	args := m.Called(ctx, quizID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuestionRepository) TotalPoints(ctx context.Context, quizID uint) (int, error) {
	args := m.Called(ctx, quizID)
	return args.Int(0), args.Error(1)
}

// MockAttemptRepository is a mock implementation of AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) GetByIDWithAnswers(ctx context.Context, id uint) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByLearner(ctx context.Context, learnerID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	args := m.Called(ctx, learnerID, filters)
	return args.Get(0).([]*models.Attempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	args := m.Called(ctx, quizID, filters)
	return args.Get(0).([]*models.Attempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) GetActive(ctx context.Context, quizID uint, learnerID string) (*models.Attempt, error) {
	args := m.Called(ctx, quizID, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) CountByLearner(ctx context.Context, quizID uint, learnerID string) (int, error) {
	args := m.Called(ctx, quizID, learnerID)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptRepository) Finalize(ctx context.Context, id uint, update repositories.AttemptFinalize) (bool, error) {
	args := m.Called(ctx, id, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRepository) UpdateScore(ctx context.Context, id uint, score *int, passed *bool, fullyGraded bool) error {
	args := m.Called(ctx, id, score, passed, fullyGraded)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*models.Attempt, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*models.Attempt), args.Error(1)
}

// MockAnswerRepository is a mock implementation of AnswerRepository
type MockAnswerRepository struct {
	mock.Mock
}

func (m *MockAnswerRepository) GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerRecord), args.Error(1)
}

func (m *MockAnswerRepository) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AnswerRecord, error) {
	args := m.Called(ctx, attemptID)
	return args.Get(0).([]*models.AnswerRecord), args.Error(1)
}

func (m *MockAnswerRepository) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uint) (*models.AnswerRecord, error) {
	args := m.Called(ctx, attemptID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerRecord), args.Error(1)
}

func (m *MockAnswerRepository) Upsert(ctx context.Context, answer *models.AnswerRecord) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *MockAnswerRepository) UpdateGrades(ctx context.Context, attemptID uint, grades []repositories.AnswerGrade) error {
	args := m.Called(ctx, attemptID, grades)
	return args.Error(0)
}

func (m *MockAnswerRepository) RecordGrade(ctx context.Context, attemptID, questionID uint, pointsEarned int, isCorrect bool, gradedBy string) error {
	args := m.Called(ctx, attemptID, questionID, pointsEarned, isCorrect, gradedBy)
	return args.Error(0)
}

// MockRepository aggregates the entity mocks behind the Repository
// interface. WithTransaction runs fn against the same mocks, so
// transactional paths are exercised without a database.
type MockRepository struct {
	quiz     *MockQuizRepository
	question *MockQuestionRepository
	attempt  *MockAttemptRepository
	answer   *MockAnswerRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		quiz:     &MockQuizRepository{},
		question: &MockQuestionRepository{},
		attempt:  &MockAttemptRepository{},
		answer:   &MockAnswerRepository{},
	}
}

func (m *MockRepository) Quiz() repositories.QuizRepository         { return m.quiz }
func (m *MockRepository) Question() repositories.QuestionRepository { return m.question }
func (m *MockRepository) Attempt() repositories.AttemptRepository   { return m.attempt }
func (m *MockRepository) Answer() repositories.AnswerRepository     { return m.answer }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

func (m *MockRepository) AssertExpectations(t mock.TestingT) {
	m.quiz.AssertExpectations(t)
	m.question.AssertExpectations(t)
	m.attempt.AssertExpectations(t)
	m.answer.AssertExpectations(t)
}

// ===== SHARED TEST HELPERS =====

func stringPtr(s string) *string { return &s }
func uintPtr(u uint) *uint       { return &u }
