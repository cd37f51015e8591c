package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQuizServiceForTest(repo *MockRepository) QuizService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQuizService(repo, logger, validator.New())
}

func TestQuizService_Create(t *testing.T) {
	tests := []struct {
		name        string
		request     *CreateQuizRequest
		setupMocks  func(*MockRepository)
		expectError error
	}{
		{
			name: "successful creation",
			request: &CreateQuizRequest{
				LessonID:        "lesson-101",
				Title:           "Go Basics",
				DurationMinutes: 30,
				PassingScore:    70,
			},
			setupMocks: func(repo *MockRepository) {
				repo.quiz.On("ExistsByLessonID", mock.Anything, "lesson-101", (*uint)(nil)).Return(false, nil)
				repo.quiz.On("Create", mock.Anything, mock.MatchedBy(func(q *models.Quiz) bool {
					return q.LessonID == "lesson-101" && q.CreatedBy == "teacher-1" && q.ShowCorrectAnswers
				})).Return(nil)
			},
		},
		{
			name: "lesson already has a quiz",
			request: &CreateQuizRequest{
				LessonID:        "lesson-taken",
				Title:           "Duplicate",
				DurationMinutes: 30,
				PassingScore:    70,
			},
			setupMocks: func(repo *MockRepository) {
				repo.quiz.On("ExistsByLessonID", mock.Anything, "lesson-taken", (*uint)(nil)).Return(true, nil)
			},
			expectError: ErrQuizDuplicateLesson,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			tt.setupMocks(repo)

			service := newQuizServiceForTest(repo)
			quiz, err := service.Create(context.Background(), tt.request, "teacher-1")

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, quiz)
			} else {
				require.NoError(t, err)
				require.NotNil(t, quiz)
				assert.Equal(t, tt.request.Title, quiz.Title)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestQuizService_Update_NotOwner(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		LessonID:  "lesson-1",
		Title:     "Owned by someone else",
		CreatedBy: "teacher-1",
	}, nil)

	service := newQuizServiceForTest(repo)
	_, err := service.Update(context.Background(), 1, &UpdateQuizRequest{Title: stringPtr("New Title")}, "teacher-2")

	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, "teacher-2", permErr.UserID)
	repo.AssertExpectations(t)
}

func TestQuizService_Delete_BlockedByActiveAttempts(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		CreatedBy: "teacher-1",
	}, nil)
	repo.quiz.On("HasActiveAttempts", mock.Anything, uint(1)).Return(true, nil)

	service := newQuizServiceForTest(repo)
	err := service.Delete(context.Background(), 1, "teacher-1")

	assert.ErrorIs(t, err, ErrQuizNotDeletable)
	repo.AssertExpectations(t)
}

func TestQuizService_AddQuestion(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		CreatedBy: "teacher-1",
	}, nil)
	repo.question.On("CountByQuiz", mock.Anything, uint(1)).Return(int64(3), nil)
	repo.question.On("Create", mock.Anything, mock.MatchedBy(func(q *models.Question) bool {
		return q.QuizID == 1 && q.Type == models.MultipleChoice && q.OrderIndex == 3 && len(q.Options) == 3
	})).Return(nil)

	service := newQuizServiceForTest(repo)
	question, err := service.AddQuestion(context.Background(), 1, &CreateQuestionRequest{
		Text:   "Which keyword declares a constant?",
		Type:   models.MultipleChoice,
		Points: 10,
		Options: []OptionInput{
			{Text: "const", IsCorrect: true},
			{Text: "var"},
			{Text: "let"},
		},
	}, "teacher-1")

	require.NoError(t, err)
	require.NotNil(t, question)
	// Appended at the end of the authored order.
	assert.Equal(t, 3, question.OrderIndex)
	repo.AssertExpectations(t)
}

func TestQuizService_AddQuestion_RejectsInvalidOptionSet(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		CreatedBy: "teacher-1",
	}, nil)
	repo.question.On("CountByQuiz", mock.Anything, uint(1)).Return(int64(0), nil)

	service := newQuizServiceForTest(repo)
	_, err := service.AddQuestion(context.Background(), 1, &CreateQuestionRequest{
		Text:   "Pick one",
		Type:   models.MultipleChoice,
		Points: 5,
		Options: []OptionInput{
			{Text: "A", IsCorrect: true},
			{Text: "B", IsCorrect: true},
		},
	}, "teacher-1")

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	repo.AssertExpectations(t)
}

func TestQuizService_RemoveQuestion_WrongQuiz(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		CreatedBy: "teacher-1",
	}, nil)
	repo.question.On("GetByID", mock.Anything, uint(9)).Return(&models.Question{
		ID:     9,
		QuizID: 2,
	}, nil)

	service := newQuizServiceForTest(repo)
	err := service.RemoveQuestion(context.Background(), 1, 9, "teacher-1")

	assert.ErrorIs(t, err, ErrQuestionWrongQuiz)
	repo.AssertExpectations(t)
}

func TestQuizService_GetByID_NotFound(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(404)).Return(nil, gorm.ErrRecordNotFound)

	service := newQuizServiceForTest(repo)
	_, err := service.GetByID(context.Background(), 404)

	assert.ErrorIs(t, err, ErrQuizNotFound)
	repo.AssertExpectations(t)
}
