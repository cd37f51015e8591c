package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coursekit/quiz-engine/internal/cache"
	"github.com/coursekit/quiz-engine/internal/events"
	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/coursekit/quiz-engine/internal/repositories"
	"github.com/coursekit/quiz-engine/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAttemptServiceForTest(repo *MockRepository) (AttemptService, *events.MockEventPublisher) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher(logger)
	return NewAttemptService(repo, logger, validator.New(), publisher, cache.NoopCache{}), publisher
}

func testQuiz() *models.Quiz {
	return &models.Quiz{
		ID:                 1,
		LessonID:           "lesson-1",
		Title:              "Go Fundamentals",
		DurationMinutes:    30,
		PassingScore:       70,
		MaxAttempts:        3,
		ShowCorrectAnswers: true,
		CreatedBy:          "teacher-1",
		Questions: []models.Question{
			{
				ID:     10,
				QuizID: 1,
				Text:   "Which keyword starts a goroutine?",
				Type:   models.MultipleChoice,
				Points: 10,
				Options: []models.QuestionOption{
					{ID: 101, QuestionID: 10, Text: "go", IsCorrect: true},
					{ID: 102, QuestionID: 10, Text: "run"},
					{ID: 103, QuestionID: 10, Text: "spawn"},
				},
			},
			{
				ID:     11,
				QuizID: 1,
				Text:   "Explain the context package.",
				Type:   models.Essay,
				Points: 20,
			},
		},
	}
}

func inProgressAttempt(t *testing.T, questionIDs []uint) *models.Attempt {
	t.Helper()
	attempt := &models.Attempt{
		ID:            7,
		QuizID:        1,
		LearnerID:     "learner-1",
		AttemptNumber: 1,
		Status:        models.AttemptInProgress,
		StartedAt:     time.Now().UTC().Add(-5 * time.Minute),
	}
	require.NoError(t, attempt.SetSnapshot(models.AttemptSnapshot{QuestionIDs: questionIDs}))
	return attempt
}

func TestAttemptService_Start_EmptyQuiz(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(&models.Quiz{ID: 1}, nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.Start(context.Background(), 1, "learner-1")

	assert.ErrorIs(t, err, ErrEmptyQuiz)
	repo.AssertExpectations(t)
}

func TestAttemptService_Start_ActiveAttemptConflict(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(testQuiz(), nil)
	repo.attempt.On("GetActive", mock.Anything, uint(1), "learner-1").Return(&models.Attempt{ID: 5}, nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.Start(context.Background(), 1, "learner-1")

	assert.ErrorIs(t, err, ErrAttemptInProgress)
	repo.AssertExpectations(t)
}

func TestAttemptService_Start_LimitExceeded(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(testQuiz(), nil)
	repo.attempt.On("GetActive", mock.Anything, uint(1), "learner-1").Return(nil, gorm.ErrRecordNotFound)
	repo.attempt.On("CountByLearner", mock.Anything, uint(1), "learner-1").Return(3, nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.Start(context.Background(), 1, "learner-1")

	assert.ErrorIs(t, err, ErrAttemptLimitExceeded)
	repo.AssertExpectations(t)
}

func TestAttemptService_Start(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByIDWithQuestions", mock.Anything, uint(1)).Return(testQuiz(), nil)
	repo.attempt.On("GetActive", mock.Anything, uint(1), "learner-1").Return(nil, gorm.ErrRecordNotFound)
	repo.attempt.On("CountByLearner", mock.Anything, uint(1), "learner-1").Return(1, nil)
	repo.attempt.On("Create", mock.Anything, mock.AnythingOfType("*models.Attempt")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Attempt).ID = 7
	}).Return(nil)
	repo.attempt.On("Update", mock.Anything, mock.AnythingOfType("*models.Attempt")).Return(nil)

	service, _ := newAttemptServiceForTest(repo)
	resp, err := service.Start(context.Background(), 1, "learner-1")

	require.NoError(t, err)
	assert.Equal(t, uint(7), resp.AttemptID)
	assert.Equal(t, 2, resp.AttemptNumber)
	assert.True(t, resp.Deadline.Equal(resp.StartedAt.Add(30*time.Minute)))

	// Shuffle is off, so the authored question order is preserved.
	require.Len(t, resp.Questions, 2)
	assert.Equal(t, uint(10), resp.Questions[0].ID)
	assert.Equal(t, uint(11), resp.Questions[1].ID)

	// Multiple choice options come back without the correctness flag and
	// as a permutation of the authored set.
	ids := make([]uint, 0, 3)
	for _, opt := range resp.Questions[0].Options {
		ids = append(ids, opt.ID)
	}
	assert.ElementsMatch(t, []uint{101, 102, 103}, ids)
	assert.Empty(t, resp.Questions[1].Options)

	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_QuestionNotInAttempt(t *testing.T) {
	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10, 11}), nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       99,
		SelectedOptionID: uintPtr(101),
	}, "learner-1")

	assert.ErrorIs(t, err, ErrQuestionNotInAttempt)
	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_NotActive(t *testing.T) {
	attempt := inProgressAttempt(t, []uint{10})
	attempt.Status = models.AttemptCompleted

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(attempt, nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       10,
		SelectedOptionID: uintPtr(101),
	}, "learner-1")

	assert.ErrorIs(t, err, ErrAttemptNotActive)
	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_NotOwner(t *testing.T) {
	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10}), nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       10,
		SelectedOptionID: uintPtr(101),
	}, "someone-else")

	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_ForeignOptionRejected(t *testing.T) {
	quiz := testQuiz()

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10, 11}), nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10}).Return([]*models.Question{&quiz.Questions[0]}, nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       10,
		SelectedOptionID: uintPtr(999), // not one of this question's options
	}, "learner-1")

	assert.ErrorIs(t, err, ErrAnswerMissingValue)
	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_Upserts(t *testing.T) {
	quiz := testQuiz()

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10, 11}), nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10}).Return([]*models.Question{&quiz.Questions[0]}, nil)
	repo.answer.On("Upsert", mock.Anything, mock.MatchedBy(func(r *models.AnswerRecord) bool {
		return r.AttemptID == 7 && r.QuestionID == 10 && r.SelectedOptionID != nil && *r.SelectedOptionID == 101
	})).Return(nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       10,
		SelectedOptionID: uintPtr(101),
	}, "learner-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAttemptService_SubmitAnswer_EditedQuestionStillAnswerable(t *testing.T) {
	// Editing a question replaces its row; the frozen snapshot still
	// points at the original, now soft-deleted, question.
	quiz := testQuiz()
	edited := quiz.Questions[0]
	edited.DeletedAt = gorm.DeletedAt{Time: time.Now().UTC(), Valid: true}

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10, 11}), nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10}).Return([]*models.Question{&edited}, nil)
	repo.answer.On("Upsert", mock.Anything, mock.MatchedBy(func(r *models.AnswerRecord) bool {
		return r.AttemptID == 7 && r.QuestionID == 10 && r.SelectedOptionID != nil && *r.SelectedOptionID == 101
	})).Return(nil)

	service, _ := newAttemptServiceForTest(repo)
	err := service.SubmitAnswer(context.Background(), 7, &SubmitAnswerRequest{
		QuestionID:       10,
		SelectedOptionID: uintPtr(101),
	}, "learner-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAttemptService_Submit_RaceLoser(t *testing.T) {
	quiz := testQuiz()
	attempt := inProgressAttempt(t, []uint{10, 11})

	full := *attempt
	full.Quiz = *quiz

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(attempt, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(7)).Return(&full, nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10, 11}).Return([]*models.Question{
		&quiz.Questions[0], &quiz.Questions[1],
	}, nil)
	// The sweep finalized this attempt between the read and the CAS.
	repo.attempt.On("Finalize", mock.Anything, uint(7), mock.Anything).Return(false, nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.Submit(context.Background(), 7, "learner-1")

	assert.ErrorIs(t, err, ErrAttemptAlreadyFinalized)
	repo.AssertExpectations(t)
}

func TestAttemptService_SweepExpired(t *testing.T) {
	quiz := testQuiz()

	winner := inProgressAttempt(t, []uint{10, 11})
	loser := inProgressAttempt(t, []uint{10, 11})
	loser.ID = 8

	fullWinner := *winner
	fullWinner.Quiz = *quiz
	fullLoser := *loser
	fullLoser.Quiz = *quiz

	repo := newMockRepository()
	repo.attempt.On("GetExpired", mock.Anything, mock.Anything, 100).Return([]*models.Attempt{winner, loser}, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(7)).Return(&fullWinner, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(8)).Return(&fullLoser, nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10, 11}).Return([]*models.Question{
		&quiz.Questions[0], &quiz.Questions[1],
	}, nil)
	// Timed-out attempts land as abandoned, never completed.
	repo.attempt.On("Finalize", mock.Anything, uint(7), mock.MatchedBy(func(u repositories.AttemptFinalize) bool {
		return u.Status == models.AttemptAbandoned
	})).Return(true, nil)
	// A concurrent submit already closed the second attempt.
	repo.attempt.On("Finalize", mock.Anything, uint(8), mock.Anything).Return(false, nil)
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(quiz, nil)

	service, publisher := newAttemptServiceForTest(repo)
	swept, err := service.SweepExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.AttemptAbandonedEvent, published[0].Type)
	assert.Equal(t, uint(7), published[0].AttemptID)

	repo.AssertExpectations(t)
}

func TestAttemptService_SweepExpired_CapsTimeSpent(t *testing.T) {
	quiz := testQuiz()

	// Started well past the 30 minute limit; the sweep is late.
	attempt := inProgressAttempt(t, []uint{10, 11})
	attempt.StartedAt = time.Now().UTC().Add(-45 * time.Minute)

	full := *attempt
	full.Quiz = *quiz

	repo := newMockRepository()
	repo.attempt.On("GetExpired", mock.Anything, mock.Anything, 100).Return([]*models.Attempt{attempt}, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(7)).Return(&full, nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10, 11}).Return([]*models.Question{
		&quiz.Questions[0], &quiz.Questions[1],
	}, nil)
	repo.attempt.On("Finalize", mock.Anything, uint(7), mock.MatchedBy(func(u repositories.AttemptFinalize) bool {
		return u.Status == models.AttemptAbandoned && u.TimeSpentSeconds == quiz.DurationMinutes*60
	})).Return(true, nil)
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(quiz, nil)

	service, _ := newAttemptServiceForTest(repo)
	swept, err := service.SweepExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	repo.AssertExpectations(t)
}

func TestAttemptService_Abandon_CapsTimeSpent(t *testing.T) {
	quiz := testQuiz()

	attempt := inProgressAttempt(t, []uint{10, 11})
	attempt.StartedAt = time.Now().UTC().Add(-45 * time.Minute)

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(attempt, nil)
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(quiz, nil)
	// An abandon issued after the deadline still records at most the
	// quiz's 30 minutes.
	repo.attempt.On("Finalize", mock.Anything, uint(7), mock.MatchedBy(func(u repositories.AttemptFinalize) bool {
		return u.Status == models.AttemptAbandoned && u.TimeSpentSeconds == quiz.DurationMinutes*60 && u.Score == nil
	})).Return(true, nil)

	service, publisher := newAttemptServiceForTest(repo)
	err := service.Abandon(context.Background(), 7, "learner-1")

	require.NoError(t, err)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.AttemptAbandonedEvent, published[0].Type)

	repo.AssertExpectations(t)
}

func TestAttemptService_GetResults_NotFinalized(t *testing.T) {
	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(inProgressAttempt(t, []uint{10}), nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.GetResults(context.Background(), 7, "learner-1")

	assert.ErrorIs(t, err, ErrAttemptNotFinalized)
	repo.AssertExpectations(t)
}

func TestAttemptService_GetResults(t *testing.T) {
	quiz := testQuiz()
	now := time.Now().UTC()
	score := 100 // provisional: only the choice question is graded so far
	points := 10
	correct := true

	attempt := inProgressAttempt(t, []uint{10, 11})
	attempt.Status = models.AttemptCompleted
	attempt.Score = &score
	attempt.FullyGraded = false
	attempt.CompletedAt = &now

	full := *attempt
	full.Quiz = *quiz
	full.Answers = []models.AnswerRecord{
		{
			AttemptID:        7,
			QuestionID:       10,
			SelectedOptionID: uintPtr(101),
			IsCorrect:        &correct,
			PointsEarned:     &points,
		},
	}

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(attempt, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(7)).Return(&full, nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10, 11}).Return([]*models.Question{
		&quiz.Questions[0], &quiz.Questions[1],
	}, nil)

	service, _ := newAttemptServiceForTest(repo)
	result, err := service.GetResults(context.Background(), 7, "learner-1")

	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, result.Status)
	assert.Equal(t, 100, *result.Score)
	assert.Nil(t, result.Passed) // essay still ungraded
	assert.False(t, result.FullyGraded)
	assert.Equal(t, 30, result.TotalPoints)
	assert.Equal(t, 10, result.EarnedPoints)
	assert.Equal(t, 70, result.PassingScore)

	require.Len(t, result.Answers, 2)
	choice := result.Answers[0]
	assert.Equal(t, uint(10), choice.QuestionID)
	assert.True(t, *choice.IsCorrect)
	// The quiz reveals its key, so the correct option id is present.
	require.NotNil(t, choice.CorrectOptionID)
	assert.Equal(t, uint(101), *choice.CorrectOptionID)

	essay := result.Answers[1]
	assert.Equal(t, uint(11), essay.QuestionID)
	assert.Nil(t, essay.PointsEarned)

	repo.AssertExpectations(t)
}

func TestAttemptService_GetResults_StrangerDenied(t *testing.T) {
	quiz := testQuiz()

	attempt := inProgressAttempt(t, []uint{10, 11})
	attempt.Status = models.AttemptAbandoned

	full := *attempt
	full.Quiz = *quiz

	repo := newMockRepository()
	repo.attempt.On("GetByID", mock.Anything, uint(7)).Return(attempt, nil)
	repo.attempt.On("GetByIDWithAnswers", mock.Anything, uint(7)).Return(&full, nil)
	repo.question.On("GetByIDs", mock.Anything, []uint{10, 11}).Return([]*models.Question{
		&quiz.Questions[0], &quiz.Questions[1],
	}, nil)

	service, _ := newAttemptServiceForTest(repo)
	_, err := service.GetResults(context.Background(), 7, "stranger")

	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
	repo.AssertExpectations(t)
}
