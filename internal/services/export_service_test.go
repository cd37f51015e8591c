package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coursekit/quiz-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newExportServiceForTest(repo *MockRepository) ExportService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExportService(repo, logger)
}

func TestExportService_ExportQuizResults(t *testing.T) {
	now := time.Now().UTC()
	score := 85
	passed := true
	timeSpent := 900

	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		Title:     "Go Fundamentals",
		CreatedBy: "teacher-1",
	}, nil)
	repo.attempt.On("GetByQuiz", mock.Anything, uint(1), mock.Anything).Return([]*models.Attempt{
		{
			ID:               7,
			QuizID:           1,
			LearnerID:        "learner-1",
			AttemptNumber:    1,
			Status:           models.AttemptCompleted,
			Score:            &score,
			Passed:           &passed,
			FullyGraded:      true,
			StartedAt:        now.Add(-20 * time.Minute),
			CompletedAt:      &now,
			TimeSpentSeconds: &timeSpent,
		},
		{
			ID:            8,
			QuizID:        1,
			LearnerID:     "learner-2",
			AttemptNumber: 1,
			Status:        models.AttemptInProgress,
			StartedAt:     now,
		},
	}, int64(2), nil)

	service := newExportServiceForTest(repo)
	data, filename, err := service.ExportQuizResults(context.Background(), 1, "teacher-1")

	require.NoError(t, err)
	assert.Contains(t, filename, "quiz_1_results_")
	assert.Contains(t, filename, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two attempts

	assert.Equal(t, "Learner ID", rows[0][0])
	assert.Equal(t, "learner-1", rows[1][0])
	assert.Equal(t, "85", rows[1][5])
	assert.Equal(t, "learner-2", rows[2][0])
	assert.Equal(t, string(models.AttemptInProgress), rows[2][2])

	repo.AssertExpectations(t)
}

func TestExportService_ExportQuizResults_NotOwner(t *testing.T) {
	repo := newMockRepository()
	repo.quiz.On("GetByID", mock.Anything, uint(1)).Return(&models.Quiz{
		ID:        1,
		CreatedBy: "teacher-1",
	}, nil)

	service := newExportServiceForTest(repo)
	_, _, err := service.ExportQuizResults(context.Background(), 1, "teacher-2")

	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
	repo.AssertExpectations(t)
}
